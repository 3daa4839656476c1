package adsb

import (
	"fmt"
	"strconv"
	"strings"
)

// The US (A00001-ADF7C7) and Canadian (C00001-C08950) address blocks are
// assigned in registration order, so the registration can be derived from
// the ICAO address when the feed does not report it.

const (
	nLetters = "ABCDEFGHJKLMNPQRSTUVWXYZ" // I and O are never issued
	nDigits  = "0123456789"
	nChars   = nLetters + nDigits

	// Addresses consumed by the letter suffixes following a digit
	nSuffixBlock = 1 + len(nLetters)*(1+len(nLetters))

	// Addresses consumed under each digit position, innermost last
	nBlock4 = 1 + len(nLetters) + len(nDigits)
	nBlock3 = len(nDigits)*nBlock4 + nSuffixBlock
	nBlock2 = len(nDigits)*nBlock3 + nSuffixBlock
	nBlock1 = len(nDigits)*nBlock2 + nSuffixBlock

	nMaxIndex = 915398 // ADF7C7, N99999

	caLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	caBlock   = len(caLetters) * len(caLetters) * len(caLetters)
)

// RegistrationFromICAO derives the registration mark for US and Canadian
// addresses. Other countries do not assign addresses algorithmically.
func RegistrationFromICAO(icao string) (string, error) {
	if len(icao) != 6 {
		return "", fmt.Errorf("ICAO address must be 6 hex digits, got %q", icao)
	}
	icao = strings.ToUpper(icao)

	value, err := strconv.ParseUint(icao[1:], 16, 32)
	if err != nil || !isHex(icao[0]) {
		return "", fmt.Errorf("ICAO address %q is not hexadecimal", icao)
	}

	switch icao[0] {
	case 'A':
		return usRegistration(int(value))
	case 'C':
		return caRegistration(int(value))
	default:
		return "", fmt.Errorf("no registration mapping for ICAO address %s", icao)
	}
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'F')
}

func usRegistration(value int) (string, error) {
	idx := value - 1
	if idx < 0 || idx > nMaxIndex {
		return "", fmt.Errorf("ICAO address A%05X is outside the N-number block", value)
	}

	var b strings.Builder
	b.WriteByte('N')
	b.WriteString(strconv.Itoa(idx/nBlock1 + 1))
	rem := idx % nBlock1

	for _, block := range []int{nBlock2, nBlock3} {
		if rem < nSuffixBlock {
			b.WriteString(nSuffix(rem))
			return b.String(), nil
		}
		rem -= nSuffixBlock
		b.WriteString(strconv.Itoa(rem / block))
		rem %= block
	}

	if rem < nSuffixBlock {
		b.WriteString(nSuffix(rem))
		return b.String(), nil
	}
	rem -= nSuffixBlock
	b.WriteString(strconv.Itoa(rem / nBlock4))
	rem %= nBlock4

	// Last position: nothing, a letter or a digit
	if rem > 0 {
		b.WriteByte(nChars[rem-1])
	}
	return b.String(), nil
}

// nSuffix maps an offset within a suffix block to zero, one or two letters
func nSuffix(offset int) string {
	if offset == 0 {
		return ""
	}
	first := nLetters[(offset-1)/(len(nLetters)+1)]
	second := (offset - 1) % (len(nLetters) + 1)
	if second == 0 {
		return string(first)
	}
	return string([]byte{first, nLetters[second-1]})
}

func caRegistration(value int) (string, error) {
	var prefix string
	switch {
	case value >= 1 && value <= caBlock:
		prefix = "C-F"
		value--
	case value > caBlock && value <= 2*caBlock:
		prefix = "C-G"
		value -= caBlock + 1
	default:
		return "", fmt.Errorf("ICAO address C%05X is outside the C-F/C-G blocks", value)
	}

	n := len(caLetters)
	return prefix + string([]byte{
		caLetters[value/(n*n)%n],
		caLetters[value/n%n],
		caLetters[value%n],
	}), nil
}
