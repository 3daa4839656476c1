package adsb

import (
	"fmt"
)

// NetworkError reports that the feed could not be reached or returned data
// that could not be used
type NetworkError struct {
	Op         string // "request", "status", "read", "parse"
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("adsb feed %s %s: status %d", e.Op, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("adsb feed %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
