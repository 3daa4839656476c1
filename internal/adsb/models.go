package adsb

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Candidate is an aircraft returned by the feed for a search position.
// Only the position is interpreted by the search; the rest is carried through
// for display.
type Candidate struct {
	ID           string   `json:"id" msgpack:"id"`
	ICAO         string   `json:"icao,omitempty" msgpack:"icao"`
	Registration string   `json:"registration,omitempty" msgpack:"reg"`
	Callsign     string   `json:"callsign,omitempty" msgpack:"call"`
	Latitude     float64  `json:"latitude" msgpack:"lat"`
	Longitude    float64  `json:"longitude" msgpack:"lon"`
	Altitude     float64  `json:"altitude_ft,omitempty" msgpack:"alt"`
	Speed        float64  `json:"speed_kts,omitempty" msgpack:"spd"`
	Heading      float64  `json:"heading,omitempty" msgpack:"trak"`
	Model        string   `json:"model,omitempty" msgpack:"mdl"`
	Manufacturer string   `json:"manufacturer,omitempty" msgpack:"man"`
	Operator     string   `json:"operator,omitempty" msgpack:"op"`
	Origin       string   `json:"origin,omitempty" msgpack:"from"`
	Destination  string   `json:"destination,omitempty" msgpack:"to"`
	Stops        []string `json:"stops,omitempty" msgpack:"stops"`
	Country      string   `json:"country,omitempty" msgpack:"cou"`
	OnGround     bool     `json:"on_ground" msgpack:"gnd"`

	// ReportedDistanceKm is the distance the feed attached to the entry, -1 when unknown
	ReportedDistanceKm float64 `json:"reported_distance_km" msgpack:"dst"`
}

// Key returns the identity used to store a candidate: the ICAO address when
// known, otherwise the feed id.
func (c Candidate) Key() string {
	if c.ICAO != "" {
		return strings.ToUpper(c.ICAO)
	}
	return c.ID
}

// Property is a display name/value pair
type Property struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Properties lists the candidate's attributes in display order, skipping
// attributes the feed left empty
func (c Candidate) Properties() []Property {
	var props []Property
	add := func(name, value string) {
		if value == "" {
			return
		}
		props = append(props, Property{Name: name, Value: value})
	}

	add("Operator", c.Operator)
	add("Model", c.Model)
	add("Manufacturer", c.Manufacturer)
	add("Country", c.Country)
	add("Origin", c.Origin)
	add("Destination", c.Destination)
	add("ICAO", c.ICAO)
	add("Registration", c.Registration)
	add("Callsign", c.Callsign)
	add("Latitude", strconv.FormatFloat(c.Latitude, 'f', 5, 64))
	add("Longitude", strconv.FormatFloat(c.Longitude, 'f', 5, 64))
	if c.ReportedDistanceKm >= 0 {
		add("Distance", fmt.Sprintf("%.1f km", c.ReportedDistanceKm))
	}
	add("Velocity", fmt.Sprintf("%.0f kts", c.Speed))
	add("Heading", fmt.Sprintf("%.0f°", c.Heading))
	add("On Ground", strconv.FormatBool(c.OnGround))
	add("Stops", strings.Join(c.Stops, ", "))

	return props
}

// RawAircraftData is the aircraft.json document served by readsb/dump1090
type RawAircraftData struct {
	Now      float64      `json:"now"`
	Messages int          `json:"messages"`
	Aircraft []ADSBTarget `json:"aircraft"`
}

// ADSBTarget is a single entry of aircraft.json
type ADSBTarget struct {
	Hex          string     `json:"hex"`
	Flight       string     `json:"flight,omitempty"`
	Registration string     `json:"r,omitempty"`
	Type         string     `json:"t,omitempty"`
	Description  string     `json:"desc,omitempty"`
	Operator     string     `json:"ownOp,omitempty"`
	Lat          *float64   `json:"lat,omitempty"`
	Lon          *float64   `json:"lon,omitempty"`
	AltBaro      FlexNumber `json:"alt_baro"`
	GS           float64    `json:"gs,omitempty"`
	Track        float64    `json:"track,omitempty"`
	Seen         float64    `json:"seen,omitempty"`
}

// Convert maps the target to a candidate. ok is false when the target has no position.
func (t ADSBTarget) Convert() (Candidate, bool) {
	if t.Lat == nil || t.Lon == nil {
		return Candidate{}, false
	}
	return Candidate{
		ID:                 strings.ToLower(t.Hex),
		ICAO:               strings.ToUpper(t.Hex),
		Registration:       registrationOrDerived(t.Registration, t.Hex),
		Callsign:           CleanFlightName(t.Flight),
		Latitude:           *t.Lat,
		Longitude:          *t.Lon,
		Altitude:           t.AltBaro.Float64(),
		Speed:              t.GS,
		Heading:            t.Track,
		Model:              firstNonEmpty(t.Description, t.Type),
		Operator:           t.Operator,
		OnGround:           t.AltBaro.IsGround(),
		ReportedDistanceKm: -1,
	}, true
}

// VirtualRadarResponse is the AircraftList.json document of VirtualRadar
// compatible feeds such as ADS-B Exchange
type VirtualRadarResponse struct {
	TotalAc int                  `json:"totalAc"`
	AcList  []VirtualRadarTarget `json:"acList"`
}

// VirtualRadarTarget is a single acList entry
type VirtualRadarTarget struct {
	ID       int      `json:"Id"`
	Icao     string   `json:"Icao"`
	Reg      string   `json:"Reg"`
	Call     string   `json:"Call"`
	Lat      *float64 `json:"Lat"`
	Long     *float64 `json:"Long"`
	Alt      float64  `json:"Alt"`
	Spd      float64  `json:"Spd"`
	Trak     float64  `json:"Trak"`
	Mdl      string   `json:"Mdl"`
	Man      string   `json:"Man"`
	From     string   `json:"From"`
	To       string   `json:"To"`
	Op       string   `json:"Op"`
	Dst      *float64 `json:"Dst"`
	Cou      string   `json:"Cou"`
	Gnd      bool     `json:"Gnd"`
	Stops    []string `json:"Stops"`
}

// Convert maps the entry to a candidate. ok is false when the entry has no position.
func (t VirtualRadarTarget) Convert() (Candidate, bool) {
	if t.Lat == nil || t.Long == nil {
		return Candidate{}, false
	}
	dst := -1.0
	if t.Dst != nil {
		dst = *t.Dst
	}
	return Candidate{
		ID:                 strconv.Itoa(t.ID),
		ICAO:               strings.ToUpper(t.Icao),
		Registration:       registrationOrDerived(t.Reg, t.Icao),
		Callsign:           CleanFlightName(t.Call),
		Latitude:           *t.Lat,
		Longitude:          *t.Long,
		Altitude:           t.Alt,
		Speed:              t.Spd,
		Heading:            t.Trak,
		Model:              t.Mdl,
		Manufacturer:       t.Man,
		Operator:           t.Op,
		Origin:             t.From,
		Destination:        t.To,
		Stops:              t.Stops,
		Country:            t.Cou,
		OnGround:           t.Gnd,
		ReportedDistanceKm: dst,
	}, true
}

// registrationOrDerived falls back to the registration implied by the ICAO
// address when the feed leaves it empty
func registrationOrDerived(reported, icao string) string {
	if reported != "" {
		return reported
	}
	if reg, err := RegistrationFromICAO(icao); err == nil {
		return reg
	}
	return ""
}

// FlexNumber accepts a JSON number or a string. readsb reports "ground" in
// alt_baro for aircraft on the ground.
type FlexNumber struct {
	value  float64
	ground bool
}

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexNumber) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case float64:
		f.value = val
	case string:
		if strings.EqualFold(val, "ground") {
			f.ground = true
			return nil
		}
		n, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid numeric value %q: %w", val, err)
		}
		f.value = n
	case nil:
	default:
		return fmt.Errorf("unexpected value type %T", v)
	}
	return nil
}

// Float64 returns the numeric value, 0 for "ground" or missing values
func (f FlexNumber) Float64() float64 {
	return f.value
}

// IsGround reports whether the value was the literal "ground"
func (f FlexNumber) IsGround() bool {
	return f.ground
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
