package search

import (
	"fmt"
	"time"

	"github.com/yegors/superplane/internal/adsb"
	"github.com/yegors/superplane/internal/position"
)

// OutcomeKind tags the terminal result of a search
type OutcomeKind int

const (
	OutcomeFound OutcomeKind = iota + 1
	OutcomeNotFound
	OutcomeNetworkFailure
	OutcomeCancelled
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeFound:
		return "found"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeNetworkFailure:
		return "network_failure"
	case OutcomeCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("OutcomeKind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler
func (k OutcomeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *OutcomeKind) UnmarshalText(text []byte) error {
	kind, err := ParseOutcomeKind(string(text))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// ParseOutcomeKind is the inverse of OutcomeKind.String
func ParseOutcomeKind(s string) (OutcomeKind, error) {
	for _, k := range []OutcomeKind{OutcomeFound, OutcomeNotFound, OutcomeNetworkFailure, OutcomeCancelled} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown outcome kind: %q", s)
}

// Outcome is the single result reported by a search task
type Outcome struct {
	TaskID     string          `json:"task_id"`
	Kind       OutcomeKind     `json:"kind"`
	Aircraft   *adsb.Candidate `json:"aircraft,omitempty"`    // Found only
	DistanceKm float64         `json:"distance_km,omitempty"` // Found only
	BearingDeg float64         `json:"bearing_deg,omitempty"` // Found only, from the fix to the aircraft
	Fix        *position.Fix   `json:"fix,omitempty"`         // reference fix, if one was held
	Error      string          `json:"error,omitempty"`       // NetworkFailure only
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
}

// Found reports the nearest aircraft to fix
func Found(aircraft adsb.Candidate, distanceKm float64, fix position.Fix) Outcome {
	return Outcome{
		Kind:       OutcomeFound,
		Aircraft:   &aircraft,
		DistanceKm: distanceKm,
		BearingDeg: adsb.BearingDeg(fix.Latitude, fix.Longitude, aircraft.Latitude, aircraft.Longitude),
		Fix:        &fix,
	}
}

// NotFound reports that no fix arrived or the feed had nothing in range. fix
// may be nil.
func NotFound(fix *position.Fix) Outcome {
	return Outcome{Kind: OutcomeNotFound, Fix: fix}
}

// NetworkFailure reports that the feed could not be used
func NetworkFailure(fix position.Fix, err error) Outcome {
	o := Outcome{Kind: OutcomeNetworkFailure, Fix: &fix}
	if err != nil {
		o.Error = err.Error()
	}
	return o
}

// Cancelled reports a deliberate abort
func Cancelled() Outcome {
	return Outcome{Kind: OutcomeCancelled}
}
