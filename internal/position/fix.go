package position

import (
	"time"
)

const (
	// SignificantAge is the age gap beyond which recency beats accuracy
	SignificantAge = 2 * time.Minute

	// SignificantAccuracyLoss is the accuracy degradation (meters) a newer fix from
	// the same source may carry and still be accepted
	SignificantAccuracyLoss = 200.0
)

// Fix is a single reported position. It is a value type and is never mutated
// after creation.
type Fix struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy_m"` // smaller is more precise
	Time      time.Time `json:"time"`
	Source    string    `json:"source"`
}

// IsBetter reports whether candidate should replace current as the best fix.
// Fixes are compared by age, accuracy and source only, never by coordinates.
func IsBetter(candidate Fix, current *Fix) bool {
	if current == nil {
		return true
	}

	timeDelta := candidate.Time.Sub(current.Time)
	isSignificantlyNewer := timeDelta > SignificantAge
	isSignificantlyOlder := timeDelta < -SignificantAge
	isNewer := timeDelta > 0

	// The user has probably moved since current was taken
	if isSignificantlyNewer {
		return true
	} else if isSignificantlyOlder {
		return false
	}

	accuracyDelta := candidate.Accuracy - current.Accuracy
	isLessAccurate := accuracyDelta > 0
	isMoreAccurate := accuracyDelta < 0
	isSignificantlyLessAccurate := accuracyDelta > SignificantAccuracyLoss

	switch {
	case isMoreAccurate:
		return true
	case isNewer && !isLessAccurate:
		return true
	case isNewer && !isSignificantlyLessAccurate && candidate.Source == current.Source:
		return true
	}
	return false
}
