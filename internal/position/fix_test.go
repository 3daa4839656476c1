package position

import (
	"testing"
	"time"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func fixAt(offset time.Duration, accuracy float64, source string) Fix {
	return Fix{Latitude: 32.0, Longitude: 34.8, Accuracy: accuracy, Time: t0.Add(offset), Source: source}
}

func TestIsBetterFirstFix(t *testing.T) {
	for _, f := range []Fix{
		fixAt(0, 0, "gps"),
		fixAt(-time.Hour, 5000, ""),
		{},
	} {
		if !IsBetter(f, nil) {
			t.Errorf("Expected any fix to beat no fix, got false for %+v", f)
		}
	}
}

func TestIsBetterSameTimeMoreAccurate(t *testing.T) {
	tests := []struct {
		a, b float64
	}{
		{10, 50},
		{10.2, 10.5},
		{0, 1000},
	}
	for _, tt := range tests {
		a := fixAt(0, tt.a, "gps")
		b := fixAt(0, tt.b, "network")
		if !IsBetter(a, &b) {
			t.Errorf("accuracy %v vs %v: expected more precise fix to win", tt.a, tt.b)
		}
		if IsBetter(b, &a) {
			t.Errorf("accuracy %v vs %v: expected less precise fix to lose", tt.b, tt.a)
		}
	}
}

func TestIsBetterStaleness(t *testing.T) {
	current := fixAt(0, 5, "gps")

	newer := fixAt(SignificantAge+time.Millisecond, 4000, "network")
	if !IsBetter(newer, &current) {
		t.Error("Expected a significantly newer fix to win regardless of accuracy")
	}

	older := fixAt(-SignificantAge-time.Millisecond, 1, "gps")
	if IsBetter(older, &current) {
		t.Error("Expected a significantly older fix to lose regardless of accuracy")
	}

	// Exactly two minutes is not "significantly" anything
	edge := fixAt(SignificantAge, 4000, "network")
	if IsBetter(edge, &current) {
		t.Error("Expected a fix exactly two minutes newer to be judged on accuracy")
	}
}

func TestIsBetterComparableAge(t *testing.T) {
	tests := []struct {
		name     string
		current  Fix
		cand     Fix
		expected bool
	}{
		{"newer equally accurate", fixAt(0, 20, "gps"), fixAt(time.Second, 20, "network"), true},
		{"older equally accurate", fixAt(0, 20, "gps"), fixAt(-time.Second, 20, "gps"), false},
		{"same time equally accurate", fixAt(0, 20, "gps"), fixAt(0, 20, "gps"), false},
		{"older but more accurate", fixAt(0, 20, "gps"), fixAt(-time.Minute, 10, "network"), true},
		{"newer slightly worse same source", fixAt(0, 20, "gps"), fixAt(time.Second, 120, "gps"), true},
		{"newer slightly worse other source", fixAt(0, 20, "gps"), fixAt(time.Second, 120, "network"), false},
		{"newer at loss threshold same source", fixAt(0, 20, "gps"), fixAt(time.Second, 220, "gps"), true},
		{"newer much worse same source", fixAt(0, 20, "gps"), fixAt(time.Second, 221, "gps"), false},
		{"newer worse both unnamed", fixAt(0, 20, ""), fixAt(time.Second, 50, ""), true},
		{"newer worse one unnamed", fixAt(0, 20, ""), fixAt(time.Second, 50, "gps"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBetter(tt.cand, &tt.current); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestIsBetterIgnoresCoordinates(t *testing.T) {
	current := fixAt(0, 20, "gps")
	far := current
	far.Latitude, far.Longitude = -45, 170

	if IsBetter(far, &current) || IsBetter(current, &far) {
		t.Error("Expected fixes differing only in coordinates to never replace each other")
	}
}
