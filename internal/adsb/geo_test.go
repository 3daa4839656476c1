package adsb

import (
	"math"
	"testing"

	"github.com/yegors/superplane/internal/position"
)

// kmPerDegreeLat is the length of one degree of latitude on a 6371 km sphere
const kmPerDegreeLat = 6371.0 * math.Pi / 180.0

func northOf(ref position.Fix, km float64, id string) Candidate {
	return Candidate{ID: id, Latitude: ref.Latitude + km/kmPerDegreeLat, Longitude: ref.Longitude}
}

func TestDistanceKm(t *testing.T) {
	if d := DistanceKm(10, 20, 10, 20); d != 0 {
		t.Errorf("Expected zero distance for identical points, got %v", d)
	}

	// Toronto Pearson to Montreal Trudeau is roughly 510 km
	d := DistanceKm(43.6777, -79.6248, 45.4706, -73.7408)
	if d < 495 || d > 525 {
		t.Errorf("Expected ~510 km, got %v", d)
	}

	if math.Abs(KmToNM(NMToKm(42))-42) > 1e-9 {
		t.Error("Expected NM/km conversion to round trip")
	}
	if NMToKm(1) != 1.852 {
		t.Errorf("Expected 1 NM = 1.852 km, got %v", NMToKm(1))
	}
}

func TestBearingDeg(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		want     float64
	}{
		{name: "north", lat: 1, lon: 0, want: 0},
		{name: "east", lat: 0, lon: 1, want: 90},
		{name: "south", lat: -1, lon: 0, want: 180},
		{name: "west", lat: 0, lon: -1, want: 270},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BearingDeg(0, 0, tt.lat, tt.lon); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestResolveNearest(t *testing.T) {
	ref := position.Fix{Latitude: 32.0, Longitude: 34.8}
	candidates := []Candidate{
		northOf(ref, 12.4, "far"),
		northOf(ref, 3.1, "near"),
		northOf(ref, 8.0, "mid"),
	}

	got, dist, ok := ResolveNearest(ref, candidates)
	if !ok {
		t.Fatal("Expected a result")
	}
	if got.ID != "near" {
		t.Errorf("Expected near, got %s", got.ID)
	}
	if math.Abs(dist-3.1) > 0.05 {
		t.Errorf("Expected ~3.1 km, got %v", dist)
	}
}

func TestResolveNearestIsExactMinimum(t *testing.T) {
	ref := position.Fix{Latitude: -33.9, Longitude: 151.2}
	var candidates []Candidate
	for i := 0; i < 50; i++ {
		// Spread around the reference in every direction
		angle := float64(i) * 0.7
		r := 0.02 + float64((i*37)%50)/100
		candidates = append(candidates, Candidate{
			ID:        string(rune('A' + i%26)),
			Latitude:  ref.Latitude + r*math.Sin(angle),
			Longitude: ref.Longitude + r*math.Cos(angle),
		})
	}

	_, best, ok := ResolveNearest(ref, candidates)
	if !ok {
		t.Fatal("Expected a result")
	}
	for _, c := range candidates {
		if d := DistanceKm(ref.Latitude, ref.Longitude, c.Latitude, c.Longitude); d < best {
			t.Fatalf("Found candidate %v closer (%v km) than the result (%v km)", c, d, best)
		}
	}
}

func TestResolveNearestTieGoesToFirst(t *testing.T) {
	ref := position.Fix{Latitude: 0, Longitude: 0}
	candidates := []Candidate{
		{ID: "east", Latitude: 0, Longitude: 0.1},
		{ID: "west", Latitude: 0, Longitude: -0.1},
		{ID: "east-again", Latitude: 0, Longitude: 0.1},
	}

	got, _, _ := ResolveNearest(ref, candidates)
	if got.ID != "east" {
		t.Errorf("Expected first of equally distant candidates, got %s", got.ID)
	}
}

func TestResolveNearestEmpty(t *testing.T) {
	if _, _, ok := ResolveNearest(position.Fix{}, nil); ok {
		t.Error("Expected no result for an empty set")
	}
}

func TestCleanFlightName(t *testing.T) {
	if got := CleanFlightName("ACA123  \x00"); got != "ACA123" {
		t.Errorf("Expected ACA123, got %q", got)
	}
}
