package adsb

import (
	"math"
	"strings"

	"github.com/jftuga/geodist"

	"github.com/yegors/superplane/internal/position"
)

const (
	MetersPerNM = 1852.0
	KmPerNM     = MetersPerNM / 1000.0
)

// KmToNM converts kilometers to nautical miles
func KmToNM(km float64) float64 {
	return km / KmPerNM
}

// NMToKm converts nautical miles to kilometers
func NMToKm(nm float64) float64 {
	return nm * KmPerNM
}

// DistanceKm returns the great-circle distance between two points in kilometers
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	_, km := geodist.HaversineDistance(
		geodist.Coord{Lat: lat1, Lon: lon1},
		geodist.Coord{Lat: lat2, Lon: lon2},
	)
	return km
}

// BearingDeg returns the initial great-circle bearing from the first point to
// the second, in degrees clockwise from true north [0, 360)
func BearingDeg(lat1, lon1, lat2, lon2 float64) float64 {
	const rad = math.Pi / 180.0

	phi1, phi2 := lat1*rad, lat2*rad
	dLon := (lon2 - lon1) * rad

	y := math.Sin(dLon) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLon)

	return math.Mod(math.Atan2(y, x)/rad+360.0, 360.0)
}

// ResolveNearest returns the candidate closest to ref and its distance in km.
// Ties go to the candidate that appears first. ok is false for an empty slice.
func ResolveNearest(ref position.Fix, candidates []Candidate) (nearest Candidate, distanceKm float64, ok bool) {
	best := -1
	bestDist := math.MaxFloat64

	for i := range candidates {
		d := DistanceKm(ref.Latitude, ref.Longitude, candidates[i].Latitude, candidates[i].Longitude)
		if d < bestDist {
			best = i
			bestDist = d
		}
	}

	if best < 0 {
		return Candidate{}, 0, false
	}
	return candidates[best], bestDist, true
}

// CleanFlightName removes padding and null characters from flight names
func CleanFlightName(flight string) string {
	return strings.TrimSpace(strings.ReplaceAll(flight, "\x00", ""))
}
