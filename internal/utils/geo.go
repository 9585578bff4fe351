package utils

import (
	"time"

	"github.com/bradfitz/latlong"
	"github.com/umahmood/haversine"
)

const metersPerMile = 1609.344

// DistanceMeters is the great-circle distance between two coordinates.
func DistanceMeters(lat1, lng1, lat2, lng2 float64) float64 {
	p1 := haversine.Coord{Lat: lat1, Lon: lng1}
	p2 := haversine.Coord{Lat: lat2, Lon: lng2}
	mi, _ := haversine.Distance(p1, p2)
	return mi * metersPerMile
}

// LocationAt resolves the IANA zone for a coordinate, falling back to UTC.
func LocationAt(lat, lng float64) *time.Location {
	if lat == 0 && lng == 0 {
		return time.UTC
	}
	tzName := latlong.LookupZoneName(lat, lng)
	if tzName == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return time.UTC
	}
	return loc
}
