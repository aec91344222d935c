package spatial

import (
	"errors"
	"math"

	"github.com/golang/geo/s2"
	"github.com/tidwall/geodesic"
)

// ErrInvalidCoordinates is returned when a point is outside the valid lat/lon ranges.
var ErrInvalidCoordinates = errors.New("invalid coordinates")

// Valid reports whether lat is in [-90,90] and lon in [-180,180].
func Valid(lat, lon float64) bool {
	return s2.LatLngFromDegrees(lat, lon).IsValid()
}

// Distance returns the WGS-84 geodesic distance between a and b in
// kilometres, rounded to two decimals.
func Distance(a, b Located) (float64, error) {
	lat1, lon1 := a.LatLon()
	lat2, lon2 := b.LatLon()
	if !Valid(lat1, lon1) || !Valid(lat2, lon2) {
		return 0, ErrInvalidCoordinates
	}

	var meters float64
	geodesic.WGS84.Inverse(lat1, lon1, lat2, lon2, &meters, nil, nil)
	return math.Round(meters/10) / 100, nil
}
