package spatial

import (
	"math"
	"strconv"
	"strings"
)

// BBox is an axis-aligned rectangle in degrees. Edges are inclusive.
type BBox struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// Located is anything with a latitude and longitude in degrees.
type Located interface {
	LatLon() (lat, lon float64)
}

// Point is a bare coordinate pair.
type Point struct {
	Lat float64
	Lon float64
}

func (p Point) LatLon() (float64, float64) { return p.Lat, p.Lon }

// ParseBBox reads "west,south,east,north". Anything other than four finite
// numbers yields ok=false.
func ParseBBox(raw string) (BBox, bool) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return BBox{}, false
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return BBox{}, false
		}
		v[i] = f
	}
	return BBox{West: v[0], South: v[1], East: v[2], North: v[3]}, true
}

func (b BBox) String() string {
	return strconv.FormatFloat(b.West, 'f', -1, 64) + "," +
		strconv.FormatFloat(b.South, 'f', -1, 64) + "," +
		strconv.FormatFloat(b.East, 'f', -1, 64) + "," +
		strconv.FormatFloat(b.North, 'f', -1, 64)
}

// Contains reports whether west <= lon <= east and south <= lat <= north.
func (b BBox) Contains(lat, lon float64) bool {
	return b.West <= lon && lon <= b.East && b.South <= lat && lat <= b.North
}

// Within keeps the items inside box, preserving order.
func Within[T Located](items []T, box BBox) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if box.Contains(it.LatLon()) {
			out = append(out, it)
		}
	}
	return out
}

// FilterParam applies an in_bbox query value. A missing or malformed value
// returns items unchanged.
func FilterParam[T Located](items []T, raw string) []T {
	box, ok := ParseBBox(raw)
	if !ok {
		return items
	}
	return Within(items, box)
}
