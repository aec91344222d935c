package spatial

import "github.com/golang/geo/s2"

// Extent returns the smallest box holding every valid item. ok is false when
// there is none.
func Extent[T Located](items []T) (box BBox, ok bool) {
	rect := s2.EmptyRect()
	for _, it := range items {
		lat, lon := it.LatLon()
		if !Valid(lat, lon) {
			continue
		}
		rect = rect.AddPoint(s2.LatLngFromDegrees(lat, lon))
	}
	if rect.IsEmpty() {
		return BBox{}, false
	}
	lo, hi := rect.Lo(), rect.Hi()
	return BBox{
		West:  lo.Lng.Degrees(),
		South: lo.Lat.Degrees(),
		East:  hi.Lng.Degrees(),
		North: hi.Lat.Degrees(),
	}, true
}
