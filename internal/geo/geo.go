// Package geo holds the containment tests used to filter occurrences by
// region.  Coordinates are planar degrees; the antimeridian and the poles
// get no special treatment.
package geo

import "math"

// Point is a (longitude, latitude) pair, the order GeoJSON uses.
type Point struct {
	Lng float64
	Lat float64
}

// Box is an axis-aligned rectangle given by its south-west and north-east
// corners.
type Box struct {
	SouthWest Point
	NorthEast Point
}

// Ring is a closed or open sequence of vertices.  A closing vertex equal to
// the first one is allowed and ignored.
type Ring []Point

// Polygon is an outer ring followed by zero or more holes.
type Polygon []Ring

// PointInBox reports whether p lies in the box, edges included.
func PointInBox(p Point, sw, ne Point) bool {
	return sw.Lat <= p.Lat && p.Lat <= ne.Lat &&
		sw.Lng <= p.Lng && p.Lng <= ne.Lng
}

// Contains is PointInBox on the receiver.
func (b Box) Contains(p Point) bool { return PointInBox(p, b.SouthWest, b.NorthEast) }

// PointInPolygon reports whether p is strictly inside poly: inside the outer
// ring and outside every hole.  Points on any edge or vertex are outside.
func PointInPolygon(p Point, poly Polygon) bool {
	if len(poly) == 0 {
		return false
	}
	for _, r := range poly {
		if r.onBoundary(p) {
			return false
		}
	}
	if !poly[0].contains(p) {
		return false
	}
	for _, hole := range poly[1:] {
		if hole.contains(p) {
			return false
		}
	}
	return true
}

// Bounds returns the bounding box of the outer ring.
func (poly Polygon) Bounds() Box {
	if len(poly) == 0 || len(poly[0]) == 0 {
		return Box{}
	}
	b := Box{SouthWest: poly[0][0], NorthEast: poly[0][0]}
	for _, v := range poly[0][1:] {
		b.SouthWest.Lng = math.Min(b.SouthWest.Lng, v.Lng)
		b.SouthWest.Lat = math.Min(b.SouthWest.Lat, v.Lat)
		b.NorthEast.Lng = math.Max(b.NorthEast.Lng, v.Lng)
		b.NorthEast.Lat = math.Max(b.NorthEast.Lat, v.Lat)
	}
	return b
}

// contains is the even-odd ray casting test; boundary points are undefined
// here and handled by onBoundary.
func (r Ring) contains(p Point) bool {
	n := len(r)
	if n < 3 {
		return false
	}
	in := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := r[i], r[j]
		if (a.Lat > p.Lat) != (b.Lat > p.Lat) {
			x := (b.Lng-a.Lng)*(p.Lat-a.Lat)/(b.Lat-a.Lat) + a.Lng
			if p.Lng < x {
				in = !in
			}
		}
	}
	return in
}

func (r Ring) onBoundary(p Point) bool {
	n := len(r)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		if onSegment(p, r[j], r[i]) {
			return true
		}
	}
	return false
}

func onSegment(p, a, b Point) bool {
	cross := (b.Lng-a.Lng)*(p.Lat-a.Lat) - (b.Lat-a.Lat)*(p.Lng-a.Lng)
	if math.Abs(cross) > 1e-12 {
		return false
	}
	return math.Min(a.Lng, b.Lng) <= p.Lng && p.Lng <= math.Max(a.Lng, b.Lng) &&
		math.Min(a.Lat, b.Lat) <= p.Lat && p.Lat <= math.Max(a.Lat, b.Lat)
}
