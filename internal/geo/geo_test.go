package geo

import "testing"

func TestPointInBox(t *testing.T) {
	sw, ne := Point{Lng: -10, Lat: -10}, Point{Lng: 10, Lat: 10}
	tests := []struct {
		name string
		p    Point
		want bool
	}{
		{"centre", Point{0, 0}, true},
		{"south-west corner", Point{-10, -10}, true},
		{"north-east corner", Point{10, 10}, true},
		{"east edge", Point{10, 3}, true},
		{"latitude outside", Point{0, 15}, false},
		{"longitude outside", Point{-10.0001, 0}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PointInBox(tt.p, sw, ne); got != tt.want {
				t.Fatalf("PointInBox(%v) = %v, want %v", tt.p, got, tt.want)
			}
		})
	}
}

func square(minX, minY, maxX, maxY float64) Ring {
	return Ring{{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY}}
}

func TestPointInPolygon(t *testing.T) {
	outer := square(0, 0, 10, 10)
	hole := square(4, 4, 6, 6)
	withHole := Polygon{outer, hole}
	triangle := Polygon{{{0, 0}, {10, 0}, {5, 10}}}

	tests := []struct {
		name string
		poly Polygon
		p    Point
		want bool
	}{
		{"inside square", Polygon{outer}, Point{2, 2}, true},
		{"outside square", Polygon{outer}, Point{11, 5}, false},
		{"on edge is outside", Polygon{outer}, Point{0, 5}, false},
		{"on vertex is outside", Polygon{outer}, Point{10, 10}, false},
		{"inside hole", withHole, Point{5, 5}, false},
		{"on hole edge", withHole, Point{4, 5}, false},
		{"between hole and shell", withHole, Point{2, 8}, true},
		{"open ring triangle", triangle, Point{5, 3}, true},
		{"beside triangle apex", triangle, Point{1, 9}, false},
		{"empty polygon", Polygon{}, Point{0, 0}, false},
		{"degenerate ring", Polygon{{{0, 0}, {1, 1}}}, Point{0.5, 0.5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PointInPolygon(tt.p, tt.poly); got != tt.want {
				t.Fatalf("PointInPolygon(%v) = %v, want %v", tt.p, got, tt.want)
			}
		})
	}
}

func TestPolygonBounds(t *testing.T) {
	poly := Polygon{{{-3, 2}, {5, -1}, {4, 7}, {-3, 2}}}
	got := poly.Bounds()
	want := Box{SouthWest: Point{-3, -1}, NorthEast: Point{5, 7}}
	if got != want {
		t.Fatalf("Bounds() = %+v, want %+v", got, want)
	}
	if (Polygon{}).Bounds() != (Box{}) {
		t.Fatal("empty polygon should have zero bounds")
	}
}
