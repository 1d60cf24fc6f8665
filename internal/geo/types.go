package geo

import "math"

type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Region is a map camera state: a centre plus the visible span on each axis, in degrees.
type Region struct {
	CenterLatitude  float64 `json:"latitude"`
	CenterLongitude float64 `json:"longitude"`
	LatitudeSpan    float64 `json:"latitudeDelta"`
	LongitudeSpan   float64 `json:"longitudeDelta"`
}

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	MinLatitude  float64
	MaxLatitude  float64
	MinLongitude float64
	MaxLongitude float64
}

// BoundsOf returns the bounding box of pts. ok is false for an empty slice.
func BoundsOf(pts []Point) (b Bounds, ok bool) {
	if len(pts) == 0 {
		return Bounds{}, false
	}
	b = Bounds{
		MinLatitude:  math.Inf(1),
		MaxLatitude:  math.Inf(-1),
		MinLongitude: math.Inf(1),
		MaxLongitude: math.Inf(-1),
	}
	for _, p := range pts {
		b.MinLatitude = math.Min(b.MinLatitude, p.Latitude)
		b.MaxLatitude = math.Max(b.MaxLatitude, p.Latitude)
		b.MinLongitude = math.Min(b.MinLongitude, p.Longitude)
		b.MaxLongitude = math.Max(b.MaxLongitude, p.Longitude)
	}
	return b, true
}

func (b Bounds) LatitudeExtent() float64  { return b.MaxLatitude - b.MinLatitude }
func (b Bounds) LongitudeExtent() float64 { return b.MaxLongitude - b.MinLongitude }

func (b Bounds) Center() Point {
	return Point{
		Latitude:  (b.MaxLatitude + b.MinLatitude) / 2,
		Longitude: (b.MaxLongitude + b.MinLongitude) / 2,
	}
}
