package viewport

import (
	"math"
	"sync"
	"time"

	"firstview-tracker/internal/geo"
)

const (
	DefaultScreenWidth  = 390
	DefaultScreenHeight = 844
)

// InitialRegion is shown before any data arrives.
var InitialRegion = geo.Region{
	CenterLatitude:  37.78825,
	CenterLongitude: -122.4324,
	LatitudeSpan:    0.05,
	LongitudeSpan:   0.05,
}

// Camera is an in-memory map state. Fitting grows the bounding box linearly so the
// padding takes its share of the screen; no map projection is applied.
type Camera struct {
	mu      sync.RWMutex
	region  geo.Region
	widthPx float64
	heighPx float64
}

func NewCamera(widthPx, heightPx int) *Camera {
	if widthPx <= 0 {
		widthPx = DefaultScreenWidth
	}
	if heightPx <= 0 {
		heightPx = DefaultScreenHeight
	}
	return &Camera{region: InitialRegion, widthPx: float64(widthPx), heighPx: float64(heightPx)}
}

func (c *Camera) Ready() bool { return c != nil }

func (c *Camera) Region() geo.Region {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.region
}

func (c *Camera) AnimateToRegion(region geo.Region, _ time.Duration) {
	c.mu.Lock()
	c.region = region
	c.mu.Unlock()
}

func (c *Camera) FitToCoordinates(points []geo.Point, opts FitOptions) {
	b, ok := geo.BoundsOf(points)
	if !ok {
		return
	}
	center := b.Center()
	latSpan := padded(b.LatitudeExtent(), float64(opts.EdgePadding.Top+opts.EdgePadding.Bottom), c.heighPx)
	lngSpan := padded(b.LongitudeExtent(), float64(opts.EdgePadding.Left+opts.EdgePadding.Right), c.widthPx)
	c.mu.Lock()
	c.region = geo.Region{
		CenterLatitude:  center.Latitude,
		CenterLongitude: center.Longitude,
		LatitudeSpan:    latSpan,
		LongitudeSpan:   lngSpan,
	}
	c.mu.Unlock()
}

func padded(extent, paddingPx, screenPx float64) float64 {
	usable := screenPx - paddingPx
	if usable < 1 {
		usable = 1
	}
	return math.Max(extent*screenPx/usable, MinSpan)
}
