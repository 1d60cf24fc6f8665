package viewport

import (
	"time"

	"firstview-tracker/internal/geo"
)

const (
	// DefaultSpan is the zoom used for a lone point or a tight cluster.
	DefaultSpan = 0.01
	// MinSpan is the extent below which a cluster is shown like a single point.
	MinSpan = 0.005
	// DefaultEdgePadding is the pixel padding kept around fitted bounds.
	DefaultEdgePadding = 50
	// AnimationDuration is used for region animations.
	AnimationDuration = 500 * time.Millisecond
)

type EdgePadding struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

func UniformPadding(px int) EdgePadding {
	return EdgePadding{Top: px, Right: px, Bottom: px, Left: px}
}

type FitOptions struct {
	EdgePadding EdgePadding `json:"edgePadding"`
	Animated    bool        `json:"animated"`
}

// MapHandle is the live map the camera commands go to. Commands are fire-and-forget.
type MapHandle interface {
	Ready() bool
	AnimateToRegion(region geo.Region, duration time.Duration)
	FitToCoordinates(points []geo.Point, opts FitOptions)
}

type Action int

const (
	ActionNone Action = iota
	ActionAnimate
	ActionFit
)

func (a Action) String() string {
	switch a {
	case ActionAnimate:
		return "animate"
	case ActionFit:
		return "fit"
	default:
		return "none"
	}
}

// Plan is the camera command computed for a point set.
type Plan struct {
	Action   Action
	Region   geo.Region    // ActionAnimate
	Duration time.Duration // ActionAnimate
	Points   []geo.Point   // ActionFit
	Options  FitOptions    // ActionFit
	Applied  bool
}

// Fit decides how the camera should frame pts. It has no side effects.
func Fit(pts []geo.Point) Plan {
	switch len(pts) {
	case 0:
		return Plan{Action: ActionNone}
	case 1:
		return animateTo(pts[0])
	}
	b, _ := geo.BoundsOf(pts)
	if b.LatitudeExtent() < MinSpan && b.LongitudeExtent() < MinSpan {
		return animateTo(b.Center())
	}
	return Plan{
		Action:  ActionFit,
		Points:  append([]geo.Point(nil), pts...),
		Options: FitOptions{EdgePadding: UniformPadding(DefaultEdgePadding), Animated: true},
	}
}

func animateTo(p geo.Point) Plan {
	return Plan{
		Action: ActionAnimate,
		Region: geo.Region{
			CenterLatitude:  p.Latitude,
			CenterLongitude: p.Longitude,
			LatitudeSpan:    DefaultSpan,
			LongitudeSpan:   DefaultSpan,
		},
		Duration: AnimationDuration,
	}
}

// Apply computes the plan for pts and sends it to h. A nil or unready handle is left
// untouched; the plan is still returned with Applied false.
func Apply(h MapHandle, pts []geo.Point) Plan {
	plan := Fit(pts)
	if plan.Action == ActionNone || h == nil || !h.Ready() {
		return plan
	}
	switch plan.Action {
	case ActionAnimate:
		h.AnimateToRegion(plan.Region, plan.Duration)
	case ActionFit:
		h.FitToCoordinates(plan.Points, plan.Options)
	}
	plan.Applied = true
	return plan
}
