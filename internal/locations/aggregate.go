package locations

import (
	"firstview-tracker/internal/firstview"
	"firstview-tracker/internal/geo"
)

// RiderGroup holds one rider's records in arrival order.
type RiderGroup struct {
	RiderID string             `json:"riderId"`
	Name    string             `json:"name"`
	Records []firstview.Result `json:"records"`
}

type Result struct {
	// Groups in order of first appearance.
	Groups  []RiderGroup                  `json:"riders"`
	ByRider map[string][]firstview.Result `json:"-"`
	Points  []geo.Point                   `json:"points"`
}

// Aggregate groups records by rider and flattens their coordinates: all stops first, then
// all vehicles, each in record order. Records without a student still contribute points.
func Aggregate(records []firstview.Result) Result {
	out := Result{ByRider: make(map[string][]firstview.Result)}
	order := make([]string, 0)
	for _, r := range records {
		if r.Student == nil {
			continue
		}
		id := r.StudentID()
		if _, seen := out.ByRider[id]; !seen {
			order = append(order, id)
		}
		out.ByRider[id] = append(out.ByRider[id], r)
	}
	for _, id := range order {
		recs := out.ByRider[id]
		if len(recs) == 0 {
			delete(out.ByRider, id)
			continue
		}
		out.Groups = append(out.Groups, RiderGroup{RiderID: id, Name: recs[0].StudentName(), Records: recs})
	}
	out.Points = AllPoints(records)
	return out
}

// AllPoints returns stop coordinates followed by vehicle coordinates.
func AllPoints(records []firstview.Result) []geo.Point {
	pts := make([]geo.Point, 0, 2*len(records))
	for _, r := range records {
		if p, ok := StopPoint(r); ok {
			pts = append(pts, p)
		}
	}
	for _, r := range records {
		if p, ok := VehiclePoint(r); ok {
			pts = append(pts, p)
		}
	}
	return pts
}

func StopPoint(r firstview.Result) (geo.Point, bool) {
	if r.Stop == nil || !present(r.Stop.Lat, r.Stop.Lng) {
		return geo.Point{}, false
	}
	return geo.Point{Latitude: r.Stop.Lat, Longitude: r.Stop.Lng}, true
}

func VehiclePoint(r firstview.Result) (geo.Point, bool) {
	if r.VehicleLocation == nil || !present(r.VehicleLocation.Lat, r.VehicleLocation.Lng) {
		return geo.Point{}, false
	}
	return geo.Point{Latitude: r.VehicleLocation.Lat, Longitude: r.VehicleLocation.Lng}, true
}

// present treats a zero component as missing, so a real 0.0 latitude or longitude is
// dropped too.
func present(lat, lng float64) bool {
	return lat != 0 && lng != 0
}

// RiderPoints returns the points of one rider's records, in AllPoints order.
func (r Result) RiderPoints(riderID string) []geo.Point {
	return AllPoints(r.ByRider[riderID])
}
