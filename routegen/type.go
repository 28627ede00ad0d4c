package routegen

// VehicleSpec describes one vehicle type of the traffic mix: its share of
// the total vehicle count plus the physical parameters written to the
// route file.
type VehicleSpec struct {
	Type    string  `json:"type"`
	Percent float64 `json:"percentage"`
	// Period is the nominal emission period in seconds, kept for the
	// metadata document; depart times themselves are drawn uniformly.
	Period   float64 `json:"period"`
	Color    string  `json:"color"`
	Accel    float64 `json:"accel"`
	Decel    float64 `json:"decel"`
	Sigma    float64 `json:"sigma"`
	Length   float64 `json:"length"`
	MinGap   float64 `json:"min_gap"`
	MaxSpeed float64 `json:"max_speed"`
	GUIShape string  `json:"gui_shape"`
}

// DefaultSpec returns the stock parameter set for a known vehicle type
// with the given percentage share. Unknown types fall back to car
// dynamics.
func DefaultSpec(typeName string, percent float64) VehicleSpec {
	s, ok := defaultSpecs[typeName]
	if !ok {
		s = defaultSpecs["car"]
		s.Type = typeName
	}
	s.Percent = percent
	return s
}

var defaultSpecs = map[string]VehicleSpec{
	"car": {
		Type: "car", Period: 1.0, Color: "yellow",
		Accel: 2.6, Decel: 4.5, Sigma: 0.5,
		Length: 5, MinGap: 2.5, MaxSpeed: 16.67, GUIShape: "passenger",
	},
	"bus": {
		Type: "bus", Period: 10.0, Color: "red",
		Accel: 1.2, Decel: 4.5, Sigma: 0.5,
		Length: 12, MinGap: 3, MaxSpeed: 13.89, GUIShape: "bus",
	},
	"truck": {
		Type: "truck", Period: 5.0, Color: "blue",
		Accel: 1.3, Decel: 4.5, Sigma: 0.5,
		Length: 8, MinGap: 3, MaxSpeed: 11.11, GUIShape: "truck",
	},
	"motorcycle": {
		Type: "motorcycle", Period: 1.0, Color: "orange",
		Accel: 3.5, Decel: 6.0, Sigma: 0.5,
		Length: 2.5, MinGap: 2.5, MaxSpeed: 20.83, GUIShape: "motorcycle",
	},
	"bicycle": {
		Type: "bicycle", Period: 2.0, Color: "green",
		Accel: 1.2, Decel: 3.0, Sigma: 0.5,
		Length: 1.6, MinGap: 0.5, MaxSpeed: 5.56, GUIShape: "bicycle",
	},
}

// Route is a concrete path shared by one or more vehicles of the same
// type. Departures are the depart times of its vehicle instances, sorted
// ascending.
type Route struct {
	ID          string    `json:"id"`
	Edges       []string  `json:"edges"`
	VehicleType string    `json:"vehicle_type"`
	Color       string    `json:"color"`
	Departures  []float64 `json:"departures"`
}

// RouteSet is the complete output of one generation run.
type RouteSet struct {
	Routes []*Route `json:"routes"`
}

// VehicleCount returns the total number of vehicle instances in the set.
func (rs *RouteSet) VehicleCount() int {
	n := 0
	for _, r := range rs.Routes {
		n += len(r.Departures)
	}
	return n
}

// CountByType returns vehicle instance counts keyed by vehicle type.
func (rs *RouteSet) CountByType() map[string]int {
	counts := make(map[string]int)
	for _, r := range rs.Routes {
		counts[r.VehicleType] += len(r.Departures)
	}
	return counts
}
