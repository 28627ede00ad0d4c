// Package geo projects geographic coordinates into a local planar frame
// centered on the operating area and back. The operating areas handled by
// the pipeline are at most a few kilometers wide, so an equirectangular
// projection around the bounding-box centroid is accurate well below the
// 0.1 m resolution the exporter needs.
package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// 1 degree of latitude in meters (WGS84 mean).
const MetersPerDegree = 111320.0

// Bounds is a geographic bounding box. North/South are latitudes,
// East/West are longitudes.
type Bounds struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// Center returns the centroid of the bounding box as (lon, lat).
func (b Bounds) Center() orb.Point {
	return orb.Point{(b.East + b.West) / 2, (b.North + b.South) / 2}
}

// AreaDeg2 returns the raw degree area |Δlat * Δlon| used by the
// area-limit check.
func (b Bounds) AreaDeg2() float64 {
	return math.Abs((b.North - b.South) * (b.East - b.West))
}

// Contains reports whether the (lon, lat) point lies inside the box.
func (b Bounds) Contains(p orb.Point) bool {
	return p[0] >= b.West && p[0] <= b.East && p[1] >= b.South && p[1] <= b.North
}

// Projector converts between geographic (lon, lat) and planar (x, y)
// coordinates. Both directions are pure functions of the origin.
type Projector struct {
	origin   orb.Point // (lon, lat)
	lonScale float64   // meters per degree of longitude at the origin
}

// NewProjector builds a projector centered on origin (lon, lat).
func NewProjector(origin orb.Point) *Projector {
	return &Projector{
		origin:   origin,
		lonScale: MetersPerDegree * math.Abs(math.Cos(origin[1]*math.Pi/180)),
	}
}

// NewProjectorFromBounds centers the projector on the bounding-box
// centroid, which keeps planar coordinates small and symmetric.
func NewProjectorFromBounds(b Bounds) *Projector {
	return NewProjector(b.Center())
}

// Origin returns the geographic origin (lon, lat) of the planar frame.
func (p *Projector) Origin() orb.Point {
	return p.origin
}

// ToPlanar converts a (lon, lat) point to local (x, y) meters.
func (p *Projector) ToPlanar(ll orb.Point) orb.Point {
	return orb.Point{
		(ll[0] - p.origin[0]) * p.lonScale,
		(ll[1] - p.origin[1]) * MetersPerDegree,
	}
}

// ToGeographic converts local (x, y) meters back to (lon, lat).
func (p *Projector) ToGeographic(xy orb.Point) orb.Point {
	return orb.Point{
		xy[0]/p.lonScale + p.origin[0],
		xy[1]/MetersPerDegree + p.origin[1],
	}
}

// Distance is the Euclidean distance between two planar points.
func Distance(a, b orb.Point) float64 {
	dx, dy := a[0]-b[0], a[1]-b[1]
	return math.Sqrt(dx*dx + dy*dy)
}

// LineLength sums the segment lengths of a planar line string.
func LineLength(line orb.LineString) float64 {
	total := 0.0
	for i := 1; i < len(line); i++ {
		total += Distance(line[i-1], line[i])
	}
	return total
}
