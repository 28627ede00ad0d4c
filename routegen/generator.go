package routegen

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"

	"github.com/gsmkev/sumo-helper/network"
)

// distributionTolerance is the allowed deviation of the percentage sum
// from 100.
const distributionTolerance = 0.01

// attemptsPerVehicle bounds the random pair re-draws before falling back
// to an exhaustive reachability scan.
const attemptsPerVehicle = 10

// Generate produces the route set for a traffic mix: totalVehicles vehicle
// instances split across the specs by largest-remainder rounding, each
// routed from a sampled entry node to a sampled exit node along the
// fastest path and assigned a depart time drawn uniformly over
// [0, duration). With a non-nil seed every random choice is reproducible.
func Generate(net *network.Network, entry, exit []string, specs []VehicleSpec,
	totalVehicles int, duration float64, seed *int64) (*RouteSet, error) {
	if err := validateSpecs(specs); err != nil {
		return nil, err
	}
	if totalVehicles <= 0 {
		return nil, errors.Errorf("total vehicle count must be positive, got %d", totalVehicles)
	}
	if duration <= 0 {
		return nil, errors.Errorf("simulation duration must be positive, got %.2f", duration)
	}
	if len(entry) == 0 || len(exit) == 0 {
		return nil, network.ErrInsufficientEndpoints
	}

	src := rand.NewSource(time.Now().UnixNano())
	if seed != nil {
		src = rand.NewSource(*seed)
	}
	rng := rand.New(src)

	router := newRouter(net)
	counts := apportion(specs, totalVehicles)

	rs := &RouteSet{}
	for i, spec := range specs {
		departs := sortedDeparts(rng, counts[i], duration)
		if err := routeVehicles(rs, router, rng, spec, entry, exit, departs); err != nil {
			return nil, err
		}
	}

	log.Infof("generated %d routes for %d vehicles across %d types",
		len(rs.Routes), rs.VehicleCount(), len(specs))
	return rs, nil
}

func validateSpecs(specs []VehicleSpec) error {
	if len(specs) == 0 {
		return errors.Wrap(ErrInvalidDistribution, "no vehicle types configured")
	}
	sum := .0
	seen := make(map[string]bool, len(specs))
	for _, s := range specs {
		if s.Percent < 0 || s.Percent > 100 {
			return errors.Wrapf(ErrInvalidDistribution, "percentage %.2f out of range for %s", s.Percent, s.Type)
		}
		if seen[s.Type] {
			return errors.Wrapf(ErrInvalidDistribution, "duplicate vehicle type %s", s.Type)
		}
		seen[s.Type] = true
		sum += s.Percent
	}
	// the small epsilon keeps sums nominally on the tolerance boundary
	// (e.g. 50.005+50.005) from being rejected by accumulated float error
	if math.Abs(sum-100) > distributionTolerance+1e-9 {
		return errors.Wrapf(ErrInvalidDistribution, "percentages sum to %.3f", sum)
	}
	return nil
}

// apportion splits total across the specs by the largest-remainder method
// so the counts sum to exactly total and each deviates from its ideal
// share by at most one.
func apportion(specs []VehicleSpec, total int) []int {
	counts := make([]int, len(specs))
	type frac struct {
		index     int
		remainder float64
	}
	fracs := make([]frac, len(specs))
	assigned := 0
	for i, s := range specs {
		ideal := float64(total) * s.Percent / 100
		counts[i] = int(ideal)
		fracs[i] = frac{index: i, remainder: ideal - float64(counts[i])}
		assigned += counts[i]
	}
	// settle the leftover against the remainders; ties go to the earlier
	// spec so the split never depends on map or sort quirks. A sum just
	// above 100 (within tolerance) can floor to more than total, so the
	// leftover may be negative; those units come back from the
	// smallest-remainder entries.
	leftover := total - assigned
	if leftover > 0 {
		sort.SliceStable(fracs, func(i, j int) bool {
			return fracs[i].remainder > fracs[j].remainder
		})
		for k := 0; leftover > 0; k = (k + 1) % len(fracs) {
			counts[fracs[k].index]++
			leftover--
		}
	} else if leftover < 0 {
		sort.SliceStable(fracs, func(i, j int) bool {
			return fracs[i].remainder < fracs[j].remainder
		})
		for k := 0; leftover < 0; k = (k + 1) % len(fracs) {
			if counts[fracs[k].index] > 0 {
				counts[fracs[k].index]--
				leftover++
			}
		}
	}
	return counts
}

// sortedDeparts draws n depart times uniformly over [0, duration) and
// returns them ascending.
func sortedDeparts(rng *rand.Rand, n int, duration float64) []float64 {
	departs := make([]float64, n)
	for i := range departs {
		departs[i] = rng.Float64() * duration
	}
	sort.Float64s(departs)
	return departs
}

// routeVehicles assigns a path to every depart time of one vehicle type
// and folds vehicles sharing a path into a single route.
func routeVehicles(rs *RouteSet, rt *router, rng *rand.Rand, spec VehicleSpec,
	entry, exit []string, departs []float64) error {
	byPath := make(map[string]*Route)
	order := make([]string, 0)
	for _, depart := range departs {
		edges, err := rt.samplePath(rng, entry, exit)
		if err != nil {
			return err
		}
		key := strings.Join(edges, " ")
		r, ok := byPath[key]
		if !ok {
			r = &Route{
				ID:          fmt.Sprintf("route_%s_%d", spec.Type, len(order)),
				Edges:       edges,
				VehicleType: spec.Type,
				Color:       spec.Color,
			}
			byPath[key] = r
			order = append(order, key)
		}
		r.Departures = append(r.Departures, depart)
	}
	for _, key := range order {
		rs.Routes = append(rs.Routes, byPath[key])
	}
	return nil
}

// router wraps the search graph with the node-id mapping and a per-pair
// path cache.
type router struct {
	graph   *SearchGraph[string, string]
	indexOf map[string]int
	cache   map[[2]string][]string // nil value marks an unreachable pair
}

// newRouter builds the travel-time search graph: edge weight is
// length/speed, the heuristic is straight-line distance at the network's
// top speed, which never overestimates the true travel time.
func newRouter(net *network.Network) *router {
	maxSpeed := .0
	for _, e := range net.Edges {
		if e.Speed > maxSpeed {
			maxSpeed = e.Speed
		}
	}
	h := func(a, b orb.Point) float64 {
		dx, dy := a[0]-b[0], a[1]-b[1]
		return math.Sqrt(dx*dx+dy*dy) / maxSpeed
	}
	rt := &router{
		graph:   NewSearchGraph[string, string](h),
		indexOf: make(map[string]int, len(net.Nodes)),
		cache:   make(map[[2]string][]string),
	}
	for _, n := range net.SortedNodes() {
		noOut := len(net.OutEdges(n.ID)) == 0
		rt.indexOf[n.ID] = rt.graph.InitNode(orb.Point{n.X, n.Y}, n.ID, noOut)
	}
	for _, e := range net.SortedEdges() {
		rt.graph.InitEdge(rt.indexOf[e.From], rt.indexOf[e.To], e.Length/e.Speed, e.ID)
	}
	return rt
}

// samplePath draws entry/exit pairs until one is routable. After the
// bounded random attempts it scans every pair in deterministic order and
// reports ErrUnreachableEndpoints only when none connects.
func (rt *router) samplePath(rng *rand.Rand, entry, exit []string) ([]string, error) {
	for attempt := 0; attempt < attemptsPerVehicle; attempt++ {
		from := entry[rng.Intn(len(entry))]
		to := exit[rng.Intn(len(exit))]
		if edges, ok := rt.path(from, to); ok {
			return edges, nil
		}
	}
	for _, from := range entry {
		for _, to := range exit {
			if edges, ok := rt.path(from, to); ok {
				return edges, nil
			}
		}
	}
	return nil, errors.Wrapf(ErrUnreachableEndpoints,
		"%d entry and %d exit nodes", len(entry), len(exit))
}

// path returns the cached edge sequence for a pair, computing it on first
// use. Identical endpoints yield a degenerate empty path and count as
// unreachable.
func (rt *router) path(from, to string) ([]string, bool) {
	key := [2]string{from, to}
	if edges, ok := rt.cache[key]; ok {
		return edges, edges != nil
	}
	if from == to {
		rt.cache[key] = nil
		return nil, false
	}
	items, cost := rt.graph.ShortestPath(rt.indexOf[from], rt.indexOf[to])
	if math.IsInf(cost, 0) {
		rt.cache[key] = nil
		return nil, false
	}
	edges := make([]string, 0, len(items)-1)
	for _, it := range items[:len(items)-1] {
		edges = append(edges, it.EdgeAttr)
	}
	rt.cache[key] = edges
	return edges, true
}
