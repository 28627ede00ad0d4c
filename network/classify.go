package network

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/gsmkev/sumo-helper/network/geo"
)

// Endpoints is the classifier proposal: candidate entry and exit node ids,
// ordered by id. The caller picks the final selection.
type Endpoints struct {
	Entry []string
	Exit  []string
}

// ClassifyEndpoints proposes entry and exit candidates. A node qualifies
// when it is a true dead end (exactly one neighbor) or lies within the
// configured tolerance of the bounding-box perimeter; an entry additionally
// needs an outgoing edge and an exit an incoming edge. Returns
// ErrInsufficientEndpoints when either side comes up empty.
func ClassifyEndpoints(net *Network, cfg BuildConfig) (*Endpoints, error) {
	proj := geo.NewProjector(net.Origin)
	ep := &Endpoints{}
	for _, node := range net.SortedNodes() {
		if net.NeighborCount(node.ID) != 1 && !nearPerimeter(net.Bounds, proj, node, cfg.BoundaryToleranceM) {
			continue
		}
		if len(net.OutEdges(node.ID)) > 0 {
			ep.Entry = append(ep.Entry, node.ID)
		}
		if len(net.InEdges(node.ID)) > 0 {
			ep.Exit = append(ep.Exit, node.ID)
		}
	}
	if len(ep.Entry) == 0 || len(ep.Exit) == 0 {
		return nil, ErrInsufficientEndpoints
	}
	log.Debugf("classified %d entry and %d exit candidates", len(ep.Entry), len(ep.Exit))
	return ep, nil
}

// nearPerimeter reports whether the node's planar position is within tol
// meters of any side of the bounding box.
func nearPerimeter(b geo.Bounds, proj *geo.Projector, node *Node, tol float64) bool {
	sw := proj.ToPlanar(orb.Point{b.West, b.South})
	ne := proj.ToPlanar(orb.Point{b.East, b.North})
	d := math.Min(
		math.Min(math.Abs(node.X-sw[0]), math.Abs(node.X-ne[0])),
		math.Min(math.Abs(node.Y-sw[1]), math.Abs(node.Y-ne[1])),
	)
	return d <= tol
}

// ValidateEndpoints checks a user-provided entry/exit selection against
// the network. The network itself is left untouched; entry/exit membership
// travels with the bundle, never with the shared snapshot. A node present
// in both sets is rejected unless the configuration allows the overlap.
func ValidateEndpoints(net *Network, entry, exit []string, cfg BuildConfig) error {
	if len(entry) == 0 || len(exit) == 0 {
		return ErrInsufficientEndpoints
	}
	for _, id := range entry {
		if _, ok := net.Nodes[id]; !ok {
			return &UnknownNodeError{ID: id}
		}
	}
	for _, id := range exit {
		if _, ok := net.Nodes[id]; !ok {
			return &UnknownNodeError{ID: id}
		}
	}
	if !cfg.AllowEntryExitOverlap {
		entrySet := make(map[string]struct{}, len(entry))
		for _, id := range entry {
			entrySet[id] = struct{}{}
		}
		for _, id := range exit {
			if _, ok := entrySet[id]; ok {
				return ErrEntryExitOverlap
			}
		}
	}
	return nil
}
