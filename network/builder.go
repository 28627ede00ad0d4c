package network

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/pkg/errors"

	"github.com/gsmkev/sumo-helper/network/geo"
)

// RawGraph is the bounding-box extract handed over by the data-fetch
// collaborator: plain OSM nodes and ways with their tags.
type RawGraph struct {
	Bounds geo.Bounds
	Nodes  []*osm.Node
	Ways   []*osm.Way
}

// BuildConfig controls network construction. Zero values are not usable;
// start from DefaultBuildConfig.
type BuildConfig struct {
	// AllowedClasses lists the road classes kept by the way filter.
	AllowedClasses []RoadClass
	// MaxAreaDeg2 is the bounding-box area limit in square degrees.
	// 0.01 corresponds to the roughly 1 km side the UI allows.
	MaxAreaDeg2 float64
	// GreenSeconds/RedSeconds size the synthesized two-phase signal cycle.
	GreenSeconds float64
	RedSeconds   float64
	// BoundaryToleranceM is the planar distance to the bounding-box
	// perimeter within which a node counts as an entry/exit candidate.
	BoundaryToleranceM float64
	// AllowEntryExitOverlap permits a node to be selected as both entry
	// and exit. Off by default to avoid degenerate zero-length routes.
	AllowEntryExitOverlap bool
	// DefaultLanes is used when a way carries no lanes tag.
	DefaultLanes int
}

func DefaultBuildConfig() BuildConfig {
	return BuildConfig{
		AllowedClasses:     DefaultAllowedClasses(),
		MaxAreaDeg2:        0.01,
		GreenSeconds:       30,
		RedSeconds:         5,
		BoundaryToleranceM: 5,
		DefaultLanes:       1,
	}
}

func (c BuildConfig) allowed(class RoadClass) bool {
	for _, a := range c.AllowedClasses {
		if a == class {
			return true
		}
	}
	return false
}

// Build converts a raw graph into the normalized network model: way
// filtering by road class, directed edge decomposition with interior shape
// points, orphan-node drop, stable ids, traffic-light synthesis and
// per-edge length/speed/lane derivation.
func Build(raw *RawGraph, cfg BuildConfig) (*Network, error) {
	if area := raw.Bounds.AreaDeg2(); area > cfg.MaxAreaDeg2 {
		return nil, errors.Wrapf(ErrAreaTooLarge, "area %.4f deg2 exceeds limit %.4f deg2", area, cfg.MaxAreaDeg2)
	}

	proj := geo.NewProjectorFromBounds(raw.Bounds)

	rawNodes := make(map[osm.NodeID]*osm.Node, len(raw.Nodes))
	for _, n := range raw.Nodes {
		rawNodes[n.ID] = n
	}

	// Keep only ways whose highway class is in the allowed set.
	kept := make([]*osm.Way, 0, len(raw.Ways))
	classes := make(map[osm.WayID]RoadClass, len(raw.Ways))
	for _, w := range raw.Ways {
		class, ok := ParseRoadClass(w.Tags.Find("highway"))
		if !ok || !cfg.allowed(class) {
			continue
		}
		kept = append(kept, w)
		classes[w.ID] = class
	}

	net := &Network{
		Bounds: raw.Bounds,
		Origin: proj.Origin(),
		Nodes:  make(map[string]*Node),
		Edges:  make(map[string]*Edge),
	}
	signalTagged := make(map[string]bool)

	warn := func(format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		log.Warn(msg)
		net.Warnings = append(net.Warnings, msg)
	}

	// Resolve way geometry up front; a way with missing refs or fewer
	// than two points is skipped with a warning and must not influence
	// the cut-point analysis below.
	type resolvedWay struct {
		way  *osm.Way
		refs []*osm.Node
	}
	resolved := make([]resolvedWay, 0, len(kept))
	for _, w := range kept {
		refs := make([]*osm.Node, 0, len(w.Nodes))
		missing := false
		for _, wn := range w.Nodes {
			rn, ok := rawNodes[wn.ID]
			if !ok {
				missing = true
				break
			}
			refs = append(refs, rn)
		}
		if missing {
			warn("way %d references a missing node, skipped", w.ID)
			continue
		}
		if len(refs) < 2 {
			warn("way %d has fewer than two geometry points, skipped", w.ID)
			continue
		}
		resolved = append(resolved, resolvedWay{way: w, refs: refs})
	}

	// A node is a cut point (network junction) when it terminates a way or
	// is shared between way segments; interior single-use nodes collapse
	// into edge shape points.
	usage := make(map[osm.NodeID]int)
	for _, rw := range resolved {
		for i, rn := range rw.refs {
			usage[rn.ID]++
			if i == 0 || i == len(rw.refs)-1 {
				usage[rn.ID]++ // endpoints always cut
			}
		}
	}

	addNode := func(rn *osm.Node) *Node {
		id := nodeID(rn)
		if n, ok := net.Nodes[id]; ok {
			return n
		}
		xy := proj.ToPlanar(orb.Point{rn.Lon, rn.Lat})
		n := &Node{
			ID:   id,
			Lat:  rn.Lat,
			Lon:  rn.Lon,
			X:    xy[0],
			Y:    xy[1],
			Type: NodeTypePriority,
		}
		net.Nodes[id] = n
		if rn.Tags.Find("highway") == "traffic_signals" {
			signalTagged[id] = true
		}
		return n
	}

	for _, rw := range resolved {
		w, refs := rw.way, rw.refs
		speed := waySpeed(w, classes[w.ID])
		lanes := wayLanes(w, cfg.DefaultLanes)
		dir := wayDirection(w)

		// Split the way at cut points; interior nodes become shape points.
		segStart := 0
		for i := 1; i < len(refs); i++ {
			if i != len(refs)-1 && usage[refs[i].ID] < 2 {
				continue
			}
			shape := make(orb.LineString, 0, i-segStart+1)
			for _, rn := range refs[segStart : i+1] {
				shape = append(shape, orb.Point{rn.Lon, rn.Lat})
			}
			from := addNode(refs[segStart])
			to := addNode(refs[i])
			if dir != dirBackward {
				net.addEdge(proj, from.ID, to.ID, shape, speed, lanes, classes[w.ID])
			}
			if dir != dirForward {
				net.addEdge(proj, to.ID, from.ID, reversed(shape), speed, lanes, classes[w.ID])
			}
			segStart = i
		}
	}

	if len(net.Edges) == 0 {
		return nil, ErrEmptyNetwork
	}

	net.rebuildIndex()
	net.dropOrphans()
	net.synthesizeSignals(cfg, signalTagged)

	log.Infof("built network with %d nodes, %d edges, %d traffic lights (%d warnings)",
		len(net.Nodes), len(net.Edges), len(net.TrafficLights), len(net.Warnings))
	return net, nil
}

// addEdge registers a directed edge, suffixing the id with an ordinal when
// the ordered node pair already has one or more parallel edges.
func (n *Network) addEdge(proj *geo.Projector, from, to string, shape orb.LineString, speed float64, lanes int, class RoadClass) {
	id := from + "_" + to
	for k := 2; ; k++ {
		if _, ok := n.Edges[id]; !ok {
			break
		}
		id = fmt.Sprintf("%s_%s#%d", from, to, k)
	}
	planar := make(orb.LineString, len(shape))
	for i, p := range shape {
		planar[i] = proj.ToPlanar(p)
	}
	n.Edges[id] = &Edge{
		ID:     id,
		From:   from,
		To:     to,
		Shape:  shape,
		Length: geo.LineLength(planar),
		Speed:  speed,
		Lanes:  lanes,
		Class:  class,
	}
}

// dropOrphans removes nodes without any remaining incident edge.
func (n *Network) dropOrphans() {
	for id := range n.Nodes {
		if len(n.out[id]) == 0 && len(n.in[id]) == 0 {
			delete(n.Nodes, id)
		}
	}
}

// synthesizeSignals derives the traffic-light set: explicitly tagged nodes
// and untagged junctions with at least three distinct neighbors get a
// two-phase all-green/all-red program, one state letter per incoming edge.
// Node types are finalized here as well.
func (n *Network) synthesizeSignals(cfg BuildConfig, signalTagged map[string]bool) {
	for _, node := range n.SortedNodes() {
		neighbors := n.NeighborCount(node.ID)
		switch {
		case signalTagged[node.ID] || neighbors >= 3:
			node.Type = NodeTypeTrafficLight
			width := len(n.in[node.ID])
			if width == 0 {
				width = 1
			}
			n.TrafficLights = append(n.TrafficLights, &TrafficLight{
				NodeID: node.ID,
				Phases: []Phase{
					{State: strings.Repeat("G", width), Duration: cfg.GreenSeconds},
					{State: strings.Repeat("r", width), Duration: cfg.RedSeconds},
				},
			})
		case neighbors == 1:
			node.Type = NodeTypeDeadEnd
		default:
			node.Type = NodeTypePriority
		}
	}
}

// nodeID keeps the source id where available; synthetic input nodes
// (id 0) get a deterministic id hashed from their position so repeated
// builds produce identical exports.
func nodeID(rn *osm.Node) string {
	if rn.ID != 0 {
		return strconv.FormatInt(int64(rn.ID), 10)
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%.7f:%.7f", rn.Lat, rn.Lon)))
	return "n" + hex.EncodeToString(sum[:6])
}

func waySpeed(w *osm.Way, class RoadClass) float64 {
	if tag := w.Tags.Find("maxspeed"); tag != "" {
		if mps, ok := parseMaxspeed(tag); ok {
			return mps
		}
	}
	return defaultSpeeds[class]
}

// parseMaxspeed understands plain km/h values ("50", "50 km/h") and mph.
func parseMaxspeed(tag string) (float64, bool) {
	tag = strings.TrimSpace(tag)
	factor := 1 / 3.6 // km/h to m/s
	if strings.HasSuffix(tag, "mph") {
		factor = 0.44704
		tag = strings.TrimSpace(strings.TrimSuffix(tag, "mph"))
	}
	tag = strings.TrimSpace(strings.TrimSuffix(tag, "km/h"))
	v, err := strconv.ParseFloat(tag, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v * factor, true
}

func wayLanes(w *osm.Way, fallback int) int {
	if tag := w.Tags.Find("lanes"); tag != "" {
		if v, err := strconv.Atoi(strings.TrimSpace(tag)); err == nil && v >= 1 {
			return v
		}
	}
	return fallback
}

type direction int

const (
	dirBoth direction = iota
	dirForward
	dirBackward
)

// wayDirection maps the oneway tag to the directed edges a way yields.
// "-1" is the reverse-oneway convention: traffic flows against the node
// order, so only the reversed edge exists.
func wayDirection(w *osm.Way) direction {
	switch w.Tags.Find("oneway") {
	case "yes", "true", "1":
		return dirForward
	case "-1", "reverse":
		return dirBackward
	}
	if w.Tags.Find("junction") == "roundabout" {
		return dirForward
	}
	return dirBoth
}

func reversed(shape orb.LineString) orb.LineString {
	out := make(orb.LineString, len(shape))
	for i, p := range shape {
		out[len(shape)-1-i] = p
	}
	return out
}
