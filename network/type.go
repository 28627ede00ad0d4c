package network

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/samber/lo"

	"github.com/gsmkev/sumo-helper/network/geo"
)

// NodeType is the junction type written to the node file.
type NodeType string

const (
	NodeTypePriority     NodeType = "priority"
	NodeTypeTrafficLight NodeType = "traffic_light"
	NodeTypeDeadEnd      NodeType = "dead_end"
)

// RoadClass is the closed enumeration of highway classes a way may carry.
// Ways with any other class are dropped by the builder.
type RoadClass string

const (
	ClassMotorway    RoadClass = "motorway"
	ClassTrunk       RoadClass = "trunk"
	ClassPrimary     RoadClass = "primary"
	ClassSecondary   RoadClass = "secondary"
	ClassTertiary    RoadClass = "tertiary"
	ClassResidential RoadClass = "residential"
	ClassService     RoadClass = "service"
)

// DefaultAllowedClasses matches the upstream Overpass filter
// motorway|trunk|primary|secondary|tertiary|residential|service.
func DefaultAllowedClasses() []RoadClass {
	return []RoadClass{
		ClassMotorway, ClassTrunk, ClassPrimary, ClassSecondary,
		ClassTertiary, ClassResidential, ClassService,
	}
}

// defaultSpeeds maps a road class to its free-flow speed in m/s, used when
// a way has no usable maxspeed tag.
var defaultSpeeds = map[RoadClass]float64{
	ClassMotorway:    27.78,
	ClassTrunk:       22.22,
	ClassPrimary:     16.67,
	ClassSecondary:   13.89,
	ClassTertiary:    12.50,
	ClassResidential: 8.33,
	ClassService:     5.56,
}

// ParseRoadClass returns the class for a highway tag value and whether it
// belongs to the closed enumeration.
func ParseRoadClass(tag string) (RoadClass, bool) {
	c := RoadClass(tag)
	_, ok := defaultSpeeds[c]
	return c, ok
}

// Node is a junction of the normalized network. Lat/Lon are geographic,
// X/Y are planar meters in the bundle's local frame.
type Node struct {
	ID      string   `json:"id"`
	Lat     float64  `json:"lat"`
	Lon     float64  `json:"lon"`
	X       float64  `json:"x"`
	Y       float64  `json:"y"`
	Type    NodeType `json:"type"`
	IsEntry bool     `json:"is_entry"`
	IsExit  bool     `json:"is_exit"`
}

// Edge is a directed road segment. A bidirectional way yields two edges
// with mirrored shapes. Shape points are geographic (lon, lat), at least
// two per edge.
type Edge struct {
	ID     string         `json:"id"`
	From   string         `json:"from"`
	To     string         `json:"to"`
	Shape  orb.LineString `json:"shape"`
	Length float64        `json:"length"` // meters, derived from shape
	Speed  float64        `json:"speed"`  // m/s, > 0
	Lanes  int            `json:"lanes"`  // >= 1
	Class  RoadClass      `json:"class"`
}

// Phase is one step of a traffic-light program.
type Phase struct {
	State    string  `json:"state"` // one letter per controlled link
	Duration float64 `json:"duration"`
}

// TrafficLight is the signal program controlling a node.
type TrafficLight struct {
	NodeID string  `json:"node_id"`
	Phases []Phase `json:"phases"`
}

// Network is the normalized road network. It is built once and treated as
// immutable by every consumer; route generation and export never modify
// nodes or edges.
type Network struct {
	Bounds geo.Bounds
	Origin orb.Point // projection origin (lon, lat)

	Nodes         map[string]*Node
	Edges         map[string]*Edge
	TrafficLights []*TrafficLight

	// Warnings collected while skipping malformed ways.
	Warnings []string

	out map[string][]*Edge
	in  map[string][]*Edge
}

// rebuildIndex recomputes the adjacency caches from Edges. Called by the
// builder and by the bundle importer after reassembling a network.
func (n *Network) rebuildIndex() {
	n.out = make(map[string][]*Edge, len(n.Nodes))
	n.in = make(map[string][]*Edge, len(n.Nodes))
	for _, e := range n.SortedEdges() {
		n.out[e.From] = append(n.out[e.From], e)
		n.in[e.To] = append(n.in[e.To], e)
	}
}

// OutEdges returns the edges leaving the node, ordered by edge id.
func (n *Network) OutEdges(nodeID string) []*Edge { return n.out[nodeID] }

// InEdges returns the edges entering the node, ordered by edge id.
func (n *Network) InEdges(nodeID string) []*Edge { return n.in[nodeID] }

// NeighborCount returns the number of distinct nodes connected to nodeID
// by at least one edge in either direction, excluding self loops. A node
// with exactly one neighbor is a true dead end even when the road is
// bidirectional.
func (n *Network) NeighborCount(nodeID string) int {
	seen := make(map[string]struct{})
	for _, e := range n.out[nodeID] {
		if e.To != nodeID {
			seen[e.To] = struct{}{}
		}
	}
	for _, e := range n.in[nodeID] {
		if e.From != nodeID {
			seen[e.From] = struct{}{}
		}
	}
	return len(seen)
}

// SortedNodes returns the nodes ordered by id for deterministic output.
func (n *Network) SortedNodes() []*Node {
	nodes := lo.Values(n.Nodes)
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes
}

// SortedEdges returns the edges ordered by id for deterministic output.
func (n *Network) SortedEdges() []*Edge {
	edges := lo.Values(n.Edges)
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
	return edges
}

// Assemble builds a Network from already-normalized collections, restoring
// the adjacency caches. Used by the bundle importer.
func Assemble(bounds geo.Bounds, origin orb.Point, nodes []*Node, edges []*Edge, lights []*TrafficLight) *Network {
	n := &Network{
		Bounds: bounds,
		Origin: origin,
		Nodes: lo.SliceToMap(nodes, func(nd *Node) (string, *Node) {
			return nd.ID, nd
		}),
		Edges: lo.SliceToMap(edges, func(e *Edge) (string, *Edge) {
			return e.ID, e
		}),
		TrafficLights: lights,
	}
	n.rebuildIndex()
	return n
}
