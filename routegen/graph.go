package routegen

import (
	"container/heap"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/samber/lo"
)

type node[T any] struct {
	p     orb.Point // planar meters
	attr  T
	noOut bool
}

type edge[T any] struct {
	w    float64
	attr T
}

// SearchGraph is an A*-searchable directed graph. The adjacency structure
// is fixed after initialization; edge weights may be updated concurrently
// with searches, guarded by the reader-biased lock.
type SearchGraph[NT any, ET any] struct {
	// adjacency, from node -> to node -> weighted edge
	edges []map[int]edge[ET]
	nodes []node[NT]
	// admissible lower bound on the cost between two positions
	h func(orb.Point, orb.Point) float64

	mu *xsync.RBMutex
}

func NewSearchGraph[NT any, ET any](h func(orb.Point, orb.Point) float64) *SearchGraph[NT, ET] {
	return &SearchGraph[NT, ET]{
		edges: make([]map[int]edge[ET], 0),
		nodes: make([]node[NT], 0),
		h:     h,
		mu:    xsync.NewRBMutex(),
	}
}

// InitNode registers a node and returns its index. Nodes flagged noOut are
// expanded only as search targets, never as intermediate hops.
func (g *SearchGraph[NT, ET]) InitNode(p orb.Point, attr NT, noOut bool) int {
	g.nodes = append(g.nodes, node[NT]{p: p, attr: attr, noOut: noOut})
	g.edges = append(g.edges, make(map[int]edge[ET]))
	return len(g.nodes) - 1
}

func (g *SearchGraph[NT, ET]) InitEdge(from, to int, weight float64, attr ET) {
	if from >= len(g.edges) {
		log.Panicf("from node %d >= len(g.edges) %d", from, len(g.edges))
	}
	g.edges[from][to] = edge[ET]{w: weight, attr: attr}
}

func (g *SearchGraph[NT, ET]) GetEdgeWeight(from, to int) float64 {
	t := g.mu.RLock()
	defer g.mu.RUnlock(t)
	return g.edges[from][to].w
}

func (g *SearchGraph[NT, ET]) SetEdgeWeight(from, to int, weight float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e := g.edges[from][to]
	e.w = weight
	g.edges[from][to] = e
}

// PathItem is one hop of a search result: the node reached and the edge
// taken to reach the next node (zero for the last item).
type PathItem[NT any, ET any] struct {
	NodeAttr NT
	EdgeAttr ET
}

func (g *SearchGraph[NT, ET]) reconstructPath(cameFrom map[int]int, curNode int) ([]PathItem[NT, ET], float64) {
	pathBeforeReversed := []PathItem[NT, ET]{{NodeAttr: g.nodes[curNode].attr}}
	cost := .0
	for {
		from, ok := cameFrom[curNode]
		if !ok {
			break
		}
		e := g.edges[from][curNode]
		cost += e.w
		curNode = from
		pathBeforeReversed = append(pathBeforeReversed, PathItem[NT, ET]{
			NodeAttr: g.nodes[curNode].attr,
			EdgeAttr: e.attr,
		})
	}
	return lo.Reverse(pathBeforeReversed), cost
}

// ShortestPath runs A* from start to end and returns the path with its
// cost, or (nil, +Inf) when end is unreachable.
func (g *SearchGraph[NT, ET]) ShortestPath(start, end int) ([]PathItem[NT, ET], float64) {
	token := g.mu.RLock()
	defer g.mu.RUnlock(token)
	if start == end {
		return []PathItem[NT, ET]{{NodeAttr: g.nodes[start].attr}}, 0
	}
	openSet := make(PriorityQueue, 1)
	openSetMap := make(map[int]*Item, 1) // openSet value -> openSet item
	cameFrom := make(map[int]int)
	gScore := map[int]float64{start: .0}
	fScore := g.h(g.nodes[start].p, g.nodes[end].p)
	openSet[0] = &Item{Value: start, Priority: fScore, Index: 0}
	openSetMap[start] = openSet[0]
	heap.Init(&openSet)
	for openSet.Len() > 0 {
		cur := heap.Pop(&openSet).(*Item).Value
		if cur == end {
			return g.reconstructPath(cameFrom, cur)
		}
		// expand in index order so equal-cost ties resolve the same way
		// on every run
		neighbors := lo.Keys(g.edges[cur])
		sort.Ints(neighbors)
		for _, neighbor := range neighbors {
			e := g.edges[cur][neighbor]
			if g.nodes[neighbor].noOut && neighbor != end {
				continue
			}
			gScoreTentative := gScore[cur] + e.w
			gScoreNeighbor, visited := gScore[neighbor]
			if !visited {
				gScoreNeighbor = math.Inf(0)
			}
			if gScoreTentative < gScoreNeighbor {
				cameFrom[neighbor] = cur
				gScore[neighbor] = gScoreTentative
				fScore := gScoreTentative + g.h(g.nodes[neighbor].p, g.nodes[end].p)
				if visited {
					openSetMap[neighbor].Priority = fScore
					heap.Fix(&openSet, openSetMap[neighbor].Index)
				} else {
					item := &Item{Value: neighbor, Priority: fScore}
					heap.Push(&openSet, item)
					openSetMap[neighbor] = item
				}
			}
		}
	}
	return nil, math.Inf(0)
}
