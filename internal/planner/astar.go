package planner

import (
	"container/heap"
	"context"
	"math"

	"uav_planner/internal/geo"
	"uav_planner/internal/models"
)

// edgeInfo caches the cost and risk of one directed edge so A* never scores
// the same segment twice.
type edgeInfo struct {
	cost float64
	risk float64
}

type openItem struct {
	node    int
	f       float64
	g       float64
	hops    int
	maxRisk float64
	index   int
}

type openHeap []*openItem

func (h openHeap) Len() int { return len(h) }

// Less orders by f-cost, breaking ties by fewer nodes and then by lower
// maximum single-edge risk.
func (h openHeap) Less(i, j int) bool {
	if h[i].f != h[j].f {
		return h[i].f < h[j].f
	}
	if h[i].hops != h[j].hops {
		return h[i].hops < h[j].hops
	}
	return h[i].maxRisk < h[j].maxRisk
}

func (h openHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *openHeap) Push(x any) {
	item := x.(*openItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *openHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

const costEpsilon = 1e-9

// search runs A* from the start node to the goal node of a leg graph.
// costFn returns the edge cost and risk for a node pair; the heuristic is
// straight-line distance, a lower bound on any edge cost, so the result is
// cost-optimal over the graph. Returns nil when the goal is unreachable.
func (g *legGraph) search(ctx context.Context, costFn func(i, j int) edgeInfo) []models.Waypoint {
	n := len(g.nodes)
	gScore := make([]float64, n)
	hops := make([]int, n)
	maxRisk := make([]float64, n)
	cameFrom := make([]int, n)
	for i := range gScore {
		gScore[i] = math.Inf(1)
		cameFrom[i] = -1
	}

	h := func(i int) float64 {
		return geo.Distance(g.nodes[i], g.nodes[goalNode])
	}

	gScore[startNode] = 0
	open := &openHeap{{node: startNode, f: h(startNode)}}
	heap.Init(open)

	for open.Len() > 0 {
		if ctx.Err() != nil {
			return nil
		}
		current := heap.Pop(open).(*openItem)
		if current.g > gScore[current.node]+costEpsilon {
			continue // stale entry
		}
		if current.node == goalNode {
			return g.reconstruct(cameFrom)
		}
		for _, next := range g.adj[current.node] {
			e := costFn(current.node, next)
			tentative := current.g + e.cost
			nextHops := current.hops + 1
			nextMax := math.Max(current.maxRisk, e.risk)
			better := tentative < gScore[next]-costEpsilon
			if !better && math.Abs(tentative-gScore[next]) <= costEpsilon {
				better = nextHops < hops[next] ||
					(nextHops == hops[next] && nextMax < maxRisk[next])
			}
			if !better {
				continue
			}
			gScore[next] = tentative
			hops[next] = nextHops
			maxRisk[next] = nextMax
			cameFrom[next] = current.node
			heap.Push(open, &openItem{
				node:    next,
				f:       tentative + h(next),
				g:       tentative,
				hops:    nextHops,
				maxRisk: nextMax,
			})
		}
	}
	return nil
}

func (g *legGraph) reconstruct(cameFrom []int) []models.Waypoint {
	var rev []int
	for at := goalNode; at != -1; at = cameFrom[at] {
		rev = append(rev, at)
	}
	path := make([]models.Waypoint, 0, len(rev))
	for i := len(rev) - 1; i >= 0; i-- {
		path = append(path, g.nodes[rev[i]])
	}
	return path
}
