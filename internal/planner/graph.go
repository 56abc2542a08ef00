package planner

import (
	"uav_planner/internal/airspace"
	"uav_planner/internal/config"
	"uav_planner/internal/geo"
	"uav_planner/internal/models"
)

// legGraph is the ephemeral search graph for one waypoint pair. Built,
// searched and discarded inside a single optimization call.
type legGraph struct {
	nodes []models.Waypoint
	// adj[i] lists the node indices reachable from i.
	adj [][]int
	// start and goal are always nodes 0 and 1.
}

const (
	startNode = 0
	goalNode  = 1
)

// buildLegGraph assembles the graph for the leg a -> b: the endpoints plus
// detour candidates around any zone the direct line crosses or skims, with
// edges between nodes inside the connectivity radius. The direct a -> b edge
// is always attempted so the graph degrades to the operator's chain when no
// detour is needed; edges crossing a critical zone are dropped, which is
// what makes a fully enclosed leg detectably infeasible.
//
// Candidate strategy: for each interfering zone, perpendicular offsets at
// ±1r and ±2r from the zone center (r = zone bounding radius + clearance)
// on both sides of the leg, plus the zone's bounding corners pushed outward.
// The count is capped by config.
func buildLegGraph(view *airspace.View, a, b models.Waypoint, cfg config.OptimizerConfig) *legGraph {
	g := &legGraph{nodes: []models.Waypoint{a, b}}

	midAlt := (a.Altitude + b.Altitude) / 2
	course := geo.Bearing(a.Lat, a.Lng, b.Lat, b.Lng)

	for _, z := range view.Zones() {
		if !legInterferes(a, b, z, cfg.AdvisoryClearanceM) {
			continue
		}
		cLat, cLng := z.Bounds.Center()
		r := z.Bounds.RadiusM() + cfg.DetourClearanceM
		for _, side := range []float64{course + 90, course - 90} {
			for _, k := range []float64{1, 2} {
				lat, lng := geo.Offset(cLat, cLng, k*r, side)
				g.addCandidate(view, models.Waypoint{Lat: lat, Lng: lng, Altitude: midAlt}, cfg)
			}
		}
		for _, corner := range boundsCorners(z.Bounds) {
			bearing := geo.Bearing(cLat, cLng, corner[0], corner[1])
			d := geo.Haversine(cLat, cLng, corner[0], corner[1]) + cfg.DetourClearanceM
			lat, lng := geo.Offset(cLat, cLng, d, bearing)
			g.addCandidate(view, models.Waypoint{Lat: lat, Lng: lng, Altitude: midAlt}, cfg)
		}
		if len(g.nodes)-2 >= cfg.MaxCandidatesPerLeg {
			break
		}
	}

	g.buildEdges(view, cfg)
	return g
}

// addCandidate appends a detour node unless it is capped out or sits inside
// a critical zone.
func (g *legGraph) addCandidate(view *airspace.View, wp models.Waypoint, cfg config.OptimizerConfig) {
	if len(g.nodes)-2 >= cfg.MaxCandidatesPerLeg {
		return
	}
	if wp.Lat < -90 || wp.Lat > 90 || wp.Lng < -180 || wp.Lng > 180 {
		return
	}
	if view.PointQuery(wp.Lat, wp.Lng).InsideCritical {
		return
	}
	g.nodes = append(g.nodes, wp)
}

func (g *legGraph) buildEdges(view *airspace.View, cfg config.OptimizerConfig) {
	n := len(g.nodes)
	g.adj = make([][]int, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			direct := i == startNode && j == goalNode || i == goalNode && j == startNode
			if !direct && geo.Distance(g.nodes[i], g.nodes[j]) > cfg.ConnectivityRadiusM {
				continue
			}
			if edgeBlocked(view, g.nodes[i], g.nodes[j]) {
				continue
			}
			g.adj[i] = append(g.adj[i], j)
		}
	}
}

// edgeBlocked reports whether the segment crosses any critical zone.
func edgeBlocked(view *airspace.View, a, b models.Waypoint) bool {
	for _, z := range view.Zones() {
		if z.Severity != models.SeverityCritical {
			continue
		}
		if geo.SegmentIntersectsPolygon(a.Lat, a.Lng, b.Lat, b.Lng, z.Coordinates) {
			return true
		}
	}
	return false
}

// legInterferes reports whether the zone matters for this leg: the direct
// line crosses it or passes within the advisory clearance.
func legInterferes(a, b models.Waypoint, z airspace.Zone, clearanceM float64) bool {
	if geo.SegmentIntersectsPolygon(a.Lat, a.Lng, b.Lat, b.Lng, z.Coordinates) {
		return true
	}
	// Probe the leg at fixed fractions; enough resolution for zones of
	// advisory-clearance scale.
	const probes = 8
	for i := 0; i <= probes; i++ {
		t := float64(i) / probes
		lat := a.Lat + (b.Lat-a.Lat)*t
		lng := a.Lng + (b.Lng-a.Lng)*t
		if geo.DistanceToPolygon(lat, lng, z.Coordinates) < clearanceM {
			return true
		}
	}
	return false
}

func boundsCorners(b geo.BBox) [][2]float64 {
	return [][2]float64{
		{b.North, b.West},
		{b.North, b.East},
		{b.South, b.West},
		{b.South, b.East},
	}
}
