// Package planner turns an operator waypoint list into a safer route via
// risk-weighted A* over an ephemeral per-call graph.
package planner

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/labstack/gommon/log"
	"golang.org/x/sync/errgroup"

	"uav_planner/internal/airspace"
	"uav_planner/internal/config"
	"uav_planner/internal/geo"
	"uav_planner/internal/models"
	"uav_planner/internal/risk"
)

var (
	// ErrInsufficientWaypoints is returned for plans with fewer than two
	// waypoints.
	ErrInsufficientWaypoints = errors.New("at least 2 waypoints required")
	// ErrRouteInfeasible is returned when no connected path exists for a
	// required waypoint pair.
	ErrRouteInfeasible = errors.New("route infeasible")
)

// Optimizer finds minimum-cost paths under cost = distance * (1 + λ*risk)
// plus an altitude-change penalty. Stateless across calls; each Optimize
// builds and discards its own graphs.
type Optimizer struct {
	cfg     config.OptimizerConfig
	engine  *risk.Engine
	surface *airspace.Surface
}

func New(cfg config.OptimizerConfig, engine *risk.Engine, surface *airspace.Surface) *Optimizer {
	return &Optimizer{cfg: cfg, engine: engine, surface: surface}
}

// Optimize plans a route through the given waypoints in order. Consecutive
// pairs are optimized independently (concurrently) and concatenated, which
// preserves operator ordering while allowing local detours. The returned
// route carries the whole-route risk assessment and deduplicated warnings.
// weather, when non-nil, overrides the snapshot conditions for this call.
func (o *Optimizer) Optimize(ctx context.Context, wps []models.Waypoint, settings models.MissionSettings, weather *models.WeatherSample) (*models.OptimizedRoute, error) {
	if len(wps) < 2 {
		return nil, ErrInsufficientWaypoints
	}
	if err := models.ValidateWaypoints(wps); err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	view := o.surface.Acquire()
	view.OverrideWeather(weather)

	legs := make([][]models.Waypoint, len(wps)-1)
	eg, legCtx := errgroup.WithContext(ctx)
	for i := 0; i < len(wps)-1; i++ {
		i := i
		eg.Go(func() error {
			path, err := o.optimizeLeg(legCtx, view, wps[i], wps[i+1], settings)
			if err != nil {
				return fmt.Errorf("segment %d -> %d: %w", i, i+1, err)
			}
			legs[i] = path
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	route := []models.Waypoint{wps[0]}
	for _, leg := range legs {
		route = append(route, leg[1:]...)
	}

	features := risk.ExtractRouteFeatures(view, route, settings)
	assessment := o.engine.ScoreRoute(features)
	log.Infof("route optimized: %d -> %d waypoints, risk %.3f", len(wps), len(route), assessment.Score)

	return &models.OptimizedRoute{
		Waypoints: route,
		RiskScore: assessment.Score,
		Breakdown: assessment.Breakdown,
		Warnings:  dedupe(assessment.Warnings),
	}, nil
}

// optimizeLeg searches one waypoint pair. The graph always contains the
// direct edge unless a critical zone blocks it, so an unreachable goal means
// the leg is genuinely enclosed.
func (o *Optimizer) optimizeLeg(ctx context.Context, view *airspace.View, a, b models.Waypoint, settings models.MissionSettings) ([]models.Waypoint, error) {
	g := buildLegGraph(view, a, b, o.cfg)

	cache := make(map[[2]int]edgeInfo)
	costFn := func(i, j int) edgeInfo {
		key := [2]int{i, j}
		if i > j {
			key = [2]int{j, i}
		}
		if e, ok := cache[key]; ok {
			return e
		}
		e := o.edgeCost(view, g.nodes[i], g.nodes[j], settings)
		cache[key] = e
		return e
	}

	path := g.search(ctx, costFn)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if path == nil {
		return nil, fmt.Errorf("%w: waypoint pair enclosed by critical zones", ErrRouteInfeasible)
	}
	return path, nil
}

// edgeCost scores one candidate segment: physical distance inflated by the
// scoring engine's segment-level risk, plus a penalty per meter of altitude
// change. Always positive and finite for finite segments.
func (o *Optimizer) edgeCost(view *airspace.View, a, b models.Waypoint, settings models.MissionSettings) edgeInfo {
	d := geo.Distance(a, b)
	segment := []models.Waypoint{a, b}
	assessment := o.engine.ScoreRoute(risk.ExtractRouteFeatures(view, segment, settings))
	cost := d*(1+o.cfg.RiskWeight*assessment.Score) + o.cfg.AltitudePenalty*math.Abs(b.Altitude-a.Altitude)
	return edgeInfo{cost: cost, risk: assessment.Score}
}

// dedupe removes repeated warnings, keeping first-occurrence order.
func dedupe(warnings []string) []string {
	seen := make(map[string]struct{}, len(warnings))
	out := make([]string, 0, len(warnings))
	for _, w := range warnings {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}
