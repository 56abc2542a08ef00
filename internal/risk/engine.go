// Package risk turns spatial and mission features into the six-component
// risk breakdown and aggregate score. Scoring is pure: identical features
// always produce identical output.
package risk

import (
	"math"

	"github.com/labstack/gommon/log"

	"uav_planner/internal/config"
	"uav_planner/internal/models"
)

// Model is an optional trained classifier blended into the aggregate score.
// When absent the rule-based aggregation stands alone.
type Model interface {
	Predict(f RouteFeatures) (float64, error)
}

// Warning strings surfaced to operators. Callers pass them through
// unaltered.
const (
	WarnHighWind       = "High wind conditions detected along route"
	WarnLowBattery     = "Insufficient battery for safe return - consider shorter route"
	WarnNearRestricted = "Route passes near restricted airspace"
	WarnTerrain        = "Challenging terrain detected - maintain safe altitude"
)

// Assessment is the scoring engine's route-level output.
type Assessment struct {
	Breakdown models.RiskBreakdown
	Score     float64
	Warnings  []string
}

// Engine aggregates features into breakdowns. Stateless and safe for
// concurrent use.
type Engine struct {
	weights    config.RiskWeights
	thresholds config.WarningThresholds
	model      Model
}

// NewEngine builds a scoring engine; model may be nil.
func NewEngine(cfg config.RiskConfig, model Model) *Engine {
	return &Engine{weights: cfg.Weights, thresholds: cfg.Thresholds, model: model}
}

// ScoreRoute maps route-level features to the breakdown, the aggregate score
// and any threshold warnings.
func (e *Engine) ScoreRoute(f RouteFeatures) Assessment {
	b := models.RiskBreakdown{
		WeatherRisk:  clamp01(f.WindSpeedAvg/20 + f.GustMax/40),
		BatteryRisk:  batteryRisk(f.BatteryMargin),
		NoFlyRisk:    noFlyRisk(f.MinDistanceToNoFly, f.NearestSeverity, f.InsideCritical),
		TerrainRisk:  clamp01(0.7*f.TerrainRoughness + 0.3*math.Min(1, float64(f.WaypointsOverBuildings)/5)),
		RouteRisk:    routeRisk(f),
		AltitudeRisk: altitudeRisk(f.MaxAltitude),
	}

	score := e.weights.Weather*b.WeatherRisk +
		e.weights.Battery*b.BatteryRisk +
		e.weights.NoFly*b.NoFlyRisk +
		e.weights.Terrain*b.TerrainRisk +
		e.weights.Route*b.RouteRisk +
		e.weights.Altitude*b.AltitudeRisk

	if e.model != nil {
		if p, err := e.model.Predict(f); err == nil {
			score = 0.5*score + 0.5*clamp01(p)
		} else {
			log.Warnf("risk model prediction failed, using rule-based score: %v", err)
		}
	}

	return Assessment{
		Breakdown: b,
		Score:     clamp01(score),
		Warnings:  e.warnings(b),
	}
}

// ScorePoint maps point-level features to the scalar risk level used per
// simulation step.
func (e *Engine) ScorePoint(f PointFeatures) float64 {
	if f.InsideCritical {
		return 1.0
	}
	risk := 0.0
	if f.Altitude > 200 {
		risk += 0.1
	}
	if f.Altitude < 80 {
		risk += 0.2
	}
	switch {
	case f.WindSpeed > 12:
		risk += 0.3
	case f.WindSpeed > 8:
		risk += 0.1
	}
	switch {
	case f.NearestZoneDist < 500:
		risk += 0.5 * f.NearestSeverity.Weight()
	case f.NearestZoneDist < 1000:
		risk += 0.2 * f.NearestSeverity.Weight()
	}
	risk += 0.1 * f.Roughness
	return clamp01(risk)
}

func (e *Engine) warnings(b models.RiskBreakdown) []string {
	var out []string
	if b.WeatherRisk > e.thresholds.Weather {
		out = append(out, WarnHighWind)
	}
	if b.BatteryRisk > e.thresholds.Battery {
		out = append(out, WarnLowBattery)
	}
	if b.NoFlyRisk > e.thresholds.NoFly {
		out = append(out, WarnNearRestricted)
	}
	if b.TerrainRisk > e.thresholds.Terrain {
		out = append(out, WarnTerrain)
	}
	return out
}

// batteryRisk rises as the margin shrinks and saturates at 1 when the
// mission would land on empty.
func batteryRisk(margin float64) float64 {
	if margin <= 0 {
		return 1.0
	}
	return clamp01((30 - margin) / 30)
}

// noFlyRisk rises as the closest zone approaches, scaled by that zone's
// severity, and saturates at 1 inside a critical zone.
func noFlyRisk(dist float64, severity models.ZoneSeverity, insideCritical bool) float64 {
	if insideCritical {
		return 1.0
	}
	if dist >= 1000 {
		return 0.0
	}
	return clamp01((1000 - dist) / 1000 * severity.Weight())
}

func routeRisk(f RouteFeatures) float64 {
	r := f.RouteLengthKm/15 + f.RouteComplexity/2
	if !f.LineOfSight {
		r += 0.3
	}
	return clamp01(r)
}

// altitudeRisk grows past the 120 m regulatory comfort band, saturating at
// 400 m.
func altitudeRisk(maxAlt float64) float64 {
	if maxAlt <= 120 {
		return 0.0
	}
	return clamp01((maxAlt - 120) / 280)
}
