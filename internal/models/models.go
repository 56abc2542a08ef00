package models

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidInput marks structurally invalid requests (out-of-range
// coordinates, non-positive speeds and the like). Callers match it with
// errors.Is.
var ErrInvalidInput = errors.New("invalid input")

// Waypoint is a 3D geographic point in a mission. Altitude is meters above
// ground.
type Waypoint struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Altitude float64 `json:"altitude"`
}

func (w Waypoint) Validate() error {
	if math.IsNaN(w.Lat) || math.IsInf(w.Lat, 0) ||
		math.IsNaN(w.Lng) || math.IsInf(w.Lng, 0) ||
		math.IsNaN(w.Altitude) || math.IsInf(w.Altitude, 0) {
		return fmt.Errorf("%w: waypoint has non-finite coordinates", ErrInvalidInput)
	}
	if w.Lat < -90 || w.Lat > 90 {
		return fmt.Errorf("%w: latitude %.4f out of range", ErrInvalidInput, w.Lat)
	}
	if w.Lng < -180 || w.Lng > 180 {
		return fmt.Errorf("%w: longitude %.4f out of range", ErrInvalidInput, w.Lng)
	}
	if w.Altitude < 0 {
		return fmt.Errorf("%w: altitude %.1f below ground", ErrInvalidInput, w.Altitude)
	}
	return nil
}

// ValidateWaypoints checks every waypoint of a request.
func ValidateWaypoints(wps []Waypoint) error {
	for i, wp := range wps {
		if err := wp.Validate(); err != nil {
			return fmt.Errorf("waypoint %d: %w", i, err)
		}
	}
	return nil
}

// MissionSettings are the vehicle parameters of one plan request.
// BatteryCapacity is a percentage, MaxSpeed is m/s.
type MissionSettings struct {
	BatteryCapacity float64 `json:"battery_capacity"`
	MaxSpeed        float64 `json:"max_speed"`
	Altitude        float64 `json:"altitude,omitempty"`
}

func (s MissionSettings) Validate() error {
	if s.BatteryCapacity <= 0 || s.BatteryCapacity > 100 {
		return fmt.Errorf("%w: battery capacity %.1f not in (0,100]", ErrInvalidInput, s.BatteryCapacity)
	}
	if s.MaxSpeed <= 0 {
		return fmt.Errorf("%w: max speed %.1f must be positive", ErrInvalidInput, s.MaxSpeed)
	}
	if s.Altitude < 0 {
		return fmt.Errorf("%w: altitude %.1f below ground", ErrInvalidInput, s.Altitude)
	}
	return nil
}

type ZoneSeverity string

const (
	SeverityAdvisory   ZoneSeverity = "advisory"
	SeverityRestricted ZoneSeverity = "restricted"
	SeverityCritical   ZoneSeverity = "critical"
)

// Weight maps a severity to its contribution factor on no-fly risk.
func (s ZoneSeverity) Weight() float64 {
	switch s {
	case SeverityCritical:
		return 1.0
	case SeverityRestricted:
		return 0.8
	default:
		return 0.5
	}
}

// NoFlyZone is a polygonal region the route should avoid. Coordinates are
// [lng, lat] pairs (GeoJSON order), implicitly closed, at least 3 vertices.
type NoFlyZone struct {
	ID                  string       `json:"id"`
	Name                string       `json:"name"`
	Type                string       `json:"type"`
	Coordinates         [][]float64  `json:"coordinates"`
	AltitudeRestriction float64      `json:"altitude_restriction"`
	Severity            ZoneSeverity `json:"severity"`
}

// WeatherSample is a point-in-time weather observation. Speeds are m/s,
// direction is degrees the wind blows toward, severity is a [0,1] scalar.
type WeatherSample struct {
	WindSpeed     float64 `json:"wind_speed"`
	GustSpeed     float64 `json:"gust_speed"`
	WindDirection float64 `json:"wind_direction"`
	Severity      float64 `json:"severity"`
}

// RiskBreakdown is the six-dimensional decomposition of mission risk. Every
// component is clamped to [0,1].
type RiskBreakdown struct {
	WeatherRisk  float64 `json:"weather_risk"`
	BatteryRisk  float64 `json:"battery_risk"`
	NoFlyRisk    float64 `json:"no_fly_risk"`
	TerrainRisk  float64 `json:"terrain_risk"`
	RouteRisk    float64 `json:"route_risk"`
	AltitudeRisk float64 `json:"altitude_risk"`
}

// OptimizedRoute is the accepted path of one optimization call together with
// its whole-route assessment.
type OptimizedRoute struct {
	Waypoints []Waypoint    `json:"waypoints"`
	RiskScore float64       `json:"risk_score"`
	Breakdown RiskBreakdown `json:"risk_breakdown"`
	Warnings  []string      `json:"warnings"`
}

// SimulationStep is one fixed-interval state snapshot of a simulated flight.
// Velocity is (vx, vy, vz) in m/s; battery is a percentage.
type SimulationStep struct {
	Timestamp float64    `json:"timestamp"`
	Position  Waypoint   `json:"position"`
	Velocity  [3]float64 `json:"velocity"`
	Battery   float64    `json:"battery"`
	RiskLevel float64    `json:"risk_level"`
	Speed     float64    `json:"speed"`
}

// SimulationResult is the complete outcome of one simulate call. Steps are in
// strictly increasing timestamp order; a failed run keeps every step computed
// up to the failure.
type SimulationResult struct {
	Steps         []SimulationStep `json:"simulation_steps"`
	TotalDuration float64          `json:"total_duration"`
	Success       bool             `json:"success"`
	FinalBattery  float64          `json:"final_battery"`
	TotalDistance float64          `json:"total_distance"`
}

// Mission is a planned mission as kept by the store and returned by the
// missions API.
type Mission struct {
	MissionID         string         `json:"mission_id"`
	Waypoints         []Waypoint     `json:"waypoints"`
	BatteryCapacity   float64        `json:"battery_capacity"`
	MaxSpeed          float64        `json:"max_speed"`
	RiskScore         float64        `json:"risk_score"`
	TotalDistance     float64        `json:"total_distance"`
	EstimatedDuration float64        `json:"estimated_duration"`
	OptimizedRoute    []Waypoint     `json:"optimized_route"`
	RiskBreakdown     RiskBreakdown  `json:"risk_breakdown"`
	Warnings          []string       `json:"warnings"`
	Weather           *WeatherSample `json:"weather_conditions,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
}

// MissionSummary is the list-endpoint projection of a Mission.
type MissionSummary struct {
	MissionID         string    `json:"mission_id"`
	CreatedAt         time.Time `json:"created_at"`
	RiskScore         float64   `json:"risk_score"`
	TotalDistance     float64   `json:"total_distance"`
	EstimatedDuration float64   `json:"estimated_duration"`
}
