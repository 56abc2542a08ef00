// Package sim replays an optimized route through a deterministic
// fixed-timestep flight model, producing per-step telemetry and a terminal
// success/failure verdict.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/labstack/gommon/log"

	"uav_planner/internal/airspace"
	"uav_planner/internal/config"
	"uav_planner/internal/geo"
	"uav_planner/internal/models"
	"uav_planner/internal/risk"
)

// ErrPrecondition is returned when simulate is called against an empty or
// unplanned route.
var ErrPrecondition = errors.New("simulation precondition violated")

// runState is the simulator's terminal state machine: Running moves to
// exactly one of Succeeded or Failed.
type runState int

const (
	running runState = iota
	succeeded
	failed
)

// Simulator holds tuning only; every Simulate call is independent and the
// simulator keeps no state between calls.
type Simulator struct {
	cfg     config.SimConfig
	engine  *risk.Engine
	surface *airspace.Surface
}

func New(cfg config.SimConfig, engine *risk.Engine, surface *airspace.Surface) *Simulator {
	return &Simulator{cfg: cfg, engine: engine, surface: surface}
}

// Simulate replays the route at fixed time steps. Output is a pure function
// of route, settings, multiplier and the pinned airspace snapshot: no
// randomness anywhere. A failed run still returns every step computed up to
// the failure. weather, when non-nil, overrides the snapshot conditions.
func (s *Simulator) Simulate(ctx context.Context, route []models.Waypoint, settings models.MissionSettings, speedMultiplier float64, weather *models.WeatherSample) (*models.SimulationResult, error) {
	if len(route) < 2 {
		return nil, fmt.Errorf("%w: route must have at least 2 waypoints", ErrPrecondition)
	}
	if speedMultiplier <= 0 || math.IsNaN(speedMultiplier) || math.IsInf(speedMultiplier, 0) {
		return nil, fmt.Errorf("%w: speed multiplier must be positive", models.ErrInvalidInput)
	}
	if err := models.ValidateWaypoints(route); err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	view := s.surface.Acquire()
	view.OverrideWeather(weather)

	var (
		result        models.SimulationResult
		state         = running
		pos           = route[0]
		battery       = settings.BatteryCapacity
		t             = 0.0
		targetIdx     = 1
		sustainedRisk = 0
		dt            = s.cfg.TimeStepS
	)

	for steps := 0; steps < s.cfg.MaxSteps; steps++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		target := route[targetIdx]
		distToNext := geo.Distance(pos, target)

		// Target speed: reduced near a vertex so one step never overshoots
		// it, scaled by the replay multiplier, never above the vehicle limit.
		speed := math.Min(settings.MaxSpeed, distToNext/dt) * speedMultiplier
		speed = math.Min(speed, settings.MaxSpeed)

		course := geo.Bearing(pos.Lat, pos.Lng, target.Lat, target.Lng)
		wind := view.PointQuery(pos.Lat, pos.Lng).Weather
		heading, groundSpeed := applyWindDrift(course, speed, wind, s.cfg)

		advance := math.Min(groundSpeed*dt, distToNext)
		lat, lng := geo.Offset(pos.Lat, pos.Lng, advance, heading)

		altDelta := 0.0
		if distToNext > 0 {
			altDelta = (target.Altitude - pos.Altitude) * math.Min(1, advance/distToNext)
		}
		next := models.Waypoint{Lat: lat, Lng: lng, Altitude: pos.Altitude + altDelta}

		battery = math.Max(0, battery-s.stepConsumption(advance, altDelta, course, wind))
		t += dt

		riskLevel := s.engine.ScorePoint(risk.ExtractPointFeatures(view, next))
		result.Steps = append(result.Steps, models.SimulationStep{
			Timestamp: t,
			Position:  next,
			Velocity:  velocityVector(heading, groundSpeed, altDelta/dt),
			Battery:   battery,
			RiskLevel: riskLevel,
			Speed:     groundSpeed,
		})
		result.TotalDistance += advance
		pos = next

		// Waypoint advancement: within tolerance, switch to the next
		// route vertex; the final vertex ends the run.
		if geo.Distance(pos, target) <= s.cfg.ArrivalToleranceM {
			pos = target
			targetIdx++
			if targetIdx >= len(route) {
				if battery > s.cfg.SuccessBatteryMargin {
					state = succeeded
				} else {
					state = failed
				}
				break
			}
		}

		if battery <= 0 {
			log.Warnf("simulation failed: battery depleted at t=%.1fs before reaching waypoint %d", t, targetIdx)
			state = failed
			break
		}

		if riskLevel >= s.cfg.AbortRiskLevel {
			sustainedRisk++
			if sustainedRisk >= s.cfg.AbortSustainedSteps {
				log.Warnf("simulation failed: risk %.2f sustained for %d steps at t=%.1fs", riskLevel, sustainedRisk, t)
				state = failed
				break
			}
		} else {
			sustainedRisk = 0
		}
	}

	if state == running {
		// Step budget exhausted without arrival.
		state = failed
	}

	result.TotalDuration = t
	result.Success = state == succeeded
	result.FinalBattery = battery
	return &result, nil
}

// applyWindDrift adds the wind vector (scaled by the effect factor) to the
// commanded velocity and clamps the resulting heading to the configured
// maximum deviation from course.
func applyWindDrift(course, speed float64, wind models.WeatherSample, cfg config.SimConfig) (heading, groundSpeed float64) {
	windSpeed := wind.WindSpeed * cfg.WindEffectFactor
	courseRad := course * math.Pi / 180
	windRad := wind.WindDirection * math.Pi / 180

	vx := speed*math.Sin(courseRad) + windSpeed*math.Sin(windRad)
	vy := speed*math.Cos(courseRad) + windSpeed*math.Cos(windRad)
	groundSpeed = math.Hypot(vx, vy)
	if groundSpeed == 0 {
		return course, 0
	}

	heading = math.Mod(math.Atan2(vx, vy)*180/math.Pi+360, 360)
	diff := math.Mod(heading-course+540, 360) - 180
	if math.Abs(diff) > cfg.MaxDriftDeg {
		clamped := cfg.MaxDriftDeg
		if diff < 0 {
			clamped = -cfg.MaxDriftDeg
		}
		heading = math.Mod(course+clamped+360, 360)
	}
	return heading, groundSpeed
}

// stepConsumption is the battery drawn over one step: base rate per km,
// scaled up by altitude change and by the headwind component opposing the
// course.
func (s *Simulator) stepConsumption(advanceM, altDelta, course float64, wind models.WeatherSample) float64 {
	altitudeFactor := 1.0 + math.Abs(altDelta)/1000.0
	// Wind blowing toward WindDirection opposes the course when the
	// directions differ by ~180 degrees.
	oppositionRad := (wind.WindDirection - course) * math.Pi / 180
	headwind := math.Max(0, -math.Cos(oppositionRad)) * wind.WindSpeed
	windFactor := 1.0 + headwind/10.0
	return (advanceM / 1000.0) * s.cfg.BaseConsumptionPctKm * altitudeFactor * windFactor
}

func velocityVector(heading, groundSpeed, climbRate float64) [3]float64 {
	rad := heading * math.Pi / 180
	return [3]float64{
		groundSpeed * math.Sin(rad), // east
		groundSpeed * math.Cos(rad), // north
		climbRate,
	}
}
