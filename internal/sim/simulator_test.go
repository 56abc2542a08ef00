package sim

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"uav_planner/internal/airspace"
	"uav_planner/internal/config"
	"uav_planner/internal/geo"
	"uav_planner/internal/models"
	"uav_planner/internal/risk"
)

var calmWeather = &models.WeatherSample{WindSpeed: 2, GustSpeed: 3, WindDirection: 270}

func newTestSimulator(t *testing.T) *Simulator {
	t.Helper()
	s := airspace.NewSurface(
		geo.BBox{North: 37.85, South: 37.55, East: -122.30, West: -122.55},
		&airspace.StaticZoneProvider{Zones: airspace.DefaultZones()},
		&airspace.SyntheticWeatherProvider{},
		airspace.DefaultTerrain(),
	)
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	cfg := config.Default()
	return New(cfg.Sim, risk.NewEngine(cfg.Risk, nil), s)
}

// ~1km leg far from every zone
func shortRoute() []models.Waypoint {
	return []models.Waypoint{
		{Lat: 37.58, Lng: -122.52, Altitude: 100},
		{Lat: 37.589, Lng: -122.52, Altitude: 100},
	}
}

// ~15km straight run, beyond what 20% battery can cover
func longRoute() []models.Waypoint {
	return []models.Waypoint{
		{Lat: 37.58, Lng: -122.52, Altitude: 100},
		{Lat: 37.715, Lng: -122.52, Altitude: 100},
	}
}

func fullBattery() models.MissionSettings {
	return models.MissionSettings{BatteryCapacity: 100, MaxSpeed: 15}
}

func TestSimulateShortRouteSucceeds(t *testing.T) {
	s := newTestSimulator(t)
	result, err := s.Simulate(context.Background(), shortRoute(), fullBattery(), 1.0, calmWeather)
	if err != nil {
		t.Fatalf("simulate failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("short full-battery flight should succeed, final battery %.1f", result.FinalBattery)
	}
	if len(result.Steps) == 0 {
		t.Fatalf("expected simulation steps")
	}
	if result.FinalBattery <= 10 {
		t.Fatalf("success requires battery above the 10%% margin, got %.1f", result.FinalBattery)
	}
	if result.TotalDistance < 900 || result.TotalDistance > 1200 {
		t.Fatalf("expected ~1km flown, got %.0f m", result.TotalDistance)
	}
	last := result.Steps[len(result.Steps)-1]
	if d := geo.Distance(last.Position, shortRoute()[1]); d > 50 {
		t.Fatalf("final position %.0f m from destination", d)
	}
}

func TestSimulateStepInvariants(t *testing.T) {
	s := newTestSimulator(t)
	result, err := s.Simulate(context.Background(), shortRoute(), fullBattery(), 1.0, calmWeather)
	if err != nil {
		t.Fatalf("simulate failed: %v", err)
	}
	prevT := 0.0
	prevBattery := 100.0
	for i, step := range result.Steps {
		if step.Timestamp <= prevT {
			t.Fatalf("step %d: timestamp %.2f not increasing past %.2f", i, step.Timestamp, prevT)
		}
		if step.Battery > prevBattery {
			t.Fatalf("step %d: battery rose from %.3f to %.3f", i, prevBattery, step.Battery)
		}
		if step.Battery < 0 {
			t.Fatalf("step %d: battery below zero: %.3f", i, step.Battery)
		}
		if step.RiskLevel < 0 || step.RiskLevel > 1 {
			t.Fatalf("step %d: risk level %.3f out of [0,1]", i, step.RiskLevel)
		}
		prevT = step.Timestamp
		prevBattery = step.Battery
	}
	if result.FinalBattery != result.Steps[len(result.Steps)-1].Battery {
		t.Fatalf("final battery %.3f disagrees with last step %.3f",
			result.FinalBattery, result.Steps[len(result.Steps)-1].Battery)
	}
}

func TestSimulateInsufficientBatteryFails(t *testing.T) {
	s := newTestSimulator(t)

	full, err := s.Simulate(context.Background(), longRoute(), fullBattery(), 1.0, calmWeather)
	if err != nil {
		t.Fatalf("full-battery run failed: %v", err)
	}
	if !full.Success {
		t.Fatalf("100%% battery should cover 15km, final %.1f", full.FinalBattery)
	}

	low, err := s.Simulate(context.Background(), longRoute(),
		models.MissionSettings{BatteryCapacity: 20, MaxSpeed: 15}, 1.0, calmWeather)
	if err != nil {
		t.Fatalf("low-battery run failed: %v", err)
	}
	if low.Success {
		t.Fatalf("20%% battery cannot cover 15km")
	}
	if low.FinalBattery != 0 {
		t.Fatalf("depleted run should end at 0%%, got %.2f", low.FinalBattery)
	}
	if len(low.Steps) >= len(full.Steps) {
		t.Fatalf("depleted run should stop early: %d vs %d steps", len(low.Steps), len(full.Steps))
	}
}

func TestSimulateDeterministic(t *testing.T) {
	s := newTestSimulator(t)
	first, err := s.Simulate(context.Background(), shortRoute(), fullBattery(), 1.0, calmWeather)
	if err != nil {
		t.Fatalf("simulate failed: %v", err)
	}
	again, err := s.Simulate(context.Background(), shortRoute(), fullBattery(), 1.0, calmWeather)
	if err != nil {
		t.Fatalf("simulate failed on repeat: %v", err)
	}
	if !reflect.DeepEqual(first, again) {
		t.Fatalf("identical runs produced different results")
	}
}

func TestSimulateSpeedMultiplier(t *testing.T) {
	s := newTestSimulator(t)
	normal, err := s.Simulate(context.Background(), shortRoute(), fullBattery(), 1.0, calmWeather)
	if err != nil {
		t.Fatalf("simulate failed: %v", err)
	}
	slow, err := s.Simulate(context.Background(), shortRoute(), fullBattery(), 0.5, calmWeather)
	if err != nil {
		t.Fatalf("simulate failed: %v", err)
	}
	if slow.TotalDuration <= normal.TotalDuration {
		t.Fatalf("0.5x multiplier should take longer: %.1fs vs %.1fs", slow.TotalDuration, normal.TotalDuration)
	}

	// the multiplier never pushes the vehicle past its speed limit
	fast, err := s.Simulate(context.Background(), shortRoute(), fullBattery(), 3.0, calmWeather)
	if err != nil {
		t.Fatalf("simulate failed: %v", err)
	}
	limit := fullBattery().MaxSpeed + calmWeather.WindSpeed
	for i, step := range fast.Steps {
		if step.Speed > limit+0.01 {
			t.Fatalf("step %d: ground speed %.2f exceeds commanded limit", i, step.Speed)
		}
	}
}

func TestSimulatePreconditions(t *testing.T) {
	s := newTestSimulator(t)
	ctx := context.Background()

	if _, err := s.Simulate(ctx, shortRoute()[:1], fullBattery(), 1.0, nil); !errors.Is(err, ErrPrecondition) {
		t.Fatalf("expected ErrPrecondition for single waypoint, got %v", err)
	}
	if _, err := s.Simulate(ctx, nil, fullBattery(), 1.0, nil); !errors.Is(err, ErrPrecondition) {
		t.Fatalf("expected ErrPrecondition for empty route, got %v", err)
	}
	if _, err := s.Simulate(ctx, shortRoute(), fullBattery(), 0, nil); !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for zero multiplier, got %v", err)
	}
	if _, err := s.Simulate(ctx, shortRoute(), fullBattery(), -1, nil); !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for negative multiplier, got %v", err)
	}
}

func TestSimulateAbortsOnSustainedRisk(t *testing.T) {
	s := newTestSimulator(t)
	// calm cruise risk sits near 0.02, so every step counts toward the abort
	s.cfg.AbortRiskLevel = 0.01
	s.cfg.AbortSustainedSteps = 5

	result, err := s.Simulate(context.Background(), shortRoute(), fullBattery(), 1.0, calmWeather)
	if err != nil {
		t.Fatalf("simulate failed: %v", err)
	}
	if result.Success {
		t.Fatalf("sustained risk above the abort level should fail the run")
	}
	if len(result.Steps) != s.cfg.AbortSustainedSteps {
		t.Fatalf("expected abort after %d steps, got %d", s.cfg.AbortSustainedSteps, len(result.Steps))
	}
	if result.FinalBattery < 50 {
		t.Fatalf("abort should leave the battery nearly full, got %.2f", result.FinalBattery)
	}
}

func TestSimulateRiskCounterResetsBelowThreshold(t *testing.T) {
	s := newTestSimulator(t)
	// point risk is ~0.22 below 80 m altitude and ~0.02 at cruise
	s.cfg.AbortRiskLevel = 0.1
	s.cfg.AbortSustainedSteps = 50

	// climb out of and descend back into the low-altitude band: two separate
	// high-risk stretches whose combined length exceeds the sustained limit
	route := []models.Waypoint{
		{Lat: 37.58, Lng: -122.52, Altitude: 60},
		{Lat: 37.5908, Lng: -122.52, Altitude: 150},
		{Lat: 37.6016, Lng: -122.52, Altitude: 60},
	}
	result, err := s.Simulate(context.Background(), route, fullBattery(), 1.0, calmWeather)
	if err != nil {
		t.Fatalf("simulate failed: %v", err)
	}

	total, run, longest := 0, 0, 0
	for _, step := range result.Steps {
		if step.RiskLevel >= s.cfg.AbortRiskLevel {
			total++
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 0
		}
	}
	if total <= s.cfg.AbortSustainedSteps {
		t.Fatalf("route should spend more than %d total steps above the threshold, got %d",
			s.cfg.AbortSustainedSteps, total)
	}
	if longest >= s.cfg.AbortSustainedSteps {
		t.Fatalf("no single stretch should reach the abort limit, longest was %d", longest)
	}
	if !result.Success {
		t.Fatalf("interrupted high-risk stretches must not accumulate into an abort")
	}
}

func TestSimulateHeadwindDrainsFaster(t *testing.T) {
	s := newTestSimulator(t)
	// route flies north; wind toward 180 opposes it
	headwind := &models.WeatherSample{WindSpeed: 10, GustSpeed: 12, WindDirection: 180}
	tailwind := &models.WeatherSample{WindSpeed: 10, GustSpeed: 12, WindDirection: 0}

	against, err := s.Simulate(context.Background(), shortRoute(), fullBattery(), 1.0, headwind)
	if err != nil {
		t.Fatalf("headwind run failed: %v", err)
	}
	with, err := s.Simulate(context.Background(), shortRoute(), fullBattery(), 1.0, tailwind)
	if err != nil {
		t.Fatalf("tailwind run failed: %v", err)
	}
	if against.FinalBattery >= with.FinalBattery {
		t.Fatalf("headwind should drain more: %.2f vs %.2f", against.FinalBattery, with.FinalBattery)
	}
}
