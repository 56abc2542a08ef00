package config

import (
	"fmt"
	"math"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"uav_planner/internal/geo"
)

type Config struct {
	Port            string          `yaml:"port"`
	SavePath        string          `yaml:"save_path"`
	RefreshSchedule string          `yaml:"refresh_schedule"`
	Region          RegionConfig    `yaml:"region"`
	Risk            RiskConfig      `yaml:"risk"`
	Optimizer       OptimizerConfig `yaml:"optimizer"`
	Sim             SimConfig       `yaml:"simulator"`
}

// RegionConfig bounds the area covered by the airspace snapshot.
type RegionConfig struct {
	North float64 `yaml:"north"`
	South float64 `yaml:"south"`
	East  float64 `yaml:"east"`
	West  float64 `yaml:"west"`
}

// BBox converts the region bounds into the geometry type used by the
// airspace layer.
func (r RegionConfig) BBox() geo.BBox {
	return geo.BBox{North: r.North, South: r.South, East: r.East, West: r.West}
}

// RiskWeights are the fixed convex combination applied to the six breakdown
// components. They must sum to 1 so scores are comparable across requests.
type RiskWeights struct {
	Weather  float64 `yaml:"weather"`
	Battery  float64 `yaml:"battery"`
	NoFly    float64 `yaml:"no_fly"`
	Terrain  float64 `yaml:"terrain"`
	Route    float64 `yaml:"route"`
	Altitude float64 `yaml:"altitude"`
}

// WarningThresholds are the per-component levels above which the scoring
// engine emits its warning strings.
type WarningThresholds struct {
	Weather float64 `yaml:"weather"`
	Battery float64 `yaml:"battery"`
	NoFly   float64 `yaml:"no_fly"`
	Terrain float64 `yaml:"terrain"`
}

type RiskConfig struct {
	Weights    RiskWeights       `yaml:"weights"`
	Thresholds WarningThresholds `yaml:"thresholds"`
}

type OptimizerConfig struct {
	// RiskWeight is the λ in cost = distance * (1 + λ*risk).
	RiskWeight float64 `yaml:"risk_weight"`
	// ConnectivityRadiusM is the maximum edge length in the route graph.
	ConnectivityRadiusM float64 `yaml:"connectivity_radius_m"`
	// AdvisoryClearanceM is the distance to a zone under which a leg gets
	// detour candidates.
	AdvisoryClearanceM float64 `yaml:"advisory_clearance_m"`
	// DetourClearanceM is added to a zone's radius when placing candidates.
	DetourClearanceM float64 `yaml:"detour_clearance_m"`
	// MaxCandidatesPerLeg caps generated detour nodes for one leg.
	MaxCandidatesPerLeg int `yaml:"max_candidates_per_leg"`
	// AltitudePenalty is the cost per meter of altitude change.
	AltitudePenalty float64 `yaml:"altitude_penalty"`
}

type SimConfig struct {
	TimeStepS            float64 `yaml:"time_step_s"`
	BaseConsumptionPctKm float64 `yaml:"base_consumption_pct_km"`
	WindEffectFactor     float64 `yaml:"wind_effect_factor"`
	MaxDriftDeg          float64 `yaml:"max_drift_deg"`
	ArrivalToleranceM    float64 `yaml:"arrival_tolerance_m"`
	SuccessBatteryMargin float64 `yaml:"success_battery_margin"`
	AbortRiskLevel       float64 `yaml:"abort_risk_level"`
	AbortSustainedSteps  int     `yaml:"abort_sustained_steps"`
	MaxSteps             int     `yaml:"max_steps"`
}

// Default returns the built-in configuration. The numeric defaults reproduce
// the tuned production values, so an empty config file is fully functional.
func Default() Config {
	return Config{
		Port:            "4000",
		SavePath:        "data/missions.json",
		RefreshSchedule: "@every 10m",
		Region: RegionConfig{
			North: 37.85, South: 37.55, East: -122.30, West: -122.55,
		},
		Risk: RiskConfig{
			Weights: RiskWeights{
				Weather:  0.25,
				Battery:  0.20,
				NoFly:    0.25,
				Terrain:  0.10,
				Route:    0.10,
				Altitude: 0.10,
			},
			Thresholds: WarningThresholds{
				Weather: 0.6,
				Battery: 0.7,
				NoFly:   0.5,
				Terrain: 0.6,
			},
		},
		Optimizer: OptimizerConfig{
			RiskWeight:          2.0,
			ConnectivityRadiusM: 6000,
			AdvisoryClearanceM:  1000,
			DetourClearanceM:    300,
			MaxCandidatesPerLeg: 24,
			AltitudePenalty:     0.1,
		},
		Sim: SimConfig{
			TimeStepS:            0.5,
			BaseConsumptionPctKm: 2.0,
			WindEffectFactor:     0.3,
			MaxDriftDeg:          25,
			ArrivalToleranceM:    10,
			SuccessBatteryMargin: 10,
			AbortRiskLevel:       0.95,
			AbortSustainedSteps:  10,
			MaxSteps:             100000,
		},
	}
}

// Load reads the YAML config file named by CONFIG_FILE (default config.yaml),
// falling back to defaults when the file is absent. A .env file, if present,
// is loaded into the environment first.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = "config.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return applyEnv(cfg)
		}
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return applyEnv(cfg)
}

func applyEnv(cfg Config) (Config, error) {
	if p := os.Getenv("PORT"); p != "" {
		cfg.Port = p
	}
	if p := os.Getenv("MISSION_SAVE_PATH"); p != "" {
		cfg.SavePath = p
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	w := c.Risk.Weights
	sum := w.Weather + w.Battery + w.NoFly + w.Terrain + w.Route + w.Altitude
	if math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("risk weights must sum to 1, got %.6f", sum)
	}
	if c.Optimizer.RiskWeight < 0 {
		return fmt.Errorf("optimizer risk_weight must be >= 0")
	}
	if c.Sim.TimeStepS <= 0 {
		return fmt.Errorf("simulator time_step_s must be positive")
	}
	if c.Region.North <= c.Region.South {
		return fmt.Errorf("region north must exceed south")
	}
	return nil
}
