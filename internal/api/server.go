package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/labstack/gommon/log"

	"uav_planner/internal/airspace"
	"uav_planner/internal/geo"
	"uav_planner/internal/mission"
	"uav_planner/internal/models"
	"uav_planner/internal/planner"
	"uav_planner/internal/risk"
	"uav_planner/internal/sim"
)

type Server struct {
	store     *mission.Store
	optimizer *planner.Optimizer
	simulator *sim.Simulator
	engine    *risk.Engine
	surface   *airspace.Surface
}

// New constructs the HTTP router wired to the planning services.
func New(store *mission.Store, opt *planner.Optimizer, simulator *sim.Simulator, engine *risk.Engine, surface *airspace.Surface) http.Handler {
	s := &Server{store: store, optimizer: opt, simulator: simulator, engine: engine, surface: surface}
	r := chi.NewRouter()
	r.Use(corsMiddleware)

	r.Get("/health", s.handleHealth)

	r.Route("/api/missions", func(r chi.Router) {
		r.Post("/plan", s.handlePlan)
		r.Post("/simulate", s.handleSimulate)
		r.Get("/", s.handleListMissions)
		r.Get("/{missionID}", s.handleGetMission)
	})

	r.Route("/api/map", func(r chi.Router) {
		r.Get("/risk-heatmap", s.handleRiskHeatmap)
		r.Get("/no-fly-zones", s.handleNoFlyZones)
		r.Get("/weather", s.handleWeather)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"services": map[string]bool{
			"optimizer": true,
			"simulator": true,
			"airspace":  true,
		},
	})
}

type planRequest struct {
	Waypoints       []models.Waypoint     `json:"waypoints"`
	BatteryCapacity float64               `json:"battery_capacity"`
	MaxSpeed        float64               `json:"max_speed"`
	Weather         *models.WeatherSample `json:"weather_conditions,omitempty"`
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad request")
		return
	}
	if req.BatteryCapacity == 0 {
		req.BatteryCapacity = 100.0
	}
	if req.MaxSpeed == 0 {
		req.MaxSpeed = 15.0
	}
	settings := models.MissionSettings{
		BatteryCapacity: req.BatteryCapacity,
		MaxSpeed:        req.MaxSpeed,
	}

	route, err := s.optimizer.Optimize(r.Context(), req.Waypoints, settings, req.Weather)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	distance := geo.PathLength(route.Waypoints)
	m := s.store.Add(models.Mission{
		Waypoints:         req.Waypoints,
		BatteryCapacity:   settings.BatteryCapacity,
		MaxSpeed:          settings.MaxSpeed,
		RiskScore:         route.RiskScore,
		TotalDistance:     distance,
		EstimatedDuration: distance / settings.MaxSpeed,
		OptimizedRoute:    route.Waypoints,
		RiskBreakdown:     route.Breakdown,
		Warnings:          route.Warnings,
		Weather:           req.Weather,
	})
	if err := s.store.Save(""); err != nil {
		log.Warnf("mission save failed: %v", err)
	}

	writeJSON(w, http.StatusOK, m)
}

type simulateRequest struct {
	MissionID       string  `json:"mission_id"`
	SpeedMultiplier float64 `json:"speed_multiplier"`
}

type simulateResponse struct {
	MissionID    string `json:"mission_id"`
	SimulationID string `json:"simulation_id"`
	models.SimulationResult
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var req simulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MissionID == "" {
		writeJSONError(w, http.StatusBadRequest, "bad request")
		return
	}
	if req.SpeedMultiplier == 0 {
		req.SpeedMultiplier = 1.0
	}

	m, ok := s.store.Get(req.MissionID)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "mission not found")
		return
	}

	settings := models.MissionSettings{BatteryCapacity: m.BatteryCapacity, MaxSpeed: m.MaxSpeed}
	result, err := s.simulator.Simulate(r.Context(), m.OptimizedRoute, settings, req.SpeedMultiplier, m.Weather)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, simulateResponse{
		MissionID:        m.MissionID,
		SimulationID:     "sim_" + uuid.NewString(),
		SimulationResult: *result,
	})
}

func (s *Server) handleListMissions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"missions": s.store.List()})
}

func (s *Server) handleGetMission(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "missionID")
	m, ok := s.store.Get(id)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "mission not found")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

type heatmapPoint struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Risk      float64 `json:"risk"`
	Intensity float64 `json:"intensity"`
}

const heatmapGridSize = 20

func (s *Server) handleRiskHeatmap(w http.ResponseWriter, r *http.Request) {
	bbox, err := bboxFromQuery(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	view := s.surface.Acquire()
	points := make([]heatmapPoint, 0, heatmapGridSize*heatmapGridSize)
	for i := 0; i < heatmapGridSize; i++ {
		lat := bbox.South + (bbox.North-bbox.South)*float64(i)/(heatmapGridSize-1)
		for j := 0; j < heatmapGridSize; j++ {
			lng := bbox.West + (bbox.East-bbox.West)*float64(j)/(heatmapGridSize-1)
			level := s.engine.ScorePoint(risk.ExtractPointFeatures(view, models.Waypoint{Lat: lat, Lng: lng, Altitude: 100}))
			points = append(points, heatmapPoint{Lat: lat, Lng: lng, Risk: level, Intensity: level})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"heatmap_data": points})
}

func (s *Server) handleNoFlyZones(w http.ResponseWriter, r *http.Request) {
	bbox, err := bboxFromQuery(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	zones := s.surface.Acquire().ZonesWithin(bbox)
	if zones == nil {
		zones = []models.NoFlyZone{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"no_fly_zones": zones})
}

func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	lat, err1 := queryFloat(r, "lat")
	lng, err2 := queryFloat(r, "lng")
	if err1 != nil || err2 != nil {
		writeJSONError(w, http.StatusBadRequest, "lat and lng are required")
		return
	}
	sample, err := s.surface.Acquire().WeatherAt(r.Context(), lat, lng)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "weather lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"lat":            lat,
		"lng":            lng,
		"wind_speed":     sample.WindSpeed,
		"gust_speed":     sample.GustSpeed,
		"wind_direction": sample.WindDirection,
		"severity":       sample.Severity,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}

// ===== helpers =====

// writeServiceError maps service errors to status codes: invalid requests to
// 400, infeasible routes to 422, everything else to 500.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidInput),
		errors.Is(err, planner.ErrInsufficientWaypoints),
		errors.Is(err, sim.ErrPrecondition):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, planner.ErrRouteInfeasible):
		writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		log.Errorf("request failed: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	if msg == "" {
		msg = http.StatusText(status)
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func queryFloat(r *http.Request, name string) (float64, error) {
	return strconv.ParseFloat(r.URL.Query().Get(name), 64)
}

func bboxFromQuery(r *http.Request) (geo.BBox, error) {
	var bbox geo.BBox
	var err error
	if bbox.North, err = queryFloat(r, "north"); err != nil {
		return bbox, errors.New("north is required")
	}
	if bbox.South, err = queryFloat(r, "south"); err != nil {
		return bbox, errors.New("south is required")
	}
	if bbox.East, err = queryFloat(r, "east"); err != nil {
		return bbox, errors.New("east is required")
	}
	if bbox.West, err = queryFloat(r, "west"); err != nil {
		return bbox, errors.New("west is required")
	}
	if bbox.North <= bbox.South {
		return bbox, errors.New("north must exceed south")
	}
	return bbox, nil
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
