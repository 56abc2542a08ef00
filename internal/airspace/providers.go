package airspace

import (
	"context"
	"math"

	"uav_planner/internal/geo"
	"uav_planner/internal/models"
)

// ZoneProvider supplies the no-fly zones inside a bounding box. Implemented
// by external airspace data sources; a static in-memory provider ships with
// the server.
type ZoneProvider interface {
	Query(ctx context.Context, bbox geo.BBox) ([]models.NoFlyZone, error)
}

// WeatherProvider supplies a weather sample at a point.
type WeatherProvider interface {
	Query(ctx context.Context, lat, lng float64) (models.WeatherSample, error)
}

// TerrainProvider answers local terrain queries. Implementations must be
// deterministic and safe for concurrent use.
type TerrainProvider interface {
	// Roughness is an elevation-variance proxy in [0,1]-ish range.
	Roughness(lat, lng float64) float64
	// Urban reports dense-obstacle (building) areas.
	Urban(lat, lng float64) bool
}

// StaticZoneProvider serves a fixed zone list filtered by bounding box.
type StaticZoneProvider struct {
	Zones []models.NoFlyZone
}

func (p *StaticZoneProvider) Query(_ context.Context, bbox geo.BBox) ([]models.NoFlyZone, error) {
	var out []models.NoFlyZone
	for _, z := range p.Zones {
		if geo.PolygonBounds(z.Coordinates).Intersects(bbox) {
			out = append(out, z)
		}
	}
	return out, nil
}

// DefaultZones returns the built-in restricted areas around San Francisco
// used when no external zone source is configured.
func DefaultZones() []models.NoFlyZone {
	return []models.NoFlyZone{
		{
			ID:   "airport_sfo",
			Name: "San Francisco International Airport",
			Type: "airport",
			Coordinates: [][]float64{
				{-122.4194, 37.7849},
				{-122.3894, 37.7849},
				{-122.3894, 37.7549},
				{-122.4194, 37.7549},
			},
			AltitudeRestriction: 400,
			Severity:            models.SeverityRestricted,
		},
		{
			ID:   "military_base_1",
			Name: "Restricted Military Area",
			Type: "military",
			Coordinates: [][]float64{
				{-122.45, 37.76},
				{-122.44, 37.76},
				{-122.44, 37.75},
				{-122.45, 37.75},
			},
			AltitudeRestriction: 0,
			Severity:            models.SeverityCritical,
		},
	}
}

// SyntheticWeatherProvider produces a deterministic wind field: a regional
// base with a smooth positional variation. It stands in for a forecast API
// while keeping plan/simulate output reproducible.
type SyntheticWeatherProvider struct {
	BaseWindSpeed float64
	BaseGustSpeed float64
	WindDirection float64
}

func (p *SyntheticWeatherProvider) Query(_ context.Context, lat, lng float64) (models.WeatherSample, error) {
	base := p.BaseWindSpeed
	if base == 0 {
		base = 8.0
	}
	gust := p.BaseGustSpeed
	if gust == 0 {
		gust = base * 1.5
	}
	variation := math.Sin(lat*13.7)*math.Cos(lng*7.3)*1.5 + math.Sin(lng*3.1)*0.5
	wind := math.Max(0, base+variation)
	return models.WeatherSample{
		WindSpeed:     wind,
		GustSpeed:     math.Max(wind, gust+variation*1.5),
		WindDirection: p.WindDirection,
		Severity:      clamp01(wind / 15),
	}, nil
}

// TerrainField is a static terrain model: rough over the configured hill
// boxes, urban over the configured building boxes, flat elsewhere.
type TerrainField struct {
	HillAreas  []geo.BBox
	UrbanAreas []geo.BBox
	// BaseRoughness applies outside every hill area.
	BaseRoughness float64
	// HillRoughness applies inside a hill area.
	HillRoughness float64
}

// DefaultTerrain covers the San Francisco hills and downtown footprints.
func DefaultTerrain() *TerrainField {
	return &TerrainField{
		HillAreas: []geo.BBox{
			{North: 37.78, South: 37.75, East: -122.42, West: -122.45},
		},
		UrbanAreas: []geo.BBox{
			{North: 37.79, South: 37.77, East: -122.40, West: -122.42},
		},
		BaseRoughness: 0.2,
		HillRoughness: 0.8,
	}
}

func (t *TerrainField) Roughness(lat, lng float64) float64 {
	for _, b := range t.HillAreas {
		if b.Contains(lat, lng) {
			return t.HillRoughness
		}
	}
	return t.BaseRoughness
}

func (t *TerrainField) Urban(lat, lng float64) bool {
	for _, b := range t.UrbanAreas {
		if b.Contains(lat, lng) {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
