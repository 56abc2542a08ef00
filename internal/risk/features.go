package risk

import (
	"math"

	"uav_planner/internal/airspace"
	"uav_planner/internal/geo"
	"uav_planner/internal/models"
)

// Feature extraction constants, matching the trained model's feature
// engineering so rule-based and model scores stay comparable.
const (
	baseConsumptionPctKm = 2.0
	lineOfSightMaxLegKm  = 5.0
)

// RouteFeatures is the route-level feature vector fed to the scoring engine.
type RouteFeatures struct {
	RouteLengthKm          float64
	AvgAltitude            float64
	MaxAltitude            float64
	MinDistanceToNoFly     float64
	WindSpeedAvg           float64
	GustMax                float64
	BatteryMargin          float64
	WaypointsOverBuildings int
	LineOfSight            bool
	TerrainRoughness       float64
	WeatherSeverity        float64
	RouteComplexity        float64
	NearestSeverity        models.ZoneSeverity
	InsideCritical         bool
}

// PointFeatures is the reduced feature set evaluated at one simulated
// position.
type PointFeatures struct {
	Altitude        float64
	WindSpeed       float64
	NearestZoneDist float64
	NearestSeverity models.ZoneSeverity
	InsideCritical  bool
	Roughness       float64
}

// ExtractRouteFeatures derives the route-level feature vector for a waypoint
// sequence. Zone distance is sampled at every vertex and segment midpoint.
func ExtractRouteFeatures(view *airspace.View, wps []models.Waypoint, settings models.MissionSettings) RouteFeatures {
	f := RouteFeatures{
		MinDistanceToNoFly: math.Inf(1),
		LineOfSight:        true,
	}
	if len(wps) == 0 {
		f.MinDistanceToNoFly = 10000
		return f
	}

	f.RouteLengthKm = geo.PathLength(wps) / 1000.0

	var altSum, roughSum float64
	for _, wp := range wps {
		altSum += wp.Altitude
		f.MaxAltitude = math.Max(f.MaxAltitude, wp.Altitude)
	}
	f.AvgAltitude = altSum / float64(len(wps))

	samples := samplePoints(wps)
	for _, p := range samples {
		info := view.PointQuery(p.Lat, p.Lng)
		roughSum += info.Roughness
		if info.NearestZoneDist < f.MinDistanceToNoFly {
			f.MinDistanceToNoFly = info.NearestZoneDist
			f.NearestSeverity = info.NearestSeverity
		}
		if info.InsideCritical {
			f.InsideCritical = true
		}
	}
	f.TerrainRoughness = roughSum / float64(len(samples))
	if math.IsInf(f.MinDistanceToNoFly, 1) {
		f.MinDistanceToNoFly = 10000
	}

	for _, wp := range wps {
		if view.PointQuery(wp.Lat, wp.Lng).Urban {
			f.WaypointsOverBuildings++
		}
	}

	for i := 0; i < len(wps)-1; i++ {
		if geo.Distance(wps[i], wps[i+1])/1000.0 > lineOfSightMaxLegKm {
			f.LineOfSight = false
			break
		}
	}

	w := view.Weather()
	f.WindSpeedAvg = w.WindSpeed
	f.GustMax = math.Max(w.GustSpeed, w.WindSpeed)
	f.WeatherSeverity = clamp01(w.WindSpeed / 15)

	f.BatteryMargin = batteryMargin(settings, f.RouteLengthKm, f.MaxAltitude, w.WindSpeed)
	f.RouteComplexity = routeComplexity(wps, f.RouteLengthKm)
	return f
}

// ExtractPointFeatures derives the point-level feature set at a simulated
// position.
func ExtractPointFeatures(view *airspace.View, wp models.Waypoint) PointFeatures {
	info := view.PointQuery(wp.Lat, wp.Lng)
	return PointFeatures{
		Altitude:        wp.Altitude,
		WindSpeed:       info.Weather.WindSpeed,
		NearestZoneDist: info.NearestZoneDist,
		NearestSeverity: info.NearestSeverity,
		InsideCritical:  info.InsideCritical,
		Roughness:       info.Roughness,
	}
}

// batteryMargin estimates percent battery left after flying the route:
// capacity minus length * base rate, scaled up by altitude and headwind.
func batteryMargin(settings models.MissionSettings, lengthKm, maxAlt, windSpeed float64) float64 {
	altitudeFactor := math.Max(0.5, maxAlt/100.0)
	windFactor := 1.0 + (windSpeed/10.0)*0.3
	consumption := lengthKm * baseConsumptionPctKm * altitudeFactor * windFactor
	return settings.BatteryCapacity - consumption
}

// routeComplexity blends cumulative turning angle and waypoint density,
// clamped to [0,1]. Two-point routes get a small floor value.
func routeComplexity(wps []models.Waypoint, lengthKm float64) float64 {
	if len(wps) < 3 {
		return 0.1
	}
	var totalTurn float64
	for i := 1; i < len(wps)-1; i++ {
		totalTurn += geo.TurnAngle(wps[i-1], wps[i], wps[i+1])
	}
	return clamp01((totalTurn/90.0 + float64(len(wps))) / math.Max(1.0, lengthKm))
}

// samplePoints returns the vertices plus segment midpoints of a polyline.
func samplePoints(wps []models.Waypoint) []models.Waypoint {
	out := make([]models.Waypoint, 0, 2*len(wps))
	for i, wp := range wps {
		out = append(out, wp)
		if i < len(wps)-1 {
			next := wps[i+1]
			out = append(out, models.Waypoint{
				Lat:      (wp.Lat + next.Lat) / 2,
				Lng:      (wp.Lng + next.Lng) / 2,
				Altitude: (wp.Altitude + next.Altitude) / 2,
			})
		}
	}
	return out
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
