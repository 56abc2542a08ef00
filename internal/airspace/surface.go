// Package airspace is the spatial risk surface: it answers point queries
// about no-fly-zone proximity, weather and terrain against an immutable
// snapshot of the underlying providers. Snapshots are swapped atomically on
// refresh, so an optimization or simulation that pins a view sees one
// consistent world for its whole call.
package airspace

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/labstack/gommon/log"

	"uav_planner/internal/geo"
	"uav_planner/internal/models"
)

// Zone is a no-fly zone with its precomputed bounding box, so point queries
// can skip polygons that cannot possibly be near.
type Zone struct {
	models.NoFlyZone
	Bounds geo.BBox
}

// Snapshot is one immutable view of the airspace. Never mutated after
// publication.
type Snapshot struct {
	Version   uint64
	Region    geo.BBox
	Zones     []Zone
	Weather   models.WeatherSample
	FetchedAt time.Time
}

// PointInfo is the per-point answer of the risk surface.
type PointInfo struct {
	// NearestZoneDist is meters to the closest zone boundary, 0 inside.
	NearestZoneDist float64
	NearestSeverity models.ZoneSeverity
	Inside          bool
	InsideCritical  bool
	Roughness       float64
	Urban           bool
	Weather         models.WeatherSample
}

type pointKey struct {
	version  uint64
	lat, lng int32
}

// Surface combines the providers behind an atomically swapped snapshot and a
// shared query cache. Safe for concurrent readers; Refresh may run
// concurrently with queries.
type Surface struct {
	zones   ZoneProvider
	weather WeatherProvider
	terrain TerrainProvider
	region  geo.BBox

	snap    atomic.Pointer[Snapshot]
	version atomic.Uint64
	cache   *lru.Cache[pointKey, PointInfo]
}

const pointCacheSize = 8192

func NewSurface(region geo.BBox, zones ZoneProvider, weather WeatherProvider, terrain TerrainProvider) *Surface {
	cache, _ := lru.New[pointKey, PointInfo](pointCacheSize)
	s := &Surface{
		zones:   zones,
		weather: weather,
		terrain: terrain,
		region:  region,
		cache:   cache,
	}
	// Start with an empty-but-valid snapshot so queries never see nil.
	s.snap.Store(&Snapshot{Region: region, Weather: models.WeatherSample{WindSpeed: 5, GustSpeed: 7}, FetchedAt: time.Now()})
	return s
}

// Refresh queries the providers and publishes a new snapshot. In-flight
// views keep the snapshot they pinned.
func (s *Surface) Refresh(ctx context.Context) error {
	raw, err := s.zones.Query(ctx, s.region)
	if err != nil {
		return fmt.Errorf("zone query failed: %w", err)
	}
	zones := make([]Zone, 0, len(raw))
	for _, z := range raw {
		if len(z.Coordinates) < 3 {
			log.Warnf("skipping zone %s: fewer than 3 vertices", z.ID)
			continue
		}
		zones = append(zones, Zone{NoFlyZone: z, Bounds: geo.PolygonBounds(z.Coordinates)})
	}

	lat, lng := s.region.Center()
	weather, err := s.weather.Query(ctx, lat, lng)
	if err != nil {
		return fmt.Errorf("weather query failed: %w", err)
	}

	snap := &Snapshot{
		Version:   s.version.Add(1),
		Region:    s.region,
		Zones:     zones,
		Weather:   weather,
		FetchedAt: time.Now(),
	}
	s.snap.Store(snap)
	log.Infof("airspace snapshot v%d published: %d zones, wind %.1f m/s", snap.Version, len(zones), weather.WindSpeed)
	return nil
}

// Acquire pins the current snapshot into a View. Every query through the
// returned view answers against that one snapshot.
func (s *Surface) Acquire() *View {
	return &View{snap: s.snap.Load(), terrain: s.terrain, weatherP: s.weather, cache: s.cache}
}

// View is a consistent read handle over one snapshot. Not safe to share
// across calls that must not observe each other's weather override.
type View struct {
	snap     *Snapshot
	terrain  TerrainProvider
	weatherP WeatherProvider
	cache    *lru.Cache[pointKey, PointInfo]
	override *models.WeatherSample
}

// OverrideWeather replaces the snapshot weather for this view only, used
// when a plan request carries operator-supplied conditions.
func (v *View) OverrideWeather(w *models.WeatherSample) {
	v.override = w
}

// Weather returns the regional weather for this view.
func (v *View) Weather() models.WeatherSample {
	if v.override != nil {
		return *v.override
	}
	return v.snap.Weather
}

// Zones returns every zone of the pinned snapshot.
func (v *View) Zones() []Zone {
	return v.snap.Zones
}

// ZonesWithin returns the zones intersecting a bounding box.
func (v *View) ZonesWithin(bbox geo.BBox) []models.NoFlyZone {
	var out []models.NoFlyZone
	for _, z := range v.snap.Zones {
		if z.Bounds.Intersects(bbox) {
			out = append(out, z.NoFlyZone)
		}
	}
	return out
}

// WeatherAt returns the weather sample at a point, straight from the
// provider (map reads want point values, not the snapshot regional sample).
func (v *View) WeatherAt(ctx context.Context, lat, lng float64) (models.WeatherSample, error) {
	return v.weatherP.Query(ctx, lat, lng)
}

// PointQuery answers the combined zone/terrain/weather question at a point.
// Results are cached per snapshot version; the weather override is applied
// after lookup so it never pollutes the shared cache.
func (v *View) PointQuery(lat, lng float64) PointInfo {
	key := pointKey{version: v.snap.Version, lat: int32(math.Round(lat * 1e5)), lng: int32(math.Round(lng * 1e5))}
	info, ok := v.cache.Get(key)
	if !ok {
		info = v.computePoint(lat, lng)
		v.cache.Add(key, info)
	}
	if v.override != nil {
		info.Weather = *v.override
	}
	return info
}

func (v *View) computePoint(lat, lng float64) PointInfo {
	info := PointInfo{
		NearestZoneDist: math.Inf(1),
		Roughness:       v.terrain.Roughness(lat, lng),
		Urban:           v.terrain.Urban(lat, lng),
		Weather:         v.snap.Weather,
	}
	// Only test polygons whose expanded bbox can be nearer than the best
	// distance so far.
	const coarseReach = 50000.0
	for _, z := range v.snap.Zones {
		if !z.Bounds.Expand(coarseReach).Contains(lat, lng) {
			continue
		}
		d := geo.DistanceToPolygon(lat, lng, z.Coordinates)
		if d < info.NearestZoneDist {
			info.NearestZoneDist = d
			info.NearestSeverity = z.Severity
			info.Inside = d == 0
			info.InsideCritical = d == 0 && z.Severity == models.SeverityCritical
		} else if d == 0 && z.Severity == models.SeverityCritical {
			info.InsideCritical = true
		}
	}
	if math.IsInf(info.NearestZoneDist, 1) {
		// No zone in reach; report a distance the risk curve treats as safe.
		info.NearestZoneDist = coarseReach
	}
	return info
}
