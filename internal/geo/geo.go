// Package geo holds the planar and great-circle geometry primitives shared by
// the airspace index, the route optimizer and the flight simulator.
package geo

import (
	"math"

	"uav_planner/internal/models"
)

const (
	earthRadiusM = 6371000.0
	// metersPerDegLat is the equirectangular projection scale used for local
	// planar work (distances well under 100 km).
	metersPerDegLat = 111000.0
)

func toRad(deg float64) float64 { return deg * math.Pi / 180 }
func toDeg(rad float64) float64 { return rad * 180 / math.Pi }

// Haversine returns the great-circle distance between two points in meters.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusM * c
}

// Distance is Haversine over waypoints, ignoring altitude.
func Distance(a, b models.Waypoint) float64 {
	return Haversine(a.Lat, a.Lng, b.Lat, b.Lng)
}

// PathLength sums the segment distances of a polyline in meters.
func PathLength(wps []models.Waypoint) float64 {
	total := 0.0
	for i := 0; i < len(wps)-1; i++ {
		total += Distance(wps[i], wps[i+1])
	}
	return total
}

// Bearing returns the initial bearing from point 1 to point 2 in degrees
// [0,360).
func Bearing(lat1, lng1, lat2, lng2 float64) float64 {
	φ1, φ2 := toRad(lat1), toRad(lat2)
	dλ := toRad(lng2 - lng1)
	y := math.Sin(dλ) * math.Cos(φ2)
	x := math.Cos(φ1)*math.Sin(φ2) - math.Sin(φ1)*math.Cos(φ2)*math.Cos(dλ)
	return math.Mod(toDeg(math.Atan2(y, x))+360, 360)
}

// Offset returns the point distM meters from (lat, lng) along bearingDeg.
func Offset(lat, lng, distM, bearingDeg float64) (float64, float64) {
	δ := distM / earthRadiusM
	θ := toRad(bearingDeg)
	φ1 := toRad(lat)
	λ1 := toRad(lng)
	φ2 := math.Asin(math.Sin(φ1)*math.Cos(δ) + math.Cos(φ1)*math.Sin(δ)*math.Cos(θ))
	λ2 := λ1 + math.Atan2(math.Sin(θ)*math.Sin(δ)*math.Cos(φ1), math.Cos(δ)-math.Sin(φ1)*math.Sin(φ2))
	return toDeg(φ2), math.Mod(toDeg(λ2)+540, 360) - 180
}

// TurnAngle returns the heading change at b when flying a -> b -> c, in
// degrees [0,180].
func TurnAngle(a, b, c models.Waypoint) float64 {
	in := Bearing(a.Lat, a.Lng, b.Lat, b.Lng)
	out := Bearing(b.Lat, b.Lng, c.Lat, c.Lng)
	diff := math.Abs(out - in)
	if diff > 180 {
		diff = 360 - diff
	}
	return diff
}

// BBox is a latitude/longitude bounding box.
type BBox struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

func (b BBox) Contains(lat, lng float64) bool {
	return lat >= b.South && lat <= b.North && lng >= b.West && lng <= b.East
}

func (b BBox) Intersects(o BBox) bool {
	return b.South <= o.North && b.North >= o.South && b.West <= o.East && b.East >= o.West
}

// Center returns the midpoint of the box.
func (b BBox) Center() (float64, float64) {
	return (b.North + b.South) / 2, (b.East + b.West) / 2
}

// RadiusM approximates the box by half its diagonal in meters.
func (b BBox) RadiusM() float64 {
	return Haversine(b.South, b.West, b.North, b.East) / 2
}

// Expand grows the box by m meters on every side.
func (b BBox) Expand(m float64) BBox {
	dLat := m / metersPerDegLat
	midLat := (b.North + b.South) / 2
	dLng := m / (metersPerDegLat * math.Cos(toRad(midLat)))
	return BBox{North: b.North + dLat, South: b.South - dLat, East: b.East + dLng, West: b.West - dLng}
}

// PolygonBounds returns the bounding box of a polygon given as [lng, lat]
// vertex pairs.
func PolygonBounds(poly [][]float64) BBox {
	b := BBox{North: -90, South: 90, East: -180, West: 180}
	for _, v := range poly {
		if len(v) < 2 {
			continue
		}
		lng, lat := v[0], v[1]
		b.North = math.Max(b.North, lat)
		b.South = math.Min(b.South, lat)
		b.East = math.Max(b.East, lng)
		b.West = math.Min(b.West, lng)
	}
	return b
}

// wellFormed drops vertices that are not full [lng, lat] pairs, the same
// filtering PolygonBounds applies. The common all-valid case returns the
// input slice untouched.
func wellFormed(poly [][]float64) [][]float64 {
	for i, v := range poly {
		if len(v) < 2 {
			clean := make([][]float64, 0, len(poly)-1)
			clean = append(clean, poly[:i]...)
			for _, rest := range poly[i+1:] {
				if len(rest) >= 2 {
					clean = append(clean, rest)
				}
			}
			return clean
		}
	}
	return poly
}

// PointInPolygon reports whether (lat, lng) lies inside the polygon
// (ray-casting over [lng, lat] vertex pairs, implicitly closed).
func PointInPolygon(lat, lng float64, poly [][]float64) bool {
	poly = wellFormed(poly)
	inside := false
	n := len(poly)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := poly[i][0], poly[i][1]
		xj, yj := poly[j][0], poly[j][1]
		if (yi > lat) != (yj > lat) &&
			lng < (xj-xi)*(lat-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// project maps a point into a local planar frame (meters) anchored at the
// reference latitude.
func project(lat, lng, refLat float64) (x, y float64) {
	x = lng * metersPerDegLat * math.Cos(toRad(refLat))
	y = lat * metersPerDegLat
	return x, y
}

func pointSegmentDistance(px, py, ax, ay, bx, by float64) float64 {
	dx, dy := bx-ax, by-ay
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return math.Hypot(px-ax, py-ay)
	}
	t := ((px-ax)*dx + (py-ay)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(px-(ax+t*dx), py-(ay+t*dy))
}

// DistanceToPolygon returns the distance in meters from a point to the
// polygon boundary, or 0 when the point is inside.
func DistanceToPolygon(lat, lng float64, poly [][]float64) float64 {
	poly = wellFormed(poly)
	if len(poly) < 3 {
		return math.Inf(1)
	}
	if PointInPolygon(lat, lng, poly) {
		return 0
	}
	px, py := project(lat, lng, lat)
	minDist := math.Inf(1)
	n := len(poly)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		ax, ay := project(poly[i][1], poly[i][0], lat)
		bx, by := project(poly[j][1], poly[j][0], lat)
		if d := pointSegmentDistance(px, py, ax, ay, bx, by); d < minDist {
			minDist = d
		}
	}
	return minDist
}

func segmentsIntersect(ax, ay, bx, by, cx, cy, dx, dy float64) bool {
	ccw := func(px, py, qx, qy, rx, ry float64) float64 {
		return (qx-px)*(ry-py) - (qy-py)*(rx-px)
	}
	d1 := ccw(cx, cy, dx, dy, ax, ay)
	d2 := ccw(cx, cy, dx, dy, bx, by)
	d3 := ccw(ax, ay, bx, by, cx, cy)
	d4 := ccw(ax, ay, bx, by, dx, dy)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

// SegmentIntersectsPolygon reports whether the segment a-b enters or crosses
// the polygon.
func SegmentIntersectsPolygon(aLat, aLng, bLat, bLng float64, poly [][]float64) bool {
	poly = wellFormed(poly)
	if len(poly) < 3 {
		return false
	}
	if PointInPolygon(aLat, aLng, poly) || PointInPolygon(bLat, bLng, poly) {
		return true
	}
	refLat := (aLat + bLat) / 2
	ax, ay := project(aLat, aLng, refLat)
	bx, by := project(bLat, bLng, refLat)
	n := len(poly)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		cx, cy := project(poly[i][1], poly[i][0], refLat)
		dx, dy := project(poly[j][1], poly[j][0], refLat)
		if segmentsIntersect(ax, ay, bx, by, cx, cy, dx, dy) {
			return true
		}
	}
	// Midpoint check catches a segment fully inside with both endpoints on
	// the boundary grid.
	midLat, midLng := (aLat+bLat)/2, (aLng+bLng)/2
	return PointInPolygon(midLat, midLng, poly)
}
