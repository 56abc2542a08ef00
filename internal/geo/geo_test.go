package geo

import (
	"math"
	"testing"

	"uav_planner/internal/models"
)

// square polygon in [lng, lat] order around (37.755, -122.445)
var testPoly = [][]float64{
	{-122.45, 37.76},
	{-122.44, 37.76},
	{-122.44, 37.75},
	{-122.45, 37.75},
}

func TestHaversineKnownDistance(t *testing.T) {
	// SF downtown to SFO is roughly 18-19 km
	d := Haversine(37.7749, -122.4194, 37.6213, -122.3790)
	if d < 17000 || d > 20000 {
		t.Fatalf("expected ~18km, got %.0f m", d)
	}
	if Haversine(37.7749, -122.4194, 37.7749, -122.4194) != 0 {
		t.Fatalf("distance to self should be 0")
	}
}

func TestOffsetRoundTrip(t *testing.T) {
	lat, lng := Offset(37.7749, -122.4194, 1000, 45)
	back := Haversine(37.7749, -122.4194, lat, lng)
	if math.Abs(back-1000) > 1 {
		t.Fatalf("offset by 1000m measured back as %.2f m", back)
	}
	brg := Bearing(37.7749, -122.4194, lat, lng)
	if math.Abs(brg-45) > 0.5 {
		t.Fatalf("expected bearing ~45, got %.2f", brg)
	}
}

func TestPathLengthSumsSegments(t *testing.T) {
	wps := []models.Waypoint{
		{Lat: 37.77, Lng: -122.42},
		{Lat: 37.78, Lng: -122.42},
		{Lat: 37.78, Lng: -122.41},
	}
	want := Distance(wps[0], wps[1]) + Distance(wps[1], wps[2])
	if got := PathLength(wps); math.Abs(got-want) > 1e-9 {
		t.Fatalf("path length %.2f, want %.2f", got, want)
	}
	if PathLength(wps[:1]) != 0 {
		t.Fatalf("single-point path should have zero length")
	}
}

func TestPointInPolygon(t *testing.T) {
	cases := []struct {
		lat, lng float64
		want     bool
	}{
		{37.755, -122.445, true},  // center
		{37.755, -122.435, false}, // east of box
		{37.765, -122.445, false}, // north of box
		{37.745, -122.445, false}, // south of box
	}
	for _, c := range cases {
		if got := PointInPolygon(c.lat, c.lng, testPoly); got != c.want {
			t.Fatalf("PointInPolygon(%.3f, %.3f) = %v, want %v", c.lat, c.lng, got, c.want)
		}
	}
}

func TestPolygonFunctionsSkipShortVertices(t *testing.T) {
	// same square with a truncated vertex pair spliced in
	ragged := [][]float64{
		{-122.45, 37.76},
		{-122.44, 37.76},
		{-122.44},
		{-122.44, 37.75},
		{-122.45, 37.75},
	}
	if !PointInPolygon(37.755, -122.445, ragged) {
		t.Fatalf("center should still be inside after dropping the short vertex")
	}
	if PointInPolygon(37.755, -122.435, ragged) {
		t.Fatalf("point east of the box should stay outside")
	}
	if d := DistanceToPolygon(37.755, -122.445, ragged); d != 0 {
		t.Fatalf("inside point should have distance 0, got %.2f", d)
	}
	if !SegmentIntersectsPolygon(37.755, -122.46, 37.755, -122.43, ragged) {
		t.Fatalf("crossing segment should still intersect")
	}
}

func TestDistanceToPolygon(t *testing.T) {
	if d := DistanceToPolygon(37.755, -122.445, testPoly); d != 0 {
		t.Fatalf("inside point should have distance 0, got %.2f", d)
	}
	// 37.77 is ~0.01 deg (~1110 m) north of the top edge
	d := DistanceToPolygon(37.77, -122.445, testPoly)
	if d < 1000 || d > 1300 {
		t.Fatalf("expected ~1110m to top edge, got %.0f", d)
	}
}

func TestSegmentIntersectsPolygon(t *testing.T) {
	// crosses the polygon west to east
	if !SegmentIntersectsPolygon(37.755, -122.46, 37.755, -122.43, testPoly) {
		t.Fatalf("crossing segment should intersect")
	}
	// endpoint inside
	if !SegmentIntersectsPolygon(37.755, -122.445, 37.77, -122.445, testPoly) {
		t.Fatalf("segment starting inside should intersect")
	}
	// passes well north of the polygon
	if SegmentIntersectsPolygon(37.78, -122.46, 37.78, -122.43, testPoly) {
		t.Fatalf("distant segment should not intersect")
	}
}

func TestBBox(t *testing.T) {
	b := PolygonBounds(testPoly)
	if b.North != 37.76 || b.South != 37.75 || b.East != -122.44 || b.West != -122.45 {
		t.Fatalf("unexpected bounds: %+v", b)
	}
	if !b.Contains(37.755, -122.445) {
		t.Fatalf("bounds should contain polygon center")
	}
	if b.Contains(37.80, -122.445) {
		t.Fatalf("bounds should not contain outside point")
	}
	if !b.Intersects(BBox{North: 37.77, South: 37.758, East: -122.43, West: -122.46}) {
		t.Fatalf("overlapping boxes should intersect")
	}
	if b.Intersects(BBox{North: 37.90, South: 37.85, East: -122.43, West: -122.46}) {
		t.Fatalf("disjoint boxes should not intersect")
	}

	ex := b.Expand(1000)
	if ex.North <= b.North || ex.South >= b.South || ex.East <= b.East || ex.West >= b.West {
		t.Fatalf("expand should grow every side: %+v vs %+v", ex, b)
	}
}

func TestTurnAngle(t *testing.T) {
	a := models.Waypoint{Lat: 37.75, Lng: -122.45}
	b := models.Waypoint{Lat: 37.76, Lng: -122.45}
	c := models.Waypoint{Lat: 37.77, Lng: -122.45}
	if ang := TurnAngle(a, b, c); ang > 0.1 {
		t.Fatalf("straight path should have ~0 turn, got %.2f", ang)
	}
	d := models.Waypoint{Lat: 37.76, Lng: -122.44} // 90 degree right turn
	if ang := TurnAngle(a, b, d); math.Abs(ang-90) > 1 {
		t.Fatalf("expected ~90 degree turn, got %.2f", ang)
	}
}
