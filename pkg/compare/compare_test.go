package compare

import (
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/b-r-u/nori/pkg/geo"
	"github.com/b-r-u/nori/pkg/network"
)

func oneEdgeFeature(a, b geo.GeoPoint, property string, value float64) *geojson.Feature {
	ls := orb.LineString{{a.Lon, a.Lat}, {b.Lon, b.Lat}}
	f := geojson.NewFeature(ls)
	f.Properties[property] = value
	return f
}

func TestNumericProperty(t *testing.T) {
	f := geojson.NewFeature(orb.Point{0, 0})
	f.Properties["count"] = float64(42)
	f.Properties["name"] = "not a number"

	if v, ok := numericProperty(f, "count"); !ok || v != 42 {
		t.Errorf("numericProperty(count) = %v, %v; want 42, true", v, ok)
	}
	if _, ok := numericProperty(f, "name"); ok {
		t.Error("numericProperty(name) should fail for a string value")
	}
	if _, ok := numericProperty(f, "missing"); ok {
		t.Error("numericProperty(missing) should fail for an absent property")
	}
}

func TestReferenceSegmentsDecomposesLineStrings(t *testing.T) {
	a := geo.GeoPoint{Lat: 52.50, Lon: 13.40}
	b := geo.GeoPoint{Lat: 52.51, Lon: 13.41}
	c := geo.GeoPoint{Lat: 52.52, Lon: 13.42}

	fc := geojson.NewFeatureCollection()
	ls := orb.LineString{{a.Lon, a.Lat}, {b.Lon, b.Lat}, {c.Lon, c.Lat}}
	f := geojson.NewFeature(ls)
	f.Properties["count"] = float64(10)
	fc.Append(f)

	segs := referenceSegments(fc, "count")
	if len(segs) != 2 {
		t.Fatalf("got %d segments, want 2 (one per consecutive point pair)", len(segs))
	}
	for _, s := range segs {
		if s.Number != 10 {
			t.Errorf("segment Number = %v, want 10", s.Number)
		}
	}
}

func TestReferenceSegmentsSkipsNonNumericProperty(t *testing.T) {
	a := geo.GeoPoint{Lat: 52.50, Lon: 13.40}
	b := geo.GeoPoint{Lat: 52.51, Lon: 13.41}

	fc := geojson.NewFeatureCollection()
	f := oneEdgeFeature(a, b, "count", 0)
	f.Properties["count"] = "not a number"
	fc.Append(f)

	segs := referenceSegments(fc, "count")
	if len(segs) != 0 {
		t.Fatalf("got %d segments, want 0 (non-numeric property should be skipped)", len(segs))
	}
}

func TestCompareRejectsNilFeatureCollection(t *testing.T) {
	_, err := Compare(&network.Network{}, nil, "count")
	if err == nil {
		t.Fatal("Compare with nil FeatureCollection should fail")
	}
}

func TestCompareRejectsEmptyReferenceSet(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	_, err := Compare(&network.Network{}, fc, "count")
	if err == nil {
		t.Fatal("Compare with zero matching reference features should fail")
	}
}

func TestAllWithinToleranceRejectsOrientationMismatch(t *testing.T) {
	r := Segment{
		From: geo.ProjPoint{East: 0, North: 0},
		To:   geo.ProjPoint{East: 100, North: 0},
	}
	// A simulated segment running perpendicular to r: orientation diff ~ pi/2.
	matches := []Match{
		{OrientationDiff: 1.4, Connection90Diff: 0},
	}
	if allWithinTolerance(r, matches) {
		t.Error("a large OrientationDiff should fail the tolerance check")
	}
}

func TestAllWithinToleranceRejectsConnection90Mismatch(t *testing.T) {
	r := Segment{
		From: geo.ProjPoint{East: 0, North: 0},
		To:   geo.ProjPoint{East: 100, North: 0},
	}
	matches := []Match{
		{OrientationDiff: 0, Connection90Diff: 1.4},
	}
	if allWithinTolerance(r, matches) {
		t.Error("a large Connection90Diff should fail the tolerance check")
	}
}

func TestAllWithinToleranceAcceptsCloseOrientation(t *testing.T) {
	r := Segment{
		From: geo.ProjPoint{East: 0, North: 0},
		To:   geo.ProjPoint{East: 100, North: 0},
	}
	matches := []Match{
		{OrientationDiff: 0.001, Connection90Diff: 0.002},
	}
	if !allWithinTolerance(r, matches) {
		t.Error("small diffs within tolerance should be accepted")
	}
}

func TestAllBidirectionallyUniqueRejectsMultipleReverseMatches(t *testing.T) {
	simSeg := Segment{
		From:   geo.ProjPoint{East: 0, North: 0},
		To:     geo.ProjPoint{East: 10, North: 0},
		Number: 5,
	}
	// Two distinct reference segments both near simSeg's matched point:
	// the reverse query from simSeg's ToPoint should find both.
	refA := Segment{From: geo.ProjPoint{East: 0, North: 0}, To: geo.ProjPoint{East: 10, North: 0}, Number: 3}
	refB := Segment{From: geo.ProjPoint{East: 0, North: 1}, To: geo.ProjPoint{East: 10, North: 1}, Number: 4}
	refTree := NewTree([]Segment{refA, refB})

	matches := []Match{
		{ToSegment: simSeg, ToPoint: geo.ProjPoint{East: 5, North: 0.5}},
	}
	if allBidirectionallyUnique(Segment{}, matches, refTree) {
		t.Error("two reference segments within range of the matched point should fail uniqueness")
	}
}

func TestAllBidirectionallyUniqueAcceptsSingleReverseMatch(t *testing.T) {
	simSeg := Segment{
		From:   geo.ProjPoint{East: 0, North: 0},
		To:     geo.ProjPoint{East: 10, North: 0},
		Number: 5,
	}
	refA := Segment{From: geo.ProjPoint{East: 0, North: 0}, To: geo.ProjPoint{East: 10, North: 0}, Number: 3}
	refTree := NewTree([]Segment{refA})

	matches := []Match{
		{ToSegment: simSeg, ToPoint: geo.ProjPoint{East: 5, North: 0}},
	}
	if !allBidirectionallyUnique(Segment{}, matches, refTree) {
		t.Error("a single reverse match should pass uniqueness")
	}
}

func TestResultWriteCSVSkipsZeroCounts(t *testing.T) {
	result := &Result{
		Points: []ReferencePoint{
			{NumberReference: 42, NumberSimulated: 7, NumberConnections: 1},
			{NumberReference: 0, NumberSimulated: 5, NumberConnections: 1},
			{NumberReference: 5, NumberSimulated: 0, NumberConnections: 1},
		},
	}

	var sb strings.Builder
	if err := result.WriteCSV(&sb); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(sb.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2 (header + one row with both counts positive)", len(lines))
	}
	if lines[0] != "number_ref,number_sim,number_connections" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "42,7,1" {
		t.Errorf("row = %q, want %q", lines[1], "42,7,1")
	}
}

func TestFindMatchingSelfMatchesReferenceSegment(t *testing.T) {
	a := geo.GeoPoint{Lat: 52.500, Lon: 13.400}
	b := geo.GeoPoint{Lat: 52.500, Lon: 13.402}

	// Build the reference FeatureCollection directly and match its one
	// segment against a tree of itself. The simulated side is not exercised
	// here, since constructing a Network with edges requires routing through
	// a binary file (see pkg/network's own tests for that path).
	fc := geojson.NewFeatureCollection()
	fc.Append(oneEdgeFeature(a, b, "count", 7))

	segs := referenceSegments(fc, "count")
	if len(segs) != 1 {
		t.Fatalf("got %d reference segments, want 1", len(segs))
	}

	simTree := NewTree(segs)
	query := segs[0]
	matches := simTree.FindMatching(query, query.Center(), maxMatchDistSq)
	if len(matches) != 1 {
		t.Fatalf("got %d self-matches, want 1 (segment should match itself)", len(matches))
	}
	if matches[0].OrientationDiff > orientationTolerance {
		t.Errorf("self-match OrientationDiff = %v, want ~0", matches[0].OrientationDiff)
	}
}
