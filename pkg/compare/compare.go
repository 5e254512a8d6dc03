// Package compare matches the simulated, traffic-counted network against
// an empirical reference dataset: two R-tree indexes of oriented line
// segments, matched by distance, orientation, and a 90-degree connection
// filter, with a bidirectional-uniqueness check against false positives.
package compare

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/b-r-u/nori/pkg/geo"
	"github.com/b-r-u/nori/pkg/network"
)

// maxMatchDist is the cutoff distance (meters) between a reference segment
// and a candidate simulated segment.
const maxMatchDist = 20.0
const maxMatchDistSq = maxMatchDist * maxMatchDist

// orientationTolerance bounds both the raw orientation delta and the
// 90-degree connection-angle delta, in radians (~0.57 degrees).
const orientationTolerance = 0.01

// ErrInvalidInput is returned when the reference file is not a GeoJSON
// FeatureCollection, or yields zero usable reference segments.
var ErrInvalidInput = errors.New("compare: invalid input")

// Connection is one matched (reference, simulated) segment pair, used to
// render a connecting line between them.
type Connection struct {
	From, To geo.GeoPoint
}

// ReferencePoint is the outcome for one reference segment: its empirical
// count, the summed counts of the simulated segments matched to it, and
// how many matches were found.
type ReferencePoint struct {
	At               geo.GeoPoint
	NumberReference  float64
	NumberSimulated  float64
	Diff             float64
	NumberConnections int
}

// Result is the full output of Compare.
type Result struct {
	Points      []ReferencePoint
	Connections []Connection
}

// Compare matches net's counter>0 edges against every LineString feature in
// referenceFC carrying property as a numeric value.
func Compare(net *network.Network, referenceFC *geojson.FeatureCollection, property string) (*Result, error) {
	if referenceFC == nil {
		return nil, fmt.Errorf("%w: reference is not a FeatureCollection", ErrInvalidInput)
	}

	simSegments := simulatedSegments(net)
	refSegments := referenceSegments(referenceFC, property)

	if len(refSegments) == 0 {
		return nil, fmt.Errorf("%w: zero matching reference features", ErrInvalidInput)
	}

	simTree := NewTree(simSegments)
	refTree := NewTree(refSegments)

	result := &Result{}

	for _, r := range refSegments {
		center := r.Center()
		matches := simTree.FindMatching(r, center, maxMatchDistSq)

		if !allWithinTolerance(r, matches) {
			continue
		}

		if !allBidirectionallyUnique(r, matches, refTree) {
			continue
		}

		var numberSim float64
		for _, m := range matches {
			numberSim += m.ToSegment.Number
			result.Connections = append(result.Connections, Connection{
				From: geo.Unproject(center),
				To:   geo.Unproject(m.ToPoint),
			})
		}

		result.Points = append(result.Points, ReferencePoint{
			At:                geo.Unproject(center),
			NumberReference:   r.Number,
			NumberSimulated:   numberSim,
			Diff:              numberSim - r.Number,
			NumberConnections: len(matches),
		})
	}

	return result, nil
}

func allWithinTolerance(r Segment, matches []Match) bool {
	for _, m := range matches {
		if m.OrientationDiff > orientationTolerance || m.Connection90Diff > orientationTolerance {
			return false
		}
	}
	return true
}

func allBidirectionallyUnique(r Segment, matches []Match, refTree *Tree) bool {
	for _, m := range matches {
		reverse := refTree.FindMatching(m.ToSegment, m.ToPoint, maxMatchDistSq)
		if len(reverse) > 1 {
			return false
		}
	}
	return true
}

func simulatedSegments(net *network.Network) []Segment {
	var segments []Segment
	for _, e := range net.Edges() {
		if e.Number == 0 {
			continue
		}
		segments = append(segments, Segment{
			From:   geo.Project(e.A.Point),
			To:     geo.Project(e.B.Point),
			Number: float64(e.Number),
		})
	}
	return segments
}

func referenceSegments(fc *geojson.FeatureCollection, property string) []Segment {
	var segments []Segment

	for _, f := range fc.Features {
		ls, ok := f.Geometry.(orb.LineString)
		if !ok {
			continue
		}
		number, ok := numericProperty(f, property)
		if !ok {
			continue
		}

		for i := 0; i+1 < len(ls); i++ {
			a := geo.GeoPoint{Lat: ls[i][1], Lon: ls[i][0]}
			b := geo.GeoPoint{Lat: ls[i+1][1], Lon: ls[i+1][0]}
			segments = append(segments, Segment{
				From:   geo.Project(a),
				To:     geo.Project(b),
				Number: number,
			})
		}
	}

	return segments
}

func numericProperty(f *geojson.Feature, property string) (float64, bool) {
	v, ok := f.Properties[property]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// WriteGeoJSON emits every reference point as a Point feature and every
// connection as a LineString feature.
func (r *Result) WriteGeoJSON(path string) error {
	fc := geojson.NewFeatureCollection()

	for _, p := range r.Points {
		f := geojson.NewFeature(orb.Point{p.At.Lon, p.At.Lat})
		f.Properties["number_ref"] = p.NumberReference
		f.Properties["number_sim"] = p.NumberSimulated
		f.Properties["diff"] = p.Diff
		f.Properties["number_connections"] = p.NumberConnections
		fc.Append(f)
	}

	for _, c := range r.Connections {
		ls := orb.LineString{{c.From.Lon, c.From.Lat}, {c.To.Lon, c.To.Lat}}
		fc.Append(geojson.NewFeature(ls))
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("compare: marshal geojson: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("compare: write %s: %w", path, err)
	}
	return nil
}

// WriteCSV writes one (number_ref, number_sim, number_connections) row per
// reference point whose reference and simulated counts are both strictly
// positive.
func (r *Result) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"number_ref", "number_sim", "number_connections"}); err != nil {
		return err
	}

	for _, p := range r.Points {
		if p.NumberReference <= 0 || p.NumberSimulated <= 0 {
			continue
		}
		row := []string{
			strconv.FormatFloat(p.NumberReference, 'f', -1, 64),
			strconv.FormatFloat(p.NumberSimulated, 'f', -1, 64),
			strconv.Itoa(p.NumberConnections),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
