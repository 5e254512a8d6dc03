package compare

import (
	"math"

	"github.com/tidwall/rtree"

	"github.com/b-r-u/nori/pkg/geo"
)

// Segment is a single oriented line stored in a tree: two projected
// endpoints and the traffic count (simulated counter or empirical
// property value) it carries.
type Segment struct {
	From, To geo.ProjPoint
	Number   float64
}

// Center returns the segment's midpoint.
func (s Segment) Center() geo.ProjPoint {
	return s.From.Midpoint(s.To)
}

// Orientation returns s's direction folded into [0, pi).
func (s Segment) Orientation() float64 {
	return orientation(s.To.East-s.From.East, s.To.North-s.From.North)
}

// nearestPoint returns the closest point on s to p, and the squared
// distance to it.
func (s Segment) nearestPoint(p geo.ProjPoint) (geo.ProjPoint, float64) {
	dx := s.To.East - s.From.East
	dy := s.To.North - s.From.North
	lenSq := dx*dx + dy*dy

	if lenSq == 0 {
		return s.From, s.From.DistSq(p)
	}

	t := ((p.East-s.From.East)*dx + (p.North-s.From.North)*dy) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	closest := geo.ProjPoint{East: s.From.East + t*dx, North: s.From.North + t*dy}
	return closest, closest.DistSq(p)
}

// Tree is an R-tree index of Segments, keyed by axis-aligned bounding box.
type Tree struct {
	segments []Segment
	index    rtree.RTree
}

// NewTree builds an R-tree over segments.
func NewTree(segments []Segment) *Tree {
	t := &Tree{segments: segments}
	for i, s := range segments {
		min, max := bbox(s)
		t.index.Insert(min, max, i)
	}
	return t
}

func bbox(s Segment) (min, max [2]float64) {
	min = [2]float64{math.Min(s.From.East, s.To.East), math.Min(s.From.North, s.To.North)}
	max = [2]float64{math.Max(s.From.East, s.To.East), math.Max(s.From.North, s.To.North)}
	return min, max
}

// Match is one segment found within the search radius of a query, along
// with the geometric relationship used by the comparison engine's filters.
type Match struct {
	SegmentIdx       int
	ToSegment        Segment
	ToPoint          geo.ProjPoint
	DistSq           float64
	OrientationDiff  float64
	Connection90Diff float64
}

// FindMatching searches t for every segment whose nearest point to
// fromPoint is within maxDSq of it, treating query as the segment being
// matched (its orientation is compared against each hit's).
//
// tidwall/rtree exposes range Search over an axis-aligned box rather than a
// direct "nearest within radius" primitive, so this queries the square box
// of half-width sqrt(maxDSq) around fromPoint and filters candidates by
// exact squared distance afterward.
func (t *Tree) FindMatching(query Segment, fromPoint geo.ProjPoint, maxDSq float64) []Match {
	maxD := math.Sqrt(maxDSq)
	min := [2]float64{fromPoint.East - maxD, fromPoint.North - maxD}
	max := [2]float64{fromPoint.East + maxD, fromPoint.North + maxD}

	var matches []Match

	t.index.Search(min, max, func(_, _ [2]float64, value interface{}) bool {
		idx := value.(int)
		cand := t.segments[idx]

		nearest, distSq := cand.nearestPoint(fromPoint)
		if distSq > maxDSq {
			return true
		}

		connDx := nearest.East - fromPoint.East
		connDy := nearest.North - fromPoint.North
		// Rotate the connection line 90 degrees around its start (fromPoint).
		rotatedDx, rotatedDy := -connDy, connDx
		rotatedOrientation := orientation(rotatedDx, rotatedDy)

		matches = append(matches, Match{
			SegmentIdx:       idx,
			ToSegment:        cand,
			ToPoint:          nearest,
			DistSq:           distSq,
			OrientationDiff:  orientationDiff(query.Orientation(), cand.Orientation()),
			Connection90Diff: orientationDiff(query.Orientation(), rotatedOrientation),
		})
		return true
	})

	return matches
}
