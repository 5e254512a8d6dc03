package geo

import "math"

// Dist returns the Euclidean distance between two projected points, in meters.
func (p ProjPoint) Dist(q ProjPoint) float64 {
	return math.Sqrt(p.DistSq(q))
}

// DistSq returns the squared Euclidean distance between two projected
// points. Cheaper than Dist when only used for radius comparisons.
func (p ProjPoint) DistSq(q ProjPoint) float64 {
	dx := p.East - q.East
	dy := p.North - q.North
	return dx*dx + dy*dy
}

// Midpoint returns the midpoint of the segment p-q.
func (p ProjPoint) Midpoint(q ProjPoint) ProjPoint {
	return ProjPoint{East: (p.East + q.East) / 2, North: (p.North + q.North) / 2}
}
