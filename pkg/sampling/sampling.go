// Package sampling implements the OD-pair generation strategies driving the
// Monte-Carlo traffic estimate: Uniform2D (geometric only), Weighted
// (density-index-backed), and Complex (population/POI coin flip).
package sampling

import (
	"math"
	"math/rand/v2"

	"github.com/b-r-u/nori/pkg/density"
	"github.com/b-r-u/nori/pkg/geo"
)

// Sampler generates origin-destination pairs for the traffic estimate.
// GenDestination may return false -- callers retry by drawing a fresh
// source and destination.
type Sampler interface {
	GenSource() geo.GeoPoint
	GenDestination(source geo.GeoPoint) (geo.GeoPoint, bool)
}

// NewRand builds a math/rand/v2 generator from an explicit seed. A zero
// seed asks for OS-entropy-derived randomness instead of a reproducible
// sequence -- this resolves the reproducibility question left open by the
// the original sampling design in favor of explicit, caller-controlled
// seeding.
func NewRand(seed uint64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Uniform2D draws both the source and the destination geometrically: the
// source uniformly within a bounding box, and the destination uniformly
// within a disk of fixed radius around the source.
type Uniform2D struct {
	rng     *rand.Rand
	bbox    geo.BBox
	maxDist float64 // meters
}

// NewUniform2D builds a Uniform2D sampler over bbox, with destinations
// drawn within maxDist meters of the source.
func NewUniform2D(rng *rand.Rand, bbox geo.BBox, maxDist float64) *Uniform2D {
	return &Uniform2D{rng: rng, bbox: bbox, maxDist: maxDist}
}

// GenSource draws a point uniformly within the bounding box.
func (u *Uniform2D) GenSource() geo.GeoPoint {
	lat := u.bbox.SW.Lat + u.rng.Float64()*(u.bbox.NE.Lat-u.bbox.SW.Lat)
	lon := u.bbox.SW.Lon + u.rng.Float64()*(u.bbox.NE.Lon-u.bbox.SW.Lon)
	return geo.GeoPoint{Lat: lat, Lon: lon}
}

// GenDestination draws a point within a disk of radius maxDist around
// source, using the polar "fold" method so the distribution is uniform by
// area rather than biased toward the center. Always succeeds.
func (u *Uniform2D) GenDestination(source geo.GeoPoint) (geo.GeoPoint, bool) {
	r1 := u.rng.Float64()
	r2 := u.rng.Float64()
	sum := r1 + r2
	r := sum
	if sum > 1 {
		r = 2 - sum
	}
	r *= u.maxDist

	theta := u.rng.Float64() * 2 * math.Pi

	dEast := r * math.Cos(theta)
	dNorth := r * math.Sin(theta)

	sp := geo.Project(source)
	dp := geo.ProjPoint{East: sp.East + dEast, North: sp.North + dNorth}

	return geo.Unproject(dp), true
}

// Weighted delegates both draws to a single density index: the source is an
// unconditional weighted draw, and the destination is a radius-bounded
// weighted draw around the source.
type Weighted struct {
	rng     *rand.Rand
	density *density.Density
	maxDist float64
}

// NewWeighted builds a Weighted sampler over d, with destinations drawn
// from within maxDist meters of the source.
func NewWeighted(rng *rand.Rand, d *density.Density, maxDist float64) *Weighted {
	return &Weighted{rng: rng, density: d, maxDist: maxDist}
}

// GenSource draws a point from the density index's global distribution.
func (w *Weighted) GenSource() geo.GeoPoint {
	return w.density.Sample()
}

// GenDestination draws a point from the density index restricted to the
// disk of radius maxDist around source. Returns false if no index point
// falls within that radius.
func (w *Weighted) GenDestination(source geo.GeoPoint) (geo.GeoPoint, bool) {
	return w.density.SampleWithin(w.rng.Uint64(), source, w.maxDist)
}

// Complex wraps two independent density indexes -- conventionally a
// population raster and a points-of-interest raster -- and, on each call,
// tosses a fair coin to pick which backs that particular source/destination
// pair. The coin is tossed once per GenSource/GenDestination call, so a
// single OD pair can mix indexes.
type Complex struct {
	rng  *rand.Rand
	a, b *Weighted
}

// NewComplex builds a Complex sampler from two independent density indexes.
func NewComplex(rng *rand.Rand, indexA, indexB *density.Density, maxDist float64) *Complex {
	return &Complex{
		rng: rng,
		a:   NewWeighted(rng, indexA, maxDist),
		b:   NewWeighted(rng, indexB, maxDist),
	}
}

// GenSource flips a fair coin to choose which index draws the source.
func (c *Complex) GenSource() geo.GeoPoint {
	if c.rng.Float64() < 0.5 {
		return c.a.GenSource()
	}
	return c.b.GenSource()
}

// GenDestination flips a fair coin to choose which index draws the
// destination around source.
func (c *Complex) GenDestination(source geo.GeoPoint) (geo.GeoPoint, bool) {
	if c.rng.Float64() < 0.5 {
		return c.a.GenDestination(source)
	}
	return c.b.GenDestination(source)
}
