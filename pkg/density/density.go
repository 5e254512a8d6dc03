// Package density builds a weighted point cloud from a CSV raster and
// supports both an unconditional weighted draw and a radius-bounded one,
// for the "Weighted" and "Complex" sampling strategies.
package density

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/kyroy/kdtree"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/b-r-u/nori/pkg/geo"
)

// ErrEmptyDistribution is returned when a Density is built from a CSV with
// no rows surviving the optional bounding-box filter, or whose weights all
// sum to zero.
var ErrEmptyDistribution = errors.New("density: empty distribution")

// kdPoint adapts a projected point for kyroy/kdtree's Point interface.
type kdPoint struct {
	proj geo.ProjPoint
	idx  int
}

func (p *kdPoint) Dimensions() int { return 2 }

func (p *kdPoint) Dimension(i int) float64 {
	if i == 0 {
		return p.proj.East
	}
	return p.proj.North
}

// Density is a weighted cloud of geographic points, typically population or
// point-of-interest rasters, supporting weighted sampling over the whole
// cloud or restricted to a disk around a given point.
type Density struct {
	points  []geo.GeoPoint
	proj    []geo.ProjPoint
	weights []float64
	tree    *kdtree.KDTree
	dist    distuv.Categorical
}

// FromCSV reads a 3-column CSV (x_east, y_north, weight) in EPSG:3035 with a
// header row, unprojects each row, discards rows outside bbox when bbox is
// non-zero, and builds the weighted index. seed selects the PRNG used for
// the global weighted draw; a zero seed is a valid, deterministic choice
// left to the caller to vary.
func FromCSV(r io.Reader, bbox geo.BBox, seed uint64) (*Density, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3

	if _, err := cr.Read(); err != nil { // header
		return nil, fmt.Errorf("density: read header: %w", err)
	}

	var points []geo.GeoPoint
	var proj []geo.ProjPoint
	var weights []float64

	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("density: read row: %w", err)
		}

		east, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return nil, fmt.Errorf("density: parse x_east: %w", err)
		}
		north, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, fmt.Errorf("density: parse y_north: %w", err)
		}
		weight, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			return nil, fmt.Errorf("density: parse weight: %w", err)
		}

		pp := geo.ProjPoint{East: east, North: north}
		gp := geo.Unproject(pp)

		if !bbox.IsZero() && !bbox.Contains(gp) {
			continue
		}

		points = append(points, gp)
		proj = append(proj, pp)
		weights = append(weights, weight)
	}

	return newDensity(points, proj, weights, seed)
}

func newDensity(points []geo.GeoPoint, proj []geo.ProjPoint, weights []float64, seed uint64) (*Density, error) {
	if len(points) == 0 {
		return nil, ErrEmptyDistribution
	}

	var total float64
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return nil, ErrEmptyDistribution
	}

	treePoints := make([]kdtree.Point, len(proj))
	for i, p := range proj {
		treePoints[i] = &kdPoint{proj: p, idx: i}
	}

	return &Density{
		points:  points,
		proj:    proj,
		weights: weights,
		tree:    kdtree.New(treePoints),
		dist:    distuv.NewCategorical(weights, rand.NewSource(seed)),
	}, nil
}

// Sample draws an index from the global weighted distribution and returns
// the corresponding geographic point.
func (d *Density) Sample() geo.GeoPoint {
	idx := int(d.dist.Rand())
	return d.points[idx]
}

// SampleWithin projects source, queries the k-d tree for points within
// radius of it (squared-Euclidean in the projected plane), builds a local
// weighted distribution over the hit set, and returns a weighted draw from
// it. It returns false if there were no hits or the hit weights sum to
// zero.
//
// kyroy/kdtree exposes only a bounded-K nearest-neighbor query, not a native
// range query, so this doubles K for as long as every candidate returned is
// within radius, and stops once some candidate lies outside radius (a larger
// K could only add points farther away) or every point in the index has been
// considered.
//
// seed drives the local weighted draw only; it does not need to be related
// to the seed used to build d.
func (d *Density) SampleWithin(seed uint64, source geo.GeoPoint, radius float64) (geo.GeoPoint, bool) {
	center := geo.Project(source)
	radiusSq := radius * radius

	k := 16
	var hitIdx []int
	var hitWeights []float64

	for {
		if k > len(d.proj) {
			k = len(d.proj)
		}

		results := d.tree.KNN(&kdPoint{proj: center}, k)

		hitIdx = hitIdx[:0]
		hitWeights = hitWeights[:0]
		reachedBoundary := false

		for _, r := range results {
			kp := r.(*kdPoint)
			if kp.proj.DistSq(center) <= radiusSq {
				hitIdx = append(hitIdx, kp.idx)
				hitWeights = append(hitWeights, d.weights[kp.idx])
			} else {
				reachedBoundary = true
			}
		}

		if !reachedBoundary && k < len(d.proj) {
			k *= 2
			continue
		}
		break
	}

	if len(hitIdx) == 0 {
		return geo.GeoPoint{}, false
	}

	var total float64
	for _, w := range hitWeights {
		total += w
	}
	if total <= 0 {
		return geo.GeoPoint{}, false
	}

	local := distuv.NewCategorical(hitWeights, rand.NewSource(seed))
	idx := hitIdx[int(local.Rand())]

	return d.points[idx], true
}
