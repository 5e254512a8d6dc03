// Package polyline partitions a network's undirected edge set into maximal
// simple paths: each edge belongs to exactly one polyline, and every
// polyline's interior nodes have degree 2.
package polyline

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/b-r-u/nori/pkg/geo"
	"github.com/b-r-u/nori/pkg/network"
)

// Point is one node on a polyline, carrying its origin OSM id.
type Point struct {
	OsmID int64
	Point geo.GeoPoint
}

// Polyline is an ordered chain of points.
type Polyline struct {
	Points []Point
}

type edgeKey struct{ a, b int64 }

func orderedKey(a, b int64) edgeKey { return edgeKey{a: a, b: b} }

// Collection is the full partition of a network's edges into polylines,
// plus a membership index from edge to owning polyline.
type Collection struct {
	Polylines  []Polyline
	membership map[edgeKey]int
}

type adjEntry struct {
	point     geo.GeoPoint
	neighbors []int64
}

// Build splits net's edge set into polylines. Each undirected edge
// (including duplicate directed edges between the same pair, which the
// source network commonly carries for two-way roads) is assigned to
// exactly one polyline.
func Build(net *network.Network) *Collection {
	c := &Collection{membership: make(map[edgeKey]int)}

	adja := make(map[int64]*adjEntry)
	addNeighbor := func(id int64, point geo.GeoPoint, neighbor int64) {
		e, ok := adja[id]
		if !ok {
			e = &adjEntry{point: point}
			adja[id] = e
		}
		for _, nb := range e.neighbors {
			if nb == neighbor {
				return
			}
		}
		e.neighbors = append(e.neighbors, neighbor)
	}

	for _, e := range net.Edges() {
		addNeighbor(e.A.OsmID, e.A.Point, e.B.OsmID)
		addNeighbor(e.B.OsmID, e.B.Point, e.A.OsmID)
	}

	seen := make(map[edgeKey]bool)

	follow := func(firstPoint geo.GeoPoint, firstID, secondID int64) {
		key := orderedKey(firstID, secondID)
		if seen[key] || seen[orderedKey(secondID, firstID)] {
			return
		}
		seen[key] = true

		visited := map[int64]bool{firstID: true}

		poly := Polyline{Points: []Point{{OsmID: firstID, Point: firstPoint}}}
		polyID := len(c.Polylines)
		c.membership[orderedKey(firstID, secondID)] = polyID

		prevID := firstID
		curID := secondID
		cur := adja[curID]

		for {
			poly.Points = append(poly.Points, Point{OsmID: curID, Point: cur.point})
			c.membership[orderedKey(prevID, curID)] = polyID
			seen[orderedKey(prevID, curID)] = true

			if len(cur.neighbors) != 2 {
				break
			}
			if visited[curID] {
				break
			}
			visited[curID] = true

			var nextID int64
			if cur.neighbors[0] == prevID {
				nextID = cur.neighbors[1]
			} else {
				nextID = cur.neighbors[0]
			}
			prevID, curID = curID, nextID
			cur = adja[curID]
		}

		c.Polylines = append(c.Polylines, poly)
	}

	// Start from dead ends and intersections first.
	for id, e := range adja {
		if len(e.neighbors) != 2 {
			for _, next := range e.neighbors {
				follow(e.point, id, next)
			}
		}
	}

	// Any node still untouched only has degree-2 neighbors on both sides:
	// a pure cycle. Start from both directions to cover it.
	for id, e := range adja {
		if len(e.neighbors) == 2 {
			follow(e.point, id, e.neighbors[0])
			follow(e.point, id, e.neighbors[1])
		}
	}

	return c
}

// LookupEdge returns the index into Polylines owning edge (u,v), checking
// both orientations, or false if the edge is unknown.
func (c *Collection) LookupEdge(u, v int64) (int, bool) {
	if idx, ok := c.membership[orderedKey(u, v)]; ok {
		return idx, true
	}
	idx, ok := c.membership[orderedKey(v, u)]
	return idx, ok
}

// WriteGeoJSON emits each polyline as a LineString feature with an "id"
// property.
func (c *Collection) WriteGeoJSON(path string) error {
	fc := geojson.NewFeatureCollection()

	for i, poly := range c.Polylines {
		coords := make(orb.LineString, len(poly.Points))
		for j, p := range poly.Points {
			coords[j] = orb.Point{p.Point.Lon, p.Point.Lat}
		}
		f := geojson.NewFeature(coords)
		f.Properties["id"] = i
		fc.Append(f)
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("polyline: marshal geojson: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("polyline: write %s: %w", path, err)
	}
	return nil
}
