// Package poi extracts point-of-interest density from an OSM PBF file into
// a 100-meter EPSG:3035 grid, for use as a sampling weight distribution.
package poi

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"

	"github.com/b-r-u/nori/pkg/geo"
)

const gridCellMeters = 100.0

type gridCell struct {
	xCenter, yCenter int64
}

// cellFor buckets a projected point into its 100m grid cell, identified by
// the cell's center coordinates.
func cellFor(p geo.ProjPoint) gridCell {
	return gridCell{
		xCenter: int64(math.Floor(p.East/gridCellMeters))*100 + 50,
		yCenter: int64(math.Floor(p.North/gridCellMeters))*100 + 50,
	}
}

func isSupermarket(tags osm.Tags) bool {
	return tags.Find("shop") == "supermarket"
}

type wayRef struct {
	nodeIDs []osm.NodeID
}

// ExtractSupermarkets scans rs for shop=supermarket nodes and ways,
// tallying one weight per 100m EPSG:3035 grid cell a POI's location (or, for
// ways, its centroid) falls into, and writes the result to w as CSV with
// columns x_mp_100m, y_mp_100m, weight.
func ExtractSupermarkets(ctx context.Context, rs io.ReadSeeker, w io.Writer) error {
	cells := make(map[gridCell]float64)

	var ways []wayRef
	referenced := make(map[osm.NodeID]struct{})

	scanner := osmpbf.New(ctx, rs, 1)
	scanner.SkipRelations = true
	for scanner.Scan() {
		switch obj := scanner.Object().(type) {
		case *osm.Way:
			if !isSupermarket(obj.Tags) || len(obj.Nodes) == 0 {
				continue
			}
			ids := make([]osm.NodeID, len(obj.Nodes))
			for i, n := range obj.Nodes {
				ids[i] = n.ID
				referenced[n.ID] = struct{}{}
			}
			ways = append(ways, wayRef{nodeIDs: ids})
		case *osm.Node:
			if isSupermarket(obj.Tags) {
				point := geo.Project(geo.GeoPoint{Lat: obj.Lat, Lon: obj.Lon})
				cells[cellFor(point)]++
			}
		}
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return fmt.Errorf("poi: scan ways and nodes: %w", err)
	}
	scanner.Close()

	if len(ways) > 0 {
		if err := resolveWayCentroids(ctx, rs, ways, referenced, cells); err != nil {
			return err
		}
	}

	return writeCSV(w, cells)
}

// resolveWayCentroids re-scans rs for the coordinates of every node
// referenced by ways, then tallies each way's centroid into cells.
func resolveWayCentroids(ctx context.Context, rs io.ReadSeeker, ways []wayRef, referenced map[osm.NodeID]struct{}, cells map[gridCell]float64) error {
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("poi: seek for node pass: %w", err)
	}

	nodeLat := make(map[osm.NodeID]float64, len(referenced))
	nodeLon := make(map[osm.NodeID]float64, len(referenced))

	scanner := osmpbf.New(ctx, rs, 1)
	scanner.SkipWays = true
	scanner.SkipRelations = true
	for scanner.Scan() {
		n, ok := scanner.Object().(*osm.Node)
		if !ok {
			continue
		}
		if _, needed := referenced[n.ID]; !needed {
			continue
		}
		nodeLat[n.ID] = n.Lat
		nodeLon[n.ID] = n.Lon
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return fmt.Errorf("poi: node pass: %w", err)
	}
	scanner.Close()

	for _, way := range ways {
		var sumLat, sumLon float64
		var n int
		for _, id := range way.nodeIDs {
			lat, ok := nodeLat[id]
			if !ok {
				continue
			}
			sumLat += lat
			sumLon += nodeLon[id]
			n++
		}
		if n == 0 {
			continue
		}
		centroid := geo.GeoPoint{Lat: sumLat / float64(n), Lon: sumLon / float64(n)}
		cells[cellFor(geo.Project(centroid))]++
	}

	return nil
}

func writeCSV(w io.Writer, cells map[gridCell]float64) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"x_mp_100m", "y_mp_100m", "weight"}); err != nil {
		return err
	}
	for cell, weight := range cells {
		row := []string{
			strconv.FormatInt(cell.xCenter, 10),
			strconv.FormatInt(cell.yCenter, 10),
			strconv.FormatFloat(weight, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
