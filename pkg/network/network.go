// Package network holds the road network the traffic estimate is tallied
// onto: nodes and directed edges loaded from the CH graph binary, each
// edge carrying a monotone traversal counter bumped once per sampled
// route.
package network

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"sort"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/b-r-u/nori/pkg/geo"
	"github.com/b-r-u/nori/pkg/graph"
)

// NodeIdx is a dense, 0-based node index, stable for the lifetime of a
// loaded Network.
type NodeIdx = uint32

// Node is a network node: its origin OSM id plus its geographic position.
type Node struct {
	OsmID int64
	Point geo.GeoPoint
}

// Edge is a directed, append-only network edge. Counter is the only
// mutable field, bumped by BumpEdges, and is monotone non-decreasing.
type Edge struct {
	From, To NodeIdx
	Counter  uint32
}

// FullEdge is a self-contained view of an edge for iteration, resolving
// its endpoints to Nodes.
type FullEdge struct {
	A, B   Node
	Number uint32
}

type edgeKey struct {
	from, to NodeIdx
}

// Network is the road network loaded from a CH graph binary. Edges are
// immutable except for their counters.
type Network struct {
	nodes      []Node
	edges      []Edge
	osmToIdx   map[int64]NodeIdx
	edgeLookup map[edgeKey]int
}

// Load reads graph.ReadBinary's output and builds the traffic-tallying
// network model on top of it: the pre-contraction edges
// (CHGraph.OrigFirstOut/Head/Weight, kept by the graph binary for
// snapping) become the network's edge set, and CHGraph.OsmID becomes the
// osm_id -> NodeIdx table. Duplicate OSM ids silently override earlier
// entries in that table.
func Load(path string) (*Network, error) {
	chg, err := graph.ReadBinary(path)
	if err != nil {
		return nil, fmt.Errorf("network: load %s: %w", path, err)
	}

	n := &Network{
		nodes:      make([]Node, chg.NumNodes),
		osmToIdx:   make(map[int64]NodeIdx, chg.NumNodes),
		edgeLookup: make(map[edgeKey]int, len(chg.OrigHead)),
	}

	for i := uint32(0); i < chg.NumNodes; i++ {
		var osmID int64
		if chg.OsmID != nil {
			osmID = chg.OsmID[i]
		}
		n.nodes[i] = Node{OsmID: osmID, Point: geo.GeoPoint{Lat: chg.NodeLat[i], Lon: chg.NodeLon[i]}}
		n.osmToIdx[osmID] = i
	}

	for u := uint32(0); u < chg.NumNodes; u++ {
		start, end := chg.OrigFirstOut[u], chg.OrigFirstOut[u+1]
		for e := start; e < end; e++ {
			v := chg.OrigHead[e]
			idx := len(n.edges)
			n.edges = append(n.edges, Edge{From: u, To: v})
			n.edgeLookup[edgeKey{from: u, to: v}] = idx
		}
	}

	return n, nil
}

// BumpEdges increments the counter of every edge on the path implied by
// osmSequence, a sequence of OSM node ids as returned by the routing
// engine. For each consecutive pair (u,v), the forward edge (u,v) is
// looked up first, then the reverse (v,u); if neither is present the pair
// is silently ignored.
func (n *Network) BumpEdges(osmSequence []int64) {
	for i := 0; i+1 < len(osmSequence); i++ {
		u, uOK := n.osmToIdx[osmSequence[i]]
		v, vOK := n.osmToIdx[osmSequence[i+1]]
		if !uOK || !vOK {
			continue
		}

		if idx, ok := n.edgeLookup[edgeKey{from: u, to: v}]; ok {
			n.edges[idx].Counter++
			continue
		}
		if idx, ok := n.edgeLookup[edgeKey{from: v, to: u}]; ok {
			n.edges[idx].Counter++
		}
	}
}

// Edges yields every edge in insertion order, resolved to full node data.
func (n *Network) Edges() []FullEdge {
	out := make([]FullEdge, len(n.edges))
	for i, e := range n.edges {
		out[i] = FullEdge{A: n.nodes[e.From], B: n.nodes[e.To], Number: e.Counter}
	}
	return out
}

// Bounds returns the axis-aligned geographic envelope over all edge
// endpoints, or (0,0)-(0,0) if the network has no edges.
func (n *Network) Bounds() geo.BBox {
	if len(n.edges) == 0 {
		return geo.BBox{}
	}

	first := n.nodes[n.edges[0].From].Point
	minLat, maxLat := first.Lat, first.Lat
	minLon, maxLon := first.Lon, first.Lon

	for _, e := range n.edges {
		for _, idx := range [2]NodeIdx{e.From, e.To} {
			p := n.nodes[idx].Point
			if p.Lat < minLat {
				minLat = p.Lat
			}
			if p.Lat > maxLat {
				maxLat = p.Lat
			}
			if p.Lon < minLon {
				minLon = p.Lon
			}
			if p.Lon > maxLon {
				maxLon = p.Lon
			}
		}
	}

	return geo.BBox{SW: geo.GeoPoint{Lat: minLat, Lon: minLon}, NE: geo.GeoPoint{Lat: maxLat, Lon: maxLon}}
}

// yellowGreen is the 8-stop ColorBrewer YlGn ramp used to render traffic
// intensity, darkest green for the heaviest edges.
var yellowGreen = []colorful.Color{
	{R: 247.0 / 255, G: 252.0 / 255, B: 185.0 / 255},
	{R: 217.0 / 255, G: 240.0 / 255, B: 163.0 / 255},
	{R: 173.0 / 255, G: 221.0 / 255, B: 142.0 / 255},
	{R: 120.0 / 255, G: 198.0 / 255, B: 121.0 / 255},
	{R: 65.0 / 255, G: 171.0 / 255, B: 93.0 / 255},
	{R: 35.0 / 255, G: 132.0 / 255, B: 67.0 / 255},
	{R: 0, G: 104.0 / 255, B: 55.0 / 255},
	{R: 0, G: 69.0 / 255, B: 41.0 / 255},
}

func rampColor(t float64) colorful.Color {
	if t <= 0 {
		return yellowGreen[0]
	}
	if t >= 1 {
		return yellowGreen[len(yellowGreen)-1]
	}
	scaled := t * float64(len(yellowGreen)-1)
	i := int(scaled)
	frac := scaled - float64(i)
	return yellowGreen[i].BlendRgb(yellowGreen[i+1], frac)
}

// Render rasterizes every edge with counter > 0 into a width x height PNG,
// ascending by counter so heavy edges draw last (on top), colored by an
// 8-stop YlGn ramp normalized against the global maximum counter. The
// projection is equal-area (geo.Project); a uniform scale preserves aspect
// ratio and centers the network within bounds; the Y axis is flipped in
// pixel space (north points up on screen, down in array index order).
func (n *Network) Render(bounds geo.BBox, width, height int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	fillBackground(img, color.White)

	edges := n.Edges()

	var active []FullEdge
	var maxNumber uint32
	for _, e := range edges {
		if e.Number > 0 {
			active = append(active, e)
			if e.Number > maxNumber {
				maxNumber = e.Number
			}
		}
	}
	if len(active) == 0 || maxNumber == 0 {
		return img
	}

	sort.Slice(active, func(i, j int) bool { return active[i].Number < active[j].Number })

	env := bounds.Project()
	boundsWidth := env.NE.East - env.SW.East
	boundsHeight := env.NE.North - env.SW.North
	if boundsWidth <= 0 || boundsHeight <= 0 {
		return img
	}

	canvasRatio := float64(width) / float64(height)
	boundsRatio := boundsWidth / boundsHeight

	var scale, offsetX, offsetY float64
	if boundsRatio > canvasRatio {
		scale = float64(width) / boundsWidth
		offsetY = (float64(height) - boundsHeight*scale) * 0.5
	} else {
		scale = float64(height) / boundsHeight
		offsetX = (float64(width) - boundsWidth*scale) * 0.5
	}

	toPixel := func(p geo.GeoPoint) (float64, float64) {
		proj := geo.Project(p)
		x := offsetX + (proj.East-env.SW.East)*scale
		y := offsetY + (env.NE.North-proj.North)*scale
		return x, y
	}

	for _, e := range active {
		ax, ay := toPixel(e.A.Point)
		bx, by := toPixel(e.B.Point)
		c := rampColor(float64(e.Number) / float64(maxNumber))
		r, g, b := c.RGB255()
		drawLine(img, ax, ay, bx, by, color.NRGBA{R: r, G: g, B: b, A: 255})
	}

	return img
}

func fillBackground(img *image.NRGBA, c color.Color) {
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			img.Set(x, y, c)
		}
	}
}

// drawLine rasterizes a straight line with Bresenham's algorithm. No
// drawing library in the example pack offers line strokes over an
// image.Image, so this is hand-rolled on top of the stdlib image package.
func drawLine(img *image.NRGBA, x0, y0, x1, y1 float64, c color.Color) {
	ix0, iy0 := int(x0), int(y0)
	ix1, iy1 := int(x1), int(y1)

	dx := abs(ix1 - ix0)
	dy := -abs(iy1 - iy0)
	sx, sy := 1, 1
	if ix0 >= ix1 {
		sx = -1
	}
	if iy0 >= iy1 {
		sy = -1
	}
	err := dx + dy

	x, y := ix0, iy0
	for {
		img.Set(x, y, c)
		if x == ix1 && y == iy1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// WritePNG renders the network and writes it to path as a PNG.
func (n *Network) WritePNG(path string, bounds geo.BBox, width, height int) error {
	img := n.Render(bounds, width, height)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("network: create %s: %w", path, err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("network: encode png: %w", err)
	}
	return f.Close()
}

// WriteGeoJSON emits every counter>0 edge as a LineString Feature with a
// "number" property, to path.
func (n *Network) WriteGeoJSON(path string) error {
	fc := geojson.NewFeatureCollection()

	for _, e := range n.Edges() {
		if e.Number == 0 {
			continue
		}
		ls := orb.LineString{
			{e.A.Point.Lon, e.A.Point.Lat},
			{e.B.Point.Lon, e.B.Point.Lat},
		}
		f := geojson.NewFeature(ls)
		f.Properties["number"] = e.Number
		fc.Append(f)
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("network: marshal geojson: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("network: write %s: %w", path, err)
	}
	return nil
}
