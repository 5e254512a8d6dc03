package geo

// BBox is a geographic bounding box given by its southwest and northeast
// corners. Meridian wrap is unsupported: callers whose box crosses +/-180
// degrees longitude get undefined behavior from Contains and Project.
type BBox struct {
	SW, NE GeoPoint
}

// IsZero reports whether b is the zero-value bounding box (no filter).
func (b BBox) IsZero() bool {
	return b == BBox{}
}

// Contains reports whether p lies within b, inclusive of the boundary.
func (b BBox) Contains(p GeoPoint) bool {
	return p.Lat >= b.SW.Lat && p.Lat <= b.NE.Lat &&
		p.Lon >= b.SW.Lon && p.Lon <= b.NE.Lon
}

// ProjBBox is the projected envelope of a BBox in EPSG:3035 meters.
type ProjBBox struct {
	SW, NE ProjPoint
}

// Project returns the envelope of all four corners of b projected into
// EPSG:3035. Projecting only sw/ne is wrong because the projection is not
// axis-preserving; a box's projected corners do not form a rectangle whose
// other two corners are the projections of sw and ne.
func (b BBox) Project() ProjBBox {
	sw := Project(b.SW)
	ne := Project(b.NE)
	se := Project(GeoPoint{Lat: b.SW.Lat, Lon: b.NE.Lon})
	nw := Project(GeoPoint{Lat: b.NE.Lat, Lon: b.SW.Lon})

	minEast := sw.East
	maxEast := sw.East
	minNorth := sw.North
	maxNorth := sw.North

	for _, p := range []ProjPoint{ne, se, nw} {
		if p.East < minEast {
			minEast = p.East
		}
		if p.East > maxEast {
			maxEast = p.East
		}
		if p.North < minNorth {
			minNorth = p.North
		}
		if p.North > maxNorth {
			maxNorth = p.North
		}
	}

	return ProjBBox{
		SW: ProjPoint{East: minEast, North: minNorth},
		NE: ProjPoint{East: maxEast, North: maxNorth},
	}
}
