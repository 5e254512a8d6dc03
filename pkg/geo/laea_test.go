package geo

import (
	"math"
	"testing"
)

func TestProjectUnprojectRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
	}{
		{"origin", 52.0, 10.0},
		{"Berlin", 52.5200, 13.4050},
		{"Lisbon", 38.7223, -9.1393},
		{"Helsinki", 60.1699, 24.9384},
		{"Athens", 37.9838, 23.7275},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig := GeoPoint{Lat: tt.lat, Lon: tt.lon}
			proj := Project(orig)
			back := Unproject(proj)

			if math.Abs(back.Lat-orig.Lat) > 1e-6 {
				t.Errorf("Lat round trip: got %f, want %f", back.Lat, orig.Lat)
			}
			if math.Abs(back.Lon-orig.Lon) > 1e-6 {
				t.Errorf("Lon round trip: got %f, want %f", back.Lon, orig.Lon)
			}
		})
	}
}

func TestProjectOrigin(t *testing.T) {
	// The projection origin (52N, 10E) must map to the EPSG:3035 false
	// easting/northing exactly.
	p := Project(GeoPoint{Lat: laeaOriginLatDeg, Lon: laeaOriginLonDeg})
	if math.Abs(p.East-laeaFalseEasting) > 1e-6 {
		t.Errorf("East at origin = %f, want %f", p.East, laeaFalseEasting)
	}
	if math.Abs(p.North-laeaFalseNorthing) > 1e-6 {
		t.Errorf("North at origin = %f, want %f", p.North, laeaFalseNorthing)
	}
}

func TestBBoxContains(t *testing.T) {
	b := BBox{SW: GeoPoint{Lat: 1.0, Lon: 103.0}, NE: GeoPoint{Lat: 1.5, Lon: 104.0}}

	tests := []struct {
		name string
		p    GeoPoint
		want bool
	}{
		{"inside", GeoPoint{Lat: 1.2, Lon: 103.5}, true},
		{"on sw corner", b.SW, true},
		{"on ne corner", b.NE, true},
		{"outside lat", GeoPoint{Lat: 2.0, Lon: 103.5}, false},
		{"outside lon", GeoPoint{Lat: 1.2, Lon: 105.0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.Contains(tt.p); got != tt.want {
				t.Errorf("Contains(%v) = %v, want %v", tt.p, got, tt.want)
			}
		})
	}
}

func TestBBoxProjectFourCorners(t *testing.T) {
	// A box straddling the origin meridian/parallel must have its envelope
	// computed from all four corners, not just sw/ne -- verify the envelope
	// contains the projections of se and nw too.
	b := BBox{SW: GeoPoint{Lat: 40.0, Lon: 0.0}, NE: GeoPoint{Lat: 60.0, Lon: 20.0}}
	env := b.Project()

	se := Project(GeoPoint{Lat: b.SW.Lat, Lon: b.NE.Lon})
	nw := Project(GeoPoint{Lat: b.NE.Lat, Lon: b.SW.Lon})

	for _, p := range []ProjPoint{se, nw} {
		if p.East < env.SW.East || p.East > env.NE.East {
			t.Errorf("corner east %f outside envelope [%f, %f]", p.East, env.SW.East, env.NE.East)
		}
		if p.North < env.SW.North || p.North > env.NE.North {
			t.Errorf("corner north %f outside envelope [%f, %f]", p.North, env.SW.North, env.NE.North)
		}
	}
}

func TestProjPointDist(t *testing.T) {
	a := ProjPoint{East: 0, North: 0}
	b := ProjPoint{East: 3, North: 4}
	if got := a.Dist(b); math.Abs(got-5) > 1e-9 {
		t.Errorf("Dist = %f, want 5", got)
	}
	if got := a.DistSq(b); math.Abs(got-25) > 1e-9 {
		t.Errorf("DistSq = %f, want 25", got)
	}
}
