package density

import (
	"strconv"
	"strings"
	"testing"

	"github.com/b-r-u/nori/pkg/geo"
)

func TestFromCSVEmptyFailsWithEmptyDistribution(t *testing.T) {
	csv := "x_east,y_north,weight\n"
	_, err := FromCSV(strings.NewReader(csv), geo.BBox{}, 1)
	if err != ErrEmptyDistribution {
		t.Fatalf("got %v, want ErrEmptyDistribution", err)
	}
}

func TestFromCSVAllZeroWeightFailsWithEmptyDistribution(t *testing.T) {
	p1 := geo.Project(geo.GeoPoint{Lat: 52.0, Lon: 10.0})
	csv := "x_east,y_north,weight\n" +
		formatRow(p1.East, p1.North, 0) +
		formatRow(p1.East+100, p1.North, 0)
	_, err := FromCSV(strings.NewReader(csv), geo.BBox{}, 1)
	if err != ErrEmptyDistribution {
		t.Fatalf("got %v, want ErrEmptyDistribution", err)
	}
}

func TestFromCSVBBoxFilter(t *testing.T) {
	inside := geo.GeoPoint{Lat: 52.0, Lon: 10.0}
	outside := geo.GeoPoint{Lat: 10.0, Lon: 10.0}
	insideProj := geo.Project(inside)
	outsideProj := geo.Project(outside)

	csv := "x_east,y_north,weight\n" +
		formatRow(insideProj.East, insideProj.North, 1) +
		formatRow(outsideProj.East, outsideProj.North, 5)

	bbox := geo.BBox{SW: geo.GeoPoint{Lat: 50.0, Lon: 8.0}, NE: geo.GeoPoint{Lat: 54.0, Lon: 12.0}}

	d, err := FromCSV(strings.NewReader(csv), bbox, 1)
	if err != nil {
		t.Fatalf("FromCSV: %v", err)
	}

	// FromCSV stores each row as Unproject of its parsed coordinates, which
	// round-trips inside to within about 1e-9 degrees, not bit for bit.
	want := geo.Unproject(insideProj)
	for i := 0; i < 10; i++ {
		got := d.Sample()
		if got.Lat != want.Lat || got.Lon != want.Lon {
			t.Fatalf("Sample() = %v, want only %v to survive the bbox filter", got, want)
		}
	}
}

func TestSampleWithin(t *testing.T) {
	center := geo.GeoPoint{Lat: 52.0, Lon: 10.0}
	far := geo.GeoPoint{Lat: 60.0, Lon: 24.0}
	centerProj := geo.Project(center)
	farProj := geo.Project(far)

	csv := "x_east,y_north,weight\n" +
		formatRow(centerProj.East, centerProj.North, 1) +
		formatRow(farProj.East, farProj.North, 1)

	d, err := FromCSV(strings.NewReader(csv), geo.BBox{}, 1)
	if err != nil {
		t.Fatalf("FromCSV: %v", err)
	}

	got, ok := d.SampleWithin(1, center, 1000)
	if !ok {
		t.Fatal("SampleWithin: want a hit")
	}
	want := geo.Unproject(centerProj)
	if got.Lat != want.Lat || got.Lon != want.Lon {
		t.Errorf("SampleWithin = %v, want %v", got, want)
	}

	_, ok = d.SampleWithin(1, geo.GeoPoint{Lat: -30, Lon: -60}, 10)
	if ok {
		t.Error("SampleWithin: want no hit far from any point")
	}
}

func formatRow(east, north, weight float64) string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return f(east) + "," + f(north) + "," + f(weight) + "\n"
}
