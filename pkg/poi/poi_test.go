package poi

import (
	"strings"
	"testing"

	"github.com/paulmach/osm"

	"github.com/b-r-u/nori/pkg/geo"
)

func TestIsSupermarket(t *testing.T) {
	tests := []struct {
		name string
		tags osm.Tags
		want bool
	}{
		{
			name: "supermarket",
			tags: osm.Tags{{Key: "shop", Value: "supermarket"}},
			want: true,
		},
		{
			name: "convenience store",
			tags: osm.Tags{{Key: "shop", Value: "convenience"}},
			want: false,
		},
		{
			name: "no shop tag",
			tags: osm.Tags{{Key: "highway", Value: "residential"}},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isSupermarket(tt.tags); got != tt.want {
				t.Errorf("isSupermarket() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCellForBucketsToNearestCellCenter(t *testing.T) {
	p := geo.ProjPoint{East: 4321123, North: 3210456}
	c := cellFor(p)

	if c.xCenter != 4321100+50 {
		t.Errorf("xCenter = %d, want %d", c.xCenter, 4321100+50)
	}
	if c.yCenter != 3210400+50 {
		t.Errorf("yCenter = %d, want %d", c.yCenter, 3210400+50)
	}
}

func TestCellForSameCellForNearbyPoints(t *testing.T) {
	a := cellFor(geo.ProjPoint{East: 100, North: 100})
	b := cellFor(geo.ProjPoint{East: 150, North: 180})

	if a != b {
		t.Errorf("points within the same 100m cell should map to the same cell: %v != %v", a, b)
	}
}

func TestWriteCSVFormatsRows(t *testing.T) {
	cells := map[gridCell]float64{
		{xCenter: 50, yCenter: 50}: 3,
	}

	var sb strings.Builder
	if err := writeCSV(&sb, cells); err != nil {
		t.Fatalf("writeCSV: %v", err)
	}

	out := sb.String()
	if !strings.Contains(out, "x_mp_100m,y_mp_100m,weight") {
		t.Errorf("missing CSV header: %q", out)
	}
	if !strings.Contains(out, "50,50,3") {
		t.Errorf("missing expected row: %q", out)
	}
}
