// Command nori drives the Monte-Carlo traffic sampling pipeline: draw OD
// pairs, query an external routing engine for each, tally edge traversals
// onto the road network, and optionally render, export, or compare the
// result against empirical reference data.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/b-r-u/nori/pkg/compare"
	"github.com/b-r-u/nori/pkg/density"
	"github.com/b-r-u/nori/pkg/geo"
	"github.com/b-r-u/nori/pkg/network"
	"github.com/b-r-u/nori/pkg/osrmclient"
	"github.com/b-r-u/nori/pkg/poi"
	"github.com/b-r-u/nori/pkg/polyline"
	"github.com/b-r-u/nori/pkg/routecollection"
	"github.com/b-r-u/nori/pkg/sampling"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "sample":
		err = runSample(os.Args[2:])
	case "routes":
		err = runRoutes(os.Args[2:])
	case "filter-poi":
		err = runFilterPOI(os.Args[2:])
	default:
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		log.Fatal(err)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: nori <sample|routes|filter-poi> [flags]")
}

func runSample(args []string) error {
	fs := flag.NewFlagSet("sample", flag.ExitOnError)
	osrmFile := fs.String("osrm", "", "Path to the preprocessed graph binary (required)")
	routesOut := fs.String("routes", "", "Output path for the route collection file (required)")
	n := fs.Int("n", 0, "Number of samples (required)")
	routerURL := fs.String("router-url", "http://127.0.0.1:5000", "Base URL of the OSRM-compatible routing engine")
	geojsonOut := fs.String("geojson", "", "Optional output GeoJSON file for the traffic-tallied network")
	pngOut := fs.String("png", "", "Optional output PNG file rendering the traffic-tallied network")
	polylinesOut := fs.String("polylines", "", "Optional output GeoJSON file for the network simplified into maximal polylines")
	compareFile := fs.String("compare", "", "Optional reference GeoJSON file to compare against")
	compareProperty := fs.String("compare-property", "", "Numeric property name on the reference features to compare")
	uniform2d := fs.Bool("uniform2d", false, "Sample source/destination uniformly over the bounding box")
	weightedCSV := fs.String("weighted", "", "CSV file of weighted points to sample from")
	complex := fs.Bool("complex", false, "Sample from an equal mixture of --population and --pois distributions")
	populationCSV := fs.String("population", "", "CSV file of population-weighted points, for --complex")
	poisCSV := fs.String("pois", "", "CSV file of POI-weighted points, for --complex")
	maxDist := fs.Float64("max-dist", 0, "Maximum distance in meters between source and destination")
	swLat := fs.Float64("sw-lat", 0, "Bounding box south-west latitude")
	swLon := fs.Float64("sw-lon", 0, "Bounding box south-west longitude")
	neLat := fs.Float64("ne-lat", 0, "Bounding box north-east latitude")
	neLon := fs.Float64("ne-lon", 0, "Bounding box north-east longitude")
	seed := fs.Uint64("seed", 0, "PRNG seed (0 = non-reproducible, OS entropy)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *osrmFile == "" || *routesOut == "" || *n <= 0 {
		return fmt.Errorf("sample: --osrm, --routes and -n are required")
	}

	bounds := geo.BBox{
		SW: geo.GeoPoint{Lat: *swLat, Lon: *swLon},
		NE: geo.GeoPoint{Lat: *neLat, Lon: *neLon},
	}

	sampler, err := buildSampler(*uniform2d, *weightedCSV, *complex, *populationCSV, *poisCSV, *maxDist, bounds, *seed)
	if err != nil {
		return err
	}

	client := osrmclient.New(*routerURL)
	ctx := context.Background()
	if err := client.Probe(ctx); err != nil {
		return fmt.Errorf("sample: routing engine unreachable: %w", err)
	}

	log.Printf("Loading network from %s...", *osrmFile)
	net, err := network.Load(*osrmFile)
	if err != nil {
		return fmt.Errorf("sample: load network: %w", err)
	}

	writer, err := routecollection.New(*routesOut, *osrmFile, "sample")
	if err != nil {
		return fmt.Errorf("sample: create route collection: %w", err)
	}

	for i := 0; i < *n; i++ {
		// A source with no destination in reach is discarded: both points
		// are drawn again until a pair is obtained.
		a := sampler.GenSource()
		b, ok := sampler.GenDestination(a)
		for !ok {
			a = sampler.GenSource()
			b, ok = sampler.GenDestination(a)
		}

		log.Printf("%.2f%%, %d: %v %v", 100*float64(i+1)/float64(*n), i+1, a, b)

		nodeIDs, distance, err := client.FindRoute(ctx, a.Lat, a.Lon, b.Lat, b.Lon)
		if err != nil {
			return fmt.Errorf("sample: find route %d: %w", i, err)
		}

		route := routecollection.Route{
			StartLatE6: toE6(a.Lat),
			StartLonE6: toE6(a.Lon),
			EndLatE6:   toE6(b.Lat),
			EndLonE6:   toE6(b.Lon),
			NodeIDs:    nodeIDs,
			Distance:   distance,
		}
		if err := writer.WriteRoute(route); err != nil {
			return fmt.Errorf("sample: write route %d: %w", i, err)
		}

		net.BumpEdges(nodeIDs)
	}

	if err := writer.Finish(); err != nil {
		return fmt.Errorf("sample: finish route collection: %w", err)
	}

	if *geojsonOut != "" {
		if err := net.WriteGeoJSON(*geojsonOut); err != nil {
			return fmt.Errorf("sample: write geojson: %w", err)
		}
	}

	if *pngOut != "" {
		renderBounds := bounds
		if renderBounds.IsZero() {
			renderBounds = net.Bounds()
		}
		if err := net.WritePNG(*pngOut, renderBounds, 2048, 2048); err != nil {
			return fmt.Errorf("sample: write png: %w", err)
		}
	}

	if *polylinesOut != "" {
		collection := polyline.Build(net)
		if err := collection.WriteGeoJSON(*polylinesOut); err != nil {
			return fmt.Errorf("sample: write polylines: %w", err)
		}
	}

	if *compareFile != "" {
		if *compareProperty == "" {
			return fmt.Errorf("sample: --compare requires --compare-property")
		}
		if err := runCompare(net, *compareFile, *compareProperty); err != nil {
			return err
		}
	}

	return nil
}

func runCompare(net *network.Network, referencePath, property string) error {
	data, err := os.ReadFile(referencePath)
	if err != nil {
		return fmt.Errorf("compare: read %s: %w", referencePath, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return fmt.Errorf("%w: %v", compare.ErrInvalidInput, err)
	}

	result, err := compare.Compare(net, fc, property)
	if err != nil {
		return fmt.Errorf("compare: %w", err)
	}

	if err := result.WriteGeoJSON(referencePath + ".compared.geojson"); err != nil {
		return err
	}
	csvFile, err := os.Create(referencePath + ".compared.csv")
	if err != nil {
		return fmt.Errorf("compare: create csv: %w", err)
	}
	defer csvFile.Close()
	return result.WriteCSV(csvFile)
}

func buildSampler(uniform2d bool, weightedCSV string, complexSampler bool, populationCSV, poisCSV string, maxDist float64, bounds geo.BBox, seed uint64) (sampling.Sampler, error) {
	rng := sampling.NewRand(seed)

	switch {
	case uniform2d:
		if bounds.IsZero() || maxDist <= 0 {
			return nil, fmt.Errorf("sample: --uniform2d requires --sw-lat/--sw-lon/--ne-lat/--ne-lon and --max-dist")
		}
		return sampling.NewUniform2D(rng, bounds, maxDist), nil

	case weightedCSV != "":
		if maxDist <= 0 {
			return nil, fmt.Errorf("sample: --weighted requires --max-dist")
		}
		f, err := os.Open(weightedCSV)
		if err != nil {
			return nil, fmt.Errorf("sample: open %s: %w", weightedCSV, err)
		}
		defer f.Close()
		dens, err := density.FromCSV(f, bounds, rng.Uint64())
		if err != nil {
			return nil, fmt.Errorf("sample: load weighted distribution: %w", err)
		}
		return sampling.NewWeighted(rng, dens, maxDist), nil

	case complexSampler:
		if populationCSV == "" || poisCSV == "" || maxDist <= 0 {
			return nil, fmt.Errorf("sample: --complex requires --population, --pois and --max-dist")
		}
		popF, err := os.Open(populationCSV)
		if err != nil {
			return nil, fmt.Errorf("sample: open %s: %w", populationCSV, err)
		}
		defer popF.Close()
		popDensity, err := density.FromCSV(popF, bounds, rng.Uint64())
		if err != nil {
			return nil, fmt.Errorf("sample: load population distribution: %w", err)
		}

		poiF, err := os.Open(poisCSV)
		if err != nil {
			return nil, fmt.Errorf("sample: open %s: %w", poisCSV, err)
		}
		defer poiF.Close()
		poiDensity, err := density.FromCSV(poiF, bounds, rng.Uint64())
		if err != nil {
			return nil, fmt.Errorf("sample: load POI distribution: %w", err)
		}

		return sampling.NewComplex(rng, popDensity, poiDensity, maxDist), nil

	default:
		return nil, fmt.Errorf("sample: exactly one of --uniform2d, --weighted, --complex is required")
	}
}

func toE6(v float64) int32 {
	return int32(v * 1e6)
}

func runRoutes(args []string) error {
	fs := flag.NewFlagSet("routes", flag.ExitOnError)
	input := fs.String("input", "", "Path to a .routes file (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *input == "" {
		return fmt.Errorf("routes: --input is required")
	}

	reader, err := routecollection.Open(*input)
	if err != nil {
		return fmt.Errorf("routes: open %s: %w", *input, err)
	}
	defer reader.Close()

	fmt.Printf("%+v\n", reader.Header)

	i := 0
	for {
		route, err := reader.Next()
		if err != nil {
			break
		}
		i++
		fmt.Printf("Route #%d: %d nodes\n", i, len(route.NodeIDs))
	}

	return nil
}

func runFilterPOI(args []string) error {
	fs := flag.NewFlagSet("filter-poi", flag.ExitOnError)
	input := fs.String("input", "", "Path to a .osm.pbf file (required)")
	output := fs.String("output", "", "Output CSV path (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *input == "" || *output == "" {
		return fmt.Errorf("filter-poi: --input and --output are required")
	}

	start := time.Now()

	f, err := os.Open(*input)
	if err != nil {
		return fmt.Errorf("filter-poi: open %s: %w", *input, err)
	}
	defer f.Close()

	out, err := os.Create(*output)
	if err != nil {
		return fmt.Errorf("filter-poi: create %s: %w", *output, err)
	}
	defer out.Close()

	if err := poi.ExtractSupermarkets(context.Background(), f, out); err != nil {
		return fmt.Errorf("filter-poi: %w", err)
	}

	log.Printf("Done in %s. Output: %s", time.Since(start).Round(time.Millisecond), *output)
	return nil
}
