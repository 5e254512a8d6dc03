// Command previewer serves a sample run's output directory (PNG render,
// GeoJSON traffic overlay, compare CSV/GeoJSON) as static files, alongside a
// small UI for issuing one-shot route queries against the routing engine --
// a quick visual smoke-test of a sample run without wiring up a full map
// client.
package main

import (
	"context"
	"embed"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/b-r-u/nori/pkg/osrmclient"
)

//go:embed static
var staticFiles embed.FS

type latlng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type queryRequest struct {
	Start latlng `json:"start"`
	End   latlng `json:"end"`
}

type queryResponse struct {
	DistanceMeters float64 `json:"distance_meters,omitempty"`
	NodeIDs        []int64 `json:"node_ids,omitempty"`
	Error          string  `json:"error,omitempty"`
}

func main() {
	port := flag.Int("port", 3000, "HTTP port to serve on")
	dir := flag.String("dir", ".", "Sample run output directory to serve")
	routerURL := flag.String("router-url", "http://127.0.0.1:5000", "OSRM-compatible routing engine base URL")
	flag.Parse()

	uiFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		log.Fatal(err)
	}

	client := osrmclient.New(*routerURL)

	mux := http.NewServeMux()
	mux.Handle("GET /_ui/", http.StripPrefix("/_ui/", http.FileServer(http.FS(uiFS))))
	mux.HandleFunc("GET /api/files", handleListFiles(*dir))
	mux.HandleFunc("POST /api/query", handleQuery(client))
	mux.Handle("GET /", http.FileServer(http.Dir(*dir)))

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("Previewer serving %s, routing via %s, on http://localhost:%d/_ui/", *dir, *routerURL, *port)
	log.Fatal(http.ListenAndServe(addr, mux))
}

func handleListFiles(dir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			http.Error(w, fmt.Sprintf("read dir: %v", err), http.StatusInternalServerError)
			return
		}

		var names []string
		for _, e := range entries {
			if !e.IsDir() {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(names)
	}
}

func handleQuery(client *osrmclient.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req queryRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
		defer cancel()

		nodeIDs, distance, err := client.FindRoute(ctx, req.Start.Lat, req.Start.Lng, req.End.Lat, req.End.Lng)

		w.Header().Set("Content-Type", "application/json")
		if err != nil {
			json.NewEncoder(w).Encode(queryResponse{Error: err.Error()})
			return
		}
		if len(nodeIDs) == 0 {
			json.NewEncoder(w).Encode(queryResponse{Error: "no route found"})
			return
		}

		json.NewEncoder(w).Encode(queryResponse{DistanceMeters: distance, NodeIDs: nodeIDs})
	}
}
