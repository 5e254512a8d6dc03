package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/b-r-u/nori/pkg/routing"
)

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	router routing.Router
	stats  StatsResponse
}

// NewHandlers creates handlers with the given router.
func NewHandlers(router routing.Router, stats StatsResponse) *Handlers {
	return &Handlers{
		router: router,
		stats:  stats,
	}
}

// HandleRoute handles GET /route/v1/driving/{lon1},{lat1};{lon2},{lat2},
// mirroring OSRM's route service: a semicolon-separated pair of lon,lat
// coordinates, with an optional ?annotations=nodes to include the OSM node
// id sequence.
func (h *Handlers) HandleRoute(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseCoordPair(r.PathValue("coords"))
	if err != nil {
		writeRouteError(w, http.StatusBadRequest, "InvalidInput")
		return
	}

	withNodes := r.URL.Query().Get("annotations") == "nodes"

	result, err := h.router.Route(r.Context(), start, end)
	if err != nil {
		if errors.Is(err, routing.ErrPointTooFar) {
			writeRouteError(w, http.StatusOK, "NoSegment")
			return
		}
		if errors.Is(err, routing.ErrNoRoute) {
			writeRouteError(w, http.StatusOK, "NoRoute")
			return
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			writeRouteError(w, http.StatusServiceUnavailable, "RequestTimeout")
			return
		}
		writeRouteError(w, http.StatusInternalServerError, "InternalError")
		return
	}

	leg := legJSON{Distance: result.TotalDistanceMeters}
	if withNodes {
		leg.Annotation = routeAnnotation{Nodes: result.NodeIDs}
	}

	resp := RouteResponse{
		Code: "Ok",
		Routes: []routeJSON{
			{
				Distance: result.TotalDistanceMeters,
				Legs:     []legJSON{leg},
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// HandleNearest handles GET /nearest/v1/driving/{lon},{lat}, mirroring
// OSRM's nearest service.
func (h *Handlers) HandleNearest(w http.ResponseWriter, r *http.Request) {
	point, err := parseCoord(r.PathValue("coord"))
	if err != nil {
		writeNearestError(w, http.StatusBadRequest, "InvalidInput")
		return
	}

	result, err := h.router.Nearest(r.Context(), point)
	if err != nil {
		if errors.Is(err, routing.ErrPointTooFar) {
			writeNearestError(w, http.StatusOK, "NoSegment")
			return
		}
		writeNearestError(w, http.StatusInternalServerError, "InternalError")
		return
	}

	resp := NearestResponse{
		Code: "Ok",
		Waypoints: []waypointJSON{
			{
				Location: [2]float64{result.Location.Lng, result.Location.Lat},
				Distance: result.DistMeters,
				Nodes:    []int64{result.OsmID},
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// HandleHealth handles GET /api/v1/health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})
}

// HandleStats handles GET /api/v1/stats.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.stats)
}

// parseCoordPair parses "lon1,lat1;lon2,lat2" into start/end LatLngs.
func parseCoordPair(s string) (start, end routing.LatLng, err error) {
	parts := strings.Split(s, ";")
	if len(parts) != 2 {
		return start, end, fmt.Errorf("expected exactly two coordinates, got %d", len(parts))
	}
	start, err = parseCoord(parts[0])
	if err != nil {
		return start, end, err
	}
	end, err = parseCoord(parts[1])
	if err != nil {
		return start, end, err
	}
	return start, end, nil
}

// parseCoord parses "lon,lat" into a LatLng, validating both are finite and
// within range.
func parseCoord(s string) (routing.LatLng, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return routing.LatLng{}, fmt.Errorf("expected lon,lat, got %q", s)
	}

	lon, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return routing.LatLng{}, fmt.Errorf("invalid longitude: %w", err)
	}
	lat, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return routing.LatLng{}, fmt.Errorf("invalid latitude: %w", err)
	}

	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return routing.LatLng{}, errors.New("coordinates must be finite numbers")
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return routing.LatLng{}, errors.New("coordinates out of range")
	}

	return routing.LatLng{Lat: lat, Lng: lon}, nil
}

func writeRouteError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(RouteResponse{Code: code})
}

func writeNearestError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(NearestResponse{Code: code})
}
