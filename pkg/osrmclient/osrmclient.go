// Package osrmclient queries an OSRM-compatible routing HTTP backend for
// routes between two points and for backend liveness.
package osrmclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrUpstreamUnavailable is returned when the backend cannot be reached or
// responds with a non-Ok status.
var ErrUpstreamUnavailable = errors.New("osrmclient: upstream unavailable")

// Client queries a single OSRM-compatible backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New returns a Client for the backend at baseURL, e.g. "http://127.0.0.1:5000".
func New(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Probe checks that the backend is reachable and answers routing queries,
// via a /nearest request at the null island (0,0). It succeeds only when the
// backend answers with code "Ok"; any other code, such as "NoSegment", fails
// the probe.
func (c *Client) Probe(ctx context.Context) error {
	url := fmt.Sprintf("%s/nearest/v1/driving/0,0", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrUpstreamUnavailable, err)
	}

	var nearestResp struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(data, &nearestResp); err != nil {
		return fmt.Errorf("%w: decode body: %v", ErrUpstreamUnavailable, err)
	}
	if nearestResp.Code != "Ok" {
		return fmt.Errorf("%w: backend returned code %q", ErrUpstreamUnavailable, nearestResp.Code)
	}

	return nil
}

// FindRoute asks the backend for a route between a and b (lat/lon, WGS-84)
// and returns the OSM node ids along it plus its total distance in meters.
// An empty node id slice (not an error) means the backend found no route.
func (c *Client) FindRoute(ctx context.Context, aLat, aLon, bLat, bLon float64) ([]int64, float64, error) {
	url := fmt.Sprintf("%s/route/v1/driving/%f,%f;%f,%f?annotations=nodes",
		c.baseURL, aLon, aLat, bLon, bLat)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<22))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: read body: %v", ErrUpstreamUnavailable, err)
	}

	var routeResp struct {
		Code   string `json:"code"`
		Routes []struct {
			Distance float64 `json:"distance"`
			Legs     []struct {
				Annotation struct {
					Nodes []int64 `json:"nodes"`
				} `json:"annotation"`
			} `json:"legs"`
		} `json:"routes"`
	}
	if err := json.Unmarshal(data, &routeResp); err != nil {
		return nil, 0, fmt.Errorf("%w: decode body: %v", ErrUpstreamUnavailable, err)
	}

	if routeResp.Code != "Ok" || len(routeResp.Routes) == 0 {
		return nil, 0, nil
	}

	route := routeResp.Routes[0]
	var nodeIDs []int64
	for _, leg := range route.Legs {
		nodeIDs = append(nodeIDs, leg.Annotation.Nodes...)
	}

	return nodeIDs, route.Distance, nil
}
