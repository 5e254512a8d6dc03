package osrmclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestProbeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"Ok"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	if err := c.Probe(context.Background()); err != nil {
		t.Fatalf("Probe: %v", err)
	}
}

func TestProbeFailsOnBadCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"NoSegment"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	if err := c.Probe(context.Background()); err == nil {
		t.Fatal("Probe should fail when backend returns a non-Ok code")
	}
}

func TestProbeFailsOnUnreachableBackend(t *testing.T) {
	c := New("http://127.0.0.1:1")
	if err := c.Probe(context.Background()); err == nil {
		t.Fatal("Probe should fail against an unreachable backend")
	}
}

func TestFindRouteSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"code": "Ok",
			"routes": [{
				"distance": 1500.5,
				"legs": [{
					"annotation": {"nodes": [10, 20, 30]}
				}]
			}]
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	nodeIDs, distance, err := c.FindRoute(context.Background(), 52.5, 13.4, 52.6, 13.5)
	if err != nil {
		t.Fatalf("FindRoute: %v", err)
	}
	if distance != 1500.5 {
		t.Errorf("distance = %v, want 1500.5", distance)
	}
	want := []int64{10, 20, 30}
	if len(nodeIDs) != len(want) {
		t.Fatalf("nodeIDs = %v, want %v", nodeIDs, want)
	}
	for i := range want {
		if nodeIDs[i] != want[i] {
			t.Errorf("nodeIDs[%d] = %d, want %d", i, nodeIDs[i], want[i])
		}
	}
}

func TestFindRouteNoRouteFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"NoRoute","routes":[]}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	nodeIDs, _, err := c.FindRoute(context.Background(), 52.5, 13.4, 52.6, 13.5)
	if err != nil {
		t.Fatalf("FindRoute should not error for a not-found route: %v", err)
	}
	if len(nodeIDs) != 0 {
		t.Errorf("nodeIDs = %v, want empty", nodeIDs)
	}
}

func TestFindRouteMultipleLegsConcatenated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"code": "Ok",
			"routes": [{
				"distance": 100,
				"legs": [
					{"annotation": {"nodes": [1, 2]}},
					{"annotation": {"nodes": [2, 3]}}
				]
			}]
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	nodeIDs, _, err := c.FindRoute(context.Background(), 0, 0, 0, 0)
	if err != nil {
		t.Fatalf("FindRoute: %v", err)
	}
	if len(nodeIDs) != 4 {
		t.Fatalf("got %d node ids, want 4 (legs concatenated)", len(nodeIDs))
	}
}
