package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware(t *testing.T) {
	Init()
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Route("/v1/reports", func(r chi.Router) {
		r.Post("/", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusCreated)
		})
		r.Get("/{report_id}", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	})

	ts := httptest.NewServer(r)
	defer ts.Close()

	do := func(method, path string, want int) {
		t.Helper()
		req, err := http.NewRequest(method, ts.URL+path, nil)
		if err != nil {
			t.Fatal(err)
		}
		resp, err := ts.Client().Do(req)
		if err != nil {
			t.Fatal(err)
		}
		if err := resp.Body.Close(); err != nil {
			t.Log(err)
		}
		if resp.StatusCode != want {
			t.Fatalf("%s %s returned %d, want %d", method, path, resp.StatusCode, want)
		}
	}

	do(http.MethodPost, "/v1/reports", http.StatusCreated)
	do(http.MethodGet, "/v1/reports/42", http.StatusNotFound)
	do(http.MethodGet, "/v1/reports/99", http.StatusNotFound)

	// Check the metrics.
	if val := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "201")); val != 1 {
		t.Errorf("Expected httpRequestsTotal for POST 201 to be 1, got %f", val)
	}
	if val := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "404")); val != 2 {
		t.Errorf("Expected httpRequestsTotal for GET 404 to be 2, got %f", val)
	}
	// Both report lookups share the /v1/reports/{report_id} pattern, so the
	// duration histogram holds one series per route, not per URL.
	if val := testutil.CollectAndCount(httpRequestDurationSeconds); val != 2 {
		t.Errorf("Expected one duration series per route pattern, got %d", val)
	}
}

func TestMiddlewareLabelsUnroutedRequests(t *testing.T) {
	Init()
	r := chi.NewRouter()
	r.Use(Middleware)
	// chi only assembles the middleware chain once a route is registered; a
	// bare mux would serve the 404 without ever running Middleware.
	r.Get("/present", func(w http.ResponseWriter, _ *http.Request) {})

	ts := httptest.NewServer(r)
	defer ts.Close()

	before := testutil.CollectAndCount(httpRequestDurationSeconds)
	resp, err := http.Get(ts.URL + "/nowhere")
	if err != nil {
		t.Fatal(err)
	}
	if err := resp.Body.Close(); err != nil {
		t.Log(err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for an unrouted path, got %d", resp.StatusCode)
	}
	if after := testutil.CollectAndCount(httpRequestDurationSeconds); after != before+1 {
		t.Errorf("Expected a new series for the unknown route, had %d now %d", before, after)
	}
}
