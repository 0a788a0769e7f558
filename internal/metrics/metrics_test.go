package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNormalizeRoute(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		// Known exact routes.
		{"/healthz", "/healthz"},
		{"/readyz", "/readyz"},
		{"/metrics", "/metrics"},
		{"/epochs", "/epochs"},
		{"/epochs/closest", "/epochs/closest"},
		{"/now", "/now"},
		{"/refresh", "/refresh"},
		{"/stream/closest", "/stream/closest"},

		// Per-epoch routes collapse to one label each.
		{"/epochs/2025-069T12:00:00.000Z", "/epochs/{epoch}"},
		{"/epochs/garbage", "/epochs/{epoch}"},
		{"/epochs/2025-069T12:00:00.000Z/speed", "/epochs/{epoch}/speed"},
		{"/epochs/2025-069T12:00:00.000Z/location", "/epochs/{epoch}/location"},

		// Unknown/bot paths collapse to "other".
		{"/", "other"},
		{"/epochs/", "other"},
		{"/epochs/x/altitude", "other"},
		{"/epochs/x/speed/extra", "other"},
		{"/wp-admin", "other"},
		{"/.env", "other"},
		{"/favicon.ico", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := normalizeRoute(tt.path)
			if got != tt.want {
				t.Errorf("normalizeRoute(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

// TestMetricsCardinality verifies that 100 unique epochs produce exactly
// 1 distinct path label, not 100.
func TestMetricsCardinality(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		label := normalizeRoute(fmt.Sprintf("/epochs/2025-%03dT12:00:00.000Z/speed", i+1))
		seen[label] = true
	}
	if len(seen) != 1 {
		t.Errorf("expected 1 unique label for parameterized paths, got %d: %v", len(seen), seen)
	}
}

// TestMiddlewareCapturesStatus verifies the wrapped writer records the status
// and still exposes Flush to streaming handlers.
func TestMiddlewareCapturesStatus(t *testing.T) {
	var flushable bool
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, flushable = w.(http.Flusher)
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/now", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
	if !flushable {
		t.Error("wrapped writer does not implement http.Flusher")
	}
}

func TestObserveFeedFetch(t *testing.T) {
	ok := feedFetchesTotal.WithLabelValues("test", "success")
	failed := feedFetchesTotal.WithLabelValues("test", "error")
	okBefore, failedBefore := testutil.ToFloat64(ok), testutil.ToFloat64(failed)

	ObserveFeedFetch("test", nil, 200*time.Millisecond)
	ObserveFeedFetch("test", errors.New("timeout"), time.Second)
	ObserveFeedFetch("test", errors.New("timeout"), time.Second)

	if got := testutil.ToFloat64(ok) - okBefore; got != 1 {
		t.Errorf("success delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(failed) - failedBefore; got != 2 {
		t.Errorf("error delta = %v, want 2", got)
	}
}

func TestSetDataset(t *testing.T) {
	SetDataset(5400)
	if got := testutil.ToFloat64(datasetStateVectors); got != 5400 {
		t.Errorf("dataset gauge = %v, want 5400", got)
	}
}
