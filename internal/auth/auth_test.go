package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddleware(t *testing.T) {
	h := Middleware(Config{Enabled: true, Token: "s3cret"})(okHandler())

	tests := []struct {
		name   string
		method string
		path   string
		header string
		want   int
	}{
		{"health probe", "GET", "/healthz", "", http.StatusOK},
		{"metrics", "GET", "/metrics", "", http.StatusOK},
		{"epoch list", "GET", "/epochs", "", http.StatusOK},
		{"epoch lookup", "GET", "/epochs/2025-069T12:00:00.000Z/speed", "", http.StatusOK},
		{"now", "GET", "/now", "", http.StatusOK},
		{"stream", "GET", "/stream/closest", "", http.StatusOK},
		{"head", "HEAD", "/epochs", "", http.StatusOK},
		{"unknown read path", "GET", "/admin", "", http.StatusOK},
		{"refresh without token", "POST", "/refresh", "", http.StatusUnauthorized},
		{"refresh wrong token", "POST", "/refresh", "Bearer nope", http.StatusUnauthorized},
		{"refresh missing scheme", "POST", "/refresh", "s3cret", http.StatusUnauthorized},
		{"refresh basic scheme", "POST", "/refresh", "Basic s3cret", http.StatusUnauthorized},
		{"refresh empty bearer", "POST", "/refresh", "Bearer ", http.StatusUnauthorized},
		{"refresh valid token", "POST", "/refresh", "Bearer s3cret", http.StatusOK},
		{"lowercase scheme", "POST", "/refresh", "bearer s3cret", http.StatusOK},
		{"delete needs token", "DELETE", "/epochs", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if tt.want == http.StatusUnauthorized && !strings.HasPrefix(w.Header().Get("WWW-Authenticate"), "Bearer ") {
				t.Errorf("WWW-Authenticate = %q", w.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

// TestMiddlewareChallenge verifies a rejected token is told apart from a missing one.
func TestMiddlewareChallenge(t *testing.T) {
	h := Middleware(Config{Enabled: true, Token: "s3cret"})(okHandler())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("POST", "/refresh", nil))
	if got := w.Header().Get("WWW-Authenticate"); got != `Bearer realm="isstracker"` {
		t.Errorf("missing token challenge = %q", got)
	}
	if !strings.Contains(w.Body.String(), `"error":"unauthorized"`) {
		t.Errorf("body = %q", w.Body.String())
	}

	req := httptest.NewRequest("POST", "/refresh", nil)
	req.Header.Set("Authorization", "Bearer nope")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get("WWW-Authenticate"); !strings.Contains(got, `error="invalid_token"`) {
		t.Errorf("invalid token challenge = %q", got)
	}
}

// authFailures reads the registered auth failure counter for reason.
func authFailures(t *testing.T, reason string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "isstracker_auth_failures_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "reason" && lp.GetValue() == reason {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestMiddlewareCountsFailures(t *testing.T) {
	h := Middleware(Config{Enabled: true, Token: "s3cret"})(okHandler())
	before := authFailures(t, "invalid")

	req := httptest.NewRequest("POST", "/refresh", nil)
	req.Header.Set("Authorization", "Bearer nope")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got := authFailures(t, "invalid") - before; got != 1 {
		t.Errorf("invalid token failures = %v, want 1", got)
	}
}

func TestMiddlewareDisabled(t *testing.T) {
	h := Middleware(Config{})(okHandler())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("POST", "/refresh", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 with auth disabled", w.Code)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"BEARER abc", "abc", true},
		{"Bearer  abc ", "abc", true},
		{"Bearer", "", false},
		{"Bearer ", "", false},
		{"Token abc", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := bearerToken(tt.header)
		if got != tt.want || ok != tt.ok {
			t.Errorf("bearerToken(%q) = %q, %v, want %q, %v", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}
