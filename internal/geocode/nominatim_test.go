package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestReverse(t *testing.T) {
	var gotQuery, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(`{"display_name": "Austin, Travis County, Texas, United States"}`))
	}))
	defer srv.Close()

	name, err := NewClient(srv.URL, "", time.Second).Reverse(context.Background(), 30.2672, -97.7431)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "Austin, Travis County, Texas, United States" {
		t.Errorf("name = %q", name)
	}
	if gotUA != DefaultUserAgent {
		t.Errorf("User-Agent = %q, want %q", gotUA, DefaultUserAgent)
	}
	if gotQuery != "format=jsonv2&lat=30.2672&lon=-97.7431" {
		t.Errorf("query = %q", gotQuery)
	}
}

func TestReverseOcean(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": "Unable to geocode"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", time.Second).Reverse(context.Background(), 0, -140)
	if !errors.Is(err, ErrNoResult) {
		t.Errorf("err = %v, want ErrNoResult", err)
	}
}

func TestReverseHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", time.Second).Reverse(context.Background(), 1, 2)
	if err == nil {
		t.Fatal("expected error for 429 response")
	}
}
