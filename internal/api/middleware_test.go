package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/scrubslab/scrubs/internal/config"
)

func TestOriginAllowed(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"empty list allows all", nil, "http://localhost:1420", true},
		{"wildcard allows all", []string{"*"}, "http://anything.example", true},
		{"listed origin", []string{"http://localhost:1420"}, "http://localhost:1420", true},
		{"match is case insensitive", []string{"http://LocalHost:1420"}, "http://localhost:1420", true},
		{"unlisted origin", []string{"http://localhost:1420"}, "http://evil.example", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := originAllowed(tt.allowed, tt.origin); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	cfg := config.ServerConfig{CORSAllowedOrigins: []string{"http://localhost:1420"}}
	h := corsHeaders(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Expected preflight answered before the handler")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/regions", nil)
	req.Header.Set("Origin", "http://localhost:1420")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:1420" {
		t.Errorf("Expected origin reflected, got %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST, OPTIONS" {
		t.Errorf("Expected GET, POST, OPTIONS advertised, got %q", got)
	}
}

func TestCORSDisallowedOrigin(t *testing.T) {
	cfg := config.ServerConfig{CORSAllowedOrigins: []string{"http://localhost:1420"}}
	called := false
	h := corsHeaders(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !called {
		t.Error("Expected request passed through to the handler")
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Expected no allow-origin header for unlisted origin, got %q", got)
	}
}
