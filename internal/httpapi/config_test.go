package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSetMaxBodyBytes_DefaultWhenNonPositive(t *testing.T) {
	SetMaxBodyBytes(-1)
	if maxBodyBytes != defaultMaxBodyBytes {
		t.Fatalf("expected default, got %d", maxBodyBytes)
	}
	SetMaxBodyBytes(1234)
	if maxBodyBytes != 1234 {
		t.Fatalf("expected 1234, got %d", maxBodyBytes)
	}
	SetMaxBodyBytes(0)
	if maxBodyBytes != defaultMaxBodyBytes {
		t.Fatalf("expected default on zero, got %d", maxBodyBytes)
	}
}

func TestSetAnalyzeTimeout_NormalizesNegativeToZero(t *testing.T) {
	defer SetAnalyzeTimeout(0)
	SetAnalyzeTimeout(-time.Second)
	if analyzeTimeout != 0 {
		t.Fatalf("expected 0, got %s", analyzeTimeout)
	}
	SetAnalyzeTimeout(3 * time.Second)
	if analyzeTimeout != 3*time.Second {
		t.Fatalf("expected 3s, got %s", analyzeTimeout)
	}
}

func TestCORS_OptIn(t *testing.T) {
	preflight := func(h http.Handler) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/analyze", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	SetCORSOptions(false, nil, nil, nil)
	if got := preflight(NewMux(&mockService{})).Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("CORS disabled but got allow-origin %q", got)
	}

	SetCORSOptions(true, []string{"http://localhost:3000"}, []string{"GET", "POST"}, []string{"Content-Type"})
	defer SetCORSOptions(false, nil, nil, nil)
	if got := preflight(NewMux(&mockService{})).Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("allow-origin=%q", got)
	}
}
