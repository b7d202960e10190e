package httpapi

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"":      LevelOff,
		"off":   LevelOff,
		"error": LevelError,
		"info":  LevelInfo,
		"DEBUG": LevelDebug,
		"weird": LevelInfo, // default
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRequestLogLevel_Overrides(t *testing.T) {
	// query param ?log=debug
	r := httptest.NewRequest("GET", "/x?log=debug", nil)
	if got := requestLogLevel(r); got != LevelDebug {
		t.Fatalf("query override failed: %v", got)
	}
	// shorthand ?log=1
	r = httptest.NewRequest("GET", "/x?log=1", nil)
	if got := requestLogLevel(r); got != LevelDebug {
		t.Fatalf("shorthand query override failed: %v", got)
	}
	// header X-Log-Level
	r = httptest.NewRequest("GET", "/x", nil)
	r.Header.Set("X-Log-Level", "error")
	if got := requestLogLevel(r); got != LevelError {
		t.Fatalf("header override failed: %v", got)
	}
	r = httptest.NewRequest("GET", "/x", nil)
	if got := requestLogLevel(r); got != defaultLogLevel {
		t.Fatalf("default level not used: %v", got)
	}
}

func TestLogAnalyze_StructuredFields(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf))
	defer func() { zlog = nil }()

	r := httptest.NewRequest(http.MethodPost, "/analyze", nil)
	start := time.Now()
	logAnalyzeStart(r, LevelDebug, 12, true)
	logAnalyzeEnd(r, LevelDebug, http.StatusOK, start, "A red dress.", nil)

	out := buf.String()
	for _, want := range []string{`"message":"analyze start"`, `"prompt_len":12`, `"message":"analyze end"`, `"status":200`, `"analysis":"A red dress."`} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %s in %q", want, out)
		}
	}
}

func TestLogAnalyze_ErrorLevelSkipsSuccess(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf))
	defer func() { zlog = nil }()

	r := httptest.NewRequest(http.MethodPost, "/analyze", nil)
	logAnalyzeStart(r, LevelError, 0, false)
	logAnalyzeEnd(r, LevelError, http.StatusOK, time.Now(), "text", nil)
	if buf.Len() != 0 {
		t.Fatalf("expected no output at error level for success, got %q", buf.String())
	}
	logAnalyzeEnd(r, LevelError, http.StatusInternalServerError, time.Now(), "", errors.New("boom"))
	if !strings.Contains(buf.String(), `"error":"boom"`) || strings.Contains(buf.String(), "analysis") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}
