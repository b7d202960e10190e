package httpapi

import (
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// zlog is an optional structured logger. If unset, falls back to log.Printf.
var zlog *zerolog.Logger

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = &l }

// LogLevel controls per-request logging behavior.
type LogLevel int

const (
	LevelOff LogLevel = iota
	LevelError
	LevelInfo
	LevelDebug
)

func parseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "":
		return LevelOff
	case "error":
		return LevelError
	case "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// defaultLogLevel is read once; analysis requests are logged at info unless overridden.
var defaultLogLevel = func() LogLevel {
	if v, ok := os.LookupEnv("FASTVLM_HTTP_LOG_LEVEL"); ok {
		return parseLevel(v)
	}
	return LevelInfo
}()

func requestLogLevel(r *http.Request) LogLevel {
	// Per-request overrides
	if v := r.URL.Query().Get("log"); v != "" {
		if v == "1" {
			return LevelDebug
		}
		return parseLevel(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseLevel(v)
	}
	return defaultLogLevel
}

// logAnalyzeStart records the beginning of an analysis request.
func logAnalyzeStart(r *http.Request, lvl LogLevel, promptLen int, translate bool) {
	if lvl < LevelInfo {
		return
	}
	if zlog == nil {
		log.Printf("analyze start path=%s prompt_len=%d translate=%t", r.URL.Path, promptLen, translate)
		return
	}
	z := zlog.Info().Str("path", r.URL.Path).Int("prompt_len", promptLen).Bool("translate", translate)
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		z = z.Str("request_id", rid)
	}
	z.Msg("analyze start")
}

// logAnalyzeEnd records the outcome. Failures are logged at LevelError and
// above; the analysis text itself only at LevelDebug.
func logAnalyzeEnd(r *http.Request, lvl LogLevel, status int, start time.Time, analysis string, err error) {
	if lvl == LevelOff || (err == nil && lvl < LevelInfo) {
		return
	}
	dur := time.Since(start)
	if zlog == nil {
		if err != nil {
			log.Printf("analyze end status=%d dur=%s err=%v", status, dur, err)
			return
		}
		log.Printf("analyze end status=%d dur=%s", status, dur)
		return
	}
	var z *zerolog.Event
	if err != nil {
		z = zlog.Error().Err(err)
	} else {
		z = zlog.Info()
	}
	z = z.Int("status", status).Dur("dur", dur)
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		z = z.Str("request_id", rid)
	}
	if lvl >= LevelDebug && analysis != "" {
		z = z.Str("analysis", analysis)
	}
	z.Msg("analyze end")
}
