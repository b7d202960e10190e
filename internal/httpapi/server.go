package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fastvlmd/internal/engine"
	"fastvlmd/internal/manager"
	"fastvlmd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Ready() bool
	Health() types.HealthResponse
	Analyze(ctx context.Context, req types.AnalyzeRequest) (types.AnalyzeResponse, error)
	ModelInfo(ctx context.Context) (types.ModelResponse, error)
	GPU(ctx context.Context) (types.GPUResponse, error)
	SystemLoad(ctx context.Context) (types.LoadResponse, error)
}

// loadErrorResponse is the /load failure body.
type loadErrorResponse struct {
	Error     string  `json:"error"`
	Timestamp float64 `json:"timestamp"`
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			MaxAge:         300,
		}))
	}
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/health", handleHealth(svc))
	r.Post("/analyze", handleAnalyze(svc))
	r.Get("/load", handleLoad(svc))
	r.Get("/gpu", handleGPU(svc))
	r.Get("/model", handleModel(svc))

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("loading"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

// handleHealth godoc
//
//	@Summary	Liveness and model state
//	@Tags		status
//	@Produce	json
//	@Success	200	{object}	types.HealthResponse
//	@Router		/health [get]
func handleHealth(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Health())
	}
}

// handleAnalyze godoc
//
//	@Summary	Describe the clothing in an image
//	@Tags		analysis
//	@Accept		json
//	@Produce	json
//	@Param		request	body		types.AnalyzeRequest	true	"Base64 image and optional prompt"
//	@Success	200		{object}	types.AnalyzeResponse
//	@Failure	400		{object}	types.AnalyzeResponse
//	@Failure	429		{object}	types.AnalyzeResponse
//	@Failure	500		{object}	types.AnalyzeResponse
//	@Router		/analyze [post]
func handleAnalyze(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lvl := requestLogLevel(r)

		if !svc.Ready() {
			writeAnalyzeError(w, http.StatusInternalServerError, manager.ErrModelNotLoaded.Error())
			observeAnalysis(outcomeNotLoaded, "", start)
			logAnalyzeEnd(r, lvl, http.StatusInternalServerError, start, "", manager.ErrModelNotLoaded)
			return
		}
		if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			writeAnalyzeError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			observeAnalysis(outcomeBadRequest, "", start)
			return
		}

		// Limit body size (configurable, default 32MiB)
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req types.AnalyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			status, msg := http.StatusBadRequest, "invalid JSON body"
			var tooLarge *http.MaxBytesError
			switch {
			case errors.Is(err, io.EOF):
				msg = manager.ErrNoImage.Error()
			case errors.As(err, &tooLarge):
				status, msg = http.StatusRequestEntityTooLarge, "request body too large"
			}
			writeAnalyzeError(w, status, msg)
			observeAnalysis(outcomeBadRequest, "", start)
			logAnalyzeEnd(r, lvl, status, start, "", err)
			return
		}
		if strings.TrimSpace(req.ImageBase64) == "" {
			writeAnalyzeError(w, http.StatusBadRequest, manager.ErrNoImage.Error())
			observeAnalysis(outcomeBadRequest, "", start)
			logAnalyzeEnd(r, lvl, http.StatusBadRequest, start, "", manager.ErrNoImage)
			return
		}
		logAnalyzeStart(r, lvl, len(req.Prompt), req.Translate)

		ctx, cancel := analysisContext(r)
		defer cancel()

		resp, err := svc.Analyze(ctx, req)
		if err != nil {
			// Client went away: nothing left to answer.
			if r.Context().Err() != nil {
				observeAnalysis(outcomeError, "", start)
				logAnalyzeEnd(r, lvl, 499, start, "", err)
				return
			}
			status, outcome := analyzeStatus(err)
			if outcome == outcomeBusy {
				IncrementBackpressure(manager.BusyReason(err))
			}
			writeAnalyzeError(w, status, err.Error())
			observeAnalysis(outcome, "", start)
			logAnalyzeEnd(r, lvl, status, start, "", err)
			return
		}

		writeJSON(w, http.StatusOK, resp)
		garment := ""
		if resp.Garment != nil {
			garment = resp.Garment.ClassName
		}
		observeAnalysis(outcomeOK, garment, start)
		logAnalyzeEnd(r, lvl, http.StatusOK, start, resp.Analysis, nil)
	}
}

// handleLoad godoc
//
//	@Summary	Host CPU and memory load
//	@Tags		status
//	@Produce	json
//	@Success	200	{object}	types.LoadResponse
//	@Router		/load [get]
func handleLoad(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := svc.SystemLoad(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, loadErrorResponse{
				Error:     err.Error(),
				Timestamp: float64(time.Now().UnixNano()) / 1e9,
			})
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// handleGPU godoc
//
//	@Summary	GPU availability and memory
//	@Tags		status
//	@Produce	json
//	@Success	200	{object}	types.GPUResponse
//	@Failure	500	{object}	types.GPUResponse
//	@Router		/gpu [get]
func handleGPU(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := svc.GPU(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, types.GPUResponse{
				GPUAvailable: false,
				Error:        err.Error(),
				Device:       engine.DeviceCPU,
			})
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// handleModel godoc
//
//	@Summary	Loaded model details
//	@Tags		status
//	@Produce	json
//	@Success	200	{object}	types.ModelResponse
//	@Failure	500	{object}	types.ModelResponse
//	@Router		/model [get]
func handleModel(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := svc.ModelInfo(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, types.ModelResponse{Loaded: false, Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
