package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"fastvlmd/internal/manager"
	"fastvlmd/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.ErrorResponse{Error: msg, Code: status})
}

// writeAnalyzeError keeps /analyze failures in the AnalyzeResponse shape.
func writeAnalyzeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.AnalyzeResponse{Success: false, Error: msg})
}

// analyzeStatus maps an Analyze error to its HTTP status and metrics outcome.
func analyzeStatus(err error) (int, string) {
	switch {
	case manager.IsModelNotLoaded(err):
		return http.StatusInternalServerError, outcomeNotLoaded
	case errors.Is(err, manager.ErrNoImage), manager.IsInvalidImage(err):
		return http.StatusBadRequest, outcomeBadRequest
	case manager.IsTooBusy(err):
		return http.StatusTooManyRequests, outcomeBusy
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, outcomeError
	}
	var he HTTPError
	if errors.As(err, &he) {
		return he.StatusCode(), outcomeError
	}
	return http.StatusInternalServerError, outcomeError
}
