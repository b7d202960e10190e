package manager

import (
	"errors"
	"net/http"
)

// modelNotLoadedError is returned while the model is loading or after a failed load.
type modelNotLoadedError struct{}

func (modelNotLoadedError) Error() string { return "Model not loaded" }

// ErrModelNotLoaded is returned by Analyze before the model handle is published.
var ErrModelNotLoaded error = modelNotLoadedError{}

// IsModelNotLoaded reports whether err indicates a missing model (HTTP 500).
func IsModelNotLoaded(err error) bool {
	var e modelNotLoadedError
	return errors.As(err, &e)
}

// invalidImageError wraps base64 or raster decoding failures.
type invalidImageError struct{ err error }

func (e invalidImageError) Error() string { return "Invalid image data: " + e.err.Error() }

func (e invalidImageError) Unwrap() error { return e.err }

// ErrInvalidImage wraps a decoding failure as a client error.
func ErrInvalidImage(err error) error { return invalidImageError{err: err} }

// IsInvalidImage reports whether err is a client-side image problem (HTTP 400).
func IsInvalidImage(err error) bool {
	var e invalidImageError
	return errors.As(err, &e)
}

// tooBusyError signals queue timeout/overflow for 429 mapping.
type tooBusyError struct{ reason string }

func (e tooBusyError) Error() string { return "too busy: " + e.reason }

// ErrTooBusy returns a backpressure error carrying reason.
func ErrTooBusy(reason string) error { return tooBusyError{reason: reason} }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	var e tooBusyError
	return errors.As(err, &e)
}

// BusyReason returns the backpressure reason ("queue_full", "wait_timeout") or "".
func BusyReason(err error) string {
	var e tooBusyError
	if errors.As(err, &e) {
		return e.reason
	}
	return ""
}

// shuttingDownError rejects work once Close has started.
type shuttingDownError struct{}

func (shuttingDownError) Error() string { return "server is shutting down" }

func (shuttingDownError) StatusCode() int { return http.StatusServiceUnavailable }

// ErrShuttingDown is returned by Analyze once Close has started.
var ErrShuttingDown error = shuttingDownError{}
