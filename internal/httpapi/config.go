package httpapi

import "time"

// defaultMaxBodyBytes fits a base64-encoded photo of a few megapixels.
const defaultMaxBodyBytes int64 = 32 << 20

// maxBodyBytes controls the maximum allowed request body size for /analyze.
var maxBodyBytes = defaultMaxBodyBytes

// SetMaxBodyBytes allows configuring the maximum request body size.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
		return
	}
	maxBodyBytes = n
}

// analyzeTimeout bounds a single /analyze request, including the wait for the
// generation slot. Zero means no additional timeout beyond the client's.
var analyzeTimeout time.Duration

// SetAnalyzeTimeout sets the per-request analysis timeout (0 disables).
func SetAnalyzeTimeout(d time.Duration) {
	if d < 0 {
		d = 0
	}
	analyzeTimeout = d
}

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}
