package config

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// ParseLevel maps upper-case level names (DEBUG, INFO, WARNING, ERROR,
// CRITICAL) and zerolog names to a zerolog level.
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "INFO":
		return zerolog.InfoLevel, nil
	case "DEBUG":
		return zerolog.DebugLevel, nil
	case "TRACE":
		return zerolog.TraceLevel, nil
	case "WARN", "WARNING":
		return zerolog.WarnLevel, nil
	case "ERROR":
		return zerolog.ErrorLevel, nil
	case "CRITICAL", "FATAL":
		return zerolog.FatalLevel, nil
	case "OFF", "DISABLED":
		return zerolog.Disabled, nil
	}
	return zerolog.NoLevel, fmt.Errorf("unknown log level %q", s)
}
