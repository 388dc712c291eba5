// Package logging provides structured logging configuration using zerolog.
//
// Verbosity is expressed on a numeric severity scale from 10 (debug) to 50
// (critical). Each -q flag raises the threshold by one step of 10, each -v
// flag lowers it.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Level is a severity threshold on the 10..50 scale.
type Level int

const (
	// LevelDebug logs debug messages and above.
	LevelDebug Level = 10

	// LevelInfo logs info messages and above.
	LevelInfo Level = 20

	// LevelWarn logs warning messages and above.
	LevelWarn Level = 30

	// LevelError logs error messages and above.
	LevelError Level = 40

	// LevelCritical logs critical messages only.
	LevelCritical Level = 50
)

// levelStep is the distance between adjacent levels.
const levelStep = 10

// String implements fmt.Stringer.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelCritical:
		return "critical"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// LevelFromVerbosity returns clamp(base + 10*(quiet-verbose), 10, 50).
func LevelFromVerbosity(base Level, quiet, verbose int) Level {
	level := base + Level(levelStep*(quiet-verbose))
	if level < LevelDebug {
		return LevelDebug
	}
	if level > LevelCritical {
		return LevelCritical
	}
	return level
}

// Config holds logger configuration.
type Config struct {
	// Level is the minimum severity to output.
	Level Level

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(toZerolog(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()

	// Set as global logger
	log.Logger = logger

	return logger
}

// toZerolog maps a threshold to the lowest zerolog level it lets through.
// Thresholds between two steps round up, so 15 suppresses debug.
func toZerolog(level Level) zerolog.Level {
	switch {
	case level <= LevelDebug:
		return zerolog.DebugLevel
	case level <= LevelInfo:
		return zerolog.InfoLevel
	case level <= LevelWarn:
		return zerolog.WarnLevel
	case level <= LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.FatalLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Every API call attempt (operation, attempt number)
//   - Rate limit pauses ("API rate limit reached; pausing N secs")
//   - Call-limit bucket updates
//
// Info: Normal operation events
//   - Authentication finished for a store
//   - Progress after each listing page (class, cumulative records)
//   - Output file written
//
// Warn: Warning conditions that don't prevent operation
//   - Call-limit bucket full
//   - Malformed call-limit header
//   - Cancellation during a retry pause
//
// Error: Error conditions requiring attention
//   - Server errors ("Server error; continuing after 5 secs")
//   - Fatal run errors before exit
//
// Context Fields:
//   - component: emitting package (shop-client, collector, ratelimit, cli)
//   - operation: API call name, e.g. "list Product"
//   - class: object class being collected
//   - records: cumulative record count
//   - status: HTTP status code
//   - error_class: error classification (client, rate_limit, server, network)
