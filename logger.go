package modelguard

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the minimal structured logging surface the library emits to.
// keysAndValues alternate key, value.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// SimpleLogger writes human-readable lines to stderr. Intended for examples
// and tests; production callers should prefer NewZerologLogger.
type SimpleLogger struct{}

// NewSimpleLogger creates a console logger.
func NewSimpleLogger() *SimpleLogger {
	return &SimpleLogger{}
}

func (l *SimpleLogger) log(level, msg string, keysAndValues ...any) {
	line := fmt.Sprintf("%s [%s] %s", time.Now().Format(time.RFC3339), level, msg)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		line += fmt.Sprintf(" %v=%v", keysAndValues[i], keysAndValues[i+1])
	}
	fmt.Fprintln(os.Stderr, line)
}

func (l *SimpleLogger) Debug(msg string, keysAndValues ...any) { l.log("DEBUG", msg, keysAndValues...) }
func (l *SimpleLogger) Info(msg string, keysAndValues ...any)  { l.log("INFO", msg, keysAndValues...) }
func (l *SimpleLogger) Warn(msg string, keysAndValues ...any)  { l.log("WARN", msg, keysAndValues...) }
func (l *SimpleLogger) Error(msg string, keysAndValues ...any) { l.log("ERROR", msg, keysAndValues...) }

// ZerologLogger adapts a zerolog.Logger to the Logger interface.
type ZerologLogger struct {
	logger zerolog.Logger
}

// NewZerologLogger wraps an existing zerolog logger.
func NewZerologLogger(logger zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{logger: logger}
}

// NewDefaultZerologLogger creates a zerolog-backed logger writing JSON to
// stderr with timestamps.
func NewDefaultZerologLogger() *ZerologLogger {
	return &ZerologLogger{
		logger: zerolog.New(os.Stderr).With().Timestamp().Str("component", "modelguard").Logger(),
	}
}

func (l *ZerologLogger) emit(ev *zerolog.Event, msg string, keysAndValues ...any) {
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key := fmt.Sprintf("%v", keysAndValues[i])
		ev = ev.Interface(key, keysAndValues[i+1])
	}
	ev.Msg(msg)
}

func (l *ZerologLogger) Debug(msg string, keysAndValues ...any) {
	l.emit(l.logger.Debug(), msg, keysAndValues...)
}

func (l *ZerologLogger) Info(msg string, keysAndValues ...any) {
	l.emit(l.logger.Info(), msg, keysAndValues...)
}

func (l *ZerologLogger) Warn(msg string, keysAndValues ...any) {
	l.emit(l.logger.Warn(), msg, keysAndValues...)
}

func (l *ZerologLogger) Error(msg string, keysAndValues ...any) {
	l.emit(l.logger.Error(), msg, keysAndValues...)
}

// DebugConfig selects which pipeline stages log at debug level.
type DebugConfig struct {
	Enabled      bool
	LogRequests  bool
	LogCache     bool
	LogCircuit   bool
	LogRateLimit bool
	LogFallback  bool
	RequestIDGen func() string
}

// DefaultDebugConfig enables every stage once debugging is switched on.
func DefaultDebugConfig() *DebugConfig {
	return &DebugConfig{
		Enabled:      false,
		LogRequests:  true,
		LogCache:     true,
		LogCircuit:   true,
		LogRateLimit: true,
		LogFallback:  true,
	}
}
