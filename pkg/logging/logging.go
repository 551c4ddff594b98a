// pkg/logging/logging.go
package logging

import (
	"io"
	stdLog "log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	writerMu sync.RWMutex
	// logWriter stores the current log writer globally
	logWriter io.Writer
)

// stdLogWriter reformats stdlog output from third-party packages into zerolog events.
type stdLogWriter struct {
	logger zerolog.Logger
}

func (w *stdLogWriter) Write(p []byte) (n int, err error) {
	message := strings.TrimSuffix(string(p), "\n")

	// Example stdlog output: "2025/05/23 14:40:15 websocket.go:35: upgrade failed"
	parts := strings.SplitN(message, " ", 4)
	if len(parts) >= 4 {
		stdTime, err := time.Parse("2006/01/02 15:04:05", parts[0]+" "+parts[1])
		if err == nil {
			w.logger.Debug().
				Str("file", strings.TrimSuffix(parts[2], ":")).
				Time("time", stdTime).
				Msg(parts[3])
			return len(p), nil
		}
	}

	w.logger.Debug().Msg(message)
	return len(p), nil
}

// init sets the global logging level for zerolog to ErrorLevel by default
func init() {
	zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	logWriter = zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
}

// ConfigureGlobalLogging configures the global logger from a level name.
// Unknown names fall back to error.
func ConfigureGlobalLogging(levelStr string) error {
	ConfigureGlobal(ParseLevel(levelStr))
	return nil
}

// ConfigureGlobal installs the global zerolog logger at the given level and routes
// the standard library logger through it.
func ConfigureGlobal(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)

	logContext := zerolog.New(getLogWriter()).With().Timestamp()
	if level <= zerolog.DebugLevel {
		logContext = logContext.Caller()
	}

	log.Logger = logContext.Logger().Level(level)
	zerolog.DefaultContextLogger = &log.Logger

	stdLog.SetFlags(0)
	stdLog.SetOutput(&stdLogWriter{logger: WithLevelOverride(log.Logger, zerolog.DebugLevel)})
}

// NewLogger returns a component logger writing to the global log writer.
func NewLogger(component string, level zerolog.Level) zerolog.Logger {
	return NewLoggerWithWriter(component, level, getLogWriter())
}

// NewLoggerWithWriter returns a JSON component logger writing to w. The zerolog
// global level still applies, so level only lowers verbosity below it.
func NewLoggerWithWriter(component string, level zerolog.Level, w io.Writer) zerolog.Logger {
	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}

// ParseLevel converts a string log level to zerolog.Level.
func ParseLevel(levelString string) zerolog.Level {
	if levelString == "" {
		levelString = "error"
	}

	level, err := zerolog.ParseLevel(strings.ToLower(levelString))
	if err != nil {
		log.Error().Err(err).
			Str("logLevel", levelString).
			Msg("Invalid log level provided. Defaulting to error level.")
		return zerolog.ErrorLevel
	}
	return level
}

func getLogWriter() io.Writer {
	writerMu.RLock()
	defer writerMu.RUnlock()
	return logWriter
}

// SetLogWriter sets the global log writer.
func SetLogWriter(w io.Writer) {
	writerMu.Lock()
	defer writerMu.Unlock()
	logWriter = w
}

// ConsoleWriter wraps out in a human readable zerolog writer.
func ConsoleWriter(out io.Writer, noColor bool) io.Writer {
	return zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: noColor}
}

// LevelOverrideHook assigns a level to NoLevel events and drops events when the
// logger's minimum severity is above the target.
type LevelOverrideHook struct {
	minSeverity zerolog.Level
	targetLevel zerolog.Level
}

// NewLevelOverrideHook creates a new LevelOverrideHook instance.
func NewLevelOverrideHook(minSeverity, targetLevel zerolog.Level) *LevelOverrideHook {
	return &LevelOverrideHook{
		minSeverity: minSeverity,
		targetLevel: targetLevel,
	}
}

// Run implements zerolog.Hook.
func (h LevelOverrideHook) Run(e *zerolog.Event, currentLevel zerolog.Level, _ string) {
	if h.minSeverity > h.targetLevel {
		e.Discard()
		return
	}
	if currentLevel == zerolog.NoLevel {
		e.Str("level", h.targetLevel.String())
	}
}

// WithLevelOverride configures a logger to handle NoLevel events and level filtering.
func WithLevelOverride(logger zerolog.Logger, targetLevel zerolog.Level) zerolog.Logger {
	return logger.Hook(NewLevelOverrideHook(logger.GetLevel(), targetLevel))
}
