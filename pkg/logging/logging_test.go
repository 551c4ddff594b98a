package logging

import (
	"bytes"
	stdLog "log"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withGlobalLevel lifts the process-wide cap for the duration of the test.
func withGlobalLevel(t *testing.T, level zerolog.Level) {
	t.Helper()
	prev := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(level)
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })
}

func TestNewLogger(t *testing.T) {
	logger := NewLogger("test-component", zerolog.InfoLevel)

	// Logger should be configured with component field
	require.NotNil(t, logger)
}

func TestNewLoggerWithWriter(t *testing.T) {
	withGlobalLevel(t, zerolog.TraceLevel)
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("test", zerolog.DebugLevel, &buf)

	logger.Debug().Msg("test debug message")
	assert.Contains(t, buf.String(), "test debug message")
	assert.Contains(t, buf.String(), `"component":"test"`)
	assert.Contains(t, buf.String(), `"level":"debug"`)
}

func TestNewLoggerLevel(t *testing.T) {
	withGlobalLevel(t, zerolog.TraceLevel)
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("test", zerolog.InfoLevel, &buf)

	// Debug should not appear (below info level)
	logger.Debug().Msg("debug message")
	assert.NotContains(t, buf.String(), "debug message")

	// Info should appear
	logger.Info().Msg("info message")
	assert.Contains(t, buf.String(), "info message")

	// Warn should appear
	logger.Warn().Msg("warn message")
	assert.Contains(t, buf.String(), "warn message")
}

func TestConfigureGlobal(t *testing.T) {
	withGlobalLevel(t, zerolog.GlobalLevel())
	ConfigureGlobal(zerolog.DebugLevel)

	// Global level should be set
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}

func TestNewLoggerComponentField(t *testing.T) {
	withGlobalLevel(t, zerolog.TraceLevel)
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("my-component", zerolog.InfoLevel, &buf)

	logger.Info().Msg("test message")
	output := buf.String()

	assert.Contains(t, output, `"component":"my-component"`)
	assert.Contains(t, output, "test message")
}

func TestNewLoggerMultipleInstances(t *testing.T) {
	withGlobalLevel(t, zerolog.TraceLevel)
	var buf1, buf2 bytes.Buffer

	logger1 := NewLoggerWithWriter("component-1", zerolog.InfoLevel, &buf1)
	logger2 := NewLoggerWithWriter("component-2", zerolog.WarnLevel, &buf2)

	logger1.Info().Msg("from logger 1")
	logger2.Warn().Msg("from logger 2")

	assert.Contains(t, buf1.String(), `"component":"component-1"`)
	assert.Contains(t, buf1.String(), "from logger 1")

	assert.Contains(t, buf2.String(), `"component":"component-2"`)
	assert.Contains(t, buf2.String(), "from logger 2")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel(""))
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel("loud"))
}

func TestConfigureGlobalLoggingRoutesStdlog(t *testing.T) {
	prevWriter := getLogWriter()
	prevLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		SetLogWriter(prevWriter)
		zerolog.SetGlobalLevel(prevLevel)
		stdLog.SetOutput(os.Stderr)
	})

	var buf bytes.Buffer
	SetLogWriter(&buf)
	require.NoError(t, ConfigureGlobalLogging("debug"))

	stdLog.Print("2025/05/23 14:40:15 conn.go:35: upgrade failed")
	assert.Contains(t, buf.String(), "upgrade failed")
	assert.Contains(t, buf.String(), `"file":"conn.go:35"`)
}

func TestLevelOverrideHookDiscards(t *testing.T) {
	var buf bytes.Buffer
	logger := WithLevelOverride(zerolog.New(&buf).Level(zerolog.ErrorLevel), zerolog.DebugLevel)
	logger.Log().Msg("dropped")
	assert.Empty(t, buf.String())

	buf.Reset()
	logger = WithLevelOverride(zerolog.New(&buf), zerolog.InfoLevel)
	logger.Log().Msg("kept")
	assert.Contains(t, buf.String(), `"level":"info"`)
}

func TestGlobalLevelCapsComponentLogger(t *testing.T) {
	withGlobalLevel(t, zerolog.ErrorLevel)

	var buf bytes.Buffer
	logger := NewLoggerWithWriter("capped", zerolog.DebugLevel, &buf)
	logger.Debug().Msg("hidden")
	logger.Error().Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
