package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSource_Load(t *testing.T) {
	k := koanf.New(".")
	src := &DefaultSource{}
	assert.Equal(t, 10, src.Priority())
	assert.Equal(t, "defaults", src.Name())

	require.NoError(t, src.Load(k))
	assert.Equal(t, "info", k.String("log.level"))
	assert.Equal(t, "tcp", k.String("bridge.transport"))
	assert.Equal(t, 4, k.Int("worker.concurrency"))
}

func TestFileSource_Load(t *testing.T) {
	t.Run("empty path skips", func(t *testing.T) {
		require.NoError(t, (&FileSource{}).Load(koanf.New(".")))
	})

	t.Run("missing file skips", func(t *testing.T) {
		require.NoError(t, (&FileSource{Path: "/nonexistent/path/config.yaml"}).Load(koanf.New(".")))
	})

	t.Run("valid file", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.yaml")
		content := `
log:
  level: warn
bridge:
  max_frame: 4096
timers:
  - event: heartbeat
    interval: 1s
    persist: true
`
		require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))

		k := koanf.New(".")
		src := &FileSource{Path: configPath}
		assert.Equal(t, 20, src.Priority())
		assert.Equal(t, "file:"+configPath, src.Name())

		require.NoError(t, src.Load(k))
		assert.Equal(t, "warn", k.String("log.level"))
		assert.Equal(t, 4096, k.Int("bridge.max_frame"))
	})

	t.Run("malformed file", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte("log: [unterminated"), 0o644))
		assert.Error(t, (&FileSource{Path: configPath}).Load(koanf.New(".")))
	})
}

func TestEnvSource_Load(t *testing.T) {
	t.Setenv("CIRCUITRY_LOG_LEVEL", "error")
	t.Setenv("CIRCUITRY_BRIDGE_MAX_FRAME", "8888")

	k := koanf.New(".")
	src := &EnvSource{}
	assert.Equal(t, 30, src.Priority())
	assert.Equal(t, "env", src.Name())

	require.NoError(t, src.Load(k))
	assert.Equal(t, "error", k.String("log.level"))
	assert.Equal(t, 8888, k.Int("bridge.max_frame"))
}

func TestEnvSource_Load_CustomPrefix(t *testing.T) {
	t.Setenv("MYAPP_LOG_FORMAT", "json")

	k := koanf.New(".")
	require.NoError(t, (&EnvSource{Prefix: "MYAPP_"}).Load(k))
	assert.Equal(t, "json", k.String("log.format"))
}

func TestFlagSource_Load(t *testing.T) {
	src := &FlagSource{}
	assert.Equal(t, 40, src.Priority())
	assert.Equal(t, "flags", src.Name())
	require.NoError(t, src.Load(koanf.New(".")), "Nil flags should skip silently")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log.level", "info", "")
	require.NoError(t, flags.Set("log.level", "debug"))

	k := koanf.New(".")
	require.NoError(t, (&FlagSource{Flags: flags}).Load(k))
	assert.Equal(t, "debug", k.String("log.level"))
}

func TestFlagSource_Load_DebugFlag(t *testing.T) {
	k := koanf.New(".")
	require.NoError(t, (&FlagSource{Debug: true}).Load(k))
	assert.Equal(t, "debug", k.String("log.level"))
}

func TestDefaultSources_Order(t *testing.T) {
	sources := DefaultSources("/tmp/config.yaml", nil, false)

	require.Len(t, sources, 4)
	assert.Equal(t, "defaults", sources[0].Name())
	assert.Equal(t, "file:/tmp/config.yaml", sources[1].Name())
	assert.Equal(t, "env", sources[2].Name())
	assert.Equal(t, "flags", sources[3].Name())

	for i := 1; i < len(sources); i++ {
		assert.Greater(t, sources[i].Priority(), sources[i-1].Priority())
	}
}

func TestLoadWithSources_CustomSource(t *testing.T) {
	custom := &mockConfigSource{
		name:     "custom",
		priority: 25, // between file and env
		loadFunc: func(k *koanf.Koanf) error {
			return k.Set("log.level", "warn")
		},
	}

	manager := NewManager()
	require.NoError(t, manager.LoadWithSources(&DefaultSource{}, custom, &EnvSource{}))
	assert.Equal(t, "warn", manager.Get().Log.Level)
}

func TestLoadWithSources_PriorityOrdering(t *testing.T) {
	t.Setenv("CIRCUITRY_LOG_LEVEL", "error")

	manager := NewManager()
	// env is listed first but defaults still load first
	require.NoError(t, manager.LoadWithSources(&EnvSource{}, &DefaultSource{}))
	assert.Equal(t, "error", manager.Get().Log.Level)
}

// mockConfigSource is a test helper for custom config sources
type mockConfigSource struct {
	name     string
	priority int
	loadFunc func(k *koanf.Koanf) error
}

func (m *mockConfigSource) Name() string  { return m.name }
func (m *mockConfigSource) Priority() int { return m.priority }
func (m *mockConfigSource) Load(k *koanf.Koanf) error {
	if m.loadFunc != nil {
		return m.loadFunc(k)
	}
	return nil
}
