// pkg/config/config.go
package config

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Manager handles loading and accessing application configuration.
type Manager struct {
	koanfInstance *koanf.Koanf
	currentConfig Config
	sources       []ConfigSource
	mu            sync.RWMutex // protects currentConfig during reloads
}

// NewManager creates a new config Manager.
func NewManager() *Manager {
	return &Manager{
		koanfInstance: koanf.New("."),
		currentConfig: DefaultConfig(),
	}
}

// DefaultConfig returns a new Config struct populated with hardcoded default values.
// These serve as the baseline configuration if no other sources override them.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Manager: ManagerConfig{
			TickInterval: 100 * time.Millisecond,
		},
		Bridge: BridgeConfig{
			Mode:             "listen",
			Transport:        "tcp",
			Buffer:           256,
			MaxFrame:         1 << 20,
			HandshakeTimeout: 5 * time.Second,
		},
		Worker: WorkerConfig{
			Concurrency:        4,
			ProcessConcurrency: 1,
			QueueSize:          100,
		},
	}
}

// Load loads configuration from the standard sources:
// defaults -> file -> env (CIRCUITRY_*) -> flags.
func (m *Manager) Load(flags *pflag.FlagSet, configFilePath string) error {
	debug := false
	if flags != nil {
		if f := flags.Lookup("debug"); f != nil && f.Value.String() == "true" {
			debug = true
		}
	}
	return m.LoadWithSources(DefaultSources(configFilePath, flags, debug)...)
}

// LoadWithSources loads configuration from the given sources in priority order,
// validates the result and replaces the current configuration. On failure the
// current configuration is left unchanged.
func (m *Manager) LoadWithSources(sources ...ConfigSource) error {
	sorted := make([]ConfigSource, len(sources))
	copy(sorted, sources)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() < sorted[j].Priority()
	})

	// fresh instance so keys removed from a file do not survive a reload
	k := koanf.New(".")
	for _, src := range sorted {
		if err := src.Load(k); err != nil {
			return fmt.Errorf("source %s: %w", src.Name(), err)
		}
	}

	var newCfg Config
	if err := k.UnmarshalWithConf("", &newCfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("error unmarshaling final config: %w", err)
	}
	if err := Validate(newCfg); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.koanfInstance = k
	m.currentConfig = newCfg
	m.sources = sorted
	return nil
}

// Reload re-reads the sources used by the last successful load.
func (m *Manager) Reload() error {
	m.mu.RLock()
	sources := m.sources
	m.mu.RUnlock()
	if len(sources) == 0 {
		return fmt.Errorf("config not loaded")
	}
	return m.LoadWithSources(sources...)
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg := m.currentConfig
	cfg.Timers = append([]TimerConfig(nil), m.currentConfig.Timers...)
	return cfg
}

// String returns a single raw value by koanf key.
func (m *Manager) String(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.koanfInstance.String(key)
}

// FilePath returns the config file path of the last load, if any.
func (m *Manager) FilePath() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, src := range m.sources {
		if fs, ok := src.(*FileSource); ok {
			return fs.Path
		}
	}
	return ""
}

// Dump renders the current configuration as YAML.
func (m *Manager) Dump() ([]byte, error) {
	cfg := m.Get()
	return yaml.Marshal(&cfg)
}

var (
	validate      = newValidator()
	hostValidator = validator.New()
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("host_port", validateHostPort); err != nil {
		panic(err)
	}
	return v
}

// validateHostPort accepts host:port with an empty host, a hostname or an IP literal
// (IPv6 in brackets) and a port in 0..65535. Port 0 asks the OS for a free port.
func validateHostPort(fl validator.FieldLevel) bool {
	host, port, err := net.SplitHostPort(fl.Field().String())
	if err != nil {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return false
	}
	if host == "" || net.ParseIP(host) != nil {
		return true
	}
	return hostValidator.Var(host, "hostname_rfc1123") == nil
}

// Validate checks struct tag constraints and cross-field rules.
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Bridge.Enabled && cfg.Bridge.Addr == "" {
		return fmt.Errorf("invalid config: bridge.addr is required when the bridge is enabled")
	}
	for i, t := range cfg.Timers {
		if t.Persist && t.Interval <= 0 {
			return fmt.Errorf("invalid config: timers[%d] (%s) is persistent and needs a positive interval", i, t.Event)
		}
	}
	return nil
}

// DefaultConfigAsMap converts the DefaultConfig struct to a map[string]interface{}
// for Koanf's confmap.Provider so every key is known.
func DefaultConfigAsMap() map[string]interface{} {
	def := DefaultConfig()
	return map[string]interface{}{
		"log.level":  def.Log.Level,
		"log.format": def.Log.Format,
		"log.file":   def.Log.File,

		"manager.tick_interval": def.Manager.TickInterval.String(),

		"bridge.enabled":           def.Bridge.Enabled,
		"bridge.mode":              def.Bridge.Mode,
		"bridge.transport":         def.Bridge.Transport,
		"bridge.addr":              def.Bridge.Addr,
		"bridge.buffer":            def.Bridge.Buffer,
		"bridge.max_frame":         def.Bridge.MaxFrame,
		"bridge.handshake_timeout": def.Bridge.HandshakeTimeout.String(),

		"worker.concurrency":         def.Worker.Concurrency,
		"worker.process_concurrency": def.Worker.ProcessConcurrency,
		"worker.queue_size":          def.Worker.QueueSize,
		"worker.timeout":             def.Worker.Timeout.String(),
		"worker.exec":                []string{},

		"debugger.enabled":   def.Debugger.Enabled,
		"debugger.no_color":  def.Debugger.NoColor,
		"debugger.max_width": def.Debugger.MaxWidth,

		"watch.enabled": def.Watch.Enabled,
		"metrics.addr":  def.Metrics.Addr,
		"lock.file":     def.Lock.File,
	}
}

// BindFlags defines command-line flags corresponding to configuration settings.
// These flags allow overriding config file / environment variable settings.
// This function should be called when setting up Cobra commands.
func BindFlags(flags *pflag.FlagSet) {
	defaults := DefaultConfig()

	flags.Bool("debug", false, "Enable debug logging")
	flags.String("log.level", defaults.Log.Level, "Log level (debug, info, warn, error)")
	flags.String("log.format", defaults.Log.Format, "Log format (text, json)")

	flags.Duration("manager.tick_interval", defaults.Manager.TickInterval, "Maximum idle sleep of the dispatch loop")

	flags.Bool("bridge.enabled", defaults.Bridge.Enabled, "Connect a bridge at startup")
	flags.String("bridge.mode", defaults.Bridge.Mode, "Bridge mode (listen, dial)")
	flags.String("bridge.transport", defaults.Bridge.Transport, "Bridge transport (tcp, websocket)")
	flags.String("bridge.addr", defaults.Bridge.Addr, "Bridge listen or dial address")

	flags.Int("worker.concurrency", defaults.Worker.Concurrency, "Number of worker goroutines")

	flags.Bool("debugger.enabled", defaults.Debugger.Enabled, "Trace every event to stderr")
	flags.Bool("watch.enabled", defaults.Watch.Enabled, "Reload configuration when the file changes")
	flags.String("metrics.addr", defaults.Metrics.Addr, "Prometheus metrics listen address")
}
