// pkg/config/types.go
package config

import "time"

// Config is the root configuration structure for circuitry.
// It aggregates all other specific configuration structs.
type Config struct {
	Log      LogConfig      `description:"Logging configuration" koanf:"log" yaml:"log"`
	Manager  ManagerConfig  `description:"Dispatch loop configuration" koanf:"manager" yaml:"manager"`
	Bridge   BridgeConfig   `description:"Bridge configuration" koanf:"bridge" yaml:"bridge"`
	Worker   WorkerConfig   `description:"Worker pool configuration" koanf:"worker" yaml:"worker"`
	Debugger DebuggerConfig `description:"Event tracing configuration" koanf:"debugger" yaml:"debugger"`
	Timers   []TimerConfig  `description:"Timers armed at startup" koanf:"timers" yaml:"timers" validate:"dive"`
	Watch    WatchConfig    `description:"Config file watching" koanf:"watch" yaml:"watch"`
	Metrics  MetricsConfig  `description:"Prometheus metrics" koanf:"metrics" yaml:"metrics"`
	Lock     LockConfig     `description:"Single instance lock" koanf:"lock" yaml:"lock"`
}

// LogConfig holds logging related configuration.
type LogConfig struct {
	Level  string `description:"Log level" koanf:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `description:"Log format: json | text" koanf:"format" yaml:"format" validate:"oneof=text json"`
	File   string `description:"Log file path" koanf:"file" yaml:"file"`
}

// ManagerConfig tunes the dispatch loop.
type ManagerConfig struct {
	TickInterval time.Duration `description:"Maximum idle sleep between timer checks" koanf:"tick_interval" yaml:"tick_interval" validate:"gt=0"`
}

// BridgeConfig configures the optional bridge to a peer process.
type BridgeConfig struct {
	Enabled          bool          `description:"Connect a bridge at startup" koanf:"enabled" yaml:"enabled"`
	Mode             string        `description:"listen | dial" koanf:"mode" yaml:"mode" validate:"oneof=listen dial"`
	Transport        string        `description:"tcp | websocket" koanf:"transport" yaml:"transport" validate:"oneof=tcp websocket"`
	Addr             string        `description:"Listen or dial address (host:port)" koanf:"addr" yaml:"addr" validate:"omitempty,host_port"`
	Buffer           int           `description:"Outbound frame buffer size" koanf:"buffer" yaml:"buffer" validate:"gt=0"`
	MaxFrame         int           `description:"Maximum frame size in bytes" koanf:"max_frame" yaml:"max_frame" validate:"gt=0"`
	HandshakeTimeout time.Duration `description:"Handshake timeout" koanf:"handshake_timeout" yaml:"handshake_timeout" validate:"gt=0"`
}

// WorkerConfig sizes the worker pools.
type WorkerConfig struct {
	Concurrency        int           `description:"Thread worker goroutines" koanf:"concurrency" yaml:"concurrency" validate:"gte=1"`
	ProcessConcurrency int           `description:"Concurrent external processes" koanf:"process_concurrency" yaml:"process_concurrency" validate:"gte=1"`
	QueueSize          int           `description:"Pending task queue size" koanf:"queue_size" yaml:"queue_size" validate:"gte=1"`
	Timeout            time.Duration `description:"Per task timeout (0 = none)" koanf:"timeout" yaml:"timeout" validate:"gte=0"`
	Exec               []string      `description:"Commands the exec event may run" koanf:"exec" yaml:"exec" validate:"dive,required"`
}

// DebuggerConfig configures event tracing.
type DebuggerConfig struct {
	Enabled        bool     `description:"Trace every event to stderr" koanf:"enabled" yaml:"enabled"`
	NoColor        bool     `description:"Disable styled output" koanf:"no_color" yaml:"no_color"`
	MaxWidth       int      `description:"Shorten trace lines to this many characters (0 = no limit)" koanf:"max_width" yaml:"max_width" validate:"gte=0"`
	IgnoreEvents   []string `description:"Event names not traced" koanf:"ignore_events" yaml:"ignore_events"`
	IgnoreChannels []string `description:"Channels not traced" koanf:"ignore_channels" yaml:"ignore_channels"`
}

// TimerConfig declares a timer armed at startup.
type TimerConfig struct {
	Event    string        `description:"Event name fired" koanf:"event" yaml:"event" validate:"required"`
	Channel  string        `description:"Event channel" koanf:"channel" yaml:"channel"`
	Interval time.Duration `description:"Delay or period" koanf:"interval" yaml:"interval" validate:"gte=0"`
	Persist  bool          `description:"Re-arm after firing" koanf:"persist" yaml:"persist"`
}

// WatchConfig toggles config file watching.
type WatchConfig struct {
	Enabled bool `description:"Reload configuration when the file changes" koanf:"enabled" yaml:"enabled"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `description:"Metrics listen address (empty disables)" koanf:"addr" yaml:"addr" validate:"omitempty,host_port"`
}

// LockConfig configures the single instance lock.
type LockConfig struct {
	File string `description:"Lock file path (empty uses the runtime directory)" koanf:"file" yaml:"file"`
}
