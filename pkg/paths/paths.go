// Package paths resolves per-user directories for circuitry.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "circuitry"

// ConfigDir returns the config directory for circuitry.
// Order: XDG_CONFIG_HOME/circuitry, platform-specific fallback.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("AppData"); appData != "" {
			return filepath.Join(appData, "Circuitry")
		}
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", appName)
}

// ConfigFile returns the default config file path.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// RuntimeDir returns the directory for lock files and sockets.
// Order: XDG_RUNTIME_DIR/circuitry, then the system temp directory.
func RuntimeDir() string {
	if xdg := os.Getenv("XDG_RUNTIME_DIR"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	return filepath.Join(os.TempDir(), appName+"-"+username())
}

// LockFile returns the default single instance lock path.
func LockFile() string {
	return filepath.Join(RuntimeDir(), appName+".lock")
}

func username() string {
	for _, key := range []string{"USER", "USERNAME"} {
		if u := os.Getenv(key); u != "" {
			return u
		}
	}
	return "default"
}
