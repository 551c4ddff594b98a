package paths

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestConfigDir(t *testing.T) {
	t.Run("XDGOverride", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-config")
		got := ConfigDir()
		want := filepath.Join("/tmp/xdg-config", "circuitry")
		if got != want {
			t.Fatalf("ConfigDir() = %s, want %s", got, want)
		}
		if got := ConfigFile(); got != filepath.Join(want, "config.yaml") {
			t.Fatalf("ConfigFile() = %s", got)
		}
	})

	t.Run("PlatformDefault", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		switch runtime.GOOS {
		case "windows":
			t.Setenv("AppData", `C:\AppData`)
			want := filepath.Join(`C:\AppData`, "Circuitry")
			if got := ConfigDir(); got != want {
				t.Fatalf("ConfigDir() = %s, want %s", got, want)
			}
		default:
			t.Setenv("HOME", "/home/tester")
			want := filepath.Join("/home/tester", ".config", "circuitry")
			if got := ConfigDir(); got != want {
				t.Fatalf("ConfigDir() = %s, want %s", got, want)
			}
		}
	})
}

func TestRuntimeDir(t *testing.T) {
	t.Run("XDGOverride", func(t *testing.T) {
		t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
		want := filepath.Join("/run/user/1000", "circuitry")
		if got := RuntimeDir(); got != want {
			t.Fatalf("RuntimeDir() = %s, want %s", got, want)
		}
		if got := LockFile(); got != filepath.Join(want, "circuitry.lock") {
			t.Fatalf("LockFile() = %s", got)
		}
	})

	t.Run("TempFallback", func(t *testing.T) {
		t.Setenv("XDG_RUNTIME_DIR", "")
		t.Setenv("USER", "tester")
		want := filepath.Join(os.TempDir(), "circuitry-tester")
		if got := RuntimeDir(); got != want {
			t.Fatalf("RuntimeDir() = %s, want %s", got, want)
		}
	})
}
