// pkg/version/version.go
// Package version provides version metadata for the application and the bridge
// wire protocol.
package version

import (
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
)

// These variables are typically injected at build time using -ldflags
var (
	// Version holds the current version of circuitry.
	Version = "dev"
	// Commit holds the current version commit of circuitry.
	Commit = "none"
	// BuildDate holds the build date of circuitry.
	BuildDate = "unknown"
	// StartDate holds the start date of circuitry.
	StartDate = time.Now()
)

// Protocol is the bridge wire protocol version announced in handshakes.
const Protocol = "1.0.0"

// Struct returns version information in a structured format.
type Struct struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"buildDate"`
	Protocol  string `json:"protocol"`
}

// Info returns a formatted version string.
func Info() string {
	return fmt.Sprintf("Circuitry %s (commit: %s, date: %s, protocol: %s)", Version, Commit, BuildDate, Protocol)
}

// Get returns version information as a Struct.
func Get() Struct {
	return Struct{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		Protocol:  Protocol,
	}
}

// CompatibleProtocols reports whether two protocol versions can talk to each other.
// Versions are compatible when they share a major version.
func CompatibleProtocols(local, remote string) (bool, error) {
	lv, err := semver.NewVersion(local)
	if err != nil {
		return false, fmt.Errorf("local protocol %q: %w", local, err)
	}
	rv, err := semver.NewVersion(remote)
	if err != nil {
		return false, fmt.Errorf("remote protocol %q: %w", remote, err)
	}
	return lv.Major() == rv.Major(), nil
}
