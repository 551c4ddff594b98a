// pkg/version/version_test.go
package version

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfo_ReturnsFormattedString(t *testing.T) {
	// vars set at build-time, here using default "dev"
	info := Info()

	if !strings.Contains(info, "Circuitry") {
		t.Errorf("Expected info to contain 'Circuitry', got: %s", info)
	}
	if !strings.Contains(info, Version) {
		t.Errorf("Expected info to contain version '%s'", Version)
	}
	if !strings.Contains(info, Protocol) {
		t.Errorf("Expected info to contain protocol '%s'", Protocol)
	}
}

func TestGet_ReturnsCorrectStruct(t *testing.T) {
	v := Get()

	if v.Version != Version {
		t.Errorf("Expected version %s, got %s", Version, v.Version)
	}
	if v.Commit != Commit {
		t.Errorf("Expected commit %s, got %s", Commit, v.Commit)
	}
	if v.Protocol != Protocol {
		t.Errorf("Expected protocol %s, got %s", Protocol, v.Protocol)
	}
}

func TestStartDate_IsInitialized(t *testing.T) {
	if time.Since(StartDate) > time.Minute {
		t.Errorf("StartDate is too old: %s", StartDate)
	}
}

func TestCompatibleProtocols(t *testing.T) {
	tests := []struct {
		local, remote string
		want          bool
	}{
		{"1.0.0", "1.0.0", true},
		{"1.0.0", "1.4.2", true},
		{"1.2.0", "v1.0.0", true},
		{"1.0.0", "2.0.0", false},
		{"2.1.0", "1.9.9", false},
	}
	for _, tt := range tests {
		t.Run(tt.local+"_"+tt.remote, func(t *testing.T) {
			ok, err := CompatibleProtocols(tt.local, tt.remote)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}

	_, err := CompatibleProtocols(Protocol, "not-a-version")
	assert.Error(t, err)
}
