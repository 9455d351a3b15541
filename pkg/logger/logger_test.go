package logger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "json info", config: Config{Level: "info", Format: "json"}},
		{name: "console debug", config: Config{Level: "debug", Format: "console"}},
		{name: "file output", config: Config{Level: "warn", Format: "json", File: filepath.Join(t.TempDir(), "atcsim.log")}},
		{name: "bad level", config: Config{Level: "loud", Format: "json"}, wantErr: true},
		{name: "bad format", config: Config{Level: "info", Format: "xml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			l.Named("twr-LFPG").WithAircraft("AF1").Info("runway cleared", Int("stand", 3))
		})
	}
}

func TestNopLoggerIsUsable(t *testing.T) {
	l := NewNop().Named("ccr").WithRunID("run-1")
	l.Error("discarded", String("k", "v"))
}
