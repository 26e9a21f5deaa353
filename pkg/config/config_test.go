package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":8088", cfg.Addr)
	require.Equal(t, 150*time.Millisecond, cfg.FrameInterval)
	require.Equal(t, "console", cfg.LogFormat)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plotto.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"addr: \":9000\"\nframe_interval: 50ms\nlog_format: json\n",
	), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.Addr)
	require.Equal(t, 50*time.Millisecond, cfg.FrameInterval)
	require.Equal(t, "json", cfg.LogFormat)
	// Untouched fields keep their defaults.
	require.Equal(t, 30*time.Second, cfg.InactivityTimeout)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plotto.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: \":9000\"\n"), 0o644))

	t.Setenv("PLOTTO_ADDR", ":7777")
	t.Setenv("PLOTTO_INACTIVITY_TIMEOUT", "90s")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":7777", cfg.Addr)
	require.Equal(t, 90*time.Second, cfg.InactivityTimeout)
}

func TestLoad_RejectsBadDuration(t *testing.T) {
	t.Setenv("PLOTTO_FRAME_INTERVAL", "soon")
	_, err := Load("")
	require.Error(t, err)
}

func TestValidate_RejectsUnknownLogFormat(t *testing.T) {
	cfg := Default()
	cfg.LogFormat = "xml"
	require.Error(t, cfg.Validate())
}

func TestLoad_MissingFileIsAnError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
