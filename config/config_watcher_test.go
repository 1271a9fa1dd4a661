package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeConfigFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestConfigWatcherInitialLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scribe.yaml")
	writeConfigFile(t, path, "server:\n  port: 9999\n")

	cw, err := NewConfigWatcher(path, zap.NewNop())
	require.NoError(t, err)
	defer cw.Close()

	assert.Equal(t, 9999, cw.Current().Server.Port)
}

func TestConfigWatcherRejectsMissingFile(t *testing.T) {
	_, err := NewConfigWatcher(filepath.Join(t.TempDir(), "missing.yaml"), zap.NewNop())
	assert.Error(t, err)
}

func TestConfigWatcherReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scribe.yaml")
	writeConfigFile(t, path, "server:\n  port: 9000\n")

	cw, err := NewConfigWatcher(path, zap.NewNop())
	require.NoError(t, err)
	defer cw.Close()

	updates := cw.Subscribe()
	writeConfigFile(t, path, "server:\n  port: 9001\n")

	select {
	case updated := <-updates:
		require.NotNil(t, updated)
		assert.Equal(t, 9001, updated.Server.Port)
		assert.Equal(t, 9001, cw.Current().Server.Port)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload notification")
	}
}

func TestConfigWatcherKeepsPreviousOnBadReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scribe.yaml")
	writeConfigFile(t, path, "server:\n  port: 9000\n")

	cw, err := NewConfigWatcher(path, zap.NewNop())
	require.NoError(t, err)
	defer cw.Close()

	writeConfigFile(t, path, "server:\n  port: -5\n")

	// Give the watcher time to observe the bad write
	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, 9000, cw.Current().Server.Port,
		"invalid reload must not replace the running config")
}
