package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchReloadsOnWrite(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logger:\n  level: info\n"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	stopped := make(chan error, 1)
	go func() {
		stopped <- Watch(ctx, path, func(cfg *Config) {
			select {
			case changes <- cfg:
			default:
			}
		}, nil)
	}()

	// Give the watcher time to register before the write.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("logger:\n  level: debug\n"), 0o600))

	select {
	case cfg := <-changes:
		assert.Equal(t, "debug", cfg.Logger.Level)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload after config change")
	}

	cancel()
	select {
	case err := <-stopped:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatchReportsInvalidFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logger:\n  level: info\n"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errs := make(chan error, 4)
	go func() {
		_ = Watch(ctx, path, func(*Config) {}, func(err error) {
			select {
			case errs <- err:
			default:
			}
		})
	}()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("openai:\n  temperature: 9\n"), 0o600))

	select {
	case err := <-errs:
		assert.Contains(t, err.Error(), "temperature")
	case <-time.After(3 * time.Second):
		t.Fatal("no error reported for invalid config")
	}
}

func TestIsConfigChange(t *testing.T) {
	target, err := filepath.Abs("config.yaml")
	require.NoError(t, err)

	assert.True(t, isConfigChange(fsnotify.Event{Name: "config.yaml", Op: fsnotify.Write}, target))
	assert.True(t, isConfigChange(fsnotify.Event{Name: "config.yaml", Op: fsnotify.Create}, target))
	assert.False(t, isConfigChange(fsnotify.Event{Name: "config.yaml", Op: fsnotify.Chmod}, target))
	assert.False(t, isConfigChange(fsnotify.Event{Name: "other.yaml", Op: fsnotify.Write}, target))
}
