package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 64, cfg.MaxCacheSize)
	assert.Equal(t, 50, cfg.MaxBodyLines)
	assert.Equal(t, 7, cfg.MaxParameters)
	assert.Equal(t, 4, cfg.MaxNestingDepth)
	assert.Equal(t, 15, cfg.ComplexityThreshold)
	assert.Equal(t, 1, cfg.BaseIncrement)
	assert.Equal(t, 1, cfg.NestingIncrement)
	assert.Equal(t, 4, cfg.MinCommentRun)
	assert.Equal(t, 0.5, cfg.CodeLikeRatio)
}

func TestLoadConfig_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shellaudit.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_parameters: 3\nmax_body_lines: 20\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.MaxParameters)
	assert.Equal(t, 20, cfg.MaxBodyLines)
	assert.Equal(t, 64, cfg.MaxCacheSize, "unset keys keep their defaults")
}

func TestConfigWatcher_Reload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shellaudit.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_parameters: 5\n"), 0o644))

	reloaded := make(chan Config, 1)
	w, err := NewConfigWatcher(path, func(cfg Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	require.NoError(t, err)
	assert.Equal(t, 5, w.Config().MaxParameters)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Watch(ctx))

	require.NoError(t, os.WriteFile(path, []byte("max_parameters: 9\n"), 0o644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, 9, cfg.MaxParameters)
		assert.Equal(t, 9, w.Config().MaxParameters)
	case <-time.After(3 * time.Second):
		t.Fatal("config reload not observed")
	}
}

func TestConfigWatcher_NoPathIsNoop(t *testing.T) {
	w, err := NewConfigWatcher("", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), w.Config())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	assert.NoError(t, w.Watch(ctx))
}
