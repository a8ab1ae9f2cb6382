package engine

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config carries every externally settable analyzer threshold.
type Config struct {
	// MaxCacheSize bounds the AST cache entry count.
	MaxCacheSize int `mapstructure:"max_cache_size"`
	// MaxBodyLines is the LongMethod threshold.
	MaxBodyLines int `mapstructure:"max_body_lines"`
	// MaxParameters is the TooManyParameters threshold.
	MaxParameters int `mapstructure:"max_parameters"`
	// MaxNestingDepth is the DeepNesting threshold.
	MaxNestingDepth int `mapstructure:"max_nesting_depth"`
	// ComplexityThreshold is the HighComplexity threshold.
	ComplexityThreshold int `mapstructure:"complexity_threshold"`
	// BaseIncrement is the per-decision-point complexity weight.
	BaseIncrement int `mapstructure:"base_increment"`
	// NestingIncrement is the per-nesting-level complexity weight.
	NestingIncrement int `mapstructure:"nesting_increment"`
	// MinCommentRun is the CommentedCode minimum run length.
	MinCommentRun int `mapstructure:"min_comment_run"`
	// CodeLikeRatio is the CommentedCode code-likeness ratio.
	CodeLikeRatio float64 `mapstructure:"code_like_ratio"`

	// Logger receives the engine's log records. Nil means
	// slog.Default(). Not settable from a config file.
	Logger *slog.Logger `mapstructure:"-"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxCacheSize:        64,
		MaxBodyLines:        50,
		MaxParameters:       7,
		MaxNestingDepth:     4,
		ComplexityThreshold: 15,
		BaseIncrement:       1,
		NestingIncrement:    1,
		MinCommentRun:       4,
		CodeLikeRatio:       0.5,
	}
}

// setDefaults seeds a viper instance with DefaultConfig.
func setDefaults(v *viper.Viper) {
	def := DefaultConfig()
	v.SetDefault("max_cache_size", def.MaxCacheSize)
	v.SetDefault("max_body_lines", def.MaxBodyLines)
	v.SetDefault("max_parameters", def.MaxParameters)
	v.SetDefault("max_nesting_depth", def.MaxNestingDepth)
	v.SetDefault("complexity_threshold", def.ComplexityThreshold)
	v.SetDefault("base_increment", def.BaseIncrement)
	v.SetDefault("nesting_increment", def.NestingIncrement)
	v.SetDefault("min_comment_run", def.MinCommentRun)
	v.SetDefault("code_like_ratio", def.CodeLikeRatio)
}

// LoadConfig reads a config file into a Config. A missing or
// unreadable file falls back to the defaults with a warning; a present
// but malformed file is an error.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("failed to read analyzer config, using defaults",
				"path", path,
				"error", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

// ConfigWatcher reloads a config file when it changes on disk.
type ConfigWatcher struct {
	mu       sync.RWMutex
	path     string
	cfg      Config
	onReload func(Config)
}

// NewConfigWatcher loads path and prepares a watcher. onReload is
// called with the fresh Config after each successful reload.
func NewConfigWatcher(path string, onReload func(Config)) (*ConfigWatcher, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return &ConfigWatcher{path: path, cfg: cfg, onReload: onReload}, nil
}

// Config returns the current configuration.
func (w *ConfigWatcher) Config() Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cfg
}

// Watch starts watching the config file for changes until ctx is done.
func (w *ConfigWatcher) Watch(ctx context.Context) error {
	if w.path == "" {
		return nil // Nothing to watch
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watching directory %s: %w", dir, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != w.path {
					continue
				}
				if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
					slog.Info("analyzer config changed", "path", w.path)
					cfg, err := LoadConfig(w.path)
					if err != nil {
						slog.Error("failed to reload analyzer config", "error", err)
						continue
					}
					w.mu.Lock()
					w.cfg = cfg
					w.mu.Unlock()
					if w.onReload != nil {
						w.onReload(cfg)
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Error("config watcher error", "error", err)
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}
