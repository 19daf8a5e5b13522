package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/anima-blit/engine/core"
)

// LoadConfig reads a TOML configuration on top of DefaultConfig. A missing
// file yields the defaults.
func LoadConfig(path string) (*ApplicationConfig, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		core.LogWarn("config file %s not found, using defaults", path)
		return cfg, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "opening config %s", path)
	}
	defer f.Close()

	dec := toml.NewDecoder(f).DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, errors.Wrapf(core.ErrInvalidConfig, "%s: %s", path, strict.String())
		}
		return nil, errors.Wrapf(err, "decoding config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// WatchConfig reloads path whenever it is written and sends the new
// configuration on out. Invalid files are logged and skipped. It returns when
// ctx is done.
func WatchConfig(ctx context.Context, path string, out chan<- *ApplicationConfig) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "creating config watcher")
	}
	defer watcher.Close()

	// Editors replace files on save, so the directory is watched instead.
	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return errors.Wrapf(err, "watching %s", filepath.Dir(target))
	}
	core.LogDebug("watching %s for changes", target)

	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(e.Name) != target || e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := LoadConfig(target)
			if err != nil {
				core.LogError("ignoring config change: %s", err)
				continue
			}
			select {
			case out <- cfg:
			case <-ctx.Done():
				return nil
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			core.LogError("config watcher: %s", err)
		}
	}
}

func dumpFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case "":
		if path == "" {
			return ""
		}
		return "?"
	case ".png":
		return "png"
	case ".bmp":
		return "bmp"
	case ".tif", ".tiff":
		return "tiff"
	default:
		return "?"
	}
}
