package config

import (
	"context"
	"os"
	"time"
)

// Watcher polls the config file mtime and invokes the callback with the
// freshly loaded config on change. It is the portable fallback used by
// the CLI; the daemon uses the fsnotify-based reloader instead.
type Watcher struct {
	Path     string
	Interval time.Duration
}

// Start begins polling; callback receives latest config on change.
func (w Watcher) Start(ctx context.Context, onUpdate func(AppConfig)) error {
	if w.Interval <= 0 {
		w.Interval = 2 * time.Second
	}
	var lastMod time.Time
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			info, err := readFileInfo(w.Path)
			if err != nil {
				continue
			}
			if info.ModTime().After(lastMod) {
				lastMod = info.ModTime()
				// 加载失败保持旧配置，等待下一次写入
				if cfg, err := LoadWithEnvOverrides(w.Path); err == nil && onUpdate != nil {
					onUpdate(cfg)
				}
			}
		}
	}
}

// readFileInfo is extracted for testing/mocking.
var readFileInfo = func(path string) (info interface{ ModTime() time.Time }, err error) {
	return os.Stat(path)
}
