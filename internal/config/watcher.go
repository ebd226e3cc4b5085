package config

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// ReloadFunc reacts to a successful config reload, given the config
// that was active before and after the change. It runs synchronously
// on the watcher goroutine, after the new config is already visible
// through Get(), so callers that only need the new values can ignore
// old and still observe a consistent read.
//
// The watcher itself stays ignorant of what a reload should DO beyond
// swapping the pointer: capacity fields like Workers and
// CommandBufferSize only matter to the dispatch table and worker pool
// that server.Server owns, and this package has no business importing
// server. onReload is how cmd/dispatchd wires that reaction without
// creating that dependency.
type ReloadFunc func(old, new *Config)

// StartWatcher starts a background goroutine that checks the config
// file for changes every interval and reloads it if modified. When
// onReload is non-nil it runs after each successful reload.
func StartWatcher(ctx context.Context, filePath string, interval time.Duration, onReload ReloadFunc) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				old := Get()
				if old == nil {
					continue
				}
				info, err := os.Stat(filePath)
				if err != nil {
					continue
				}
				if !info.ModTime().After(old.modTime) {
					continue
				}

				newCfg, err := Load(filePath)
				if err != nil {
					slog.Error("config reload failed", "error", err)
					continue
				}
				globalConfig.Store(newCfg)
				slog.Info("config reloaded", "file", filePath,
					"workers", newCfg.Workers(), "command_buffer", newCfg.CommandBufferSize())

				if onReload != nil {
					onReload(old, newCfg)
				}
			}
		}
	}()
}
