// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package registry

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors a configuration file and applies changes to the
// registry. Edits go through the registry's preserve-running update
// semantics, so a running server survives a config touch unless its
// record changed.
type Watcher struct {
	// fsWatcher is the underlying filesystem watcher
	fsWatcher *fsnotify.Watcher

	// registry receives the reloaded configuration
	registry *Registry

	// path is the watched configuration file
	path string

	// logger is used for structured logging
	logger *slog.Logger

	// debounceDelay is the delay before reloading after file changes
	debounceDelay time.Duration

	// mu protects pendingReload
	mu            sync.Mutex
	pendingReload *time.Timer

	// ctx is the watcher's lifecycle context
	ctx    context.Context
	cancel context.CancelFunc

	// wg tracks the event loop goroutine
	wg sync.WaitGroup
}

// WatcherConfig configures the config file watcher.
type WatcherConfig struct {
	// Registry receives reloaded configurations
	Registry *Registry

	// Path is the configuration file to watch
	Path string

	// Logger is used for structured logging (optional)
	Logger *slog.Logger

	// DebounceDelay is the delay before reloading after file changes
	// (defaults to 200ms)
	DebounceDelay time.Duration
}

// NewWatcher creates a watcher on the configuration file. Editors
// replace files rather than writing in place, so the parent directory
// is watched and events filtered by name.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("config path is required")
	}

	absPath, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", cfg.Path, err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	if err := fsWatcher.Add(filepath.Dir(absPath)); err != nil {
		_ = fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(absPath), err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	debounceDelay := cfg.DebounceDelay
	if debounceDelay == 0 {
		debounceDelay = 200 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())

	w := &Watcher{
		fsWatcher:     fsWatcher,
		registry:      cfg.Registry,
		path:          absPath,
		logger:        logger,
		debounceDelay: debounceDelay,
		ctx:           ctx,
		cancel:        cancel,
	}

	w.wg.Add(1)
	go w.processEvents()

	return w, nil
}

// processEvents processes filesystem events and schedules reloads.
func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}

			if !w.matchesConfig(event.Name) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.scheduleReload()
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("config watcher error", "error", err)

		case <-w.ctx.Done():
			return
		}
	}
}

func (w *Watcher) matchesConfig(name string) bool {
	abs, err := filepath.Abs(name)
	if err != nil {
		return false
	}
	return abs == w.path
}

// scheduleReload schedules a debounced reload, replacing any pending one.
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pendingReload != nil {
		w.pendingReload.Stop()
	}
	w.pendingReload = time.AfterFunc(w.debounceDelay, w.reload)
}

// reload reads the config file and applies it to the registry.
func (w *Watcher) reload() {
	w.mu.Lock()
	w.pendingReload = nil
	w.mu.Unlock()

	w.logger.Info("configuration file changed", "path", w.path)

	cfg, err := LoadConfigFile(w.path)
	if err != nil {
		w.logger.Error("failed to reload configuration",
			"path", w.path,
			"error", err,
		)
		return
	}

	if err := w.registry.LoadConfigs(w.ctx, cfg.Servers); err != nil {
		w.logger.Error("failed to apply reloaded configuration",
			"path", w.path,
			"error", err,
		)
		return
	}

	w.registry.emitter.EmitConfigReloaded(w.path, len(cfg.Servers))
}

// Close shuts down the watcher.
func (w *Watcher) Close() error {
	w.cancel()

	w.mu.Lock()
	if w.pendingReload != nil {
		w.pendingReload.Stop()
		w.pendingReload = nil
	}
	w.mu.Unlock()

	err := w.fsWatcher.Close()
	w.wg.Wait()
	return err
}
