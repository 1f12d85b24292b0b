// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package credentials

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/jeranaias/lendgate-tui/internal/logging"
)

// DefaultDebounce collapses the burst of events one atomic write produces.
const DefaultDebounce = 50 * time.Millisecond

// Change reports that another writer touched a credential key.
type Change struct {
	Key     string
	Removed bool
}

// =============================================================================
// FSNOTIFY WATCHER
// =============================================================================

// Watcher observes the credential directory for changes made by any process,
// including this one. It only reports the token and user keys.
type Watcher struct {
	dir      string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	pending map[string]time.Time

	events chan Change
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewWatcher creates a watcher for dir, creating the directory if needed.
func NewWatcher(dir string, debounce time.Duration) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create credential directory: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		dir:      dir,
		watcher:  fsw,
		debounce: debounce,
		logger:   zap.NewNop(),
		pending:  make(map[string]time.Time),
		events:   make(chan Change, 16),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// WithLogger sets the structured logger.
func (w *Watcher) WithLogger(l *zap.Logger) *Watcher {
	w.logger = logging.OrNop(l)
	return w
}

// Watch starts delivering changes on Events.
func (w *Watcher) Watch() error {
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}

	w.wg.Add(2)
	go w.processEvents()
	go w.processPending()
	return nil
}

// Events returns the change channel. It is never closed while the watcher runs.
func (w *Watcher) Events() <-chan Change {
	return w.events
}

// Close stops watching and waits for the goroutines to exit.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		w.cancel()
		err = w.watcher.Close()
		w.wg.Wait()
	})
	return err
}

func isCredentialKey(name string) bool {
	return name == KeyToken || name == KeyUser
}

// processEvents queues credential key events for debouncing.
func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			key := filepath.Base(event.Name)
			if !isCredentialKey(key) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.mu.Lock()
			w.pending[key] = time.Now()
			w.mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("credential watcher error", zap.Error(err))
		}
	}
}

// processPending emits settled keys, reading the final on-disk state.
func (w *Watcher) processPending() {
	defer w.wg.Done()

	tick := w.debounce / 2
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case <-ticker.C:
			now := time.Now()

			w.mu.Lock()
			var ready []string
			for key, at := range w.pending {
				if now.Sub(at) >= w.debounce {
					ready = append(ready, key)
					delete(w.pending, key)
				}
			}
			w.mu.Unlock()

			for _, key := range ready {
				_, err := os.Stat(filepath.Join(w.dir, key))
				change := Change{Key: key, Removed: errors.Is(err, fs.ErrNotExist)}
				w.logger.Debug("credential change",
					zap.String("key", change.Key),
					zap.Bool("removed", change.Removed),
				)
				select {
				case w.events <- change:
				case <-w.ctx.Done():
					return
				}
			}
		}
	}
}
