// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MetroScript Contributors

// Package watch signals plugin source changes so the host can schedule a
// reload. The watcher never touches the runtime itself: the notify callback
// runs on the watcher goroutine, and consumers decide when to act (the
// director services reloads on the game's call-in thread).
package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher watches one plugin directory for .lua file changes and calls
// notify once a burst of changes has settled.
type Watcher struct {
	dir      string
	debounce time.Duration
	notify   func()

	watcher *fsnotify.Watcher
	quit    chan struct{}
	wg      sync.WaitGroup
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets how long changes must settle before notify fires.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// New creates a watcher for dir. notify is called on the watcher goroutine.
func New(dir string, notify func(), opts ...Option) *Watcher {
	w := &Watcher{
		dir:      dir,
		debounce: defaultDebounce,
		notify:   notify,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start arms the watch and spawns the event loop. Adding the directory is
// retried with backoff so a plugin directory created moments after startup
// still gets picked up. Starting an armed watcher is a no-op.
func (w *Watcher) Start(ctx context.Context) error {
	if w.watcher != nil {
		return nil
	}

	backoff := retry.WithMaxRetries(4, retry.NewExponential(100*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		fw, err := fsnotify.NewWatcher()
		if err != nil {
			return err
		}
		if err := fw.Add(w.dir); err != nil {
			_ = fw.Close()
			return retry.RetryableError(err)
		}
		w.watcher = fw
		return nil
	})
	if err != nil {
		return oops.In("watch").
			With("dir", w.dir).
			Wrapf(err, "arming plugin watcher")
	}

	w.quit = make(chan struct{})
	w.wg.Add(1)
	go w.loop()
	slog.Info("watching plugin directory", "dir", w.dir, "debounce", w.debounce)
	return nil
}

// Stop closes the watch and waits for the event loop to exit. Safe to call
// on a watcher that never started, and safe to call twice.
func (w *Watcher) Stop() {
	if w.watcher == nil {
		return
	}
	close(w.quit)
	_ = w.watcher.Close()
	w.wg.Wait()
	w.watcher = nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-w.quit:
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !relevant(ev) {
				continue
			}
			slog.Debug("plugin source changed", "file", filepath.Base(ev.Name), "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
				continue
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("plugin watcher error", "error", err)
		case <-fire:
			timer = nil
			fire = nil
			w.notify()
		}
	}
}

// relevant filters for .lua create/write/remove/rename; editor chmod noise
// and non-plugin files are ignored.
func relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) &&
		!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	return strings.EqualFold(filepath.Ext(ev.Name), ".lua")
}
