// Package watch re-runs a function when files of a project change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/macropower/ruler/pkg/evidence"
	"github.com/macropower/ruler/pkg/log"
)

// DefaultDelay is how long a burst of events must settle before the
// function is re-run.
const DefaultDelay = 250 * time.Millisecond

// Watcher watches the directories holding the files of a project.
type Watcher struct {
	watcher *fsnotify.Watcher
	walker  *evidence.Walker
	dirs    map[string]struct{}
	root    string
	delay   time.Duration
}

// Opt configures a [Watcher].
type Opt func(*Watcher)

// WithDelay sets the settle delay. See [DefaultDelay].
func WithDelay(d time.Duration) Opt {
	return func(w *Watcher) { w.delay = d }
}

// New creates a [Watcher] for root. The walker decides which files, and so
// which directories, are watched.
func New(root string, walker *evidence.Walker, opts ...Opt) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", root, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		watcher: fw,
		walker:  walker,
		root:    abs,
		delay:   DefaultDelay,
		dirs:    map[string]struct{}{},
	}
	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Run calls fn once, then again after every settled change, until ctx is
// done. Errors from fn are logged and do not stop the watcher.
func (w *Watcher) Run(ctx context.Context, fn func(context.Context) error) error {
	defer w.Close()

	logger := log.WithContext(ctx).With(slog.String("root", w.root))

	// Watches are refreshed first so changes made while fn runs are seen.
	run := func() {
		err := w.refresh(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "refresh watched directories", slog.Any("err", err))
		}

		err = fn(ctx)
		if err != nil && ctx.Err() == nil {
			logger.ErrorContext(ctx, "run after change", slog.Any("err", err))
		}
	}

	run()

	timer := time.NewTimer(w.delay)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case evt, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}

			// Ignore events that are not related to file content changes.
			if evt.Has(fsnotify.Chmod) {
				continue
			}

			logger.DebugContext(ctx, "file changed", slog.String("event", evt.String()))
			timer.Reset(w.delay)

		case <-timer.C:
			run()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}

			logger.WarnContext(ctx, "watch error", slog.Any("err", err))
		}
	}
}

// Dirs returns the watched directories.
func (w *Watcher) Dirs() []string {
	out := make([]string, 0, len(w.dirs))
	for d := range w.dirs {
		out = append(out, d)
	}

	return out
}

// refresh watches the root and every directory holding a walked file, and
// drops directories that no longer do.
func (w *Watcher) refresh(ctx context.Context) error {
	files, err := w.walker.Files(ctx, w.root)
	if err != nil {
		return fmt.Errorf("walk %q: %w", w.root, err)
	}

	want := map[string]struct{}{w.root: {}}
	for _, f := range files {
		want[filepath.Dir(f.Abs)] = struct{}{}
	}

	for dir := range w.dirs {
		if _, ok := want[dir]; ok {
			continue
		}

		err := w.watcher.Remove(dir)
		if err != nil && !errors.Is(err, fsnotify.ErrNonExistentWatch) {
			return fmt.Errorf("remove %q from watcher: %w", dir, err)
		}

		delete(w.dirs, dir)
	}

	for dir := range want {
		if _, ok := w.dirs[dir]; ok {
			continue
		}

		err := w.watcher.Add(dir)
		if err != nil {
			return fmt.Errorf("add %q to watcher: %w", dir, err)
		}

		w.dirs[dir] = struct{}{}
	}

	log.WithContext(ctx).DebugContext(ctx, "watching directories",
		slog.String("root", w.root),
		slog.Int("count", len(w.dirs)),
	)

	return nil
}

// Close stops watching.
func (w *Watcher) Close() {
	err := w.watcher.Close()
	if err != nil {
		slog.Error("close watcher", slog.Any("err", err))
	}
}
