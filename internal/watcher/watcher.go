// Package watcher keeps the document store in sync with corpus directories on disk.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hyperjump/principia/internal/indexer"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// Corpus imports and removes corpus files. *indexer.Indexer implements it.
type Corpus interface {
	Supports(path string) bool
	ImportFile(ctx context.Context, path string) (*indexer.IngestStats, error)
	RemoveSource(ctx context.Context, path string) (int, error)
}

// Watcher re-imports corpus files when they change and removes their articles when they
// are deleted or moved away. Roots are watched recursively.
type Watcher struct {
	roots    []string
	corpus   Corpus
	debounce time.Duration
	logger   *zap.Logger

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	timers   map[string]*time.Timer
	ctx      context.Context
	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets how long a file must stay quiet before it is re-imported.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// NewWatcher creates a watcher for the given corpus directories.
func NewWatcher(roots []string, corpus Corpus, opts ...WatcherOption) *Watcher {
	clean := make([]string, 0, len(roots))
	for _, r := range roots {
		if abs, err := filepath.Abs(r); err == nil {
			clean = append(clean, filepath.Clean(abs))
		}
	}
	w := &Watcher{
		roots:    clean,
		corpus:   corpus,
		debounce: defaultDebounce,
		logger:   zap.NewNop(),
		timers:   make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Directories returns the watched root directories.
func (w *Watcher) Directories() []string {
	return append([]string(nil), w.roots...)
}

// Sync imports every supported file already present under the roots.
func (w *Watcher) Sync(ctx context.Context) (*indexer.IngestStats, error) {
	total := &indexer.IngestStats{}
	start := time.Now()
	for _, root := range w.roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil
				}
				return err
			}
			if d.IsDir() || !w.corpus.Supports(path) {
				return nil
			}
			stats, err := w.corpus.ImportFile(ctx, path)
			if err != nil {
				return err
			}
			total.Articles += stats.Articles
			total.Skipped += stats.Skipped
			total.Chunks += stats.Chunks
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	total.Elapsed = time.Since(start)
	return total, nil
}

// Start begins watching. Missing roots are created. It returns once the roots are watched;
// events are handled until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, root := range w.roots {
		if err := os.MkdirAll(root, 0755); err != nil {
			_ = fw.Close()
			return err
		}
		if err := addTree(fw, root); err != nil {
			_ = fw.Close()
			return err
		}
	}

	w.mu.Lock()
	w.watcher = fw
	w.ctx = ctx
	w.mu.Unlock()

	w.logger.Info("watching corpus directories", zap.Strings("roots", w.roots))
	go w.run(ctx, fw)
	return nil
}

func addTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fw.Add(path)
		}
		return nil
	})
}

func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			w.handleEvent(fw, ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(fw *fsnotify.Watcher, ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	if !w.underRoot(path) {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))

	switch {
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			// files copied in with the directory produce no events of their own
			if err := addTree(fw, path); err != nil {
				w.logger.Warn("failed to watch directory", zap.String("path", path), zap.Error(err))
			}
			_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
				if err == nil && !d.IsDir() && w.corpus.Supports(p) {
					w.schedule(p)
				}
				return nil
			})
			return
		}
		if w.corpus.Supports(path) {
			w.schedule(path)
		}
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		w.cancel(path)
		if w.corpus.Supports(path) {
			w.remove(path)
		}
	}
}

func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		ctx := w.ctx
		w.mu.Unlock()
		if ctx == nil || ctx.Err() != nil {
			return
		}
		stats, err := w.corpus.ImportFile(ctx, path)
		if err != nil {
			w.logger.Error("failed to import corpus file", zap.String("path", path), zap.Error(err))
			return
		}
		w.logger.Info("corpus file imported",
			zap.String("path", path),
			zap.Int("articles", stats.Articles),
			zap.Int("chunks", stats.Chunks))
	})
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
		delete(w.timers, path)
	}
}

func (w *Watcher) remove(path string) {
	w.mu.Lock()
	ctx := w.ctx
	w.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}
	n, err := w.corpus.RemoveSource(ctx, path)
	if err != nil {
		w.logger.Error("failed to remove corpus file", zap.String("path", path), zap.Error(err))
		return
	}
	if n > 0 {
		w.logger.Info("corpus file removed", zap.String("path", path), zap.Int("articles", n))
	}
}

func (w *Watcher) underRoot(path string) bool {
	for _, root := range w.roots {
		if root == path || inDir(root, path) {
			return true
		}
	}
	return false
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Stop stops watching and cancels pending imports.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		for path, t := range w.timers {
			t.Stop()
			delete(w.timers, path)
		}
		fw := w.watcher
		w.watcher = nil
		w.mu.Unlock()
		close(w.done)
		if fw != nil {
			_ = fw.Close()
		}
	})
}
