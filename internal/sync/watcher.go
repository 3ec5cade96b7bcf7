package sync

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	stdsync "sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/conorfennell/lingosrs/internal/domain"
	"github.com/conorfennell/lingosrs/internal/parser"
)

// DefaultDebounce is how long a source must be quiet after a change
// before it is reconciled.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reconciles local sources when their deck files change.
type Watcher struct {
	syncer   *Syncer
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *zap.Logger

	mu      stdsync.Mutex
	sources []domain.Source
	pending map[string]*time.Timer
	closed  bool
}

// NewWatcher watches every local source currently in the store. It
// refreshes itself whenever the syncer adds or removes a source.
func NewWatcher(ctx context.Context, syncer *Syncer, debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w := &Watcher{
		syncer:   syncer,
		watcher:  fw,
		debounce: debounce,
		logger:   syncer.logger.Named("watch"),
		pending:  make(map[string]*time.Timer),
	}
	if err := w.Refresh(ctx); err != nil {
		fw.Close()
		return nil, err
	}
	syncer.OnSourcesChanged(func(ctx context.Context) {
		if err := w.Refresh(ctx); err != nil {
			w.logger.Warn("failed to refresh watched sources", zap.Error(err))
		}
	})
	return w, nil
}

// Refresh reloads the local sources, watches the directories of new ones
// and stops watching those of removed ones. It is a no-op once Run has
// returned.
func (w *Watcher) Refresh(ctx context.Context) error {
	all, err := w.syncer.store.GetAllSources(ctx)
	if err != nil {
		return err
	}
	var local []domain.Source
	for _, src := range all {
		if src.Type == domain.SourceLocal {
			local = append(local, src)
		}
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	prev := w.sources
	w.sources = local
	for _, src := range prev {
		if !containsSource(local, src.ID) {
			if t, ok := w.pending[src.ID]; ok {
				t.Stop()
				delete(w.pending, src.ID)
			}
		}
	}
	w.mu.Unlock()

	for _, src := range local {
		if !containsSource(prev, src.ID) {
			w.addTree(src.Path)
		}
	}
	for _, src := range prev {
		if !containsSource(local, src.ID) {
			w.removeTree(src.Path)
		}
	}
	return nil
}

func containsSource(sources []domain.Source, id string) bool {
	for _, src := range sources {
		if src.ID == id {
			return true
		}
	}
	return false
}

// removeTree drops the watches under root that no remaining source
// needs.
func (w *Watcher) removeTree(root string) {
	for _, path := range w.watcher.WatchList() {
		if !within(root, path) {
			continue
		}
		if _, ok := w.sourceFor(path); ok {
			continue
		}
		if err := w.watcher.Remove(path); err != nil {
			w.logger.Debug("failed to unwatch directory", zap.String("path", path), zap.Error(err))
		}
	}
}

func (w *Watcher) addTree(root string) {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == ".git" {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("failed to watch directory", zap.String("path", path), zap.Error(err))
		}
		return nil
	})
	if err != nil {
		w.logger.Warn("failed to walk source", zap.String("path", root), zap.Error(err))
	}
}

// Run processes file events until ctx is done, then releases the watcher.
func (w *Watcher) Run(ctx context.Context) {
	defer w.close()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	if event.Op&fsnotify.Create != 0 {
		// New subdirectories need their own watch.
		w.addTree(event.Name)
	}
	if !parser.Supported(event.Name) {
		return
	}
	src, ok := w.sourceFor(event.Name)
	if !ok {
		return
	}
	w.logger.Debug("deck changed", zap.String("file", event.Name), zap.String("op", event.Op.String()))

	w.mu.Lock()
	defer w.mu.Unlock()
	if t, exists := w.pending[src.ID]; exists {
		t.Stop()
	}
	w.pending[src.ID] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, src.ID)
		w.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		w.syncer.SyncSource(ctx, src)
	})
}

// sourceFor finds the source whose directory contains path.
func (w *Watcher) sourceFor(path string) (domain.Source, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, src := range w.sources {
		if within(src.Path, path) {
			return src, true
		}
	}
	return domain.Source{}, false
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (w *Watcher) close() {
	w.mu.Lock()
	w.closed = true
	for id, t := range w.pending {
		t.Stop()
		delete(w.pending, id)
	}
	w.mu.Unlock()
	w.watcher.Close()
}
