// Package watcher turns file system notifications under the project root
// into classified change events and dispatches them to pipeline tasks and
// reload channels.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/olivejs/ginger/internal/logging"
)

// FileWatcher watches directories and groups raw notifications into
// settled batches of change events.
type FileWatcher struct {
	root     string
	watcher  *fsnotify.Watcher
	batch    *batcher
	logger   logging.Logger
	filters  []FileFilter
	handlers []ChangeHandler
	known    map[string]struct{}
	mutex    sync.RWMutex
	stopOnce sync.Once
}

// ChangeEvent is one classified change. Path is relative to the watch
// root, with forward slashes.
type ChangeEvent struct {
	Kind Kind
	Path string
}

// Kind is the kind of change seen for a path.
type Kind int

const (
	KindAdded Kind = iota
	KindChanged
	KindRemoved
)

// String returns the string representation of the Kind
func (k Kind) String() string {
	switch k {
	case KindAdded:
		return "added"
	case KindChanged:
		return "changed"
	case KindRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// FileFilter reports whether a root-relative path should produce events.
type FileFilter func(path string) bool

// ChangeHandler handles one settled batch of change events.
type ChangeHandler func(ctx context.Context, events []ChangeEvent) error

var skipDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
}

// NewFileWatcher creates a watcher confined to root. Notifications for
// the same path arriving within settle are merged into one event.
func NewFileWatcher(root string, settle time.Duration, logger logging.Logger) (*FileWatcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving watch root: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return &FileWatcher{
		root:    abs,
		watcher: w,
		batch:   newBatcher(settle),
		logger:  logger.WithComponent("watcher"),
		known:   make(map[string]struct{}),
	}, nil
}

// AddFilter adds a file filter
func (fw *FileWatcher) AddFilter(filter FileFilter) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.filters = append(fw.filters, filter)
}

// AddHandler adds a change handler
func (fw *FileWatcher) AddHandler(handler ChangeHandler) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.handlers = append(fw.handlers, handler)
}

// AddPath watches a single directory without descending into it.
func (fw *FileWatcher) AddPath(path string) error {
	dir, err := fw.validatePath(path)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir() {
			fw.remember(filepath.Join(dir, e.Name()))
		}
	}
	return fw.watcher.Add(dir)
}

// AddRecursive watches a directory and all of its subdirectories.
func (fw *FileWatcher) AddRecursive(root string) error {
	dir, err := fw.validatePath(root)
	if err != nil {
		return fmt.Errorf("invalid root path: %w", err)
	}
	_, err = fw.addTree(dir)
	return err
}

// addTree registers every directory under dir and returns the files found.
func (fw *FileWatcher) addTree(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return fw.watcher.Add(path)
		}
		if fw.remember(path) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// remember marks a file as seen and reports whether it was new.
func (fw *FileWatcher) remember(path string) bool {
	rel, err := fw.rel(path)
	if err != nil {
		return false
	}
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	if _, ok := fw.known[rel]; ok {
		return false
	}
	fw.known[rel] = struct{}{}
	return true
}

// validatePath resolves path against the root and rejects anything
// outside it.
func (fw *FileWatcher) validatePath(path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(fw.root, path)
	}
	clean := filepath.Clean(path)
	if _, err := fw.rel(clean); err != nil {
		return "", err
	}
	return clean, nil
}

func (fw *FileWatcher) rel(path string) (string, error) {
	rel, err := filepath.Rel(fw.root, path)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s is outside %s", path, fw.root)
	}
	return filepath.ToSlash(rel), nil
}

// Start starts the file watcher
func (fw *FileWatcher) Start(ctx context.Context) error {
	go fw.processEvents(ctx)
	go fw.watchLoop(ctx)
	return nil
}

// Stop stops the file watcher and cleans up resources
func (fw *FileWatcher) Stop() error {
	var err error
	fw.stopOnce.Do(func() {
		fw.batch.stop()
		err = fw.watcher.Close()
	})
	return err
}

func (fw *FileWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleFsnotifyEvent(ctx, event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn(ctx, err, "File watcher error")
		}
	}
}

func (fw *FileWatcher) handleFsnotifyEvent(ctx context.Context, event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}
	rel, err := fw.rel(event.Name)
	if err != nil {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if skipDirs[info.Name()] {
				return
			}
			files, err := fw.addTree(event.Name)
			if err != nil {
				fw.logger.Warn(ctx, err, "Cannot watch new directory", "path", rel)
			}
			for _, f := range files {
				if r, err := fw.rel(f); err == nil && fw.accept(r) {
					fw.batch.add(ChangeEvent{Kind: KindAdded, Path: r})
				}
			}
			return
		}
	}

	if !fw.accept(rel) {
		return
	}
	kind, ok := fw.classify(event.Op, event.Name, rel)
	if !ok {
		return
	}
	fw.batch.add(ChangeEvent{Kind: kind, Path: rel})
}

func (fw *FileWatcher) accept(rel string) bool {
	fw.mutex.RLock()
	filters := fw.filters
	fw.mutex.RUnlock()

	for _, filter := range filters {
		if !filter(rel) {
			return false
		}
	}
	return true
}

// classify maps a raw notification to a change kind using the set of
// files already seen. A remove or rename that leaves a file in place
// (atomic save) is a change; removals of unknown paths are dropped.
func (fw *FileWatcher) classify(op fsnotify.Op, name, rel string) (Kind, bool) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	_, known := fw.known[rel]

	switch {
	case op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename):
		if _, err := os.Stat(name); err == nil {
			return KindChanged, known
		}
		delete(fw.known, rel)
		return KindRemoved, known
	case op.Has(fsnotify.Create) || op.Has(fsnotify.Write):
		fw.known[rel] = struct{}{}
		if known {
			return KindChanged, true
		}
		return KindAdded, true
	}
	return 0, false
}

func (fw *FileWatcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case events := <-fw.batch.output:
			fw.mutex.RLock()
			handlers := fw.handlers
			fw.mutex.RUnlock()

			for _, handler := range handlers {
				if err := handler(ctx, events); err != nil {
					fw.logger.Warn(ctx, err, "File watcher handler error", "events", len(events))
				}
			}
		}
	}
}

// batcher groups notifications for the same path within a settle delay.
type batcher struct {
	delay   time.Duration
	output  chan []ChangeEvent
	timer   *time.Timer
	order   []string
	pending map[string]Kind
	mutex   sync.Mutex
}

func newBatcher(delay time.Duration) *batcher {
	return &batcher{
		delay:   delay,
		output:  make(chan []ChangeEvent, 10),
		pending: make(map[string]Kind),
	}
}

func (b *batcher) add(event ChangeEvent) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	prev, seen := b.pending[event.Path]
	if !seen {
		b.order = append(b.order, event.Path)
	}
	if kind, keep := merge(prev, seen, event.Kind); keep {
		b.pending[event.Path] = kind
	} else {
		delete(b.pending, event.Path)
	}

	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.delay, b.flush)
}

// merge folds a new kind into the pending one for the same path.
func merge(prev Kind, seen bool, next Kind) (Kind, bool) {
	if !seen {
		return next, true
	}
	switch {
	case prev == KindAdded && next == KindChanged:
		return KindAdded, true
	case prev == KindAdded && next == KindRemoved:
		return 0, false
	case prev == KindRemoved && next == KindAdded:
		return KindChanged, true
	}
	return next, true
}

func (b *batcher) flush() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	events := make([]ChangeEvent, 0, len(b.pending))
	for _, p := range b.order {
		if kind, ok := b.pending[p]; ok {
			events = append(events, ChangeEvent{Kind: kind, Path: p})
			delete(b.pending, p)
		}
	}
	b.order = b.order[:0]
	b.timer = nil
	if len(events) == 0 {
		return
	}

	select {
	case b.output <- events:
	default:
		// Consumer stopped or far behind.
	}
}

func (b *batcher) stop() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

// ExtFilter accepts paths with one of the given extensions, plus
// bower.json at the root.
func ExtFilter(exts ...string) FileFilter {
	return func(path string) bool {
		if path == "bower.json" {
			return true
		}
		ext := filepath.Ext(path)
		for _, e := range exts {
			if ext == e {
				return true
			}
		}
		return false
	}
}

// NoHiddenFilter drops dotfiles and editor backup files.
func NoHiddenFilter(path string) bool {
	base := filepath.Base(path)
	return !strings.HasPrefix(base, ".") && !strings.HasSuffix(base, "~")
}
