// Package scanner discovers project files for the pipeline tasks.
//
// The scanner walks directories below the project root, keeps every
// path inside that root, and reads file contents concurrently with
// pooled buffers. Each file carries an xxhash of its content so tasks
// can tell whether anything actually changed between runs.
package scanner

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"
)

// File is a discovered file with its content.
type File struct {
	// Path is slash-separated and relative to the project root.
	Path    string
	Content []byte
	Hash    uint64
	ModTime time.Time
}

// Matcher selects files by root-relative slash path.
type Matcher func(rel string) bool

// Ext matches files with any of the given extensions.
func Ext(exts ...string) Matcher {
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		set[strings.ToLower(e)] = true
	}
	return func(rel string) bool {
		return set[strings.ToLower(path.Ext(rel))]
	}
}

// Not inverts m.
func Not(m Matcher) Matcher {
	return func(rel string) bool { return !m(rel) }
}

// All matches when every matcher does.
func All(ms ...Matcher) Matcher {
	return func(rel string) bool {
		for _, m := range ms {
			if !m(rel) {
				return false
			}
		}
		return true
	}
}

// Suffix matches paths ending in any of the suffixes.
func Suffix(suffixes ...string) Matcher {
	return func(rel string) bool {
		for _, s := range suffixes {
			if strings.HasSuffix(rel, s) {
				return true
			}
		}
		return false
	}
}

// skipDirs are never descended into.
var skipDirs = map[string]bool{"node_modules": true, ".git": true}

// BufferPool manages reusable read buffers.
type BufferPool struct {
	pool sync.Pool
}

// NewBufferPool creates a pool of 64KB buffers.
func NewBufferPool() *BufferPool {
	return &BufferPool{
		pool: sync.Pool{
			New: func() interface{} {
				return make([]byte, 0, 64*1024)
			},
		},
	}
}

// Get retrieves a buffer from the pool
func (bp *BufferPool) Get() []byte {
	return bp.pool.Get().([]byte)[:0]
}

// Put returns a buffer to the pool
func (bp *BufferPool) Put(buf []byte) {
	if cap(buf) <= 1024*1024 {
		bp.pool.Put(buf)
	}
}

// Scanner finds and reads files below a project root.
type Scanner struct {
	root       string
	workers    int
	bufferPool *BufferPool
}

// New creates a scanner confined to root.
func New(root string) (*Scanner, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving project root: %w", err)
	}

	workers := runtime.NumCPU()
	if workers > 8 {
		workers = 8
	}

	return &Scanner{root: abs, workers: workers, bufferPool: NewBufferPool()}, nil
}

// Root returns the absolute project root.
func (s *Scanner) Root() string { return s.root }

// Abs converts a root-relative slash path to an absolute path.
func (s *Scanner) Abs(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(rel))
}

// Rel converts a path (absolute or relative to the working directory)
// to a root-relative slash path.
func (s *Scanner) Rel(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(s.root, abs)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("path %s is outside the project root", p)
	}
	return rel, nil
}

// Find walks dir (relative to the root) and returns the sorted
// root-relative paths of files accepted by match. A missing dir yields
// no files.
func (s *Scanner) Find(dir string, match Matcher) ([]string, error) {
	start, err := s.validatePath(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	err = filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && p == start {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			if p != start && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if match == nil || match(rel) {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}

	sort.Strings(files)
	return files, nil
}

// Read loads the given root-relative files concurrently. The result
// keeps the input order.
func (s *Scanner) Read(ctx context.Context, paths []string) ([]File, error) {
	out := make([]File, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, rel := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f, err := s.readFile(rel)
			if err != nil {
				return err
			}
			out[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// FindAndRead combines Find and Read.
func (s *Scanner) FindAndRead(ctx context.Context, dir string, match Matcher) ([]File, error) {
	paths, err := s.Find(dir, match)
	if err != nil {
		return nil, err
	}
	return s.Read(ctx, paths)
}

func (s *Scanner) readFile(rel string) (File, error) {
	abs, err := s.validatePath(rel)
	if err != nil {
		return File{}, err
	}

	file, err := os.Open(abs)
	if err != nil {
		return File{}, fmt.Errorf("opening file %s: %w", rel, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return File{}, fmt.Errorf("getting file info for %s: %w", rel, err)
	}

	buffer := s.bufferPool.Get()
	defer func() { s.bufferPool.Put(buffer) }()

	for {
		if len(buffer) == cap(buffer) {
			buffer = append(buffer, 0)[:len(buffer)]
		}
		n, err := file.Read(buffer[len(buffer):cap(buffer)])
		buffer = buffer[:len(buffer)+n]
		if err == io.EOF {
			break
		}
		if err != nil {
			return File{}, fmt.Errorf("reading file %s: %w", rel, err)
		}
	}

	content := make([]byte, len(buffer))
	copy(content, buffer)

	return File{
		Path:    rel,
		Content: content,
		Hash:    xxhash.Sum64(content),
		ModTime: info.ModTime(),
	}, nil
}

// validatePath resolves a root-relative path and rejects anything that
// escapes the root.
func (s *Scanner) validatePath(rel string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(clean) {
		r, err := filepath.Rel(s.root, clean)
		if err != nil {
			return "", fmt.Errorf("path %s is outside the project root", rel)
		}
		clean = r
	}
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path contains directory traversal: %s", rel)
	}
	return filepath.Join(s.root, clean), nil
}
