package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindString(t *testing.T) {
	assert.Equal(t, "added", KindAdded.String())
	assert.Equal(t, "changed", KindChanged.String())
	assert.Equal(t, "removed", KindRemoved.String())
	assert.Equal(t, "unknown", Kind(42).String())
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name string
		prev Kind
		next Kind
		want Kind
		keep bool
	}{
		{"created then written", KindAdded, KindChanged, KindAdded, true},
		{"created then removed", KindAdded, KindRemoved, 0, false},
		{"removed then recreated", KindRemoved, KindAdded, KindChanged, true},
		{"changed then removed", KindChanged, KindRemoved, KindRemoved, true},
		{"changed twice", KindChanged, KindChanged, KindChanged, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, keep := merge(tt.prev, true, tt.next)
			assert.Equal(t, tt.keep, keep)
			if keep {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestBatcherSettlesPerPath(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		b := newBatcher(20 * time.Millisecond)
		b.add(ChangeEvent{KindChanged, "src/app/index.scss"})
		b.add(ChangeEvent{KindAdded, "src/app/tmp.js"})
		time.Sleep(10 * time.Millisecond)
		b.add(ChangeEvent{KindChanged, "src/app/index.scss"})
		b.add(ChangeEvent{KindRemoved, "src/app/tmp.js"})
		b.add(ChangeEvent{KindChanged, "src/app/app.js"})

		time.Sleep(30 * time.Millisecond)
		synctest.Wait()

		select {
		case events := <-b.output:
			assert.Equal(t, []ChangeEvent{
				{KindChanged, "src/app/index.scss"},
				{KindChanged, "src/app/app.js"},
			}, events)
		default:
			t.Fatal("expected one settled batch")
		}
		assert.Empty(t, b.output)
	})
}

func TestFilters(t *testing.T) {
	f := ExtFilter(".scss", ".js")
	assert.True(t, f("src/app/index.scss"))
	assert.True(t, f("bower.json"))
	assert.False(t, f("src/bower.json"))
	assert.False(t, f("src/app/logo.png"))

	assert.True(t, NoHiddenFilter("src/app/app.js"))
	assert.False(t, NoHiddenFilter("src/app/.app.js.swp"))
	assert.False(t, NoHiddenFilter("src/app/app.js~"))
}

func TestValidatePathStaysInsideRoot(t *testing.T) {
	root := t.TempDir()
	fw, err := NewFileWatcher(root, 10*time.Millisecond, nil)
	require.NoError(t, err)
	defer fw.Stop()

	p, err := fw.validatePath("src")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "src"), p)

	_, err = fw.validatePath("../elsewhere")
	assert.Error(t, err)
	_, err = fw.validatePath(filepath.Dir(root))
	assert.Error(t, err)
}

type batches struct {
	mu     sync.Mutex
	events []ChangeEvent
}

func (b *batches) handle(_ context.Context, events []ChangeEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, events...)
	return nil
}

func (b *batches) has(want ChangeEvent) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.events {
		if e == want {
			return true
		}
	}
	return false
}

func TestFileWatcherClassifiesChanges(t *testing.T) {
	root := t.TempDir()
	app := filepath.Join(root, "src", "app")
	require.NoError(t, os.MkdirAll(app, 0o755))
	existing := filepath.Join(app, "index.scss")
	require.NoError(t, os.WriteFile(existing, []byte("body {}"), 0o644))

	fw, err := NewFileWatcher(root, 10*time.Millisecond, nil)
	require.NoError(t, err)
	defer fw.Stop()

	rec := &batches{}
	fw.AddFilter(NoHiddenFilter)
	fw.AddHandler(rec.handle)
	require.NoError(t, fw.AddRecursive("src"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, fw.Start(ctx))

	require.NoError(t, os.WriteFile(existing, []byte("body { margin: 0 }"), 0o644))
	require.Eventually(t, func() bool {
		return rec.has(ChangeEvent{KindChanged, "src/app/index.scss"})
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(app, "app.js"), []byte("var a;"), 0o644))
	require.Eventually(t, func() bool {
		return rec.has(ChangeEvent{KindAdded, "src/app/app.js"})
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(existing))
	require.Eventually(t, func() bool {
		return rec.has(ChangeEvent{KindRemoved, "src/app/index.scss"})
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFileWatcherPicksUpNewDirectories(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))

	fw, err := NewFileWatcher(root, 10*time.Millisecond, nil)
	require.NoError(t, err)
	defer fw.Stop()

	rec := &batches{}
	fw.AddHandler(rec.handle)
	require.NoError(t, fw.AddRecursive("src"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, fw.Start(ctx))

	pod := filepath.Join(root, "src", "about")
	require.NoError(t, os.Mkdir(pod, 0o755))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(pod, "about.html"), []byte("<h1>About</h1>"), 0o644))

	require.Eventually(t, func() bool {
		return rec.has(ChangeEvent{KindAdded, "src/about/about.html"})
	}, 2*time.Second, 10*time.Millisecond)
}
