package watcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/olivejs/ginger/internal/metrics/mocks"
	"github.com/olivejs/ginger/internal/scheduler"
)

type fakeTasks struct {
	mu    sync.Mutex
	runs  []string
	delay time.Duration
	err   error
}

func (f *fakeTasks) Trigger(ctx context.Context, target string) error {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, target)
	return f.err
}

func (f *fakeTasks) list() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.runs...)
}

func TestRoute(t *testing.T) {
	tests := []struct {
		name string
		ev   ChangeEvent
		task string
		ok   bool
	}{
		{"scss changed", ChangeEvent{KindChanged, "src/app/index.scss"}, TaskStyles, true},
		{"css changed", ChangeEvent{KindChanged, "src/app/vendor.css"}, TaskStyles, true},
		{"scss added", ChangeEvent{KindAdded, "src/app/navbar.scss"}, TaskInject, true},
		{"css removed", ChangeEvent{KindRemoved, "src/app/old.css"}, TaskInject, true},
		{"js changed", ChangeEvent{KindChanged, "src/app/app.js"}, TaskScripts, true},
		{"js added", ChangeEvent{KindAdded, "src/app/pods/home/home.controller.js"}, TaskInject, true},
		{"js removed", ChangeEvent{KindRemoved, "src/app/gone.js"}, TaskInject, true},
		{"template", ChangeEvent{KindChanged, "src/app/pods/home/home.html"}, "", true},
		{"template added", ChangeEvent{KindAdded, "src/app/navbar.html"}, "", true},
		{"index document", ChangeEvent{KindChanged, "src/index.html"}, TaskInject, true},
		{"bower manifest", ChangeEvent{KindChanged, "bower.json"}, TaskInject, true},
		{"outside src", ChangeEvent{KindChanged, "gulp/app.js"}, "", false},
		{"unknown extension", ChangeEvent{KindChanged, "src/app/logo.png"}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task, ok := Route(tt.ev, "src")
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.task, task)
		})
	}
}

func TestRouteCustomSourceDir(t *testing.T) {
	task, ok := Route(ChangeEvent{KindChanged, "client/app/app.scss"}, "client/")
	assert.True(t, ok)
	assert.Equal(t, TaskStyles, task)

	_, ok = Route(ChangeEvent{KindChanged, "src/app/app.scss"}, "client")
	assert.False(t, ok)
}

func TestDispatcher_TaskThenReloadBothChannels(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		tasks := &fakeTasks{delay: 100 * time.Millisecond}
		browser, report := &calls{}, &calls{}
		d := NewDispatcher(tasks, "src", []Reloader{
			NewDebouncer(50*time.Millisecond, browser.record),
			NewDebouncer(50*time.Millisecond, report.record),
		}, nil, nil)

		require.NoError(t, d.Handle(context.Background(), []ChangeEvent{
			{KindChanged, "src/app/index.scss"},
		}))

		time.Sleep(99 * time.Millisecond)
		synctest.Wait()
		assert.Empty(t, browser.list(), "no reload before the task finishes")

		d.Wait()
		time.Sleep(60 * time.Millisecond)
		synctest.Wait()
		assert.Equal(t, []string{TaskStyles}, tasks.list())
		assert.Equal(t, []string{"src/app/index.scss"}, browser.list())
		assert.Equal(t, []string{"src/app/index.scss"}, report.list())
	})
}

// coalescedTasks folds overlapping triggers the way the scheduler does.
type coalescedTasks struct {
	c    scheduler.Coalescer
	runs atomic.Int32
}

func (f *coalescedTasks) Trigger(ctx context.Context, _ string) error {
	_, err := f.c.Do(ctx, func(context.Context) error {
		time.Sleep(100 * time.Millisecond)
		f.runs.Add(1)
		return nil
	})
	return err
}

func TestDispatcher_FoldedChangeReloadsAfterFollowUp(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		tasks := &coalescedTasks{}
		browser := &calls{}
		d := NewDispatcher(tasks, "src", []Reloader{NewDebouncer(10*time.Millisecond, browser.record)}, nil, nil)
		ctx := context.Background()

		require.NoError(t, d.Handle(ctx, []ChangeEvent{{KindChanged, "src/app/a.scss"}}))
		time.Sleep(20 * time.Millisecond)
		require.NoError(t, d.Handle(ctx, []ChangeEvent{{KindChanged, "src/app/b.scss"}}))

		// The first compile is done, the follow-up covering b.scss is not.
		time.Sleep(130 * time.Millisecond)
		synctest.Wait()
		assert.Equal(t, int32(1), tasks.runs.Load())
		assert.Empty(t, browser.list(), "no reload while the follow-up compile runs")

		d.Wait()
		time.Sleep(20 * time.Millisecond)
		synctest.Wait()
		assert.Equal(t, int32(2), tasks.runs.Load())
		assert.Len(t, browser.list(), 1, "one reload once the rebuilt output exists")
	})
}

func TestDispatcher_TemplateReloadsWithoutTask(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		tasks := &fakeTasks{}
		browser := &calls{}
		d := NewDispatcher(tasks, "src", []Reloader{NewDebouncer(50*time.Millisecond, browser.record)}, nil, nil)

		require.NoError(t, d.Handle(context.Background(), []ChangeEvent{
			{KindChanged, "src/app/pods/home/home.html"},
		}))
		d.Wait()
		time.Sleep(60 * time.Millisecond)
		synctest.Wait()

		assert.Empty(t, tasks.list())
		assert.Equal(t, []string{"src/app/pods/home/home.html"}, browser.list())
	})
}

func TestDispatcher_BatchRunsEachTaskOnce(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		tasks := &fakeTasks{}
		browser := &calls{}
		d := NewDispatcher(tasks, "src", []Reloader{NewDebouncer(50*time.Millisecond, browser.record)}, nil, nil)

		require.NoError(t, d.Handle(context.Background(), []ChangeEvent{
			{KindChanged, "src/app/a.scss"},
			{KindChanged, "src/app/b.scss"},
			{KindChanged, "src/app/app.js"},
			{KindChanged, "README.md"},
		}))
		d.Wait()
		time.Sleep(60 * time.Millisecond)
		synctest.Wait()

		assert.ElementsMatch(t, []string{TaskStyles, TaskScripts}, tasks.list())
		assert.Len(t, browser.list(), 1, "both reloads fall in one window")
	})
}

func TestDispatcher_FailedTaskStillReloads(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		tasks := &fakeTasks{err: errors.New("sass failed")}
		browser := &calls{}
		d := NewDispatcher(tasks, "src", []Reloader{NewDebouncer(50*time.Millisecond, browser.record)}, nil, nil)

		require.NoError(t, d.Handle(context.Background(), []ChangeEvent{{KindChanged, "src/app/index.scss"}}))
		d.Wait()
		time.Sleep(60 * time.Millisecond)
		synctest.Wait()

		assert.Equal(t, []string{"src/app/index.scss"}, browser.list())
	})
}

func TestDispatcher_CountsWatchEvents(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := mocks.NewMockRecorder(ctrl)
	m.EXPECT().IncWatchEvent("added", "js").Times(1)
	m.EXPECT().IncWatchEvent("changed", "json").Times(1)
	m.EXPECT().IncWatchEvent("removed", "none").Times(1)

	d := NewDispatcher(&fakeTasks{}, "src", nil, m, nil)
	require.NoError(t, d.Handle(context.Background(), []ChangeEvent{
		{KindAdded, "src/app/app.js"},
		{KindChanged, "bower.json"},
		{KindRemoved, "src/app/LICENSE"},
	}))
	d.Wait()
}
