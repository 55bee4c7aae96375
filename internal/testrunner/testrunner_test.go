package testrunner

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/olivejs/ginger/internal/config"
	gerrors "github.com/olivejs/ginger/internal/errors"
	"github.com/olivejs/ginger/internal/scanner"
	"github.com/olivejs/ginger/internal/tool"
	"github.com/olivejs/ginger/internal/tool/mocks"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func newTask(t *testing.T, runner tool.Runner, options ...Option) (*Task, *gerrors.ErrorCollector, string) {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "bower.json", `{
  "dependencies": {"angular": "*"},
  "devDependencies": {"angular-mocks": "*"}
}`)
	writeFile(t, root, "bower_components/angular/bower.json", `{"main": "angular.js"}`)
	writeFile(t, root, "bower_components/angular/angular.js", "")
	writeFile(t, root, "bower_components/angular-mocks/bower.json", `{"main": "angular-mocks.js", "dependencies": {"angular": "*"}}`)
	writeFile(t, root, "bower_components/angular-mocks/angular-mocks.js", "")
	writeFile(t, root, "src/app/index.module.js", "angular.module('demo', []);")
	writeFile(t, root, "src/app/main/main.controller.js", "angular.module('demo').controller('MainController', function() {});")
	writeFile(t, root, "src/app/main/main.controller.spec.js", "describe('MainController', function() {});")
	writeFile(t, root, "src/app/components/api.mock.js", "")

	opts := config.Default()
	opts.Root = root
	sc, err := scanner.New(root)
	require.NoError(t, err)

	collector := gerrors.NewErrorCollector()
	return New(opts, sc, runner, collector, nil, options...), collector, root
}

func TestManifestOrder(t *testing.T) {
	task, _, _ := newTask(t, nil)

	m, err := task.Manifest(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"bower_components/angular/angular.js",
		"bower_components/angular-mocks/angular-mocks.js",
		"src/app/index.module.js",
		"src/app/main/main.controller.js",
		"src/app/components/api.mock.js",
		"src/app/main/main.controller.spec.js",
	}, m.Files)
	assert.Equal(t, []string{"src/app/index.module.js", "src/app/main/main.controller.js"}, m.Preprocess)
	assert.Equal(t, 3002, m.Port)
	assert.Equal(t, ReportDir, m.ReportDir)
}

func TestWriteManifest(t *testing.T) {
	task, _, root := newTask(t, nil)

	target, err := task.WriteManifest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, ".tmp", FilesName), target)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	var m Manifest
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Len(t, m.Files, 6)
	assert.Equal(t, []string{"progress", "coverage"}, m.Reporters)
}

func TestReporters(t *testing.T) {
	assert.Equal(t, []string{"progress", "coverage"}, Reporters("development"))
	assert.Equal(t, []string{"dots", "coverage"}, Reporters("production"))
	assert.Equal(t, []string{"dots", "coverage"}, Reporters("ci"))
}

func TestArgs(t *testing.T) {
	task, _, _ := newTask(t, nil)

	assert.Equal(t, []string{
		"start", "karma.conf.js", "--single-run", "--no-auto-watch",
		"--port", "3002", "--reporters", "progress,coverage",
	}, task.Args(false))
	assert.Equal(t, []string{
		"start", "karma.conf.js", "--no-single-run", "--auto-watch",
		"--port", "3002", "--reporters", "progress,coverage",
	}, task.Args(true))
}

func TestParseSummary(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   Summary
		found  bool
	}{
		{"success", "PhantomJS 2.1.1 (Linux 0.0.0): Executed 4 of 4 SUCCESS (0.012 secs / 0.008 secs)", Summary{Executed: 4, Total: 4}, true},
		{"failure", "PhantomJS 2.1.1 (Linux 0.0.0): Executed 4 of 4 (1 FAILED) ERROR (0.02 secs / 0.01 secs)", Summary{Executed: 4, Total: 4, Failed: 1}, true},
		{"last line wins", "Executed 1 of 4\nExecuted 2 of 4\nExecuted 4 of 4 SUCCESS", Summary{Executed: 4, Total: 4}, true},
		{"skipped", "Executed 3 of 4 (skipped 1) SUCCESS (0.01 secs / 0.004 secs)", Summary{Executed: 3, Total: 4, Skipped: 1}, true},
		{"no result", "INFO [karma]: Karma v1.7.0 server started", Summary{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := ParseSummary(tt.output)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.False(t, Summary{Executed: 3, Total: 4}.Passed())
	assert.True(t, Summary{Executed: 3, Total: 4, Skipped: 1}.Passed())
}

func TestRunPasses(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)

	var results []Summary
	task, collector, root := newTask(t, runner, WithResultHook(func(s Summary) { results = append(results, s) }))
	collector.Replace(Stage, []gerrors.Diagnostic{{Stage: Stage, Message: "old", Severity: gerrors.ErrorSeverityError}})

	runner.EXPECT().Run(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, cmd tool.Command) ([]byte, error) {
		assert.Equal(t, "karma", cmd.Name)
		assert.Equal(t, root, cmd.Dir)
		assert.Contains(t, cmd.Env, "GINGER_ENV=development")
		_, err := os.Stat(filepath.Join(root, ".tmp", FilesName))
		assert.NoError(t, err, "manifest is written before karma starts")

		out := "Executed 1 of 2\nExecuted 2 of 2 SUCCESS (0.01 secs / 0.005 secs)\n"
		_, _ = cmd.Stdout.Write([]byte(out))
		return []byte(out), nil
	})

	require.NoError(t, task.Run(context.Background()))
	assert.False(t, collector.HasErrors())
	assert.Equal(t, []Summary{{Executed: 2, Total: 2}}, results)
}

func TestRunReportsFailedSpecs(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)
	task, _, _ := newTask(t, runner)

	out := "Executed 2 of 2 (1 FAILED) ERROR (0.02 secs / 0.01 secs)\n"
	runner.EXPECT().Run(gomock.Any(), gomock.Any()).Return([]byte(out), errors.New("exit status 1"))

	err := task.Run(context.Background())
	require.Error(t, err)

	var ge *gerrors.GingerError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, gerrors.ErrCodeToolFailed, ge.Code)
	assert.Contains(t, ge.Message, "1 of 2 specs failed")
	assert.Equal(t, out, ge.Context["output"])
}

func TestRunAutoIgnoresCancellation(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)
	task, _, _ := newTask(t, runner)

	ctx, cancel := context.WithCancel(context.Background())
	runner.EXPECT().Run(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, cmd tool.Command) ([]byte, error) {
		assert.Contains(t, cmd.Args, "--auto-watch")
		cancel()
		return nil, ctx.Err()
	})

	assert.NoError(t, task.RunAuto(ctx))
}

func TestSummaryWriterSplitsWrites(t *testing.T) {
	var got []Summary
	w := &summaryWriter{onResult: func(s Summary) { got = append(got, s) }}

	_, _ = w.Write([]byte("Executed 3 of 3 SUC"))
	_, _ = w.Write([]byte("CESS (0.1 secs / 0.05 secs)\nExecuted 1 of 3\n"))
	_, _ = w.Write([]byte("Executed 3 of 3 (2 FAILED) ERROR"))
	assert.Len(t, got, 1)

	w.Flush()
	assert.Equal(t, []Summary{{Executed: 3, Total: 3}, {Executed: 3, Total: 3, Failed: 2}}, got)
}
