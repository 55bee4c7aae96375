package lint

import (
	"context"
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

func newTask(t *testing.T, runner tool.Runner, scripts map[string]string) (*Task, *gerrors.ErrorCollector) {
	t.Helper()
	root := t.TempDir()
	for rel, content := range scripts {
		writeFile(t, root, rel, content)
	}
	opts := config.Default()
	opts.Root = root
	sc, err := scanner.New(root)
	require.NoError(t, err)
	collector := gerrors.NewErrorCollector()
	return New(opts, sc, runner, collector, nil), collector
}

func TestCheckValidScript(t *testing.T) {
	diags := Check("src/app/app.js", []byte("(function() {\n  'use strict';\n  angular.module('app', []);\n})();\n"))
	assert.Empty(t, diags)
}

func TestCheckSyntaxError(t *testing.T) {
	diags := Check("src/app/broken.js", []byte("var ok = 1;\nvar x = ;\n"))
	require.NotEmpty(t, diags)
	assert.Equal(t, "src/app/broken.js", diags[0].File)
	assert.Equal(t, 2, diags[0].Line)
	assert.Equal(t, 9, diags[0].Column)
	assert.Equal(t, gerrors.ErrorSeverityError, diags[0].Severity)
	assert.Contains(t, diags[0].Message, "Unexpected")
}

func TestRunCleanScripts(t *testing.T) {
	task, collector := newTask(t, nil, map[string]string{
		"src/app/app.js":                  "angular.module('app', []);",
		"src/app/main/main.controller.js": "angular.module('app').controller('MainController', function() {});",
	})
	collector.Replace(Stage, []gerrors.Diagnostic{{Stage: Stage, Message: "stale", Severity: gerrors.ErrorSeverityError}})

	require.NoError(t, task.Run(context.Background()))
	assert.False(t, collector.HasErrors())
}

func TestRunReportsProblems(t *testing.T) {
	task, collector := newTask(t, nil, map[string]string{
		"src/app/app.js":    "angular.module('app', []);",
		"src/app/broken.js": "function (",
	})

	err := task.Run(context.Background())
	require.Error(t, err)
	assert.True(t, gerrors.IsToolError(err))

	var ge *gerrors.GingerError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, Stage, ge.Stage)
	assert.Equal(t, "src/app/broken.js", ge.FilePath)

	diags := collector.GetErrorsByFile("src/app/broken.js")
	assert.NotEmpty(t, diags)
}

func TestRunExternalLinter(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)
	task, collector := newTask(t, runner, map[string]string{
		"src/app/app.js": "angular.module('app', [])",
	})
	task.opts.Tools.Lint = "eslint"

	stylish := "src/app/app.js\n  1:26  error  Missing semicolon  semi\n\n✖ 1 problem (1 error, 0 warnings)\n"
	runner.EXPECT().Run(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, cmd tool.Command) ([]byte, error) {
		assert.Equal(t, "eslint", cmd.Name)
		assert.Equal(t, []string{"src"}, cmd.Args)
		return []byte(stylish), errors.New("exit status 1")
	})

	err := task.Run(context.Background())
	require.Error(t, err)

	diags := collector.GetErrorsByFile("src/app/app.js")
	require.Len(t, diags, 1)
	assert.Equal(t, 1, diags[0].Line)
	assert.Equal(t, 26, diags[0].Column)
	assert.Equal(t, "Missing semicolon  semi", diags[0].Message)
}

func TestRunMissingExternalLinter(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)
	task, _ := newTask(t, runner, map[string]string{"src/app/app.js": "var a = 1;"})
	task.opts.Tools.Lint = "eslint"

	runner.EXPECT().Run(gomock.Any(), gomock.Any()).Return(nil, gerrors.NewToolError("", "eslint is not installed", nil))

	err := task.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "eslint failed")
}
