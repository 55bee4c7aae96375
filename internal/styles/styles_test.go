package styles

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

const rootStylesheet = `// bower:scss
// endbower

// injector
// endinjector

body { margin: 0; }
`

func newTask(t *testing.T, runner tool.Runner) (*Task, *gerrors.ErrorCollector, string) {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "src/app/index.scss", rootStylesheet)
	writeFile(t, root, "src/app/components/navbar/navbar.scss", ".navbar {}")
	writeFile(t, root, "src/app/main/_vars.scss", "$brand: #f60;")
	writeFile(t, root, "bower.json", `{"dependencies":{"bootstrap-sass":"*"}}`)
	writeFile(t, root, "bower_components/bootstrap-sass/bower.json", `{"main":["assets/stylesheets/_bootstrap.scss"]}`)
	writeFile(t, root, "bower_components/bootstrap-sass/assets/stylesheets/_bootstrap.scss", "")

	opts := config.Default()
	opts.Root = root
	sc, err := scanner.New(root)
	require.NoError(t, err)

	collector := gerrors.NewErrorCollector()
	return New(opts, sc, runner, collector, nil), collector, root
}

func TestPrepareInjectsImports(t *testing.T) {
	task, _, root := newTask(t, nil)

	out, err := task.Prepare(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ".tmp/serve/app/index.scss", out)

	data, err := os.ReadFile(filepath.Join(root, ".tmp", "serve", "app", "index.scss"))
	require.NoError(t, err)
	assert.Equal(t, `// bower:scss
@import "../../../bower_components/bootstrap-sass/assets/stylesheets/_bootstrap";
// endbower

// injector
@import "../../../src/app/components/navbar/navbar";
@import "../../../src/app/main/_vars";
// endinjector

body { margin: 0; }
`, string(data))

	src, err := os.ReadFile(filepath.Join(root, "src", "app", "index.scss"))
	require.NoError(t, err)
	assert.Equal(t, rootStylesheet, string(src), "the source stylesheet is never rewritten")
}

func TestRunCompilesWithSass(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)
	task, collector, root := newTask(t, runner)
	collector.Replace(Stage, []gerrors.Diagnostic{{Stage: Stage, Message: "old", Severity: gerrors.ErrorSeverityError}})

	runner.EXPECT().Run(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, cmd tool.Command) ([]byte, error) {
		assert.Equal(t, "sass", cmd.Name)
		assert.Equal(t, root, cmd.Dir)
		assert.Equal(t, []string{
			"--no-error-css", "--source-map", "--embed-sources",
			"--load-path=bower_components",
			".tmp/serve/app/index.scss", ".tmp/serve/app/index.css",
		}, cmd.Args)
		return nil, nil
	})

	require.NoError(t, task.Run(context.Background()))
	assert.False(t, collector.HasErrors())
	assert.Equal(t, ".tmp/serve/app/index.css", task.Output())
}

func TestRunAutoprefixes(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)
	task, _, _ := newTask(t, runner)
	task.opts.Build.Autoprefix = true
	task.opts.Build.Sourcemaps = false

	gomock.InOrder(
		runner.EXPECT().Run(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, cmd tool.Command) ([]byte, error) {
			assert.Contains(t, cmd.Args, "--no-source-map")
			return nil, nil
		}),
		runner.EXPECT().Run(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, cmd tool.Command) ([]byte, error) {
			assert.Equal(t, "postcss", cmd.Name)
			assert.Equal(t, []string{".tmp/serve/app/index.css", "--use", "autoprefixer", "--replace"}, cmd.Args)
			return nil, nil
		}),
	)

	require.NoError(t, task.Run(context.Background()))
}

func TestRunCollectsCompilerDiagnostics(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)
	task, collector, _ := newTask(t, runner)

	output := "Error: expected \";\".\n  src/app/index.scss 7:18  root stylesheet\n"
	runner.EXPECT().Run(gomock.Any(), gomock.Any()).Return([]byte(output), errors.New("exit status 65"))

	err := task.Run(context.Background())
	require.Error(t, err)
	assert.True(t, gerrors.IsToolError(err))
	assert.True(t, gerrors.IsRecoverable(err))

	var ge *gerrors.GingerError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, Stage, ge.Stage)
	assert.Equal(t, "src/app/index.scss", ge.FilePath)

	diags := collector.GetErrors()
	require.Len(t, diags, 1)
	assert.Equal(t, Stage, diags[0].Stage)
	assert.Equal(t, 7, diags[0].Line)
	assert.Equal(t, 18, diags[0].Column)
	assert.Equal(t, `expected ";".`, diags[0].Message)
}

func TestRunWithoutRootStylesheet(t *testing.T) {
	task, _, root := newTask(t, nil)
	require.NoError(t, os.Remove(filepath.Join(root, "src", "app", "index.scss")))

	err := task.Run(context.Background())
	require.Error(t, err)
	assert.False(t, gerrors.IsToolError(err))
}
