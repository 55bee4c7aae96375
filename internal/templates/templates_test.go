package templates

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olivejs/ginger/internal/config"
	"github.com/olivejs/ginger/internal/scanner"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func newTask(t *testing.T) (*Task, string) {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "src/index.html", "<html></html>")
	writeFile(t, root, "src/app/pods/home/home.html", "<div class=\"home\">\n  <h1>{{ vm.title }}</h1>\n  <p ng-if=\"vm.ok\">It's ok</p>\n</div>\n")
	writeFile(t, root, "src/app/directives/repoinfo/repoinfo.html", "<span>{{ repo.starsCount }}</span>\n")

	opts := config.Default()
	opts.Root = root
	sc, err := scanner.New(root)
	require.NoError(t, err)
	return New(opts, sc, nil), root
}

func TestCollectMinifiesViews(t *testing.T) {
	task, _ := newTask(t)

	templates, err := task.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, templates, 2)

	assert.Equal(t, "directives/repoinfo/repoinfo.html", templates[0].Key)
	assert.Equal(t, "<span>{{ repo.starsCount }}</span>", string(templates[0].Content))
	assert.Equal(t, "pods/home/home.html", templates[1].Key)
	assert.NotContains(t, string(templates[1].Content), "\n")
	assert.Contains(t, string(templates[1].Content), `ng-if="vm.ok"`)
}

func TestRenderEscapesContent(t *testing.T) {
	script := Render("app", []Template{{Key: "a.html", Content: []byte("<p>It's \\ fine\n</p>")}})

	assert.Equal(t, "angular.module('app').run(['$templateCache', function($templateCache) {\n"+
		"  $templateCache.put('a.html', '<p>It\\'s \\\\ fine\\n</p>');\n"+
		"}]);\n", string(script))
}

func TestRunWritesScript(t *testing.T) {
	task, root := newTask(t)

	require.NoError(t, task.Run(context.Background()))

	data, err := os.ReadFile(filepath.Join(root, ".tmp", "partials", FileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "$templateCache.put('pods/home/home.html'")
	assert.Contains(t, string(data), "$templateCache.put('directives/repoinfo/repoinfo.html', '<span>{{ repo.starsCount }}</span>');")
	assert.NotContains(t, string(data), "index.html")
}

func TestRunWithoutTemplates(t *testing.T) {
	root := t.TempDir()
	opts := config.Default()
	opts.Root = root
	sc, err := scanner.New(root)
	require.NoError(t, err)

	require.NoError(t, New(opts, sc, nil).Run(context.Background()))
	data, err := os.ReadFile(filepath.Join(root, ".tmp", "partials", FileName))
	require.NoError(t, err)
	assert.Equal(t, "angular.module('app').run(['$templateCache', function($templateCache) {\n}]);\n", string(data))
}
