package depsort

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gerrors "github.com/olivejs/ginger/internal/errors"
)

const appJS = `(function() {
  'use strict';

  angular
    .module('app', ['ngRoute', "app.navbar"])
    .config(function($routeProvider) {});
})();
`

const controllerJS = `(function() {
  'use strict';
  angular
    .module('app')
    .controller('HomeController', HomeController);
})();
`

const navbarJS = `angular.module('app.navbar', []).directive('navbar', navbar);`

func TestAnalyze(t *testing.T) {
	m := Analyze([]byte(appJS))
	assert.Equal(t, []string{"app"}, m.Defines)
	assert.Equal(t, []string{"app.navbar", "ngRoute"}, m.Requires)

	m = Analyze([]byte(controllerJS))
	assert.Empty(t, m.Defines)
	assert.Equal(t, []string{"app"}, m.Requires)
}

func TestAnalyzeIgnoresComments(t *testing.T) {
	src := `// angular.module('legacy', [])
/* angular.module('old', ['x']) */
var url = 'http://example.com'; angular.module('live', []);`

	m := Analyze([]byte(src))
	assert.Equal(t, []string{"live"}, m.Defines)
	assert.Empty(t, m.Requires)
}

func TestSortOrdersDefinitionsFirst(t *testing.T) {
	files := []File{
		{Path: "src/app/a.controller.js", Content: []byte(controllerJS)},
		{Path: "src/app/app.js", Content: []byte(appJS)},
		{Path: "src/app/components/navbar.js", Content: []byte(navbarJS)},
	}

	sorted, err := Sort(files)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"src/app/components/navbar.js",
		"src/app/app.js",
		"src/app/a.controller.js",
	}, Paths(sorted))
}

func TestSortKeepsLexicalOrderForIndependentFiles(t *testing.T) {
	files := []File{
		{Path: "c.js", Content: []byte("var c;")},
		{Path: "a.js", Content: []byte("var a;")},
		{Path: "b.js", Content: []byte("var b;")},
	}

	sorted, err := Sort(files)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.js", "b.js", "c.js"}, Paths(sorted))
}

func TestSortIsInputOrderIndependent(t *testing.T) {
	a := []File{
		{Path: "src/app/app.js", Content: []byte(appJS)},
		{Path: "src/app/components/navbar.js", Content: []byte(navbarJS)},
		{Path: "src/app/a.controller.js", Content: []byte(controllerJS)},
	}
	b := []File{a[2], a[0], a[1]}

	sa, err := Sort(a)
	require.NoError(t, err)
	sb, err := Sort(b)
	require.NoError(t, err)
	assert.Equal(t, Paths(sa), Paths(sb))
}

func TestSortReportsCycle(t *testing.T) {
	files := []File{
		{Path: "x.js", Content: []byte(`angular.module('x', ['y']);`)},
		{Path: "y.js", Content: []byte(`angular.module('y', ['x']);`)},
	}

	_, err := Sort(files)
	require.Error(t, err)
	assert.True(t, gerrors.IsCycleError(err))

	var ge *gerrors.GingerError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, []string{"x.js", "y.js", "x.js"}, ge.Context["cycle"])
}

func TestSortIgnoresExternalModules(t *testing.T) {
	files := []File{
		{Path: "app.js", Content: []byte(`angular.module('app', ['ui.router', 'ngAnimate']);`)},
	}

	sorted, err := Sort(files)
	require.NoError(t, err)
	assert.Equal(t, []string{"app.js"}, Paths(sorted))
}
