package scaffolding

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olivejs/ginger/internal/config"
)

func testContext() TemplateContext {
	return TemplateContext{Name: "seed-angular", Version: "0.1.0", Module: "app", Options: config.Default()}
}

func TestGenerateProject(t *testing.T) {
	dir := t.TempDir()
	res, err := NewGenerator().Generate(dir, ProjectFiles(), testContext())
	require.NoError(t, err)
	assert.Empty(t, res.Skipped)
	assert.Contains(t, res.Created, ".gingerrc")
	assert.Contains(t, res.Created, "src/index.html")
	assert.Contains(t, res.Created, "dist/.gitkeep")

	for _, name := range []string{".gingerrc", ".bowerrc", "bower.json", "package.json"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.True(t, json.Valid(data), "%s is valid JSON", name)
	}

	var rc struct {
		Ports map[string]int `json:"ports"`
	}
	data, err := os.ReadFile(filepath.Join(dir, ".gingerrc"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &rc))
	assert.Equal(t, map[string]int{"app": 3000, "bs": 3001, "karma": 3002}, rc.Ports)

	index, err := os.ReadFile(filepath.Join(dir, "src", "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(index), `<html ng-app="app">`)
	assert.Contains(t, string(index), "<title>Seed Angular</title>")
	assert.Contains(t, string(index), "<!-- inject:csp -->")
	assert.Contains(t, string(index), "<!-- bower:js -->")
}

func TestGeneratePodKeepsAngularBindings(t *testing.T) {
	dir := t.TempDir()
	ctx := testContext()
	ctx.Pod = "user-profile"

	res, err := NewGenerator().Generate(dir, PodFiles(), ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"src/app/pods/user-profile/user-profile.route.js",
		"src/app/pods/user-profile/user-profile.controller.js",
		"src/app/pods/user-profile/user-profile.controller.spec.js",
		"src/app/pods/user-profile/user-profile.html",
		"src/app/pods/user-profile/user-profile.scss",
	}, res.Created)

	html, err := os.ReadFile(filepath.Join(dir, "src/app/pods/user-profile/user-profile.html"))
	require.NoError(t, err)
	assert.Contains(t, string(html), "{{ userProfile.title }}")

	ctrl, err := os.ReadFile(filepath.Join(dir, "src/app/pods/user-profile/user-profile.controller.js"))
	require.NoError(t, err)
	assert.Contains(t, string(ctrl), ".controller('UserProfileController', UserProfileController)")

	route, err := os.ReadFile(filepath.Join(dir, "src/app/pods/user-profile/user-profile.route.js"))
	require.NoError(t, err)
	assert.Contains(t, string(route), "url: '/user-profile'")
	assert.Contains(t, string(route), "templateUrl: 'pods/user-profile/user-profile.html'")
}

func TestHomePodRoutesToRoot(t *testing.T) {
	dir := t.TempDir()
	ctx := testContext()
	ctx.Pod = "home"

	_, err := NewGenerator().Generate(dir, PodFiles(), ctx)
	require.NoError(t, err)
	route, err := os.ReadFile(filepath.Join(dir, "src/app/pods/home/home.route.js"))
	require.NoError(t, err)
	assert.Contains(t, string(route), "url: '/'")
}

func TestGenerateSkipsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bower.json"), []byte("{}"), 0o644))

	res, err := NewGenerator().Generate(dir, ProjectFiles(), testContext())
	require.NoError(t, err)
	assert.Equal(t, []string{"bower.json"}, res.Skipped)

	data, err := os.ReadFile(filepath.Join(dir, "bower.json"))
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))

	res, err = NewGenerator(WithForce(true)).Generate(dir, ProjectFiles(), testContext())
	require.NoError(t, err)
	assert.Empty(t, res.Skipped)
	data, err = os.ReadFile(filepath.Join(dir, "bower.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"name": "seed-angular"`)
}

func TestCustomPaths(t *testing.T) {
	dir := t.TempDir()
	ctx := testContext()
	ctx.Options.Paths.Src = "client"
	ctx.Options.Paths.Tmp = "build/tmp"

	_, err := NewGenerator().Generate(dir, ProjectFiles(), ctx)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "client", "index.html"))

	karma, err := os.ReadFile(filepath.Join(dir, "karma.conf.js"))
	require.NoError(t, err)
	assert.Contains(t, string(karma), "path.join('build/tmp', 'karma-files.json')")
}

func TestNames(t *testing.T) {
	tests := []struct {
		in, pascal, camel string
	}{
		{"home", "Home", "home"},
		{"user-profile", "UserProfile", "userProfile"},
		{"a_b.c", "ABC", "aBC"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.pascal, Pascal(tt.in))
		assert.Equal(t, tt.camel, Camel(tt.in))
	}

	assert.NoError(t, ValidatePodName("user-profile"))
	for _, bad := range []string{"", "UserProfile", "-home", "home-", "1home", "a--b"} {
		assert.Error(t, ValidatePodName(bad), bad)
	}

	assert.NoError(t, ValidateProjectName("seed-angular"))
	assert.NoError(t, ValidateProjectName("seed.angular_2"))
	for _, bad := range []string{"", "Seed", ".hidden", "_private", "with space"} {
		assert.Error(t, ValidateProjectName(bad), bad)
	}
}
