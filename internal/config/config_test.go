package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gerrors "github.com/olivejs/ginger/internal/errors"
)

const sampleRC = `{
  "paths": {"src": "src", "tmp": ".tmp", "dist": "dist"},
  "ports": {"app": 3000, "bs": 3001, "karma": 3002},
  "content-security-policy": {
    "production": {
      "default-src": "'self'",
      "script-src": " 'self' https://api.github.com "
    }
  }
}`

func readJSON(t *testing.T, body string) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.SetConfigType("json")
	require.NoError(t, v.ReadConfig(strings.NewReader(body)))
	return v
}

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		expectError bool
		check       func(t *testing.T, o *Options)
	}{
		{
			name: "full settings file",
			body: sampleRC,
			check: func(t *testing.T, o *Options) {
				assert.Equal(t, "src", o.Paths.Src)
				assert.Equal(t, ".tmp", o.Paths.Tmp)
				assert.Equal(t, 3002, o.Ports.Karma)
				require.Contains(t, o.CSP, "production")
				assert.Equal(t, "'self' https://api.github.com", o.CSP["production"]["script-src"])
			},
		},
		{
			name: "defaults fill missing keys",
			body: `{"paths": {"src": "app"}}`,
			check: func(t *testing.T, o *Options) {
				assert.Equal(t, "app", o.Paths.Src)
				assert.Equal(t, ".tmp", o.Paths.Tmp)
				assert.Equal(t, "bower_components", o.Paths.Vendor)
				assert.Equal(t, 3000, o.Ports.App)
				assert.Equal(t, 50*time.Millisecond, o.Watch.Debounce)
				assert.Equal(t, "sass", o.Tools.Sass)
				assert.Equal(t, DefaultEnvironment, o.Environment)
				assert.Nil(t, o.CSP)
			},
		},
		{
			name: "debounce as duration string",
			body: `{"watch": {"debounce": "120ms"}}`,
			check: func(t *testing.T, o *Options) {
				assert.Equal(t, 120*time.Millisecond, o.Watch.Debounce)
			},
		},
		{
			name:        "port out of range",
			body:        `{"ports": {"app": 70000}}`,
			expectError: true,
		},
		{
			name:        "duplicate ports",
			body:        `{"ports": {"app": 3000, "bs": 3000}}`,
			expectError: true,
		},
		{
			name:        "non numeric port",
			body:        `{"ports": {"app": "http"}}`,
			expectError: true,
		},
		{
			name:        "tmp equals src",
			body:        `{"paths": {"src": "src", "tmp": "./src"}}`,
			expectError: true,
		},
		{
			name:        "path traversal",
			body:        `{"paths": {"dist": "../outside"}}`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := Load(readJSON(t, tt.body))
			if tt.expectError {
				require.Error(t, err)
				assert.True(t, gerrors.IsConfigError(err))
				return
			}
			require.NoError(t, err)
			tt.check(t, opts)
		})
	}
}

func TestLoadReadsBowerrcDirectory(t *testing.T) {
	dir := writeProject(t, map[string]string{
		FileName:   sampleRC,
		".bowerrc": `{"directory": "vendor/bower"}`,
	})

	v := viper.New()
	v.SetConfigFile(filepath.Join(dir, FileName))
	v.SetConfigType("json")
	require.NoError(t, v.ReadInConfig())

	opts, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, dir, opts.Root)
	assert.Equal(t, "vendor/bower", opts.Paths.Vendor)
	assert.Equal(t, filepath.Join(dir, "vendor/bower"), opts.VendorDir())
	assert.Equal(t, filepath.Join(dir, ".tmp", "serve"), opts.ServeDir())
}

func TestExplicitVendorWinsOverBowerrc(t *testing.T) {
	dir := writeProject(t, map[string]string{
		FileName:   `{"paths": {"vendor": "lib"}}`,
		".bowerrc": `{"directory": "vendor/bower"}`,
	})

	v := viper.New()
	v.SetConfigFile(filepath.Join(dir, FileName))
	v.SetConfigType("json")
	require.NoError(t, v.ReadInConfig())

	opts, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "lib", opts.Paths.Vendor)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("GINGER_PORTS_APP", "4000")

	v := readJSON(t, sampleRC)
	v.SetEnvPrefix("GINGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	opts, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 4000, opts.Ports.App)
}

func TestResolveEnvironment(t *testing.T) {
	t.Setenv("GINGER_ENV", "")
	t.Setenv("NODE_ENV", "")
	assert.Equal(t, "development", ResolveEnvironment(""))

	t.Setenv("NODE_ENV", "test")
	assert.Equal(t, "test", ResolveEnvironment(""))

	t.Setenv("GINGER_ENV", "production")
	assert.Equal(t, "production", ResolveEnvironment(""))

	assert.Equal(t, "staging", ResolveEnvironment("staging"))
}

func TestWithEnvironmentCopies(t *testing.T) {
	opts, err := Load(readJSON(t, sampleRC))
	require.NoError(t, err)

	prod := opts.WithEnvironment("production")
	prod.CSP["production"]["default-src"] = "'none'"

	assert.Equal(t, DefaultEnvironment, opts.Environment)
	assert.Equal(t, "production", prod.Environment)
	assert.Equal(t, "'self'", opts.CSP["production"]["default-src"])
}

func TestValidatePath(t *testing.T) {
	assert.NoError(t, validatePath("src"))
	assert.NoError(t, validatePath(".tmp/serve"))
	assert.NoError(t, validatePath("..hidden"))
	assert.Error(t, validatePath(""))
	assert.Error(t, validatePath("/abs"))
	assert.Error(t, validatePath("a/../../b"))
	assert.Error(t, validatePath("src;rm"))
}
