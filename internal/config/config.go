// Package config loads the project settings file (.gingerrc) into an
// Options record using Viper. The file is JSON; every key can be
// overridden through GINGER_ prefixed environment variables.
//
// Options are read once per process and treated as read-only. The only
// way to change the active environment is WithEnvironment, which
// returns a copy.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	gerrors "github.com/olivejs/ginger/internal/errors"
)

// FileName is the project settings file looked up in the working directory.
const FileName = ".gingerrc"

// DefaultEnvironment is used when neither a flag nor the environment names one.
const DefaultEnvironment = "development"

// Options is the immutable project configuration.
type Options struct {
	Paths PathsConfig `mapstructure:"paths" json:"paths" yaml:"paths"`
	Ports PortsConfig `mapstructure:"ports" json:"ports" yaml:"ports"`
	// CSP maps environment name to directive name to source list.
	CSP   map[string]map[string]string `mapstructure:"content-security-policy" json:"content-security-policy,omitempty" yaml:"content-security-policy,omitempty"`
	Watch WatchConfig                  `mapstructure:"watch" json:"watch" yaml:"watch"`
	Build BuildConfig                  `mapstructure:"build" json:"build" yaml:"build"`
	Tools ToolsConfig                  `mapstructure:"tools" json:"tools" yaml:"tools"`

	// Root is the project directory all relative paths resolve against.
	Root string `mapstructure:"-" json:"root" yaml:"root"`
	// Environment is the active environment name (development,
	// production, test).
	Environment string `mapstructure:"-" json:"environment" yaml:"environment"`
}

type PathsConfig struct {
	Src    string `mapstructure:"src" json:"src" yaml:"src"`
	Tmp    string `mapstructure:"tmp" json:"tmp" yaml:"tmp"`
	Dist   string `mapstructure:"dist" json:"dist" yaml:"dist"`
	Vendor string `mapstructure:"vendor" json:"vendor" yaml:"vendor"`
}

type PortsConfig struct {
	App   int `mapstructure:"app" json:"app" yaml:"app"`
	BS    int `mapstructure:"bs" json:"bs" yaml:"bs"`
	Karma int `mapstructure:"karma" json:"karma" yaml:"karma"`
}

type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" json:"debounce" yaml:"debounce"`
}

type BuildConfig struct {
	Sourcemaps bool `mapstructure:"sourcemaps" json:"sourcemaps" yaml:"sourcemaps"`
	Autoprefix bool `mapstructure:"autoprefix" json:"autoprefix" yaml:"autoprefix"`
}

// ToolsConfig names the external executables. An empty Lint disables
// the external linter; esbuild's syntax check still runs.
type ToolsConfig struct {
	Sass    string `mapstructure:"sass" json:"sass" yaml:"sass"`
	Karma   string `mapstructure:"karma" json:"karma" yaml:"karma"`
	Postcss string `mapstructure:"postcss" json:"postcss" yaml:"postcss"`
	Lint    string `mapstructure:"lint" json:"lint" yaml:"lint"`
}

// Default returns the options used when the settings file leaves a key
// unset.
func Default() *Options {
	return &Options{
		Paths: PathsConfig{
			Src:    "src",
			Tmp:    ".tmp",
			Dist:   "dist",
			Vendor: "bower_components",
		},
		Ports: PortsConfig{
			App:   3000,
			BS:    3001,
			Karma: 3002,
		},
		Watch: WatchConfig{Debounce: 50 * time.Millisecond},
		Build: BuildConfig{Sourcemaps: true, Autoprefix: false},
		Tools: ToolsConfig{
			Sass:    "sass",
			Karma:   "karma",
			Postcss: "postcss",
		},
		Root:        ".",
		Environment: DefaultEnvironment,
	}
}

// Load unmarshals the settings held by v (already pointed at the config
// file by the caller) and applies defaults, the vendor directory from
// .bowerrc, and validation. A nil v uses the global viper instance.
func Load(v *viper.Viper) (*Options, error) {
	if v == nil {
		v = viper.GetViper()
	}

	opts := Default()
	if err := v.Unmarshal(opts); err != nil {
		return nil, gerrors.NewConfigError(gerrors.ErrCodeConfigInvalid, "malformed settings", err)
	}

	if used := v.ConfigFileUsed(); used != "" {
		opts.Root = filepath.Dir(used)
	}
	if abs, err := filepath.Abs(opts.Root); err == nil {
		opts.Root = abs
	}

	if !v.IsSet("paths.vendor") {
		if dir := bowerDirectory(opts.Root); dir != "" {
			opts.Paths.Vendor = dir
		}
	}

	// Viper lower-cases keys; trim the directive values once here so
	// the CSP renderer can join them as they are.
	for env, directives := range opts.CSP {
		for name, sources := range directives {
			directives[name] = strings.TrimSpace(sources)
		}
		opts.CSP[env] = directives
	}

	if err := Validate(opts); err != nil {
		return nil, err
	}

	return opts, nil
}

// bowerDirectory reads the "directory" key of .bowerrc, if present.
func bowerDirectory(root string) string {
	path := filepath.Join(root, ".bowerrc")
	if _, err := os.Stat(path); err != nil {
		return ""
	}

	b := viper.New()
	b.SetConfigFile(path)
	b.SetConfigType("json")
	if err := b.ReadInConfig(); err != nil {
		return ""
	}

	return b.GetString("directory")
}

// ResolveEnvironment picks the active environment: an explicit flag
// value, then GINGER_ENV, then NODE_ENV, then DefaultEnvironment.
func ResolveEnvironment(flag string) string {
	if flag != "" {
		return flag
	}
	for _, key := range []string{"GINGER_ENV", "NODE_ENV"} {
		if env := strings.TrimSpace(os.Getenv(key)); env != "" {
			return env
		}
	}

	return DefaultEnvironment
}

// WithEnvironment returns a copy of o with a different active
// environment. The receiver is left untouched.
func (o *Options) WithEnvironment(env string) *Options {
	clone := *o
	clone.Environment = env
	if o.CSP != nil {
		clone.CSP = make(map[string]map[string]string, len(o.CSP))
		for k, directives := range o.CSP {
			copied := make(map[string]string, len(directives))
			for name, sources := range directives {
				copied[name] = sources
			}
			clone.CSP[k] = copied
		}
	}

	return &clone
}

// Path joins elem onto the project root.
func (o *Options) Path(elem ...string) string {
	return filepath.Join(append([]string{o.Root}, elem...)...)
}

// SrcDir is the absolute-or-root-relative application source directory.
func (o *Options) SrcDir() string { return o.Path(o.Paths.Src) }

// TmpDir is the temporary build output directory.
func (o *Options) TmpDir() string { return o.Path(o.Paths.Tmp) }

// DistDir is the distribution output directory.
func (o *Options) DistDir() string { return o.Path(o.Paths.Dist) }

// VendorDir is the bower package directory.
func (o *Options) VendorDir() string { return o.Path(o.Paths.Vendor) }

// ServeDir is where development artifacts (compiled css, injected
// index.html, appinfo.js) are written.
func (o *Options) ServeDir() string { return o.Path(o.Paths.Tmp, "serve") }

// PartialsDir holds the generated template cache script.
func (o *Options) PartialsDir() string { return o.Path(o.Paths.Tmp, "partials") }

// Validate checks option values for correctness.
func Validate(o *Options) error {
	if err := validatePorts(&o.Ports); err != nil {
		return gerrors.NewConfigError(gerrors.ErrCodeConfigInvalid, "ports", err)
	}

	for key, path := range map[string]string{
		"paths.src":    o.Paths.Src,
		"paths.tmp":    o.Paths.Tmp,
		"paths.dist":   o.Paths.Dist,
		"paths.vendor": o.Paths.Vendor,
	} {
		if err := validatePath(path); err != nil {
			return gerrors.NewConfigError(gerrors.ErrCodeConfigInvalid, key, err)
		}
	}

	src := filepath.Clean(o.Paths.Src)
	if filepath.Clean(o.Paths.Tmp) == src || filepath.Clean(o.Paths.Dist) == src {
		return gerrors.NewConfigError(gerrors.ErrCodeConfigInvalid,
			"paths", fmt.Errorf("tmp and dist must differ from src %q", o.Paths.Src))
	}

	if o.Watch.Debounce < 0 {
		return gerrors.NewConfigError(gerrors.ErrCodeConfigInvalid,
			"watch.debounce", fmt.Errorf("negative duration %s", o.Watch.Debounce))
	}

	return nil
}

func validatePorts(p *PortsConfig) error {
	seen := make(map[int]string)
	for name, port := range map[string]int{"app": p.App, "bs": p.BS, "karma": p.Karma} {
		if port < 0 || port > 65535 {
			return fmt.Errorf("port %s=%d is not in valid range 0-65535", name, port)
		}
		if port == 0 {
			continue
		}
		if other, ok := seen[port]; ok {
			return fmt.Errorf("ports %s and %s both use %d", other, name, port)
		}
		seen[port] = name
	}

	return nil
}

// validatePath validates a configured directory. Paths are relative to
// the project root and must not escape it.
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	cleanPath := filepath.Clean(path)

	if filepath.IsAbs(cleanPath) {
		return fmt.Errorf("path should be relative to the project root: %s", path)
	}

	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path contains traversal: %s", path)
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}
