package cmd

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/olivejs/ginger/internal/config"
	gerrors "github.com/olivejs/ginger/internal/errors"
	"github.com/olivejs/ginger/internal/logging"
)

var (
	cfgFile   string
	envFlag   string
	logLevel  string
	logFormat string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ginger",
	Short: "Build, serve and test Angular seed projects",
	Long: `Ginger builds Angular.js seed projects: it compiles Sass, injects vendor
and application files into index.html in dependency order, serves the app
with live reload, runs karma and produces a revisioned production build.

Quick Start:
  ginger init my-app      Scaffold a new project
  ginger serve --open     Build, watch and serve with live reload
  ginger test             Run the unit tests once
  ginger build            Production build into dist/`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		newLogger().Error(context.Background(), err, "Command failed")
	}
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "settings file (default is .gingerrc, can also use GINGER_CONFIG_FILE)")
	flags.StringVarP(&envFlag, "env", "e", "", "environment (default from GINGER_ENV, NODE_ENV, then development)")
	flags.StringVarP(&logLevel, "log-level", "l", "info", "log level (debug, info, warn, error)")
	flags.StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	_ = viper.BindPFlag("log-level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("log-format", flags.Lookup("log-format"))
}

// initConfig points viper at the settings file: the --config flag, then
// GINGER_CONFIG_FILE, then .gingerrc in the working directory.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("GINGER_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.SetConfigFile(config.FileName)
	}
	viper.SetConfigType("json")

	viper.SetEnvPrefix("GINGER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

// loadOptions reads the settings file and resolves the environment.
// Every command that works on a project needs one; a missing or
// unreadable file is a ConfigError.
func loadOptions() (*config.Options, error) {
	if err := viper.ReadInConfig(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, gerrors.NewConfigError(gerrors.ErrCodeConfigMissing,
				"settings file not found", err).
				WithContext("file", viper.ConfigFileUsed()).
				WithContext("hint", "run ginger init, or pass --config")
		}
		return nil, gerrors.NewConfigError(gerrors.ErrCodeConfigInvalid,
			"cannot read settings file", err).WithContext("file", viper.ConfigFileUsed())
	}

	opts, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	return opts.WithEnvironment(config.ResolveEnvironment(envFlag)), nil
}

func newLogger() *logging.GingerLogger {
	level, err := logging.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		level = logging.LevelInfo
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: viper.GetString("log-format"),
		Output: os.Stderr,
	})
}
