package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configFormat string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective settings",
	Long: `Display the settings after loading .gingerrc, applying GINGER_ environment
overrides and defaults, and resolving the environment.

Examples:
  ginger config                  # JSON
  ginger config --format yaml    # YAML
  ginger config validate         # check the settings file`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the settings file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		opts, err := loadOptions()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Settings are valid (root %s, environment %s)\n", opts.Root, opts.Environment)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.Flags().StringVarP(&configFormat, "format", "f", "json", "output format (json, yaml)")
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	opts, err := loadOptions()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch configFormat {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(opts)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(opts); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format: %s (supported: json, yaml)", configFormat)
	}
}
