package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/olivejs/ginger/internal/version"
)

var (
	versionFormat   string
	versionShort    bool
	versionDetailed bool
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display the version, commit, build time, Go version and platform.

Examples:
  ginger version                 # version and platform
  ginger version --detailed      # every known build field
  ginger version --format json   # machine readable`,
	Args: cobra.NoArgs,
	RunE: runVersionCommand,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().StringVarP(&versionFormat, "format", "f", "text", "output format (text, json)")
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "show the version only")
	versionCmd.Flags().BoolVar(&versionDetailed, "detailed", false, "show detailed version information")
}

func runVersionCommand(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	switch versionFormat {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(version.GetBuildInfo())
	case "text":
	default:
		return fmt.Errorf("unsupported format: %s (supported: text, json)", versionFormat)
	}

	if versionShort {
		fmt.Fprintln(out, version.GetShortVersion())
		return nil
	}
	if versionDetailed {
		fmt.Fprintln(out, version.GetDetailedVersion())
		if version.IsDirty() {
			fmt.Fprintln(out, "Working directory: dirty")
		}
		if version.IsRelease() {
			fmt.Fprintln(out, "Build type: release")
		} else {
			fmt.Fprintln(out, "Build type: development")
		}
		return nil
	}

	info := version.GetBuildInfo()
	fmt.Fprintf(out, "ginger %s", version.GetShortVersion())
	if info.Dirty {
		fmt.Fprint(out, " (dirty)")
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Go: %s\nPlatform: %s\n", info.GoVersion, info.Platform)
	return nil
}
