package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/olivejs/ginger/internal/config"
	"github.com/olivejs/ginger/internal/scaffolding"
	"github.com/olivejs/ginger/internal/services"
)

var (
	initName  string
	initPod   string
	initForce bool
	podForce  bool
)

var initCmd = &cobra.Command{
	Use:     "init [directory]",
	Aliases: []string{"i"},
	Short:   "Scaffold a new seed project",
	Long: `Create a seed project: .gingerrc, bower.json, package.json, karma.conf.js,
src/index.html with injection markers, the root module and a first pod.
Existing files are left alone unless --force is given.

Examples:
  ginger init                    # current directory
  ginger init my-app             # new directory
  ginger init my-app --pod dashboard`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		svc := services.NewInitService(newLogger())
		res, err := svc.InitProject(cmd.Context(), services.InitOptions{
			ProjectDir: dir,
			Name:       initName,
			Pod:        initPod,
			Force:      initForce,
			Options:    config.Default(),
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		printResult(out, res)
		fmt.Fprintf(out, "\nNext steps:\n  cd %s\n  npm install && bower install\n  ginger serve --open\n", dir)
		return nil
	},
}

var generateCmd = &cobra.Command{
	Use:     "generate",
	Aliases: []string{"g"},
	Short:   "Add generated code to the current project",
}

var generatePodCmd = &cobra.Command{
	Use:   "pod <name>",
	Short: "Add a routed view with controller, stylesheet and spec",
	Long: `Create src/app/pods/<name>/ with a route, controller, view, stylesheet and
controller spec. The name is kebab-case; "user-profile" registers the
UserProfileController at /user-profile.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := loadOptions()
		if err != nil {
			return err
		}
		res, err := services.NewInitService(newLogger()).GeneratePod(cmd.Context(), services.PodOptions{
			Name:    args[0],
			Force:   podForce,
			Options: opts,
		})
		if err != nil {
			return err
		}
		printResult(cmd.OutOrStdout(), res)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd, generateCmd)
	generateCmd.AddCommand(generatePodCmd)

	initCmd.Flags().StringVar(&initName, "name", "", "package name (default is the directory name)")
	initCmd.Flags().StringVar(&initPod, "pod", "home", "first pod to generate")
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite existing files")
	generatePodCmd.Flags().BoolVar(&podForce, "force", false, "overwrite existing files")
}

func printResult(out io.Writer, res *scaffolding.Result) {
	for _, f := range res.Created {
		fmt.Fprintf(out, "  create  %s\n", f)
	}
	for _, f := range res.Skipped {
		fmt.Fprintf(out, "  exists  %s\n", f)
	}
}
