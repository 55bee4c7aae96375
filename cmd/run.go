package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/olivejs/ginger/internal/metrics"
	"github.com/olivejs/ginger/internal/services"
)

var openBrowser bool

var runCmd = &cobra.Command{
	Use:   "run [task]...",
	Short: "Run tasks with their prerequisites",
	Long: `Run one or more pipeline tasks. Prerequisites run first and each task runs
at most once. With no task the default task (inject) runs.

Examples:
  ginger run                 # inject vendor and app files
  ginger run clean build     # clean, then production build
  ginger run serve --open    # serve and open a browser`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTasks(cmd, args...)
	},
}

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List the pipeline tasks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		opts, err := loadOptions()
		if err != nil {
			return err
		}
		p, err := services.NewPipeline(services.Config{Options: opts})
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TASK\tDEPENDS ON\tDESCRIPTION")
		for _, t := range p.Tasks() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", t.Name, strings.Join(t.Deps, ", "), t.Description)
		}
		return w.Flush()
	},
}

// taskCommands are the pipeline tasks exposed as top-level commands.
var taskCommands = []struct {
	name  string
	short string
}{
	{services.TaskServe, "Build, watch and serve the app with live reload"},
	{services.TaskWatch, "Rebuild on change without serving"},
	{services.TaskBuild, "Production build into the dist directory"},
	{services.TaskTest, "Run the unit tests once"},
	{services.TaskTestAuto, "Run the unit tests on every change"},
	{services.TaskStyles, "Compile the root stylesheet"},
	{services.TaskScripts, "Check the application scripts"},
	{services.TaskLint, "Alias of scripts"},
	{services.TaskTemplates, "Build the template cache script"},
	{services.TaskInject, "Inject vendor and app files into index.html"},
	{services.TaskApp, "Bundle the application into dist"},
	{services.TaskFonts, "Copy vendor and app fonts into dist"},
	{services.TaskAssets, "Copy static assets into dist"},
	{services.TaskClean, "Remove every generated file"},
	{services.TaskCleanTmp, "Remove the tmp directory"},
	{services.TaskCleanDist, "Empty the dist directory"},
}

func init() {
	rootCmd.AddCommand(runCmd, tasksCmd)
	addOpenFlag(runCmd.Flags())

	for _, tc := range taskCommands {
		name := tc.name
		c := &cobra.Command{
			Use:   name,
			Short: tc.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runTasks(cmd, name)
			},
		}
		if name == services.TaskServe {
			addOpenFlag(c.Flags())
		}
		rootCmd.AddCommand(c)
	}
}

func addOpenFlag(fs *pflag.FlagSet) {
	fs.BoolVar(&openBrowser, "open", false, "open a browser when the dev server starts")
}

// runTasks builds the pipeline for the current project and runs targets
// until they finish or the process is interrupted.
func runTasks(cmd *cobra.Command, targets ...string) error {
	opts, err := loadOptions()
	if err != nil {
		return err
	}
	logger := newLogger()
	// Server errors go through the standard log package; route it to the
	// same handler.
	slog.SetDefault(logger.Slog())
	recorder := metrics.NewPrometheusRecorder()

	p, err := services.NewPipeline(services.Config{
		Options:        opts,
		Logger:         logger,
		Metrics:        recorder,
		MetricsHandler: recorder.Handler(),
		Open:           openBrowser,
		TestOutput:     cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(targets) == 0 {
		targets = []string{services.TaskDefault}
	}
	logger.Debug(ctx, "Using settings", "root", opts.Root, "env", opts.Environment)
	start := time.Now()
	if err := p.Run(ctx, targets...); err != nil {
		return err
	}
	logger.Info(ctx, "Finished", "tasks", strings.Join(targets, " "), "duration", time.Since(start).Round(time.Millisecond))
	return nil
}
