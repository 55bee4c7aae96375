package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/olivejs/ginger/internal/github"
)

var (
	githubAPI    string
	githubToken  string
	githubFormat string
)

var repoCmd = &cobra.Command{
	Use:   "repo <owner/name>",
	Short: "Show a repository the way the repo widget binds it",
	Long: `Fetch a repository from the GitHub API and print the view the app's
repository widget binds. Counts that cannot be loaded print as "- -".

Examples:
  ginger repo olivejs/seed-angular
  ginger repo olivejs/seed-angular --format text`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		view := github.BindRepo(cmd.Context(), newGitHubClient(), newLogger(), args[0])
		if githubFormat == "text" {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\nstars: %s\nforks: %s\n", view.Name, view.Stars, view.Forks)
			if view.URL != "" {
				fmt.Fprintln(cmd.OutOrStdout(), view.URL)
			}
			return nil
		}
		return printView(cmd, view)
	},
}

var userCmd = &cobra.Command{
	Use:   "user <username>",
	Short: "Show a user the way the profile widget binds it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		view := github.BindUser(cmd.Context(), newGitHubClient(), newLogger(), args[0])
		if githubFormat == "text" {
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n%s\n", view.Name, view.Username, view.URL)
			return nil
		}
		return printView(cmd, view)
	},
}

func init() {
	rootCmd.AddCommand(repoCmd, userCmd)
	for _, c := range []*cobra.Command{repoCmd, userCmd} {
		c.Flags().StringVar(&githubAPI, "api-url", github.DefaultBaseURL, "GitHub API base URL")
		c.Flags().StringVar(&githubToken, "token", "", "API token (default from GITHUB_TOKEN)")
		c.Flags().StringVarP(&githubFormat, "format", "f", "json", "output format (json, text)")
	}
}

func newGitHubClient() *github.Client {
	token := githubToken
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}
	return github.NewClient(
		github.WithBaseURL(githubAPI),
		github.WithToken(token),
		github.WithLogger(newLogger()),
	)
}

func printView(cmd *cobra.Command, view any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}
