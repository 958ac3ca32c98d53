package main

import (
	"github.com/aretw0/quill/internal/cli"
	"github.com/aretw0/quill/pkg/domain"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage stored refinement sessions",
	Long:  `List, inspect, and remove sessions in the configured store.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List stored sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd, domain.LifecycleHooks{})
		if err != nil {
			return err
		}
		defer app.Close()
		return cli.ListSessions(cmd.Context(), app, cmd.OutOrStdout())
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Inspect the state and iteration history of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		if mermaid, _ := cmd.Flags().GetBool("mermaid"); mermaid {
			format = cli.FormatMermaid
		}
		app, err := openApp(cmd, domain.LifecycleHooks{})
		if err != nil {
			return err
		}
		defer app.Close()
		return cli.InspectSession(cmd.Context(), app, args[0], format, cmd.OutOrStdout())
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <session-id>...",
	Short: "Remove one or more sessions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd, domain.LifecycleHooks{})
		if err != nil {
			return err
		}
		defer app.Close()
		return cli.RemoveSessions(cmd.Context(), app, args, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionRmCmd)

	// Session commands never call the model.
	for _, c := range []*cobra.Command{sessionLsCmd, sessionInspectCmd, sessionRmCmd} {
		c.PreRun = func(cmd *cobra.Command, args []string) {
			_ = cmd.Flags().Set("stub", "true")
		}
	}

	sessionInspectCmd.Flags().String("format", cli.FormatText, "Output format: text, json or mermaid")
	sessionInspectCmd.Flags().Bool("mermaid", false, "Shorthand for --format mermaid")
}
