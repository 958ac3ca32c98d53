package main

import (
	"context"
	"os"

	"github.com/aretw0/quill"
	"github.com/aretw0/quill/internal/cli"
	"github.com/aretw0/quill/internal/presentation/tui"
	"github.com/aretw0/quill/pkg/domain"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [brief]",
	Short: "Refine a brief until it passes or the iteration cap is hit",
	Long: `Loads a brief (YAML, JSON or markdown with frontmatter), runs the refinement loop
and prints the final draft. Flags override the values of the brief.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := cli.RunOptions{}
		if len(args) > 0 {
			opts.BriefPath = args[0]
		}
		opts.SessionID, _ = cmd.Flags().GetString("session")
		opts.Resume, _ = cmd.Flags().GetBool("resume")
		opts.Watch, _ = cmd.Flags().GetBool("watch")
		opts.JSON, _ = cmd.Flags().GetBool("json")
		opts.Overrides.Material, _ = cmd.Flags().GetString("material")
		opts.Overrides.Requirements, _ = cmd.Flags().GetString("requirements")
		opts.Overrides.ScoringCriteria, _ = cmd.Flags().GetString("criteria")
		if cmd.Flags().Changed("threshold") {
			v, _ := cmd.Flags().GetInt("threshold")
			opts.Overrides.ScoreThreshold = &v
		}
		if cmd.Flags().Changed("max-iterations") {
			v, _ := cmd.Flags().GetInt("max-iterations")
			opts.Overrides.MaxIterations = &v
		}
		if path, _ := cmd.Flags().GetString("material-file"); path != "" {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			opts.Overrides.Material = string(data)
		}

		interactive := !opts.JSON && tui.IsTerminal(os.Stdout)
		opts.Styled = interactive

		var hooks domain.LifecycleHooks
		if !opts.JSON {
			hooks = cli.ConsoleHooks(os.Stdout)
		}
		app, err := openApp(cmd, hooks)
		if err != nil {
			return err
		}
		defer app.Close()

		if interactive {
			tui.PrintBanner(os.Stdout, quill.Version)
		}

		sigCtx := cli.NewSignalContext(context.Background())
		defer sigCtx.Cancel()
		return cli.Execute(sigCtx, app, opts, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("session", "", "Session ID (generated when empty)")
	runCmd.Flags().Bool("resume", false, "Continue the stored session given by --session")
	runCmd.Flags().BoolP("watch", "w", false, "Refine again whenever the brief changes")
	runCmd.Flags().Bool("json", false, "Print the result as JSON")
	runCmd.Flags().String("material", "", "Material to draft from")
	runCmd.Flags().String("material-file", "", "Read the material from a file")
	runCmd.Flags().String("requirements", "", "What the draft must satisfy")
	runCmd.Flags().String("criteria", "", "How the evaluator scores drafts")
	runCmd.Flags().Int("threshold", domain.DefaultScoreThreshold, "Score that ends the loop (0-100)")
	runCmd.Flags().Int("max-iterations", domain.DefaultMaxIterations, "Iteration cap")
}
