package main

import (
	"fmt"
	"os"

	"github.com/aretw0/quill/internal/cli"
	"github.com/aretw0/quill/internal/config"
	"github.com/aretw0/quill/pkg/domain"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "quill",
	Short: "quill iteratively drafts, scores and revises text with a language model",
	Long: `quill runs a refinement loop: a model writes a draft from your material, an
evaluator scores it from 0 to 100 against your criteria, and the draft is revised
until the score reaches the threshold or the iteration cap is hit.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Config file (default: user config merged with .quill.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "Log at debug level to stderr")
	rootCmd.PersistentFlags().Bool("stub", false, "Use deterministic offline completers instead of the model")
	rootCmd.PersistentFlags().String("store", "", "Session store driver: memory, file, redis or sqlite")
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFromPath(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Log.Level = "debug"
	}
	if driver, _ := cmd.Flags().GetString("store"); driver != "" {
		cfg.Store.Driver = driver
	}
	return cfg, nil
}

// openApp loads configuration and builds the engine. hooks receive every lifecycle event.
func openApp(cmd *cobra.Command, hooks domain.LifecycleHooks) (*cli.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	stub, _ := cmd.Flags().GetBool("stub")
	return cli.NewApp(cmd.Context(), cfg, cli.AppOptions{Stub: stub, Hooks: hooks})
}
