package main

import (
	"fmt"

	"github.com/aretw0/quill/internal/brief"
	"github.com/aretw0/quill/internal/validator"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <brief>",
	Short: "Check a brief without calling the model",
	Long:  `Loads a brief and reports missing inputs and values that fail their type or range check.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		extra, err := cfg.ExtraSchema()
		if err != nil {
			return err
		}
		in, err := brief.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if err := validator.ValidateInputs(in, extra); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Brief is valid! ✅")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
