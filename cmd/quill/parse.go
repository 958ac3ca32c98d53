package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/aretw0/quill/pkg/parser"
	"github.com/spf13/cobra"
)

var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "Extract score, feedback and key issues from evaluator text",
	Long:  `Reads evaluator output from a file, or stdin when no file is given, and prints the parsed evaluation as JSON.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			data []byte
			err  error
		)
		if len(args) > 0 && args[0] != "-" {
			data, err = os.ReadFile(args[0])
		} else {
			data, err = io.ReadAll(cmd.InOrStdin())
		}
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(parser.Parse(string(data)))
	},
}

func init() {
	rootCmd.AddCommand(parseCmd)
}
