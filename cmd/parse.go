package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fyerfyer/quiz-gen-system/api/model"
	"github.com/fyerfyer/quiz-gen-system/internal/quiz"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func parseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse [file|-]",
		Short: "Extract questions from generated quiz text",
		Long: `Run the question extraction engine on a saved model response and print
the structured questions. Reads stdin when no file or '-' is given.

Example:
  quizgen parse response.txt
  cat response.txt | quizgen parse --output yaml --stats`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			showStats, _ := cmd.Flags().GetBool("stats")

			var r io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", args[0], err)
				}
				defer f.Close()
				r = f
			}

			data, err := io.ReadAll(r)
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}

			questions, stats := quiz.ParseWithStats(string(data))
			if questions == nil {
				questions = []quiz.Question{}
			}

			var result interface{} = questions
			if showStats {
				result = model.NewParseResponse(questions, stats)
			}

			return writeOutput(cmd.OutOrStdout(), output, result)
		},
	}

	cmd.Flags().StringP("output", "o", "json", "Output format (json/yaml)")
	cmd.Flags().Bool("stats", false, "Include parse statistics")

	return cmd
}

// writeOutput 按格式输出结果
func writeOutput(w io.Writer, format string, v interface{}) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}
