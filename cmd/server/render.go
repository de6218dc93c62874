package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Skufu/medintake/internal/report"
	"github.com/Skufu/medintake/internal/screening"
)

func newRenderCmd() *cobra.Command {
	var answersPath, outPath string
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render an intake form PDF from a JSON list of answers",
		Example: `  intake render --answers answers.json --out patient_summary.pdf
  where answers.json is ["Ana Diaz", "1990-01-01", ...] or {"answers": [...]}`,
		RunE: func(cmd *cobra.Command, args []string) error {
			bank, err := bankFromFlags(cmd)
			if err != nil {
				return err
			}
			answers, err := readAnswers(answersPath)
			if err != nil {
				return err
			}

			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("create %s: %w", outPath, err)
			}
			flags := screening.EvaluateAnswers(bank, answers).Flags
			if err := report.Render(f, bank, answers, flags); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d answers, %d screening flags)\n", outPath, len(answers), len(flags))
			return nil
		},
	}
	cmd.Flags().StringVar(&answersPath, "answers", "", "JSON file with the answers in question order")
	cmd.Flags().StringVar(&outPath, "out", report.Filename, "output PDF path")
	_ = cmd.MarkFlagRequired("answers")
	return cmd
}

func readAnswers(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read answers: %w", err)
	}

	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Answers []string `json:"answers"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("parse answers %s: %w", path, err)
	}
	return wrapped.Answers, nil
}
