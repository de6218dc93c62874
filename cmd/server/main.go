// Command intake runs the patient intake service and its offline tools.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Skufu/medintake/internal/questions"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "intake",
		Short: "Conversational patient intake service",
		Long: `intake walks patients through a fixed questionnaire over HTTP, answers
follow-up questions with a language model, and produces a clinician summary
and a printable intake form.

Running intake with no subcommand starts the server.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
		},
		RunE: runServe,
	}
	root.PersistentFlags().String("questions-file", "", "YAML question bank (default: QUESTION_BANK_FILE or the built-in bank)")

	root.AddCommand(newServeCmd(), newQuestionsCmd(), newRenderCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// bankFromFlags loads the bank named by --questions-file, then
// QUESTION_BANK_FILE, falling back to the built-in bank.
func bankFromFlags(cmd *cobra.Command) (*questions.Bank, error) {
	path, _ := cmd.Flags().GetString("questions-file")
	if path == "" {
		path = os.Getenv("QUESTION_BANK_FILE")
	}
	if path == "" {
		return questions.Default(), nil
	}
	b, err := questions.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("question bank %s: %w", path, err)
	}
	return b, nil
}
