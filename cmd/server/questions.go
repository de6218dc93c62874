package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newQuestionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "questions",
		Short: "Print the question bank",
		RunE: func(cmd *cobra.Command, args []string) error {
			bank, err := bankFromFlags(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, sec := range bank.Sections() {
				suffix := ""
				if !sec.InReport {
					suffix = " (not in report)"
				}
				fmt.Fprintf(out, "%s%s\n", sec.Name, suffix)
				for _, i := range sec.Questions {
					q, _ := bank.At(i)
					fmt.Fprintf(out, "  %2d. %s\n", q.Index+1, q.Text)
				}
			}
			return nil
		},
	}
}
