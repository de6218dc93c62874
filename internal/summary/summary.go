// Package summary turns intake answers into a clinician-facing summary.
package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Skufu/medintake/internal/llm"
	"github.com/Skufu/medintake/internal/questions"
)

// ErrNoFacts means none of the answered questions are medically relevant.
var ErrNoFacts = errors.New("no medically relevant answers to summarize")

// Keywords select which questions feed the summary. Matching is a
// substring test against the lower-cased question text.
var Keywords = []string{"name", "birth", "diagnos", "medic", "hospital", "surg", "pain"}

const (
	promptHeader = "Generate a professional medical summary using ONLY these facts:\n\n"
	promptFormat = "\n\nFormat with these sections:\n" +
		"1. Patient Demographics\n" +
		"2. Medical History\n" +
		"3. Current Medications\n" +
		"4. Treatment Plan\n" +
		"Use bullet points and medical terminology."
)

// Fact is one relevant question/answer pair.
type Fact struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// RelevantFacts pairs answers[i] with question i and keeps the pairs whose
// question mentions a keyword. Answers beyond the bank are ignored.
func RelevantFacts(bank *questions.Bank, answers []string) []Fact {
	var facts []Fact
	for i, a := range answers {
		q, ok := bank.At(i)
		if !ok {
			break
		}
		if !relevant(q.Text) {
			continue
		}
		facts = append(facts, Fact{Question: q.Text, Answer: a})
	}
	return facts
}

func relevant(question string) bool {
	lower := strings.ToLower(question)
	for _, kw := range Keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// BuildPrompt returns the summary prompt, or ErrNoFacts.
func BuildPrompt(bank *questions.Bank, answers []string) (string, error) {
	facts := RelevantFacts(bank, answers)
	if len(facts) == 0 {
		return "", ErrNoFacts
	}
	lines := make([]string, len(facts))
	for i, f := range facts {
		lines[i] = fmt.Sprintf("%s: %s", f.Question, f.Answer)
	}
	return promptHeader + strings.Join(lines, "\n") + promptFormat, nil
}

type Generator struct {
	client llm.Client
	bank   *questions.Bank
}

func NewGenerator(client llm.Client, bank *questions.Bank) *Generator {
	return &Generator{client: client, bank: bank}
}

// Generate asks the model for a summary of the relevant answers.
func (g *Generator) Generate(ctx context.Context, answers []string) (string, error) {
	prompt, err := BuildPrompt(g.bank, answers)
	if err != nil {
		return "", err
	}
	out, err := g.client.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generate summary: %w", err)
	}
	return strings.TrimSpace(out), nil
}
