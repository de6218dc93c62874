// Package docqa answers questions about a patient-uploaded document.
package docqa

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/Skufu/medintake/internal/llm"
	"github.com/Skufu/medintake/internal/logger"
)

// ErrNoDocument is returned when a question is asked before any upload.
var ErrNoDocument = errors.New("no document uploaded")

const (
	chunkSize    = 1000
	chunkOverlap = 100

	// DefaultBudget is the document context, in characters, sent per question.
	DefaultBudget = 6000
)

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "was": true, "what": true,
	"with": true, "this": true, "that": true, "have": true, "does": true, "did": true,
	"how": true, "why": true, "when": true, "which": true, "who": true, "from": true,
	"about": true, "into": true, "should": true, "can": true, "you": true, "your": true,
	"there": true, "their": true, "any": true, "has": true, "had": true, "will": true,
}

type Asker struct {
	client   llm.Client
	splitter textsplitter.RecursiveCharacter
	budget   int
}

// NewAsker sends at most budget characters of document per question;
// budget <= 0 selects DefaultBudget.
func NewAsker(client llm.Client, budget int) *Asker {
	if budget <= 0 {
		budget = DefaultBudget
	}
	return &Asker{
		client: client,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
			textsplitter.WithSeparators([]string{"\n\n", "\n", ". ", " ", ""}),
		),
		budget: budget,
	}
}

// Ask answers question from document.
func (a *Asker) Ask(ctx context.Context, document, question string) (string, error) {
	if strings.TrimSpace(document) == "" {
		return "", ErrNoDocument
	}
	excerpt, err := a.Context(document, question)
	if err != nil {
		return "", err
	}
	out, err := a.client.Generate(ctx, BuildPrompt(excerpt, question))
	if err != nil {
		return "", fmt.Errorf("document question: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// Context returns the part of document sent to the model: the whole text
// when it fits the budget, otherwise the chunks sharing the most terms
// with question, in document order.
func (a *Asker) Context(document, question string) (string, error) {
	if utf8.RuneCountInString(document) <= a.budget {
		return document, nil
	}

	chunks, err := a.splitter.SplitText(document)
	if err != nil {
		return "", fmt.Errorf("split document: %w", err)
	}
	picked := selectChunks(chunks, terms(question), a.budget)
	logger.Log.WithField("chunks", len(chunks)).WithField("picked", len(picked)).Debug("document context selected")
	return strings.Join(picked, "\n...\n"), nil
}

func BuildPrompt(document, question string) string {
	return "You are a medical assistant. Use the uploaded document to answer this question:\n\n" +
		"Document:\n" + document + "\n\n" +
		"Question: " + strings.TrimSpace(question) + "\nAnswer:"
}

type scored struct {
	index int
	score int
}

func selectChunks(chunks []string, query map[string]bool, budget int) []string {
	ranked := make([]scored, len(chunks))
	for i, c := range chunks {
		n := 0
		for t := range terms(c) {
			if query[t] {
				n++
			}
		}
		ranked[i] = scored{index: i, score: n}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	var keep []int
	used := 0
	for _, r := range ranked {
		size := utf8.RuneCountInString(chunks[r.index])
		if used+size > budget {
			if len(keep) == 0 {
				keep = append(keep, r.index)
			}
			continue
		}
		keep = append(keep, r.index)
		used += size
	}
	sort.Ints(keep)

	out := make([]string, len(keep))
	for i, idx := range keep {
		out[i] = chunks[idx]
	}
	return out
}

func terms(s string) map[string]bool {
	out := make(map[string]bool)
	for _, f := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if utf8.RuneCountInString(f) < 3 || stopWords[f] {
			continue
		}
		out[f] = true
	}
	return out
}
