// Package screening flags red-flag findings in free-text intake answers
// with a small keyword and drug-class rule engine.
package screening

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Skufu/medintake/internal/questions"
)

const baseScore = 5

// Input is one piece of patient text and where it came from.
type Input struct {
	Source string
	Text   string
}

type Flag struct {
	RuleID   string `json:"ruleId"`
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Label    string `json:"label"`
	Source   string `json:"source"`
	Note     string `json:"note"`
}

type Result struct {
	RiskScore int      `json:"riskScore"`
	RiskLevel string   `json:"riskLevel"`
	Flags     []Flag   `json:"flags"`
	Issues    []string `json:"issues"`
	Source    string   `json:"source"`
}

var (
	negatedAnswers = map[string]bool{"no": true, "none": true, "n/a": true, "na": true, "nil": true, "nothing": true, "nope": true}
	bloodPressure  = regexp.MustCompile(`(?:\bbp\b|blood pressure)[^0-9]{0,12}(\d{2,3})\s*/\s*(\d{2,3})`)
)

// negationWords cancel a keyword found within the three words after them.
var negationWords = map[string]bool{
	"no": true, "not": true, "without": true, "denies": true, "deny": true, "never": true,
	"don't": true, "dont": true, "don’t": true, "doesn't": true, "didn't": true,
	"quit": true, "former": true, "stopped": true, "ex": true,
}

// FromAnswers pairs answers with their bank questions.
func FromAnswers(bank *questions.Bank, answers []string) []Input {
	out := make([]Input, 0, len(answers))
	for i, a := range answers {
		q, ok := bank.At(i)
		if !ok {
			break
		}
		out = append(out, Input{Source: q.Text, Text: a})
	}
	return out
}

// Evaluate runs every rule over inputs. Each rule fires at most once,
// attributed to the first input that triggers it.
func Evaluate(inputs []Input) Result {
	type item struct {
		source string
		text   string
	}
	var items []item
	for _, in := range inputs {
		if isNegatedAnswer(in.Text) {
			continue
		}
		for _, t := range normalizeList(in.Text) {
			items = append(items, item{source: in.Source, text: t})
		}
	}

	findClass := func(class string) (string, bool) {
		for _, it := range items {
			if hasClassToken(it.text, drugClasses[class]) {
				return it.source, true
			}
		}
		return "", false
	}

	flags := []Flag{}
	for _, rule := range ruleDB {
		var (
			source string
			hit    bool
		)
		switch {
		case len(rule.Match.Keywords) > 0:
			for _, it := range items {
				if matchesKeyword(it.text, rule.Match.Keywords) {
					source, hit = it.source, true
					break
				}
			}
		case rule.Match.DrugClassA != "" && rule.Match.DrugClassB != "":
			srcA, okA := findClass(rule.Match.DrugClassA)
			_, okB := findClass(rule.Match.DrugClassB)
			source, hit = srcA, okA && okB
		case rule.Match.DrugClass != "":
			source, hit = findClass(rule.Match.DrugClass)
		}
		if hit {
			flags = append(flags, Flag{
				RuleID:   rule.ID,
				Type:     rule.Type,
				Severity: rule.Severity,
				Label:    rule.Label,
				Source:   source,
				Note:     rule.Note,
			})
		}
	}

	for _, in := range inputs {
		if f, ok := bloodPressureFlag(in); ok {
			flags = append(flags, f)
			break
		}
	}

	return summarize(flags)
}

// EvaluateAnswers is Evaluate over a session's answers.
func EvaluateAnswers(bank *questions.Bank, answers []string) Result {
	return Evaluate(FromAnswers(bank, answers))
}

func summarize(flags []Flag) Result {
	score := Score(flags)
	issues := []string{}
	for _, f := range flags {
		issues = append(issues, fmt.Sprintf("[%s] %s - %s", f.Severity, f.Label, f.Note))
	}
	if len(issues) == 0 {
		issues = append(issues, "None")
	}
	return Result{
		RiskScore: score,
		RiskLevel: Level(flags, score),
		Flags:     flags,
		Issues:    issues,
		Source:    "rules",
	}
}

// Score is the base score plus each flag's severity weight, capped at 100.
func Score(flags []Flag) int {
	score := baseScore
	for _, f := range flags {
		score += severityWeight[f.Severity]
	}
	if score > 100 {
		score = 100
	}
	return score
}

// Level is HIGH if any flag is HIGH or score >= 60, MEDIUM if any flag is
// MEDIUM or score >= 30, else LOW.
func Level(flags []Flag, score int) string {
	maxSeverity := SeverityLow
	for _, f := range flags {
		if f.Severity == SeverityHigh {
			maxSeverity = SeverityHigh
			break
		}
		if f.Severity == SeverityMedium {
			maxSeverity = SeverityMedium
		}
	}

	switch {
	case maxSeverity == SeverityHigh || score >= 60:
		return SeverityHigh
	case maxSeverity == SeverityMedium || score >= 30:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func bloodPressureFlag(in Input) (Flag, bool) {
	m := bloodPressure.FindStringSubmatch(strings.ToLower(in.Text))
	if m == nil {
		return Flag{}, false
	}
	sys, _ := strconv.Atoi(m[1])
	dia, _ := strconv.Atoi(m[2])
	f := Flag{RuleID: "blood-pressure", Type: TypeVitals, Source: in.Source}
	switch {
	case sys >= 170 || dia >= 110:
		f.Severity, f.Label = SeverityHigh, "Severely elevated BP"
		f.Note = "Uncontrolled hypertension; recheck and escalate."
	case sys >= 150 || dia >= 95:
		f.Severity, f.Label = SeverityMedium, "Elevated BP"
		f.Note = "Elevated blood pressure; recheck and monitor."
	default:
		return Flag{}, false
	}
	return f, true
}

func isNegatedAnswer(text string) bool {
	t := strings.Trim(strings.ToLower(strings.TrimSpace(text)), ".!")
	return negatedAnswers[t]
}

func normalizeList(text string) []string {
	out := []string{}
	for _, t := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return r == ',' || r == ';' || r == '\n' || r == '.'
	}) {
		trimmed := strings.TrimSpace(t)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func matchesKeyword(item string, keywords []string) bool {
	for _, kw := range keywords {
		if idx := strings.Index(item, kw); idx >= 0 && !negatedAt(item, idx) {
			return true
		}
	}
	return false
}

func hasClassToken(item string, class []string) bool {
	for _, drug := range class {
		if idx := strings.Index(item, drug); idx >= 0 && !negatedAt(item, idx) {
			return true
		}
	}
	return false
}

// negatedAt reports whether the match at idx is preceded by "non-" or by
// a negation word within the previous three words.
func negatedAt(item string, idx int) bool {
	prefix := item[:idx]
	if strings.HasSuffix(prefix, "non-") || strings.HasSuffix(prefix, "non ") || strings.HasSuffix(prefix, "ex-") {
		return true
	}
	words := strings.Fields(prefix)
	if len(words) > 3 {
		words = words[len(words)-3:]
	}
	for _, w := range words {
		if negationWords[strings.Trim(w, "!?:\"'()")] {
			return true
		}
	}
	return false
}
