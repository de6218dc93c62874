package screening

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skufu/medintake/internal/questions"
)

func symptoms(text string) []Input {
	return []Input{{Source: "symptoms", Text: text}}
}

func hasFlag(r Result, id string) bool {
	for _, f := range r.Flags {
		if f.RuleID == id {
			return true
		}
	}
	return false
}

func containsIssue(issues []string, substr string) bool {
	for _, i := range issues {
		if strings.Contains(i, substr) {
			return true
		}
	}
	return false
}

func TestEvaluate_ChestPain(t *testing.T) {
	r := Evaluate(symptoms("Crushing chest pain radiating to left arm"))
	assert.Equal(t, SeverityHigh, r.RiskLevel)
	assert.True(t, hasFlag(r, "chest-pain"))
	assert.Equal(t, 45, r.RiskScore)
	assert.Equal(t, "rules", r.Source)
}

func TestEvaluate_NitratesWithPDE5i(t *testing.T) {
	r := Evaluate([]Input{
		{Source: "meds", Text: "Nitroglycerin, tadalafil 5mg"},
	})
	require.True(t, hasFlag(r, "nitrates+pde5i"))
	assert.Equal(t, SeverityHigh, r.RiskLevel)
	assert.True(t, containsIssue(r.Issues, "Nitrates + PDE5i"))
}

func TestEvaluate_InteractionAcrossAnswers(t *testing.T) {
	r := Evaluate([]Input{
		{Source: "meds", Text: "oxycodone"},
		{Source: "other", Text: "sometimes xanax to sleep"},
	})
	assert.True(t, hasFlag(r, "opioid+benzo"))
}

func TestEvaluate_MediumFindings(t *testing.T) {
	r := Evaluate(symptoms("On warfarin; I am pregnant"))
	assert.True(t, hasFlag(r, "anticoagulant"))
	assert.True(t, hasFlag(r, "pregnancy"))
	assert.Equal(t, SeverityMedium, r.RiskLevel)
	assert.Equal(t, 45, r.RiskScore)
}

func TestEvaluate_LifestyleOnlyIsLow(t *testing.T) {
	r := Evaluate(symptoms("smoker, binge drinking on weekends"))
	assert.True(t, hasFlag(r, "smoking"))
	assert.True(t, hasFlag(r, "heavy-alcohol"))
	assert.Equal(t, 25, r.RiskScore)
	assert.Equal(t, SeverityLow, r.RiskLevel)
}

func TestEvaluate_ScoreThresholdsRaiseLevel(t *testing.T) {
	flags := []Flag{{Severity: SeverityLow}, {Severity: SeverityLow}, {Severity: SeverityLow}}
	score := Score(flags)
	assert.Equal(t, 35, score)
	assert.Equal(t, SeverityMedium, Level(flags, score))
	assert.Equal(t, SeverityHigh, Level(nil, 60))
}

func TestScoreIsCapped(t *testing.T) {
	flags := make([]Flag, 5)
	for i := range flags {
		flags[i].Severity = SeverityHigh
	}
	assert.Equal(t, 100, Score(flags))
}

func TestEvaluate_Negations(t *testing.T) {
	for _, text := range []string{
		"no", "None", "N/A", "no chest pain", "I have no difficulty breathing",
		"non-smoker", "denies suicidal thoughts", "not pregnant",
		"I don't smoke", "quit smoking in 2015", "former smoker", "stopped smoking",
		"ex-smoker", "dont smoke",
	} {
		r := Evaluate(symptoms(text))
		assert.Empty(t, r.Flags, text)
		assert.Equal(t, SeverityLow, r.RiskLevel, text)
		assert.Equal(t, []string{"None"}, r.Issues, text)
	}
}

func TestEvaluate_NegationIsPerItem(t *testing.T) {
	r := Evaluate(symptoms("no fever, shortness of breath"))
	assert.True(t, hasFlag(r, "dyspnea"))
}

func TestEvaluate_BloodPressure(t *testing.T) {
	r := Evaluate(symptoms("BP 180/115 this morning"))
	assert.True(t, containsIssue(r.Issues, "Severely elevated BP"))
	assert.Equal(t, SeverityHigh, r.RiskLevel)

	r = Evaluate(symptoms("blood pressure was 152/90"))
	assert.True(t, containsIssue(r.Issues, "Elevated BP"))
	assert.Equal(t, SeverityMedium, r.RiskLevel)

	r = Evaluate(symptoms("bp 120/80"))
	assert.Empty(t, r.Flags)
}

func TestEvaluateAnswers_AttributesSource(t *testing.T) {
	bank := questions.Default()
	answers := make([]string, bank.Len())
	for i := range answers {
		answers[i] = "none"
	}
	answers[5] = "Anaphylaxis to peanuts, carries an EpiPen"
	answers[10] = "warfarin 5mg"

	r := EvaluateAnswers(bank, answers)
	require.Len(t, r.Flags, 2)
	q5, _ := bank.At(5)
	q10, _ := bank.At(10)
	assert.Equal(t, "anticoagulant", r.Flags[0].RuleID)
	assert.Equal(t, q10.Text, r.Flags[0].Source)
	assert.Equal(t, "anaphylaxis", r.Flags[1].RuleID)
	assert.Equal(t, q5.Text, r.Flags[1].Source)
}

func TestRulesReturnsCopy(t *testing.T) {
	rules := Rules()
	rules[0].Severity = SeverityLow
	assert.Equal(t, SeverityHigh, Rules()[0].Severity)
}
