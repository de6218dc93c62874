// Package analysis produces a structured symptom assessment from the LLM,
// cross-checked against the local screening rules.
package analysis

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Skufu/medintake/internal/llm"
	"github.com/Skufu/medintake/internal/logger"
	"github.com/Skufu/medintake/internal/screening"
)

const (
	StatusLow      = "low"
	StatusModerate = "moderate"
	StatusHigh     = "high"

	RatingFromModel     = "model"
	RatingFromScreening = "screening"
)

type Request struct {
	Symptoms   string
	PainRating *int
}

type Report struct {
	Causes          []string         `json:"reasons"`
	LifeThreatening bool             `json:"life_threatening"`
	Assessment      string           `json:"assessment"`
	RiskRating      int              `json:"risk_rating"`
	RatingSource    string           `json:"rating_source"`
	Status          string           `json:"status"`
	Urgent          bool             `json:"urgent"`
	Screening       screening.Result `json:"screening"`
	Raw             string           `json:"raw"`
}

// Parsed is what could be read back from a model completion.
type Parsed struct {
	Causes          []string
	LifeThreatening bool
	Assessment      string
	Rating          int
	HasRating       bool
}

var (
	ratingRe   = regexp.MustCompile(`(?i)risk\s+rating[\s*:_]*\[?(\d{1,2})`)
	numberedRe = regexp.MustCompile(`^\d+[.)]\s+`)
)

// BuildPrompt asks for causes, a life-threatening verdict and a 1-10 rating.
func BuildPrompt(symptoms string, pain *int) string {
	s := strings.TrimSpace(symptoms)
	if pain != nil {
		s = fmt.Sprintf("%s (Pain level: %d/10)", s, *pain)
	}
	return "Given these symptoms, please analyze:\n" +
		"Symptoms: " + s + "\n\n" +
		"Please respond in this format:\n" +
		"Potential Causes:\n" +
		"- [cause 1]\n" +
		"- [cause 2]\n" +
		"- [cause 3]\n\n" +
		"Life-Threatening Assessment:\n" +
		"[Yes/No] - [brief explanation]\n\n" +
		"Risk Rating: [1-10]\n"
}

// Parse reads the sections requested by BuildPrompt. Unrecognised lines
// are ignored.
func Parse(text string) Parsed {
	var p Parsed
	section := ""
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(strings.ReplaceAll(raw, "**", ""))
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)

		switch {
		case strings.HasPrefix(lower, "potential causes"):
			section = "causes"
			continue
		case strings.HasPrefix(lower, "life-threatening assessment"), strings.HasPrefix(lower, "life threatening assessment"):
			section = "assessment"
			if rest := afterColon(line); rest != "" {
				p.setAssessment(rest)
				section = ""
			}
			continue
		case strings.HasPrefix(lower, "risk rating"):
			section = ""
			if m := ratingRe.FindStringSubmatch(line); m != nil {
				if n, err := strconv.Atoi(m[1]); err == nil && n >= 1 && n <= 10 {
					p.Rating, p.HasRating = n, true
				}
			}
			continue
		}

		switch section {
		case "causes":
			if cause := bulletText(line); cause != "" {
				p.Causes = append(p.Causes, cause)
			}
		case "assessment":
			p.setAssessment(line)
			section = ""
		}
	}
	return p
}

func (p *Parsed) setAssessment(line string) {
	p.Assessment = strings.TrimSpace(line)
	lower := strings.ToLower(p.Assessment)
	p.LifeThreatening = strings.HasPrefix(lower, "yes") || strings.HasPrefix(lower, "[yes")
}

func afterColon(line string) string {
	if i := strings.Index(line, ":"); i >= 0 {
		return strings.TrimSpace(line[i+1:])
	}
	return ""
}

func bulletText(line string) string {
	for _, prefix := range []string{"-", "*", "•"} {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, prefix))
		}
	}
	if loc := numberedRe.FindStringIndex(line); loc != nil {
		return strings.TrimSpace(line[loc[1]:])
	}
	return ""
}

// StatusFor maps a 1-10 rating to low/moderate/high.
func StatusFor(rating int) string {
	switch {
	case rating >= 7:
		return StatusHigh
	case rating >= 4:
		return StatusModerate
	default:
		return StatusLow
	}
}

// ratingFromScore maps a 0-100 screening score onto 1-10.
func ratingFromScore(score int) int {
	r := (score + 9) / 10
	if r < 1 {
		r = 1
	}
	if r > 10 {
		r = 10
	}
	return r
}

type Analyzer struct {
	client llm.Client
}

func NewAnalyzer(client llm.Client) *Analyzer {
	return &Analyzer{client: client}
}

// Analyze runs the screening rules and the model over the symptoms. The
// model's rating wins when it can be parsed; a HIGH or MEDIUM screening
// level can still raise the status and a HIGH level always marks the
// result urgent.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (*Report, error) {
	screen := screening.Evaluate([]screening.Input{{Source: "symptoms", Text: req.Symptoms}})

	raw, err := a.client.Generate(ctx, BuildPrompt(req.Symptoms, req.PainRating))
	if err != nil {
		return nil, fmt.Errorf("symptom analysis: %w", err)
	}
	parsed := Parse(raw)

	rep := &Report{
		Causes:          parsed.Causes,
		LifeThreatening: parsed.LifeThreatening,
		Assessment:      parsed.Assessment,
		Screening:       screen,
		Raw:             raw,
	}
	if rep.Causes == nil {
		rep.Causes = []string{}
	}
	if rep.Assessment == "" {
		rep.Assessment = "Assessment unavailable"
	}

	if parsed.HasRating {
		rep.RiskRating, rep.RatingSource = parsed.Rating, RatingFromModel
	} else {
		rep.RiskRating, rep.RatingSource = ratingFromScore(screen.RiskScore), RatingFromScreening
		logger.Log.WithFields(logrus.Fields{
			"rating": rep.RiskRating,
			"score":  screen.RiskScore,
		}).Warn("risk rating missing from completion, using screening score")
	}

	rep.Status = StatusFor(rep.RiskRating)
	switch screen.RiskLevel {
	case screening.SeverityHigh:
		rep.Status = StatusHigh
	case screening.SeverityMedium:
		if rep.Status == StatusLow {
			rep.Status = StatusModerate
		}
	}
	rep.Urgent = rep.RiskRating >= 8 || screen.RiskLevel == screening.SeverityHigh
	return rep, nil
}
