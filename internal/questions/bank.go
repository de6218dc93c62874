// Package questions holds the ordered, read-only intake question bank.
package questions

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// AdditionalSection is the report heading for questions whose section is
// excluded from the report layout.
const AdditionalSection = "Additional Information"

var ErrEmptyBank = errors.New("question bank has no questions")

type Question struct {
	Index   int    `json:"index"`
	Text    string `json:"text"`
	Section string `json:"section"`
}

type Section struct {
	Name      string `json:"name"`
	InReport  bool   `json:"in_report"`
	Questions []int  `json:"questions"`
}

// Bank is immutable after construction; accessors return copies.
type Bank struct {
	questions []Question
	sections  []Section
}

type fileSection struct {
	Name      string   `yaml:"name"`
	Report    *bool    `yaml:"report"`
	Questions []string `yaml:"questions"`
}

type file struct {
	Sections []fileSection `yaml:"sections"`
}

// Load parses a YAML bank. Question order is section order, then the
// order of questions within each section.
func Load(r io.Reader) (*Bank, error) {
	var f file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode question bank: %w", err)
	}

	b := &Bank{}
	seen := make(map[string]bool, len(f.Sections))
	for _, fs := range f.Sections {
		name := strings.TrimSpace(fs.Name)
		if name == "" {
			return nil, fmt.Errorf("section %d has no name", len(b.sections))
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate section %q", name)
		}
		seen[name] = true

		sec := Section{Name: name, InReport: fs.Report == nil || *fs.Report}
		for _, text := range fs.Questions {
			text = strings.TrimSpace(text)
			if text == "" {
				return nil, fmt.Errorf("section %q contains an empty question", name)
			}
			idx := len(b.questions)
			b.questions = append(b.questions, Question{Index: idx, Text: text, Section: name})
			sec.Questions = append(sec.Questions, idx)
		}
		b.sections = append(b.sections, sec)
	}

	if len(b.questions) == 0 {
		return nil, ErrEmptyBank
	}
	return b, nil
}

// LoadFile loads a bank from a YAML file on disk.
func LoadFile(path string) (*Bank, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open question bank: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Default returns the embedded bank.
func Default() *Bank {
	b, err := Load(strings.NewReader(string(defaultYAML)))
	if err != nil {
		panic(fmt.Sprintf("embedded question bank is invalid: %v", err))
	}
	return b
}

func (b *Bank) Len() int { return len(b.questions) }

func (b *Bank) At(i int) (Question, bool) {
	if i < 0 || i >= len(b.questions) {
		return Question{}, false
	}
	return b.questions[i], true
}

func (b *Bank) All() []Question {
	out := make([]Question, len(b.questions))
	copy(out, b.questions)
	return out
}

func (b *Bank) Sections() []Section {
	out := make([]Section, len(b.sections))
	for i, s := range b.sections {
		s.Questions = append([]int(nil), s.Questions...)
		out[i] = s
	}
	return out
}

// InReport reports whether question i belongs to a section rendered under
// its own heading.
func (b *Bank) InReport(i int) bool {
	q, ok := b.At(i)
	if !ok {
		return false
	}
	for _, s := range b.sections {
		if s.Name == q.Section {
			return s.InReport
		}
	}
	return false
}
