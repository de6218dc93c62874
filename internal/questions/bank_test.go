package questions

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultBank(t *testing.T) {
	b := Default()
	require.Equal(t, 14, b.Len())

	first, ok := b.At(0)
	require.True(t, ok)
	assert.Equal(t, "What is your full name?", first.Text)
	assert.Equal(t, "Patient Information", first.Section)

	last, ok := b.At(b.Len() - 1)
	require.True(t, ok)
	assert.Equal(t, "Emergency Contact", last.Section)
	assert.Equal(t, 13, last.Index)

	_, ok = b.At(b.Len())
	assert.False(t, ok)
	_, ok = b.At(-1)
	assert.False(t, ok)
}

func TestBankAccessorsReturnCopies(t *testing.T) {
	b := Default()

	all := b.All()
	all[0].Text = "mutated"
	q, _ := b.At(0)
	assert.Equal(t, "What is your full name?", q.Text)

	secs := b.Sections()
	secs[0].Questions[0] = 99
	assert.Equal(t, 0, b.Sections()[0].Questions[0])
}

func TestInReport(t *testing.T) {
	b := Default()
	assert.True(t, b.InReport(0))
	assert.False(t, b.InReport(12), "insurance is excluded from the report layout")
	assert.False(t, b.InReport(100))
}

func TestLoadRejectsInvalidBanks(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", "sections: []"},
		{"blank question", "sections:\n  - name: A\n    questions: ['  ']"},
		{"duplicate section", "sections:\n  - name: A\n    questions: [q1]\n  - name: A\n    questions: [q2]"},
		{"unnamed section", "sections:\n  - questions: [q1]"},
		{"unknown field", "sections:\n  - name: A\n    prompts: [q1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bank.yaml")
	content := "sections:\n  - name: Basics\n    questions:\n      - Name?\n      - Age?\n  - name: Other\n    report: false\n    questions:\n      - Pets?\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	b, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, b.Len())
	q, _ := b.At(2)
	assert.Equal(t, "Pets?", q.Text)
	assert.Equal(t, 2, q.Index)
	assert.False(t, b.InReport(2))
	assert.Equal(t, []int{0, 1}, b.Sections()[0].Questions)
}
