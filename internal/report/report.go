// Package report renders a completed intake as a printable PDF form.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/Skufu/medintake/internal/questions"
	"github.com/Skufu/medintake/internal/screening"
)

const (
	Filename    = "patient_summary.pdf"
	ContentType = "application/pdf"

	title = "Patient Intake Form"
)

// Form is everything that goes on the page. Questions holds the question
// text recorded with each answer; a missing or empty entry falls back to
// the bank.
type Form struct {
	Bank      *questions.Bank
	Answers   []string
	Questions []string
	Flags     []screening.Flag
	Generated time.Time
}

// Render writes the form for answers as a PDF to w.
func Render(w io.Writer, bank *questions.Bank, answers []string, flags []screening.Flag) error {
	return RenderForm(w, Form{Bank: bank, Answers: answers, Flags: flags, Generated: time.Now()})
}

func RenderForm(w io.Writer, f Form) error {
	pdf := build(f)
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

func build(f Form) *fpdf.Fpdf {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(title, true)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, title, "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, "Generated: "+f.Generated.Format("January 2, 2006"), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	var additional []int
	for _, sec := range f.Bank.Sections() {
		answered := answeredIn(sec.Questions, len(f.Answers))
		if len(answered) == 0 {
			continue
		}
		if !sec.InReport {
			additional = append(additional, answered...)
			continue
		}
		sectionHeader(pdf, tr(sec.Name))
		for _, i := range answered {
			entry(pdf, tr, f.question(i), f.Answers[i])
		}
	}

	if len(additional) > 0 {
		sectionHeader(pdf, questions.AdditionalSection)
		for _, i := range additional {
			entry(pdf, tr, f.question(i), f.Answers[i])
		}
	}

	if len(f.Flags) > 0 {
		sectionHeader(pdf, "Screening Flags")
		pdf.SetFont("Helvetica", "", 10)
		for _, fl := range f.Flags {
			pdf.MultiCell(0, 6, tr(fmt.Sprintf("[%s] %s - %s", fl.Severity, fl.Label, fl.Note)), "", "L", false)
		}
		pdf.Ln(2)
	}

	pdf.Ln(10)
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 8, "Physician Signature: ______________________________", "", 1, "L", false, 0, "")
	pdf.Ln(4)
	pdf.CellFormat(0, 8, "Date: ____________________", "", 1, "L", false, 0, "")
	return pdf
}

func answeredIn(indices []int, answered int) []int {
	var out []int
	for _, i := range indices {
		if i < answered {
			out = append(out, i)
		}
	}
	return out
}

func sectionHeader(pdf *fpdf.Fpdf, name string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetFillColor(220, 220, 220)
	pdf.CellFormat(0, 8, name, "", 1, "L", true, 0, "")
	pdf.Ln(2)
}

func (f Form) question(i int) string {
	if i < len(f.Questions) && f.Questions[i] != "" {
		return f.Questions[i]
	}
	q, _ := f.Bank.At(i)
	return q.Text
}

func entry(pdf *fpdf.Fpdf, tr func(string) string, question, answer string) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.MultiCell(0, 6, tr(question), "", "L", false)
	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(0, 6, tr(answer), "", "L", false)
	pdf.Ln(2)
}
