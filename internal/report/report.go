// Package report summarizes verification outcomes as text or PDF.
package report

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/hyperifyio/ensdfkit/internal/compare"
)

// Outcome is the verification of one produced file against its fixture.
type Outcome struct {
	Produced  string
	Reference string
	Result    compare.Result
	Err       error
}

const (
	StatusPass  = "PASS"
	StatusFail  = "FAIL"
	StatusError = "ERROR"
)

// Status classifies the outcome. A mismatch is a failure; anything else
// that stopped the comparison is an error.
func (o Outcome) Status() string {
	if o.Err != nil {
		var me *compare.MismatchError
		if errors.As(o.Err, &me) {
			return StatusFail
		}
		return StatusError
	}
	if !o.Result.Matched {
		return StatusFail
	}
	return StatusPass
}

// Lines renders the mismatched line indices, or "-".
func (o Outcome) Lines() string {
	if len(o.Result.Mismatched) == 0 {
		return "-"
	}
	parts := make([]string, len(o.Result.Mismatched))
	for i, n := range o.Result.Mismatched {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

// Detail is the error text, if any.
func (o Outcome) Detail() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Summary counts outcomes per status.
type Summary struct {
	Pass, Fail, Error int
}

func Summarize(outcomes []Outcome) Summary {
	var s Summary
	for _, o := range outcomes {
		switch o.Status() {
		case StatusPass:
			s.Pass++
		case StatusFail:
			s.Fail++
		default:
			s.Error++
		}
	}
	return s
}

func (s Summary) String() string {
	return fmt.Sprintf("%d passed, %d failed, %d errors", s.Pass, s.Fail, s.Error)
}

// OK reports whether every outcome passed.
func (s Summary) OK() bool { return s.Fail == 0 && s.Error == 0 }

// WriteText writes an aligned table followed by the summary line.
func WriteText(w io.Writer, outcomes []Outcome) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tPRODUCED\tREFERENCE\tLINES\tDETAIL")
	for _, o := range outcomes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", o.Status(), o.Produced, o.Reference, o.Lines(), o.Detail())
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, Summarize(outcomes))
	return err
}

// WritePDF renders the same table as a PDF document at path.
func WritePDF(path, title string, outcomes []Outcome, generated time.Time) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(title, true)
	pdf.SetCreator("ensdfproc", true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, tr(title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Generated %s - %s", generated.UTC().Format(time.RFC3339), Summarize(outcomes))), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	widths := []float64{18, 80, 80, 25, 74}
	header := []string{"Status", "Produced", "Reference", "Lines", "Detail"}
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(220, 220, 220)
	for i, h := range header {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 8)
	for _, o := range outcomes {
		row := []string{o.Status(), o.Produced, o.Reference, o.Lines(), o.Detail()}
		for i, cell := range row {
			pdf.CellFormat(widths[i], 6, tr(fit(pdf, cell, widths[i]-2)), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
	return pdf.OutputFileAndClose(path)
}

// fit shortens s from the left so it fits in width; paths keep their tail.
func fit(pdf *gofpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 1 && pdf.GetStringWidth("..."+string(r)) > width {
		r = r[1:]
	}
	return "..." + string(r)
}
