package report

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/hyperifyio/ensdfkit/internal/compare"
)

func sample() []Outcome {
	return []Outcome{
		{Produced: "out/a228.rpt", Reference: "ref/a228.rpt", Result: compare.Result{Matched: true}},
		{
			Produced:  "out/gtol.rpt",
			Reference: "ref/gtol.rpt",
			Result:    compare.Result{Mismatched: []int{3}},
			Err:       &compare.MismatchError{Produced: "out/gtol.rpt", Reference: "ref/gtol.rpt", Line: 3},
		},
		{Produced: "out/missing.rpt", Reference: "ref/missing.rpt", Err: errors.New("open produced file: no such file")},
	}
}

func TestStatus(t *testing.T) {
	got := []string{}
	for _, o := range sample() {
		got = append(got, o.Status())
	}
	if strings.Join(got, ",") != "PASS,FAIL,ERROR" {
		t.Fatalf("statuses: %v", got)
	}
	if (Outcome{Result: compare.Result{Mismatched: []int{1, 4}}}).Lines() != "1,4" {
		t.Fatalf("lines rendering")
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(sample())
	if s != (Summary{Pass: 1, Fail: 1, Error: 1}) || s.OK() {
		t.Fatalf("summary: %+v", s)
	}
	if !Summarize(sample()[:1]).OK() {
		t.Fatalf("single pass should be ok")
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, sample()); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"STATUS", "PASS", "out/gtol.rpt", "FAIL", "ERROR", "1 passed, 1 failed, 1 errors"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestWritePDF_ReadsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "verify.pdf")
	outcomes := sample()
	long := strings.Repeat("very/long/path/", 30) + "report.rpt"
	outcomes = append(outcomes, Outcome{Produced: long, Reference: long, Result: compare.Result{Matched: true}})
	if err := WritePDF(path, "ENSDF verification", outcomes, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
	f, r, err := pdf.Open(path)
	if err != nil {
		t.Fatalf("open pdf: %v", err)
	}
	defer f.Close()
	if r.NumPage() < 1 {
		t.Fatalf("expected at least one page, got %d", r.NumPage())
	}
}
