// Package compare checks a produced output file against a reference fixture
// line by line, tolerating differences that match configured exception
// rules.
package compare

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hyperifyio/ensdfkit/internal/fault"
)

// Result is the outcome of a comparison.
type Result struct {
	Matched    bool
	Mismatched []int
}

// MismatchError reports the first difference no rule tolerated.
type MismatchError struct {
	Produced      string
	Reference     string
	Line          int
	ProducedLine  string
	ReferenceLine string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s differs from %s at line %d: got %q, want %q",
		e.Produced, e.Reference, e.Line, e.ProducedLine, e.ReferenceLine)
}

// FaultKind classifies the error as a validation failure.
func (e *MismatchError) FaultKind() fault.Kind { return fault.KindMismatch }

// Options tunes a comparison.
type Options struct {
	ScriptBudget time.Duration // per evaluation of a script rule; 0 uses DefaultScriptBudget
}

// Compare reads both files in lockstep, driven by the produced file; a
// reference that runs out compares as empty lines. It stops at the first
// difference that no rule suppresses and returns it as a *MismatchError.
func Compare(producedPath, referencePath string, rules []Rule) (Result, error) {
	return CompareWith(producedPath, referencePath, rules, Options{})
}

// CompareWith is Compare with explicit options.
func CompareWith(producedPath, referencePath string, rules []Rule, opts Options) (Result, error) {
	var first *MismatchError
	err := walk(producedPath, referencePath, rules, opts, func(m *MismatchError) bool {
		first = m
		return false
	})
	if err != nil {
		return Result{}, err
	}
	if first != nil {
		return Result{Matched: false, Mismatched: []int{first.Line}}, first
	}
	return Result{Matched: true}, nil
}

// Diff walks both files completely and returns every line index that no
// rule suppresses. It is a debugging aid; Compare is the validation call.
func Diff(producedPath, referencePath string, rules []Rule) (Result, error) {
	var lines []int
	err := walk(producedPath, referencePath, rules, Options{}, func(m *MismatchError) bool {
		lines = append(lines, m.Line)
		return true
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Matched: len(lines) == 0, Mismatched: lines}, nil
}

// walk calls onMismatch for each unsuppressed difference until it returns
// false.
func walk(producedPath, referencePath string, rules []Rule, opts Options, onMismatch func(*MismatchError) bool) error {
	pf, err := os.Open(producedPath)
	if err != nil {
		return fault.Wrap(fault.KindIO, "", "open produced file", err)
	}
	defer pf.Close()
	rf, err := os.Open(referencePath)
	if err != nil {
		return fault.Wrap(fault.KindIO, "", "open reference file", err)
	}
	defer rf.Close()

	ps := newLineScanner(pf)
	rs := newLineScanner(rf)
	var scripts *scriptEvaluator
	for i := 0; ps.Scan(); i++ {
		produced := ps.Text()
		reference := ""
		if rs.Scan() {
			reference = rs.Text()
		}
		if produced == reference {
			continue
		}
		suppressed := false
		for _, r := range rules {
			if r.Kind == ScriptIgnore && scripts == nil {
				scripts = newScriptEvaluator(opts.ScriptBudget)
			}
			ok, err := r.matches(i, produced, reference, scripts)
			if err != nil {
				return fault.Wrap(fault.KindConfiguration, "", r.Kind.String()+" rule", err)
			}
			if ok {
				suppressed = true
				break
			}
		}
		if suppressed {
			continue
		}
		m := &MismatchError{
			Produced:      producedPath,
			Reference:     referencePath,
			Line:          i,
			ProducedLine:  produced,
			ReferenceLine: reference,
		}
		if !onMismatch(m) {
			return nil
		}
	}
	if err := ps.Err(); err != nil {
		return fault.Wrap(fault.KindIO, "", "read produced file", err)
	}
	if err := rs.Err(); err != nil {
		return fault.Wrap(fault.KindIO, "", "read reference file", err)
	}
	return nil
}

// matches reports whether r tolerates the difference at line i.
func (r Rule) matches(i int, produced, reference string, scripts *scriptEvaluator) (bool, error) {
	switch r.Kind {
	case PrefixIgnore:
		return strings.HasPrefix(produced, r.Text), nil
	case SubstringIgnore:
		return strings.Contains(produced, r.Text), nil
	case LineIndexIgnore:
		return i == r.Line, nil
	case LineEndingIgnore:
		if i != r.Line {
			return false, nil
		}
		pc, pe := splitEOL(produced)
		rc, re := splitEOL(reference)
		return pc == rc && pe != re, nil
	case ScriptIgnore:
		return scripts.match(r.Text, produced, reference, i)
	}
	return false, fmt.Errorf("unknown rule kind %d", int(r.Kind))
}
