// Package script turns named tool parameters into the exact ordered stdin
// answers a legacy console program expects.
//
// Each program's prompt sequence is described as data: a Grammar of steps,
// each a fixed literal, a field reference, or a branch on a boolean field.
// One interpreter builds every program's script from its grammar.
package script

import (
	"sort"
	"strings"

	"github.com/hyperifyio/ensdfkit/internal/fault"
)

type stepKind int

const (
	stepLiteral stepKind = iota
	stepField
	stepBranch
)

// Step is one element of a prompt grammar.
type Step struct {
	kind stepKind
	text string
	flag string
	then []Step
	els  []Step
}

// Lit answers a prompt with fixed text.
func Lit(text string) Step { return Step{kind: stepLiteral, text: text} }

// Blank emits an empty line. As the last step it yields a trailing newline.
func Blank() Step { return Lit("") }

// Field answers a prompt with the value of the named parameter.
func Field(name string) Step { return Step{kind: stepField, text: name} }

// If emits then when the boolean parameter flag is true, otherwise els.
func If(flag string, then []Step, els []Step) Step {
	return Step{kind: stepBranch, flag: flag, then: then, els: els}
}

// Grammar is the prompt grammar of one legacy program.
type Grammar struct {
	Tool string
	// Require lists fields that must be present even when no branch taken
	// consumes them.
	Require []string
	Steps   []Step
}

// Missing returns the required fields absent from p, sorted. Branch flags
// that are present but unreadable are reported through err.
func (g Grammar) Missing(p *Params) ([]string, error) {
	seen := map[string]struct{}{}
	for _, name := range g.Require {
		if !p.Has(name) {
			seen[name] = struct{}{}
		}
	}
	if err := walkMissing(g.Steps, p, seen); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func walkMissing(steps []Step, p *Params, seen map[string]struct{}) error {
	for _, s := range steps {
		switch s.kind {
		case stepField:
			if !p.Has(s.text) {
				seen[s.text] = struct{}{}
			}
		case stepBranch:
			if !p.Has(s.flag) {
				seen[s.flag] = struct{}{}
				continue
			}
			on, err := p.Bool(s.flag)
			if err != nil {
				return err
			}
			branch := s.els
			if on {
				branch = s.then
			}
			if err := walkMissing(branch, p, seen); err != nil {
				return err
			}
		}
	}
	return nil
}

// Validate reports a configuration error naming every missing field.
func (g Grammar) Validate(p *Params) error {
	missing, err := g.Missing(p)
	if err != nil {
		return fault.Configf(g.Tool, "%v", err)
	}
	if len(missing) > 0 {
		return fault.Configf(g.Tool, "missing required field(s): %s", strings.Join(missing, ", "))
	}
	return nil
}

// Build validates p and returns the stdin script. The same grammar and
// parameters always produce the same script.
func (g Grammar) Build(p *Params) (Script, error) {
	if err := g.Validate(p); err != nil {
		return nil, err
	}
	var out Script
	if err := g.emit(g.Steps, p, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (g Grammar) emit(steps []Step, p *Params, out *Script) error {
	for _, s := range steps {
		switch s.kind {
		case stepLiteral:
			*out = append(*out, s.text)
		case stepField:
			v, err := p.String(s.text)
			if err != nil {
				return fault.Configf(g.Tool, "%v", err)
			}
			// One value must answer exactly one prompt.
			if strings.ContainsAny(v, "\r\n") {
				return fault.Configf(g.Tool, "field %q must be a single line", s.text)
			}
			*out = append(*out, v)
		case stepBranch:
			on, err := p.Bool(s.flag)
			if err != nil {
				return fault.Configf(g.Tool, "%v", err)
			}
			branch := s.els
			if on {
				branch = s.then
			}
			if err := g.emit(branch, p, out); err != nil {
				return err
			}
		}
	}
	return nil
}

// Fields lists every parameter the grammar can read, in first-use order.
func (g Grammar) Fields() []string {
	var out []string
	seen := map[string]struct{}{}
	add := func(name string) {
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	var walk func([]Step)
	walk = func(steps []Step) {
		for _, s := range steps {
			switch s.kind {
			case stepField:
				add(s.text)
			case stepBranch:
				add(s.flag)
				walk(s.then)
				walk(s.els)
			}
		}
	}
	walk(g.Steps)
	for _, name := range g.Require {
		add(name)
	}
	return out
}
