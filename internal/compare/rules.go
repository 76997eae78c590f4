package compare

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// RuleKind tags an exception rule. The numeric values are the external
// representation used in rule files.
type RuleKind int

const (
	PrefixIgnore     RuleKind = 1
	SubstringIgnore  RuleKind = 2
	LineIndexIgnore  RuleKind = 3
	LineEndingIgnore RuleKind = 4
	ScriptIgnore     RuleKind = 5
)

func (k RuleKind) String() string {
	switch k {
	case PrefixIgnore:
		return "prefix"
	case SubstringIgnore:
		return "substring"
	case LineIndexIgnore:
		return "line-index"
	case LineEndingIgnore:
		return "line-ending"
	case ScriptIgnore:
		return "script"
	}
	return "rule(" + strconv.Itoa(int(k)) + ")"
}

// Rule is one exception under which a differing line is tolerated. Text is
// used by the prefix, substring and script kinds, Line by the index kinds.
type Rule struct {
	Kind RuleKind
	Text string
	Line int
}

func Prefix(p string) Rule { return Rule{Kind: PrefixIgnore, Text: p} }
func Substring(s string) Rule { return Rule{Kind: SubstringIgnore, Text: s} }
func LineIndex(i int) Rule { return Rule{Kind: LineIndexIgnore, Line: i} }
func LineEnding(i int) Rule { return Rule{Kind: LineEndingIgnore, Line: i} }
func Script(expr string) Rule { return Rule{Kind: ScriptIgnore, Text: expr} }

func (r Rule) String() string {
	switch r.Kind {
	case LineIndexIgnore, LineEndingIgnore:
		return fmt.Sprintf("%s %d", r.Kind, r.Line)
	}
	return fmt.Sprintf("%s %q", r.Kind, r.Text)
}

// ParseRules decodes the external form, an ordered list of [kind, parameter]
// pairs, from YAML or JSON:
//
//	[[1, "DATE RUN"], [3, 9], [4, 12]]
func ParseRules(data []byte) ([]Rule, error) {
	var raw [][]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "parse rules")
	}
	rules := make([]Rule, 0, len(raw))
	for i, pair := range raw {
		r, err := decodeRule(pair)
		if err != nil {
			return nil, errors.Wrapf(err, "rule[%d]", i)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

func decodeRule(pair []any) (Rule, error) {
	if len(pair) != 2 {
		return Rule{}, errors.Errorf("expected [kind, parameter], got %d element(s)", len(pair))
	}
	kind, ok := pair[0].(int)
	if !ok {
		return Rule{}, errors.Errorf("kind must be an integer, got %v", pair[0])
	}
	switch k := RuleKind(kind); k {
	case PrefixIgnore, SubstringIgnore, ScriptIgnore:
		text, err := textParam(pair[1])
		if err != nil {
			return Rule{}, err
		}
		return Rule{Kind: k, Text: text}, nil
	case LineIndexIgnore, LineEndingIgnore:
		line, err := lineParam(pair[1])
		if err != nil {
			return Rule{}, err
		}
		return Rule{Kind: k, Line: line}, nil
	}
	return Rule{}, errors.Errorf("unknown rule kind %d", kind)
}

func textParam(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case int:
		return strconv.Itoa(t), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	}
	return "", errors.Errorf("parameter must be text, got %v", v)
}

func lineParam(v any) (int, error) {
	switch t := v.(type) {
	case int:
		if t < 0 {
			return 0, errors.Errorf("line index must not be negative, got %d", t)
		}
		return t, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil || n < 0 {
			return 0, errors.Errorf("line index must be a non-negative integer, got %q", t)
		}
		return n, nil
	}
	return 0, errors.Errorf("line index must be an integer, got %v", v)
}

// MarshalRules renders rules in the external form.
func MarshalRules(rules []Rule) ([]byte, error) {
	raw := make([][]any, 0, len(rules))
	for _, r := range rules {
		switch r.Kind {
		case LineIndexIgnore, LineEndingIgnore:
			raw = append(raw, []any{int(r.Kind), r.Line})
		default:
			raw = append(raw, []any{int(r.Kind), r.Text})
		}
	}
	return yaml.Marshal(raw)
}
