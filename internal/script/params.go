package script

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Params is an ordered set of named tool parameters. Values are strings,
// booleans or numbers. Decoded documents keep numbers as the text the caller
// wrote, so 0123 reaches the tool as 0123. The zero value is ready to use.
type Params struct {
	keys []string
	vals map[string]any
}

// NewParams builds a parameter set from alternating name/value pairs.
func NewParams(kv ...any) *Params {
	p := &Params{}
	for i := 0; i+1 < len(kv); i += 2 {
		name, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("script.NewParams: key %v is not a string", kv[i]))
		}
		p.Set(name, kv[i+1])
	}
	return p
}

// Set stores value under name, keeping the original position when the name
// already exists.
func (p *Params) Set(name string, value any) {
	if p.vals == nil {
		p.vals = map[string]any{}
	}
	if _, ok := p.vals[name]; !ok {
		p.keys = append(p.keys, name)
	}
	p.vals[name] = value
}

// Get returns the raw value for name.
func (p *Params) Get(name string) (any, bool) {
	if p == nil || p.vals == nil {
		return nil, false
	}
	v, ok := p.vals[name]
	return v, ok
}

// Has reports whether name is present with a non-nil value.
func (p *Params) Has(name string) bool {
	v, ok := p.Get(name)
	return ok && v != nil
}

// Keys returns field names in insertion order.
func (p *Params) Keys() []string {
	if p == nil {
		return nil
	}
	return append([]string(nil), p.keys...)
}

// Len returns the number of fields.
func (p *Params) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Clone returns a shallow copy that can be modified independently.
func (p *Params) Clone() *Params {
	out := &Params{}
	if p == nil {
		return out
	}
	for _, k := range p.keys {
		out.Set(k, p.vals[k])
	}
	return out
}

// String renders the value of name the way it is typed at a legacy prompt.
// Booleans render as Y/N.
func (p *Params) String(name string) (string, error) {
	v, ok := p.Get(name)
	if !ok || v == nil {
		return "", fmt.Errorf("missing field %q", name)
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case bool:
		if x {
			return "Y", nil
		}
		return "N", nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), nil
	case fmt.Stringer:
		return x.String(), nil
	default:
		return "", fmt.Errorf("field %q: unsupported value type %T", name, v)
	}
}

// Bool interprets the value of name as a flag. Numbers are true when
// non-zero; strings accept Y/YES/N/NO and the strconv.ParseBool forms.
func (p *Params) Bool(name string) (bool, error) {
	v, ok := p.Get(name)
	if !ok || v == nil {
		return false, fmt.Errorf("missing field %q", name)
	}
	switch x := v.(type) {
	case bool:
		return x, nil
	case int:
		return x != 0, nil
	case int64:
		return x != 0, nil
	case uint64:
		return x != 0, nil
	case float64:
		return x != 0, nil
	case string:
		switch strings.ToUpper(strings.TrimSpace(x)) {
		case "Y", "YES":
			return true, nil
		case "N", "NO":
			return false, nil
		}
		if b, err := strconv.ParseBool(strings.TrimSpace(x)); err == nil {
			return b, nil
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return f != 0, nil
		}
		return false, fmt.Errorf("field %q: %q is not a flag value", name, x)
	default:
		return false, fmt.Errorf("field %q: unsupported flag type %T", name, v)
	}
}

// UnmarshalYAML decodes a mapping while keeping the document's field order.
// JSON objects decode the same way. Only booleans and nulls are resolved;
// every other scalar is stored as its source text.
func (p *Params) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.DocumentNode && len(node.Content) == 1 {
		node = node.Content[0]
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: parameters must be a mapping", node.Line)
	}
	*p = Params{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		if val.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: field %q must be a scalar", val.Line, key.Value)
		}
		switch val.ShortTag() {
		case "!!bool":
			var b bool
			if err := val.Decode(&b); err != nil {
				return fmt.Errorf("line %d: field %q: %w", val.Line, key.Value, err)
			}
			p.Set(key.Value, b)
		case "!!null":
			p.Set(key.Value, nil)
		default:
			p.Set(key.Value, val.Value)
		}
	}
	return nil
}

// MarshalYAML emits the fields in insertion order.
func (p *Params) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range p.keys {
		var val yaml.Node
		if err := val.Encode(p.vals[k]); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: k}, &val)
	}
	return node, nil
}

// ParseParams decodes a YAML or JSON mapping.
func ParseParams(data []byte) (*Params, error) {
	p := &Params{}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, err
	}
	return p, nil
}
