package comparison

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Comparisons serialize as a tagged union: a single-key mapping whose key
// names the variant, e.g. {equals: {value: 3, atol: 0.1}}.
var constructors = map[string]func() Comparison{
	"equals":           func() Comparison { return &Equals{Options: DefaultOptions()} },
	"not_equals":       func() Comparison { return &NotEquals{Options: DefaultOptions()} },
	"greater":          func() Comparison { return &Greater{Options: DefaultOptions()} },
	"greater_or_equal": func() Comparison { return &GreaterOrEqual{Options: DefaultOptions()} },
	"less":             func() Comparison { return &Less{Options: DefaultOptions()} },
	"less_or_equal":    func() Comparison { return &LessOrEqual{Options: DefaultOptions()} },
	"range":            func() Comparison { return &Range{Options: DefaultOptions(), Inclusive: true} },
	"any_value":        func() Comparison { return &AnyValue{Options: DefaultOptions()} },
	"value_set":        func() Comparison { return &ValueSet{Options: DefaultOptions()} },
}

// Tag returns the serialized tag for a comparison variant.
func Tag(c Comparison) (string, error) {
	switch c.(type) {
	case *Equals:
		return "equals", nil
	case *NotEquals:
		return "not_equals", nil
	case *Greater:
		return "greater", nil
	case *GreaterOrEqual:
		return "greater_or_equal", nil
	case *Less:
		return "less", nil
	case *LessOrEqual:
		return "less_or_equal", nil
	case *Range:
		return "range", nil
	case *AnyValue:
		return "any_value", nil
	case *ValueSet:
		return "value_set", nil
	}
	return "", fmt.Errorf("unregistered comparison type %T", c)
}

// Decode builds a comparison from its tagged-union node.
func Decode(node *yaml.Node) (Comparison, error) {
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return nil, fmt.Errorf("line %d: comparison must be a single-key mapping", node.Line)
	}
	tag := node.Content[0].Value
	construct, ok := constructors[tag]
	if !ok {
		return nil, fmt.Errorf("line %d: unknown comparison type: %q", node.Line, tag)
	}
	c := construct()
	if err := node.Content[1].Decode(c); err != nil {
		return nil, fmt.Errorf("decoding %s comparison: %w", tag, err)
	}
	return c, nil
}

// List is an ordered sequence of comparisons in tagged-union form.
type List []Comparison

func (l *List) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: comparisons must be a sequence", node.Line)
	}
	out := make(List, 0, len(node.Content))
	for _, child := range node.Content {
		c, err := Decode(child)
		if err != nil {
			return err
		}
		out = append(out, c)
	}
	*l = out
	return nil
}

func (l List) MarshalYAML() (any, error) {
	out := make([]map[string]Comparison, 0, len(l))
	for _, c := range l {
		tag, err := Tag(c)
		if err != nil {
			return nil, err
		}
		out = append(out, map[string]Comparison{tag: c})
	}
	return out, nil
}
