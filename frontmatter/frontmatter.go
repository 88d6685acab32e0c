// Package frontmatter splits content files into a YAML metadata block and a
// Markdown body, and parses the metadata into a Context of tagged values.
package frontmatter

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Delimiter is the line that opens and closes a frontmatter block.
const Delimiter = "---"

// ErrParse wraps every frontmatter decoding failure.
var ErrParse = errors.New("frontmatter: parse error")

// Split separates a document into its frontmatter and body.
//
// Lines consisting solely of "---" are delimiters. Text before the first
// delimiter is discarded, the block between the first and second delimiter is
// the frontmatter, and everything after is the body with any further
// delimiter lines kept verbatim. A document without delimiters is all body.
func Split(text string) (fm string, body string) {
	lines := strings.Split(text, "\n")
	var segments [][]string
	current := []string{}
	for _, line := range lines {
		if strings.TrimSuffix(line, "\r") == Delimiter {
			segments = append(segments, current)
			current = []string{}
			continue
		}
		current = append(current, line)
	}
	segments = append(segments, current)

	if len(segments) == 1 {
		return "", text
	}
	fm = strings.Join(segments[1], "\n")
	if len(segments) == 2 {
		return fm, ""
	}
	parts := make([]string, 0, len(segments)-2)
	for _, seg := range segments[2:] {
		parts = append(parts, strings.Join(seg, "\n"))
	}
	return fm, strings.Join(parts, "\n"+Delimiter+"\n")
}

// Parse decodes a YAML frontmatter block. An empty or null document yields an
// empty Context; anything other than a mapping at the top level is an error.
func Parse(fm string) (Context, error) {
	if strings.TrimSpace(fm) == "" {
		return Context{}, nil
	}
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(fm), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return Context{}, nil
	}
	v, err := fromNode(doc.Content[0])
	if err != nil {
		return nil, err
	}
	switch v.Kind() {
	case KindNull:
		return Context{}, nil
	case KindMap:
		return Context(v.m), nil
	default:
		return nil, fmt.Errorf("%w: top level is a %s, want a mapping", ErrParse, v.Kind())
	}
}

// Read splits text and parses its frontmatter in one step.
func Read(text string) (Context, string, error) {
	fm, body := Split(text)
	ctx, err := Parse(fm)
	if err != nil {
		return nil, "", err
	}
	return ctx, body, nil
}

func fromNode(n *yaml.Node) (Value, error) {
	switch n.Kind {
	case yaml.AliasNode:
		if n.Alias == nil {
			return Value{}, fmt.Errorf("%w: dangling alias at line %d", ErrParse, n.Line)
		}
		return fromNode(n.Alias)
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return Null(), nil
		}
		return fromNode(n.Content[0])
	case yaml.SequenceNode:
		items := make([]Value, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := fromNode(c)
			if err != nil {
				return Value{}, err
			}
			items = append(items, v)
		}
		return List(items...), nil
	case yaml.MappingNode:
		m := make(map[string]Value, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i]
			if key.Kind != yaml.ScalarNode {
				return Value{}, fmt.Errorf("%w: non-scalar key at line %d", ErrParse, key.Line)
			}
			v, err := fromNode(n.Content[i+1])
			if err != nil {
				return Value{}, err
			}
			m[key.Value] = v
		}
		return Map(m), nil
	case yaml.ScalarNode:
		return scalar(n)
	}
	return Value{}, fmt.Errorf("%w: unsupported node at line %d", ErrParse, n.Line)
}

func scalar(n *yaml.Node) (Value, error) {
	switch n.ShortTag() {
	case "!!null":
		return Null(), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrParse, err)
		}
		return Bool(b), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			// Out of int64 range; keep the precision we can.
			var f float64
			if ferr := n.Decode(&f); ferr != nil {
				return Value{}, fmt.Errorf("%w: %v", ErrParse, err)
			}
			return Float(f), nil
		}
		return Int(i), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrParse, err)
		}
		return Float(f), nil
	default:
		return String(n.Value), nil
	}
}
