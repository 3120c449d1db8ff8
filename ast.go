// The astMap attached to a chost contains cohost's own rendering of its
// markdown blocks as a browser object-model snapshot. Since our markdown
// rendering is only an approximation, that tree is compiled to HTML and used
// instead of our own output wherever a span covers a block range.
package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"golang.org/x/net/html"
)

// Ast is one node of the object-model snapshot: a root (children only), an
// element (tag, IDL-typed properties, children), or a text run.
type Ast struct {
	Type       string
	TagName    string
	Properties map[string]any
	Children   []Ast
	Value      string
}

func (a *Ast) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type       string         `json:"type"`
		TagName    string         `json:"tagName"`
		Properties map[string]any `json:"properties"`
		Children   []Ast          `json:"children"`
		Value      string         `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Type {
	case "root", "element", "text":
	default:
		return fmt.Errorf("unsupported ast node type %q", raw.Type)
	}
	a.Type = raw.Type
	a.TagName = raw.TagName
	a.Properties = raw.Properties
	a.Children = raw.Children
	a.Value = raw.Value
	return nil
}

// parsedSpan is a decoded astMap span ready for the merge engine.
type parsedSpan struct {
	ast   Ast
	start int
	end   int
}

// decodeSpans parses the embedded AST documents and sorts the spans by
// (start, end). Spans arrive unsorted and possibly overlapping; sorting here
// lets the merge engine consume them as a queue.
func decodeSpans(spans []Span) ([]parsedSpan, error) {
	out := make([]parsedSpan, 0, len(spans))
	for _, s := range spans {
		var ast Ast
		if err := json.Unmarshal([]byte(s.AST), &ast); err != nil {
			return nil, fmt.Errorf("parsing astMap span [%d,%d): %w", s.StartIndex, s.EndIndex, err)
		}
		out = append(out, parsedSpan{ast: ast, start: s.StartIndex, end: s.EndIndex})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].start != out[j].start {
			return out[i].start < out[j].start
		}
		return out[i].end < out[j].end
	})
	return out, nil
}

// compileAst compiles an AST value into a detached fragment container.
// The walk is queue-based; each parent's own children keep source order,
// which is all the serialization depends on.
func compileAst(root Ast) (*html.Node, error) {
	container := newFragmentContainer()

	type item struct {
		node   Ast
		parent *html.Node
	}
	queue := []item{{root, container}}

	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]

		switch it.node.Type {
		case "root":
			for _, child := range it.node.Children {
				queue = append(queue, item{child, it.parent})
			}
		case "element":
			el := createElement(it.node.TagName)

			// Sort the properties by name so serialized output does not
			// depend on map enumeration order.
			names := make([]string, 0, len(it.node.Properties))
			for name := range it.node.Properties {
				names = append(names, name)
			}
			sort.Strings(names)

			for _, name := range names {
				attr, ok, err := convertIDLToContentAttribute(it.node.TagName, name, it.node.Properties[name])
				if err != nil {
					return nil, fmt.Errorf("<%s> property %q: %w", it.node.TagName, name, err)
				}
				if ok {
					el.Attr = append(el.Attr, attr)
				}
			}

			it.parent.AppendChild(el)
			for _, child := range it.node.Children {
				queue = append(queue, item{child, el})
			}
		case "text":
			it.parent.AppendChild(&html.Node{Type: html.TextNode, Data: it.node.Value})
		default:
			return nil, fmt.Errorf("unsupported ast node type %q", it.node.Type)
		}
	}

	return container, nil
}
