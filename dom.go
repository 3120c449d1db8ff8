// Fragment-level helpers over golang.org/x/net/html. Fragments are held
// under a detached <body> container so passes can mutate children in place
// and serialization can walk top-level nodes in order.
package main

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// newFragmentContainer returns an empty detached container node.
func newFragmentContainer() *html.Node {
	return &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
}

// parseFragment parses HTML source in body context.
func parseFragment(src string) (*html.Node, error) {
	context := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(src), context)
	if err != nil {
		return nil, err
	}
	container := newFragmentContainer()
	for _, n := range nodes {
		container.AppendChild(n)
	}
	return container, nil
}

// serializeFragment renders each top-level child of a fragment container.
func serializeFragment(container *html.Node) (string, error) {
	var buf bytes.Buffer
	for c := container.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

// createElement builds a detached element node. The tag's case is preserved
// for custom elements (Mention) that never round-trip through the parser.
func createElement(tag string) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
}

// findAttrIndex returns the index of the named attribute, or -1.
func findAttrIndex(n *html.Node, key string) int {
	for i, a := range n.Attr {
		if a.Key == key {
			return i
		}
	}
	return -1
}
