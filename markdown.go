// Markdown rendering with fixed, cohost-compatible options.
package main

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"
)

// chostMarkdown renders markdown the way cohost did: tables, autolinked bare
// URLs, hard line breaks, and raw HTML passed through for the rewrite pass.
var chostMarkdown = goldmark.New(
	goldmark.WithExtensions(
		extension.Table,
		extension.Linkify,
	),
	goldmark.WithRendererOptions(
		goldmarkhtml.WithHardWraps(),
		goldmarkhtml.WithUnsafe(),
	),
)

// renderMarkdown converts markdown source to HTML.
//
// Known discrepancies against cohost's own renderer (which is why the astMap
// rendering is preferred whenever a span provides one):
//   - ~~strikethrough~~ not handled
//   - @mentions not handled
//   - :emotes: not handled
//   - single newline always yields <br>
func renderMarkdown(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := chostMarkdown.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return buf.String(), nil
}
