// Metadata header rendering for output documents. Pure string
// interpolation: the downstream page pipeline reads these <meta> elements
// back out, so the shape is fixed and carries no control logic.
package main

import (
	"fmt"
	"html"
	"strings"
)

// author identifies who wrote a post, as rendered into the header.
type author struct {
	Href          string
	Name          string
	DisplayName   string
	DisplayHandle string
}

// postMeta is the derived, serializable header for one output document.
type postMeta struct {
	Archived           string
	References         []string
	Title              string
	Published          string
	Author             author
	Tags               []string
	IsTransparentShare bool
}

// render produces the header block, one element per line.
func (m postMeta) render() string {
	e := html.EscapeString
	var b strings.Builder

	if m.Archived != "" {
		fmt.Fprintf(&b, "<meta name=\"archived\" content=\"%s\">\n", e(m.Archived))
	}
	for _, ref := range m.References {
		fmt.Fprintf(&b, "<meta name=\"references\" content=\"%s\">\n", e(ref))
	}
	if m.Title != "" {
		fmt.Fprintf(&b, "<meta name=\"title\" content=\"%s\">\n", e(m.Title))
	}
	if m.Published != "" {
		fmt.Fprintf(&b, "<meta name=\"published\" content=\"%s\">\n", e(m.Published))
	}
	if m.Author.Href != "" {
		fmt.Fprintf(&b, "<meta name=\"author_display_name\" content=\"%s\">\n", e(m.Author.DisplayName))
		fmt.Fprintf(&b, "<meta name=\"author_display_handle\" content=\"%s\">\n", e(m.Author.DisplayHandle))
		fmt.Fprintf(&b, "<a rel=\"author\" href=\"%s\">%s</a>\n", e(m.Author.Href), e(m.Author.Name))
	}
	for _, tag := range m.Tags {
		fmt.Fprintf(&b, "<meta name=\"tags\" content=\"%s\">\n", e(tag))
	}
	if m.IsTransparentShare {
		b.WriteString("<meta name=\"is_transparent_share\" content=\"true\">\n")
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// byline renders the header's author/date line as display HTML, used by the
// epub export's chapter front matter.
func (m postMeta) byline() string {
	e := html.EscapeString
	var parts []string
	if m.Published != "" {
		parts = append(parts, e(m.Published))
	}
	if m.Author.Name != "" {
		if m.Author.Href != "" {
			parts = append(parts, fmt.Sprintf(`<a href="%s">%s</a>`, e(m.Author.Href), e(m.Author.Name)))
		} else {
			parts = append(parts, e(m.Author.Name))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return fmt.Sprintf(`<p class="byline">%s</p>`, strings.Join(parts, " · "))
}
