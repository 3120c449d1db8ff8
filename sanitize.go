// Optional reader-step sanitization. The wider page pipeline filters
// documents through this policy before display; -sanitize applies it at
// write time instead, for output that is embedded directly.
package main

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

var (
	chostPolicy     *bluemonday.Policy
	chostPolicyOnce sync.Once
)

// getChostPolicy builds the shared allow-list policy. It mirrors what the
// downstream pipeline accepts: standard formatting elements, the
// attachment provenance attributes, <details open>, <img loading>, and the
// header's <meta name content> elements.
func getChostPolicy() *bluemonday.Policy {
	chostPolicyOnce.Do(func() {
		p := bluemonday.NewPolicy()
		p.AllowStandardURLs()

		p.AllowElements(
			"a", "abbr", "b", "blockquote", "br", "caption", "code", "dd",
			"del", "details", "div", "dl", "dt", "em", "figcaption", "figure",
			"h1", "h2", "h3", "h4", "h5", "h6", "hr", "i", "img", "ins", "kbd",
			"li", "mark", "meta", "ol", "p", "pre", "q", "rp", "rt", "ruby",
			"s", "samp", "small", "span", "strike", "strong", "sub", "summary",
			"sup", "table", "tbody", "td", "tfoot", "th", "thead", "time",
			"tr", "u", "ul", "var", "wbr",
		)

		p.AllowAttrs("style", "id", "class", "title", "lang", "dir").Globally()
		p.AllowAttrs("data-cohost-src", "data-cohost-href").Globally()
		p.AllowAttrs("href", "rel").OnElements("a")
		p.AllowAttrs("src", "alt", "width", "height", "loading").OnElements("img")
		p.AllowAttrs("start", "reversed", "type").OnElements("ol")
		p.AllowAttrs("colspan", "rowspan", "scope").OnElements("td", "th")
		p.AllowAttrs("open").OnElements("details")
		p.AllowAttrs("name", "content").OnElements("meta")
		p.AllowAttrs("datetime").OnElements("time")
		p.AllowAttrs("cite").OnElements("blockquote", "q", "del", "ins")
		p.AllowRelativeURLs(true)

		chostPolicy = p
	})
	return chostPolicy
}

// sanitizeDocument prefixes user-authored ids (so they can't collide with
// the embedding page's) and filters the document through the policy.
func sanitizeDocument(document string) string {
	document = prefixUserContentIDs(document)
	return getChostPolicy().Sanitize(document)
}

// prefixUserContentIDs rewrites every id attribute to user-content-<id>.
func prefixUserContentIDs(document string) string {
	container, err := parseFragment(document)
	if err != nil {
		return document
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if i := findAttrIndex(n, "id"); i >= 0 {
				if !strings.HasPrefix(n.Attr[i].Val, "user-content-") {
					n.Attr[i].Val = "user-content-" + n.Attr[i].Val
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(container)

	out, err := serializeFragment(container)
	if err != nil {
		return document
	}
	return out
}
