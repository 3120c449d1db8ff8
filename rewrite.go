// Rewrite passes over rendered HTML fragments: relocate cohost attachment
// URLs onto the local cache, and expand <Mention handle> elements into
// ordinary links.
package main

import (
	"strings"

	"github.com/JohannesKaufmann/dom"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// profileURL is the canonical page URL for a handle.
func profileURL(handle string) string {
	return "https://cohost.org/" + handle
}

// renderMarkdownBlock renders one markdown block and runs the rewrite
// passes over the result.
func renderMarkdownBlock(markdown string, ctx attachmentContext) (string, error) {
	rendered, err := renderMarkdown(markdown)
	if err != nil {
		return "", err
	}
	fragment, err := parseFragment(rendered)
	if err != nil {
		return "", err
	}
	return rewriteFragment(fragment, ctx)
}

// rewriteFragment mutates a fragment in place through both passes and
// returns its serialization.
func rewriteFragment(container *html.Node, ctx attachmentContext) (string, error) {
	if err := relocateAttachments(container, ctx); err != nil {
		return "", err
	}
	expandMentions(container)
	return serializeFragment(container)
}

// relocateAttachments rewrites <img src> and <a href> values that point at
// the attachment redirect endpoint to cache-resolved relative URLs,
// preserving the remote URL in a data-cohost-* attribute. Every <img> also
// gets a lazy-loading hint, attachment or not.
func relocateAttachments(n *html.Node, ctx attachmentContext) error {
	if n.Type == html.ElementNode {
		for _, a := range n.Attr {
			recordAttributeSeen(n.Data, a.Key)
		}

		var attrName string
		switch n.DataAtom {
		case atom.Img:
			attrName = "src"
		case atom.A:
			attrName = "href"
		}
		if attrName != "" {
			if i := findAttrIndex(n, attrName); i >= 0 {
				oldURL := n.Attr[i].Val
				if id, ok := attachmentURLToID(oldURL); ok {
					local, err := ctx.cacheImage(id)
					if err != nil {
						return err
					}
					n.Attr[i].Val = local
					n.Attr = append(n.Attr, html.Attribute{Key: "data-cohost-" + attrName, Val: oldURL})
				}
			}
			if n.DataAtom == atom.Img {
				n.Attr = append(n.Attr, html.Attribute{Key: "loading", Val: "lazy"})
			}
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := relocateAttachments(c, ctx); err != nil {
			return err
		}
	}
	return nil
}

// expandMentions replaces every <Mention handle=...> element with a link to
// the handle's page, moving its children onto the link. Mention-shaped
// elements without a handle are left alone, and descendants of replacement
// links are walked too so nested mentions still expand. Sibling order of
// untouched nodes is preserved.
func expandMentions(container *html.Node) {
	queue := []*html.Node{container}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]

		for c := n.FirstChild; c != nil; {
			next := c.NextSibling

			if c.Type == html.ElementNode && strings.EqualFold(c.Data, "mention") {
				if handle := dom.GetAttributeOr(c, "handle", ""); handle != "" {
					link := createElement("a")
					link.Attr = append(link.Attr, html.Attribute{Key: "href", Val: profileURL(handle)})
					for gc := c.FirstChild; gc != nil; {
						gnext := gc.NextSibling
						c.RemoveChild(gc)
						link.AppendChild(gc)
						gc = gnext
					}
					n.InsertBefore(link, c)
					n.RemoveChild(c)
					queue = append(queue, link)
					c = next
					continue
				}
			}

			queue = append(queue, c)
			c = next
		}
	}
}
