// Markdown export: converts converted posts to CommonMark Markdown.
package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/JohannesKaufmann/dom"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"golang.org/x/net/html"
)

var (
	mdConverter     *converter.Converter
	mdConverterOnce sync.Once
)

// getMarkdownConverter returns a shared converter that replaces cached
// attachment images with alt-text placeholders. The cached files are only
// meaningful next to the HTML output, not in a standalone markdown file.
func getMarkdownConverter() *converter.Converter {
	mdConverterOnce.Do(func() {
		mdConverter = converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		)
		// Override img rendering for cached attachments.
		// PriorityEarly (100) runs before the commonmark plugin (PriorityStandard 500).
		mdConverter.Register.RendererFor("img", converter.TagTypeInline,
			func(ctx converter.Context, w converter.Writer, n *html.Node) converter.RenderStatus {
				src := dom.GetAttributeOr(n, "src", "")
				if !strings.HasPrefix(src, attachmentURLRoot+"/") {
					// Regular URL – let the default commonmark handler take over.
					return converter.RenderTryNext
				}
				alt := strings.TrimSpace(dom.GetAttributeOr(n, "alt", ""))
				if alt != "" {
					w.WriteString("[Image: " + alt + "]")
				} else {
					w.WriteString("[Image]")
				}
				return converter.RenderSuccess
			},
			converter.PriorityEarly,
		)
	})
	return mdConverter
}

// postToMarkdown converts one converted post body to CommonMark, prefixed
// with a heading and byline derived from its metadata.
func postToMarkdown(p *convertedPost) (string, error) {
	md, err := getMarkdownConverter().ConvertString(p.Body)
	if err != nil {
		return "", fmt.Errorf("markdown conversion: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", chapterTitle(p))
	var meta []string
	if p.Meta.Published != "" {
		meta = append(meta, p.Meta.Published)
	}
	if p.Meta.Author.Name != "" {
		meta = append(meta, p.Meta.Author.Name)
	}
	if p.Meta.Archived != "" {
		meta = append(meta, "<"+p.Meta.Archived+">")
	}
	if len(meta) > 0 {
		fmt.Fprintf(&b, "%s\n\n", strings.Join(meta, " · "))
	}
	b.WriteString(strings.TrimSpace(md))
	return b.String(), nil
}

// postsToMarkdown converts converted posts to a single Markdown document,
// separated by horizontal rules.
func postsToMarkdown(posts []*convertedPost) (string, error) {
	var parts []string
	for _, p := range posts {
		md, err := postToMarkdown(p)
		if err != nil {
			fmt.Fprintf(logOut, "Warning: markdown conversion failed for %s: %v\n", p.Path, err)
			continue
		}
		parts = append(parts, md)
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no posts converted to markdown")
	}
	return strings.Join(parts, "\n\n---\n\n") + "\n", nil
}
