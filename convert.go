// Per-post conversion: share-tree flattening, the block/span merge engine,
// and the fixed fragment templates for images and asks.
package main

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// sanitizeOutput runs every output document through the downstream
// sanitizer policy before writing. Set by the -sanitize CLI flag.
var sanitizeOutput bool

// convertedPost is one finished output document, kept around for the epub
// and markdown export modes.
type convertedPost struct {
	Path string
	Meta postMeta
	Body string
}

// convertChost converts one export file into one output file per shared
// post plus one for the post itself.
func convertChost(inputPath, outputDir string, ctx attachmentContext) (*convertedPost, error) {
	post, err := readPost(inputPath)
	if err != nil {
		return nil, err
	}
	postID := strconv.FormatInt(post.PostID, 10)

	// The share tree is consumed here and cleared on the post so it cannot
	// be re-emitted as part of the post's own body.
	sharedPosts := post.ShareTree
	post.ShareTree = nil

	sharedFilenames := make([]string, len(sharedPosts))
	for i := range sharedPosts {
		sharedFilenames[i] = fmt.Sprintf("%s/%d.html", postID, sharedPosts[i].PostID)
	}

	if len(sharedPosts) > 0 {
		if err := os.MkdirAll(filepath.Join(outputDir, postID), 0o755); err != nil {
			return nil, err
		}
	}

	for i := range sharedPosts {
		outputPath := filepath.Join(outputDir, filepath.FromSlash(sharedFilenames[i]))
		if _, err := convertSinglePost(&sharedPosts[i], nil, outputPath, ctx); err != nil {
			return nil, err
		}
	}

	outputPath := filepath.Join(outputDir, postID+".html")
	return convertSinglePost(post, sharedFilenames, outputPath, ctx)
}

// convertSinglePost renders one post (shared or top-level) to outputPath.
// references names the already-written files for the post's share tree, in
// share-tree order.
func convertSinglePost(post *Post, references []string, outputPath string, ctx attachmentContext) (*convertedPost, error) {
	meta := postMeta{
		Archived:   fmt.Sprintf("https://cohost.org/%s/post/%s", post.PostingProject.Handle, post.Filename),
		References: references,
		Title:      post.Headline,
		Published:  post.PublishedAt,
		Author: author{
			Href:          profileURL(post.PostingProject.Handle),
			Name:          fmt.Sprintf("%s (@%s)", post.PostingProject.DisplayName, post.PostingProject.Handle),
			DisplayName:   post.PostingProject.DisplayName,
			DisplayHandle: "@" + post.PostingProject.Handle,
		},
		Tags:               post.Tags,
		IsTransparentShare: post.TransparentShareOfPostID != nil,
	}

	body, err := renderPostBody(post, ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", outputPath, err)
	}

	document := meta.render() + "\n\n" + body
	if sanitizeOutput {
		document = sanitizeDocument(document)
	}

	if err := os.WriteFile(outputPath, []byte(document), 0o644); err != nil {
		return nil, err
	}
	pprintf("wrote %s\n", outputPath)

	return &convertedPost{Path: outputPath, Meta: meta, Body: body}, nil
}

// renderPostBody is the block/span merge engine. Blocks are walked in order
// exactly once; the sorted span queue decides, per index, whether a block
// renders from its native form or is represented by a pending AST override.
// Every fragment is followed by a blank-line separator except those emitted
// from the override path.
func renderPostBody(post *Post, ctx attachmentContext) (string, error) {
	spans, err := decodeSpans(post.AstMap.Spans)
	if err != nil {
		return "", err
	}

	var body strings.Builder
	for i := range post.Blocks {
		// Spans whose interval has fully passed can never apply again;
		// dropping them here tolerates overlapping or malformed input.
		for len(spans) > 0 && i >= spans[0].end {
			spans = spans[1:]
		}
		if len(spans) > 0 && i >= spans[0].start && i < spans[0].end {
			if i != spans[0].end-1 {
				// Covered but not the last index: the block's content is
				// already part of the pending override.
				continue
			}
			span := spans[0]
			spans = spans[1:]
			fragment, err := compileAst(span.ast)
			if err != nil {
				return "", err
			}
			rendered, err := rewriteFragment(fragment, ctx)
			if err != nil {
				return "", err
			}
			body.WriteString(rendered)
			continue
		}

		fragment, err := renderBlock(&post.Blocks[i], ctx)
		if err != nil {
			return "", err
		}
		if fragment != "" {
			body.WriteString(fragment)
			body.WriteString("\n\n")
		}
	}

	return body.String(), nil
}

// renderBlock renders one native block. Unrecognized shapes warn and return
// an empty fragment so newer export formats degrade instead of failing.
func renderBlock(block *Block, ctx attachmentContext) (string, error) {
	switch block.Type {
	case "markdown":
		return renderMarkdownBlock(block.Markdown.Content, ctx)
	case "attachment":
		return renderAttachment(block.Attachment, ctx)
	case "ask":
		content, err := renderMarkdownBlock(block.Ask.Content, ctx)
		if err != nil {
			return "", err
		}
		return renderAskFragment(block.Ask, content), nil
	case "attachment-row":
		var fragments []string
		for i := range block.Attachments {
			nested := &block.Attachments[i]
			if nested.Type != "attachment" {
				fmt.Fprintf(logOut, "Warning: attachment row contains a %q block, skipping it\n", nested.Type)
				continue
			}
			fragment, err := renderAttachment(nested.Attachment, ctx)
			if err != nil {
				return "", err
			}
			if fragment != "" {
				fragments = append(fragments, fragment)
			}
		}
		return strings.Join(fragments, "\n"), nil
	default:
		fmt.Fprintf(logOut, "Warning: unknown block type %q: %s\n", block.Type, block.Raw)
		return "", nil
	}
}

// renderAttachment emits the fixed image fragment: a full-size link
// wrapping a lazy-loaded thumbnail, with the remote URL preserved.
func renderAttachment(a *Attachment, ctx attachmentContext) (string, error) {
	if a.Kind != "image" {
		fmt.Fprintf(logOut, "Warning: unknown attachment kind %q: %s\n", a.Kind, a.Raw)
		return "", nil
	}

	remote := attachmentIDToURL(a.AttachmentID)
	thumb, err := ctx.cacheThumb(a.AttachmentID)
	if err != nil {
		return "", err
	}
	full, err := ctx.cacheImage(a.AttachmentID)
	if err != nil {
		return "", err
	}

	e := html.EscapeString
	return fmt.Sprintf(
		`<a href="%s"><img loading="lazy" src="%s" data-cohost-src="%s" alt="%s" width="%d" height="%d"></a>`,
		e(full), e(thumb), e(remote), e(a.AltText), a.Width, a.Height), nil
}

// renderAskFragment wraps rendered ask content in the fixed
// quote-and-attribution shape. Anonymous asks have no asking project.
func renderAskFragment(ask *Ask, contentHTML string) string {
	attribution := "Anonymous User"
	if ask.AskingProject != nil {
		h := html.EscapeString(ask.AskingProject.Handle)
		attribution = fmt.Sprintf(`<a href="%s">@%s</a>`, html.EscapeString(profileURL(ask.AskingProject.Handle)), h)
	}
	return fmt.Sprintf(
		"<blockquote class=\"ask\">\n<p class=\"ask-attribution\">%s asked:</p>\n%s</blockquote>",
		attribution, contentHTML)
}
