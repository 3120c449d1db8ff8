// Data model for chosts as found in a cohost data export: one JSON document
// per post, with nested shared posts and a high-fidelity AST map.
package main

import (
	"encoding/json"
	"fmt"
	"os"
)

// Project identifies the page a chost was posted (or asked) under.
type Project struct {
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName"`
}

// Post is one chost from the export. ShareTree holds every post this post is
// in reply to, from top to bottom; it is cleared once consumed so the shared
// posts are never re-emitted as part of this post's own body.
type Post struct {
	PostID                   int64    `json:"postId"`
	Headline                 string   `json:"headline"`
	PublishedAt              string   `json:"publishedAt"`
	Filename                 string   `json:"filename"`
	TransparentShareOfPostID *int64   `json:"transparentShareOfPostId"`
	Tags                     []string `json:"tags"`
	PostingProject           Project  `json:"postingProject"`
	Blocks                   []Block  `json:"blocks"`
	AstMap                   AstMap   `json:"astMap"`
	ShareTree                []Post   `json:"shareTree"`
}

// AstMap carries the spans that override rendering of block ranges.
type AstMap struct {
	Spans []Span `json:"spans"`
}

// Span replaces blocks [StartIndex, EndIndex) with the rendering of AST,
// which is itself a JSON document serialized into a string.
type Span struct {
	AST        string `json:"ast"`
	StartIndex int    `json:"startIndex"`
	EndIndex   int    `json:"endIndex"`
}

// MarkdownBlock is the native markdown source of one block.
type MarkdownBlock struct {
	Content string `json:"content"`
}

// Ask is a question-and-answer unit. AskingProject is nil for anonymous asks.
type Ask struct {
	Content       string   `json:"content"`
	AskingProject *Project `json:"askingProject"`
	Anon          bool     `json:"anon"`
}

// Block is one unit of post content, discriminated by Type. Exactly one
// variant field is populated; export formats newer than this tool keep their
// raw payload in Raw so an unknown kind degrades to a warning, not an error.
type Block struct {
	Type        string
	Markdown    *MarkdownBlock
	Attachment  *Attachment
	Ask         *Ask
	Attachments []Block // attachment-row members
	Raw         json.RawMessage
}

func (b *Block) UnmarshalJSON(data []byte) error {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	b.Type = head.Type

	switch head.Type {
	case "markdown":
		var v struct {
			Markdown MarkdownBlock `json:"markdown"`
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		b.Markdown = &v.Markdown
	case "attachment":
		var v struct {
			Attachment Attachment `json:"attachment"`
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		b.Attachment = &v.Attachment
	case "ask":
		var v struct {
			Ask Ask `json:"ask"`
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		b.Ask = &v.Ask
	case "attachment-row":
		var v struct {
			Attachments []Block `json:"attachments"`
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		b.Attachments = v.Attachments
	default:
		b.Raw = append(json.RawMessage(nil), data...)
	}
	return nil
}

// Attachment is a media attachment, discriminated by Kind. Only images are
// understood; other kinds keep their raw payload in Raw.
type Attachment struct {
	Kind         string
	AttachmentID string
	AltText      string
	Width        int
	Height       int
	Raw          json.RawMessage
}

func (a *Attachment) UnmarshalJSON(data []byte) error {
	var head struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	a.Kind = head.Kind

	if head.Kind != "image" {
		a.Raw = append(json.RawMessage(nil), data...)
		return nil
	}

	var v struct {
		AttachmentID string `json:"attachmentId"`
		AltText      string `json:"altText"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	a.AttachmentID = v.AttachmentID
	a.AltText = v.AltText
	a.Width = v.Width
	a.Height = v.Height
	return nil
}

// readPost parses one export file into a Post.
func readPost(path string) (*Post, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var post Post
	if err := json.NewDecoder(f).Decode(&post); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &post, nil
}
