package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestBlockUnmarshal_Markdown(t *testing.T) {
	var b Block
	data := `{"type":"markdown","markdown":{"content":"hello *world*"}}`
	if err := json.Unmarshal([]byte(data), &b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if b.Type != "markdown" {
		t.Errorf("Type = %q, want %q", b.Type, "markdown")
	}
	if b.Markdown == nil || b.Markdown.Content != "hello *world*" {
		t.Errorf("Markdown = %+v, want content %q", b.Markdown, "hello *world*")
	}
}

func TestBlockUnmarshal_Attachment(t *testing.T) {
	var b Block
	data := `{"type":"attachment","attachment":{"kind":"image","attachmentId":"44444444-4444-4444-4444-444444444444","altText":"a cat","width":800,"height":600}}`
	if err := json.Unmarshal([]byte(data), &b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	a := b.Attachment
	if a == nil {
		t.Fatal("Attachment is nil")
	}
	if a.Kind != "image" {
		t.Errorf("Kind = %q, want %q", a.Kind, "image")
	}
	if a.AttachmentID != "44444444-4444-4444-4444-444444444444" {
		t.Errorf("AttachmentID = %q", a.AttachmentID)
	}
	if a.AltText != "a cat" || a.Width != 800 || a.Height != 600 {
		t.Errorf("got alt=%q w=%d h=%d", a.AltText, a.Width, a.Height)
	}
}

func TestBlockUnmarshal_AttachmentRow(t *testing.T) {
	var b Block
	data := `{"type":"attachment-row","attachments":[
		{"type":"attachment","attachment":{"kind":"image","attachmentId":"11111111-1111-1111-1111-111111111111","altText":"","width":1,"height":1}},
		{"type":"attachment","attachment":{"kind":"image","attachmentId":"22222222-2222-2222-2222-222222222222","altText":"","width":1,"height":1}}]}`
	if err := json.Unmarshal([]byte(data), &b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(b.Attachments) != 2 {
		t.Fatalf("len(Attachments) = %d, want 2", len(b.Attachments))
	}
	if b.Attachments[1].Attachment.AttachmentID != "22222222-2222-2222-2222-222222222222" {
		t.Errorf("second attachment id = %q", b.Attachments[1].Attachment.AttachmentID)
	}
}

func TestBlockUnmarshal_Ask(t *testing.T) {
	var b Block
	data := `{"type":"ask","ask":{"content":"why?","askingProject":{"handle":"curious","displayName":"Curious"},"anon":false}}`
	if err := json.Unmarshal([]byte(data), &b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if b.Ask == nil || b.Ask.Content != "why?" {
		t.Fatalf("Ask = %+v", b.Ask)
	}
	if b.Ask.AskingProject == nil || b.Ask.AskingProject.Handle != "curious" {
		t.Errorf("AskingProject = %+v", b.Ask.AskingProject)
	}
}

func TestBlockUnmarshal_UnknownTypeKeepsRaw(t *testing.T) {
	var b Block
	data := `{"type":"poll","poll":{"question":"?"}}`
	if err := json.Unmarshal([]byte(data), &b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if b.Type != "poll" {
		t.Errorf("Type = %q, want %q", b.Type, "poll")
	}
	if string(b.Raw) != data {
		t.Errorf("Raw = %q, want original payload", b.Raw)
	}
}

func TestAttachmentUnmarshal_UnknownKindKeepsRaw(t *testing.T) {
	var a Attachment
	data := `{"kind":"audio","attachmentId":"x","fileURL":"y"}`
	if err := json.Unmarshal([]byte(data), &a); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if a.Kind != "audio" {
		t.Errorf("Kind = %q, want %q", a.Kind, "audio")
	}
	if a.AttachmentID != "" {
		t.Errorf("AttachmentID should not be populated for unknown kinds, got %q", a.AttachmentID)
	}
	if string(a.Raw) != data {
		t.Errorf("Raw = %q, want original payload", a.Raw)
	}
}

func TestReadPost(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "123.json")
	doc := `{
		"postId": 123,
		"headline": "Hello",
		"publishedAt": "2023-01-01T00:00:00.000Z",
		"filename": "hello-123",
		"transparentShareOfPostId": null,
		"tags": ["one", "two"],
		"postingProject": {"handle": "staff", "displayName": "Staff"},
		"blocks": [{"type": "markdown", "markdown": {"content": "hi"}}],
		"astMap": {"spans": []},
		"shareTree": []
	}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	post, err := readPost(path)
	if err != nil {
		t.Fatalf("readPost: %v", err)
	}
	if post.PostID != 123 {
		t.Errorf("PostID = %d, want 123", post.PostID)
	}
	if post.Headline != "Hello" {
		t.Errorf("Headline = %q", post.Headline)
	}
	if post.PostingProject.Handle != "staff" {
		t.Errorf("Handle = %q", post.PostingProject.Handle)
	}
	if post.TransparentShareOfPostID != nil {
		t.Errorf("TransparentShareOfPostID = %v, want nil", post.TransparentShareOfPostID)
	}
	if len(post.Blocks) != 1 || post.Blocks[0].Type != "markdown" {
		t.Errorf("Blocks = %+v", post.Blocks)
	}
}

func TestReadPost_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := readPost(path); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestReadPost_MissingFile(t *testing.T) {
	if _, err := readPost(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
