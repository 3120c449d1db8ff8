package main

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	epub "github.com/go-shiori/go-epub"
	"golang.org/x/net/html"
)

func htmlAttr(key, val string) html.Attribute {
	return html.Attribute{Key: key, Val: val}
}

func TestIsAllowedAttr(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"id", true},
		{"class", true},
		{"href", true},
		{"src", true},
		{"alt", true},
		{"colspan", true},
		{"open", true},
		{"loading", true},
		{"aria-label", true},
		{"epub:type", true},
		{"onclick", false},
		{"data-cohost-src", false},
		{"tabindex", false},
	}
	for _, tt := range tests {
		if got := isAllowedAttr(htmlAttr(tt.key, "x")); got != tt.want {
			t.Errorf("isAllowedAttr(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestSanitizeForXHTML_FiltersAttrs(t *testing.T) {
	input := `<p id="intro" onclick="alert(1)" data-cohost-src="x">Hello</p>`
	result := sanitizeForXHTML(input)
	if strings.Contains(result, "onclick") {
		t.Error("onclick should be stripped")
	}
	if strings.Contains(result, "data-cohost-src") {
		t.Error("data-cohost-src should be stripped from epub content")
	}
	if !strings.Contains(result, `id="intro"`) {
		t.Error("id should be kept")
	}
	if !strings.Contains(result, "Hello") {
		t.Error("text content should be preserved")
	}
}

func TestSanitizeForXHTML_FixesBrokenFragmentLinks(t *testing.T) {
	input := `<a href="#exists">ok</a><a href="#missing">broken</a><div id="exists">target</div>`
	result := sanitizeForXHTML(input)
	if !strings.Contains(result, `href="#exists"`) {
		t.Error("link to existing ID should be kept")
	}
	if strings.Contains(result, `href="#missing"`) {
		t.Error("link to non-existent ID should be dropped")
	}
}

func TestSanitizeForXHTML_VoidElements(t *testing.T) {
	input := `<p>text<br>more</p><hr><img src="x.jpg" alt="test">`
	result := sanitizeForXHTML(input)
	if !strings.Contains(result, "<br/>") {
		t.Error("br should be self-closing in XHTML")
	}
	if !strings.Contains(result, "<hr/>") {
		t.Error("hr should be self-closing in XHTML")
	}
}

func TestCachedFilePath(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"attachments/id/f.png", filepath.Join("imgs", "id", "f.png")},
		{"attachments/thumbs/id/f.png", filepath.Join("imgs", "thumbs", "id", "f.png")},
		{"https://example.com/x.png", ""},
		{"attachments/../etc/passwd", ""},
		{"other/id/f.png", ""},
	}
	for _, tt := range tests {
		if got := cachedFilePath("imgs", tt.src); got != tt.want {
			t.Errorf("cachedFilePath(%q) = %q, want %q", tt.src, got, tt.want)
		}
	}
}

func TestEmbedCachedImages(t *testing.T) {
	imagesDir := t.TempDir()
	id := testAttachmentID
	thumbDir := filepath.Join(imagesDir, "thumbs", id)
	if err := os.MkdirAll(thumbDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(thumbDir, "f.png"), makePNG(t, 20, 10), 0o644); err != nil {
		t.Fatal(err)
	}

	e, err := epub.NewEpub("test")
	if err != nil {
		t.Fatal(err)
	}

	body := `<a href="attachments/` + id + `/f.png"><img src="attachments/thumbs/` + id + `/f.png" alt="x"/></a>`
	out, orig, embed, err := embedCachedImages(e, body, 1, imagesDir, optimizeOpts{maxWidth: 800, quality: 60})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, `<a href="attachments/`) {
		t.Errorf("full-size link should be unwrapped, got %q", out)
	}
	if strings.Contains(out, `src="attachments/`) {
		t.Errorf("src should be rewritten to an internal path, got %q", out)
	}
	if !strings.Contains(out, "ch001_img000") {
		t.Errorf("internal image path missing, got %q", out)
	}
	if orig == 0 || embed == 0 {
		t.Errorf("byte counters not updated: orig=%d embed=%d", orig, embed)
	}
}

func TestBuildTOCBody(t *testing.T) {
	posts := []*convertedPost{
		{Path: "out/1.html", Meta: postMeta{Title: "First", Published: "2023-01-01", Archived: "https://cohost.org/h/post/a-1"}},
		{Path: "out/2.html", Meta: postMeta{}},
	}
	got := buildTOCBody(posts)
	if !strings.Contains(got, `<a href="post001.xhtml">First</a>`) {
		t.Errorf("toc missing first entry: %q", got)
	}
	if !strings.Contains(got, `<a href="post002.xhtml">Post 2</a>`) {
		t.Errorf("toc missing fallback title: %q", got)
	}
	if !strings.Contains(got, "cohost.org/h/post/a-1") {
		t.Errorf("toc missing archived link: %q", got)
	}
}

func TestBuildArchiveEpub(t *testing.T) {
	imagesDir := t.TempDir()
	outputPath := filepath.Join(t.TempDir(), "archive.epub")

	posts := []*convertedPost{
		{
			Path: "out/1.html",
			Meta: postMeta{
				Title:     "Hello",
				Published: "2023-01-01",
				Author:    author{Href: "https://cohost.org/staff", Name: "Staff (@staff)"},
			},
			Body: "<p>first post</p>",
		},
		{
			Path: "out/2.html",
			Meta: postMeta{},
			Body: "<p>second post</p>",
		},
	}

	if err := buildArchiveEpub(posts, "@staff archive", outputPath, imagesDir, optimizeOpts{maxWidth: 800, quality: 60}); err != nil {
		t.Fatalf("buildArchiveEpub: %v", err)
	}

	zr, err := zip.OpenReader(outputPath)
	if err != nil {
		t.Fatalf("output is not a readable zip: %v", err)
	}
	defer zr.Close()

	var sawContents, sawFirst, sawSecond, sawCover bool
	for _, f := range zr.File {
		switch {
		case strings.HasSuffix(f.Name, "contents.xhtml"):
			sawContents = true
		case strings.HasSuffix(f.Name, "post001.xhtml"):
			sawFirst = true
			rc, err := f.Open()
			if err != nil {
				t.Fatal(err)
			}
			data, _ := io.ReadAll(rc)
			rc.Close()
			if !strings.Contains(string(data), "first post") {
				t.Errorf("chapter body missing: %q", data)
			}
			if !strings.Contains(string(data), "Hello") {
				t.Errorf("chapter heading missing: %q", data)
			}
		case strings.HasSuffix(f.Name, "post002.xhtml"):
			sawSecond = true
		case strings.Contains(f.Name, "cover"):
			sawCover = true
		}
	}
	if !sawContents || !sawFirst || !sawSecond {
		t.Errorf("missing chapters: contents=%v first=%v second=%v", sawContents, sawFirst, sawSecond)
	}
	if !sawCover {
		t.Error("cover missing from epub")
	}
}

func TestChapterTitle(t *testing.T) {
	p := &convertedPost{Path: "out/123.html", Meta: postMeta{Title: "Headline"}}
	if got := chapterTitle(p); got != "Headline" {
		t.Errorf("got %q", got)
	}
	p.Meta.Title = ""
	if got := chapterTitle(p); got != "Post 123" {
		t.Errorf("got %q, want %q", got, "Post 123")
	}
}
