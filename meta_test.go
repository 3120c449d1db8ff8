package main

import (
	"strings"
	"testing"
)

func TestPostMetaRender(t *testing.T) {
	m := postMeta{
		Archived:   "https://cohost.org/staff/post/hello-123",
		References: []string{"123/456.html", "123/789.html"},
		Title:      "Hello <world>",
		Published:  "2023-01-01T00:00:00.000Z",
		Author: author{
			Href:          "https://cohost.org/staff",
			Name:          "Staff (@staff)",
			DisplayName:   "Staff",
			DisplayHandle: "@staff",
		},
		Tags:               []string{"one", "two"},
		IsTransparentShare: false,
	}

	got := m.render()
	want := strings.Join([]string{
		`<meta name="archived" content="https://cohost.org/staff/post/hello-123">`,
		`<meta name="references" content="123/456.html">`,
		`<meta name="references" content="123/789.html">`,
		`<meta name="title" content="Hello &lt;world&gt;">`,
		`<meta name="published" content="2023-01-01T00:00:00.000Z">`,
		`<meta name="author_display_name" content="Staff">`,
		`<meta name="author_display_handle" content="@staff">`,
		`<a rel="author" href="https://cohost.org/staff">Staff (@staff)</a>`,
		`<meta name="tags" content="one">`,
		`<meta name="tags" content="two">`,
	}, "\n")
	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestPostMetaRender_TransparentShare(t *testing.T) {
	m := postMeta{IsTransparentShare: true}
	got := m.render()
	if got != `<meta name="is_transparent_share" content="true">` {
		t.Errorf("got %q", got)
	}
}

func TestPostMetaRender_Empty(t *testing.T) {
	if got := (postMeta{}).render(); got != "" {
		t.Errorf("empty meta should render nothing, got %q", got)
	}
}

func TestPostMetaByline(t *testing.T) {
	m := postMeta{
		Published: "2023-01-01",
		Author: author{
			Href: "https://cohost.org/staff",
			Name: "Staff (@staff)",
		},
	}
	got := m.byline()
	want := `<p class="byline">2023-01-01 · <a href="https://cohost.org/staff">Staff (@staff)</a></p>`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	if got := (postMeta{}).byline(); got != "" {
		t.Errorf("empty byline should be empty, got %q", got)
	}
}
