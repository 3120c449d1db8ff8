package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestPprintf(t *testing.T) {
	var buf bytes.Buffer
	saved := progressOut
	progressOut = &buf
	defer func() { progressOut = saved }()

	pprintf("wrote %s\n", "out/1.html")
	if got := buf.String(); got != "wrote out/1.html\n" {
		t.Errorf("got %q", got)
	}
}

func TestShortPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a.json", "a.json"},
		{"dir/a.json", "dir/a.json"},
		{"deep/nested/dir/a.json", "dir/a.json"},
	}
	for _, tt := range tests {
		if got := shortPath(tt.in); got != tt.want {
			t.Errorf("shortPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	long := strings.Repeat("x", 50) + "/" + strings.Repeat("y", 50)
	got := shortPath(long)
	if len(got) > 60 {
		t.Errorf("len = %d, want <= 60", len(got))
	}
	if !strings.HasPrefix(got, "...") {
		t.Errorf("truncated path should start with ellipsis, got %q", got)
	}
}
