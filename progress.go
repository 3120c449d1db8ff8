// Progress indicators for stdout. Output documents always go to files, so
// stdout is free for user-facing progress display unless -silent is set.
package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// progressOut is the writer for progress indicators. Set to os.Stdout at
// startup; io.Discard under -silent.
var progressOut io.Writer = io.Discard

// progressMu serialises writes to progressOut so concurrent conversion
// workers don't interleave output lines.
var progressMu sync.Mutex

// pprintf writes a formatted progress line to progressOut, holding the
// mutex to prevent interleaving from concurrent goroutines.
func pprintf(format string, args ...any) {
	progressMu.Lock()
	defer progressMu.Unlock()
	fmt.Fprintf(progressOut, format, args...)
}

// shortPath returns a compact display form of a path: the last two
// segments, truncated to 60 characters with "..." if needed.
func shortPath(path string) string {
	parts := strings.Split(path, "/")
	if len(parts) > 2 {
		path = strings.Join(parts[len(parts)-2:], "/")
	}
	if len(path) > 60 {
		path = "..." + path[len(path)-57:]
	}
	return path
}
