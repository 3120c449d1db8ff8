// chost2html: Convert a cohost post export into static HTML pages with a
// local attachment mirror.
//
//	chost2html [options] <input-dir> <output-dir> <images-dir> [post.json ...]
//
// Every *.json file in the input directory is converted, or only the named
// files when any are listed. Attachments referenced by the posts are
// downloaded into the images directory, which doubles as a cache across
// runs.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// logOut is the writer for warnings and informational output.
// In silent mode it is set to io.Discard so only errors reach the user.
var logOut io.Writer = os.Stderr

// routeOutput wires the progress and warning writers for the run. Silent
// mode discards both; errors from run itself still reach stderr via main.
func routeOutput(silent bool) {
	if silent {
		progressOut = io.Discard
		logOut = io.Discard
	} else {
		progressOut = os.Stdout
		logOut = os.Stderr
	}
}

// cliConfig holds parsed command-line options.
type cliConfig struct {
	inputDir    string
	outputDir   string
	imagesDir   string
	files       []string // optional subset of input basenames
	concurrency int
	timeout     time.Duration
	userAgent   string
	opts        optimizeOpts
	epubOutput  string
	mdOutput    string
	title       string
}

// collectInputFiles lists the export files to convert, in sorted order.
// When a subset is named on the command line, only those are used; each
// must exist in the input directory.
func collectInputFiles(cfg cliConfig) ([]string, error) {
	if len(cfg.files) > 0 {
		paths := make([]string, 0, len(cfg.files))
		for _, name := range cfg.files {
			path := filepath.Join(cfg.inputDir, name)
			if _, err := os.Stat(path); err != nil {
				return nil, fmt.Errorf("input file: %w", err)
			}
			paths = append(paths, path)
		}
		sort.Strings(paths)
		return paths, nil
	}

	entries, err := os.ReadDir(cfg.inputDir)
	if err != nil {
		return nil, fmt.Errorf("reading input directory: %w", err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		paths = append(paths, filepath.Join(cfg.inputDir, entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// run executes the conversion, returning the first per-file error after all
// files have been attempted. One failing file never stops the others.
func run(cfg cliConfig) error {
	inputPaths, err := collectInputFiles(cfg)
	if err != nil {
		return err
	}
	if len(inputPaths) == 0 {
		return fmt.Errorf("no *.json files in %s", cfg.inputDir)
	}

	if err := os.MkdirAll(cfg.outputDir, 0o755); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.imagesDir, 0o755); err != nil {
		return err
	}

	cache := newDiskAttachmentCache(cfg.imagesDir, newAttachmentClient(cfg.timeout), cfg.userAgent)

	// Parallelize with a bounded semaphore to avoid overwhelming resources.
	concurrency := cfg.concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	posts := make([]*convertedPost, len(inputPaths))
	errs := make([]error, len(inputPaths))
	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)

	for i, inputPath := range inputPaths {
		wg.Add(1)
		go func(i int, inputPath string) {
			defer wg.Done()
			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			pprintf("[%d/%d] %s\n", i+1, len(inputPaths), shortPath(inputPath))
			post, err := convertChost(inputPath, cfg.outputDir, cache)
			if err != nil {
				fmt.Fprintf(logOut, "Error: %s: %v\n", inputPath, err)
				errs[i] = err
				return
			}
			posts[i] = post
		}(i, inputPath)
	}
	wg.Wait()

	if seen := notKnownGoodAttributesSeen(); len(seen) > 0 {
		var pairs []string
		for _, s := range seen {
			pairs = append(pairs, s[0]+" "+s[1])
		}
		fmt.Fprintf(logOut, "Warning: saw attributes that may need handling: %s\n",
			strings.Join(pairs, ", "))
	}

	// Successful conversions in input order, for the export modes.
	var converted []*convertedPost
	for _, p := range posts {
		if p != nil {
			converted = append(converted, p)
		}
	}

	if cfg.epubOutput != "" && len(converted) > 0 {
		title := cfg.title
		if title == "" {
			title = archiveTitle(converted)
		}
		pprintf("building %s from %d posts\n", cfg.epubOutput, len(converted))
		if err := buildArchiveEpub(converted, title, cfg.epubOutput, cfg.imagesDir, cfg.opts); err != nil {
			return fmt.Errorf("building epub: %w", err)
		}
	}
	if cfg.mdOutput != "" && len(converted) > 0 {
		md, err := postsToMarkdown(converted)
		if err != nil {
			return fmt.Errorf("markdown export: %w", err)
		}
		if err := os.WriteFile(cfg.mdOutput, []byte(md), 0o644); err != nil {
			return fmt.Errorf("markdown export: %w", err)
		}
		pprintf("wrote %s\n", cfg.mdOutput)
	}

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// archiveTitle derives a book title from the first post's author.
func archiveTitle(posts []*convertedPost) string {
	if h := posts[0].Meta.Author.DisplayHandle; h != "" {
		return h + " archive"
	}
	return "cohost archive"
}

func main() {
	concurrency := flag.Int("concurrency", 5, "Concurrent post conversions")
	timeout := flag.Duration("timeout", 30*time.Second, "HTTP fetch timeout")
	userAgent := flag.String("user-agent", defaultUA, "HTTP User-Agent header")
	proxy := flag.String("proxy", "", "HTTP proxy URL for attachment fetches")
	silent := flag.Bool("silent", false, "Suppress all output except errors (for pipeline use)")
	maxResponseMB := flag.Int64("max-response-size", 128, "Max attachment size in MB (0 = unlimited)")
	sanitize := flag.Bool("sanitize", false, "Filter output documents through the sanitizer policy")
	epubOutput := flag.String("epub", "", "Also build an epub of all converted posts at this path")
	mdOutput := flag.String("markdown", "", "Also write a markdown export of all converted posts at this path")
	title := flag.String("title", "", "Override the epub book title")
	maxWidth := flag.Int("max-width", 800, "Max pixel width for epub images (height scales proportionally)")
	quality := flag.Int("quality", 60, "JPEG quality 1-95 for epub images")
	grayscale := flag.Bool("grayscale", false, "Convert epub images to grayscale")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: chost2html [options] <input-dir> <output-dir> <images-dir> [post.json ...]\n\n")
		fmt.Fprintf(os.Stderr, "Convert a cohost post export into static HTML with a local attachment mirror.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 3 {
		flag.Usage()
		os.Exit(2)
	}

	routeOutput(*silent)
	fetchProxyURL = *proxy
	maxResponseBytes = *maxResponseMB * 1024 * 1024
	sanitizeOutput = *sanitize

	cfg := cliConfig{
		inputDir:    flag.Arg(0),
		outputDir:   flag.Arg(1),
		imagesDir:   flag.Arg(2),
		files:       flag.Args()[3:],
		concurrency: *concurrency,
		timeout:     *timeout,
		userAgent:   *userAgent,
		opts: optimizeOpts{
			maxWidth:  *maxWidth,
			quality:   *quality,
			grayscale: *grayscale,
		},
		epubOutput: *epubOutput,
		mdOutput:   *mdOutput,
		title:      *title,
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
