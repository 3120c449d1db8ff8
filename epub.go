// Epub generation from converted posts using go-epub. Cached attachments
// are optimized and embedded so the book works offline.
package main

import (
	"bytes"
	"encoding/base64"
	"fmt"
	gohtml "html"
	"os"
	"path/filepath"
	"strings"

	epub "github.com/go-shiori/go-epub"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// chapterTitle derives a display title for a post, falling back to the
// output filename when the post has no headline.
func chapterTitle(p *convertedPost) string {
	if p.Meta.Title != "" {
		return p.Meta.Title
	}
	return "Post " + strings.TrimSuffix(filepath.Base(p.Path), ".html")
}

// isAllowedAttr reports whether an attribute is safe for XHTML epub content.
func isAllowedAttr(a html.Attribute) bool {
	key := a.Key
	switch key {
	case "id", "class", "style", "title", "lang", "dir",
		"href", "src", "alt", "width", "height",
		"colspan", "rowspan", "scope", "headers",
		"cite", "datetime", "name", "value", "type",
		"rel", "media", "start", "reversed", "open", "loading":
		return true
	}
	// aria-* attributes are allowed in epub
	if strings.HasPrefix(key, "aria-") {
		return true
	}
	if key == "epub:type" {
		return true
	}
	return false
}

// voidElements are HTML elements that must be self-closing in XHTML.
var voidElements = map[atom.Atom]bool{
	atom.Area: true, atom.Base: true, atom.Br: true, atom.Col: true,
	atom.Embed: true, atom.Hr: true, atom.Img: true, atom.Input: true,
	atom.Link: true, atom.Meta: true, atom.Source: true, atom.Wbr: true,
}

// sanitizeForXHTML converts HTML to valid XHTML for epub. Strips
// non-standard attributes, self-closes void elements, and removes broken
// fragment links.
func sanitizeForXHTML(htmlStr string) string {
	doc, err := html.Parse(strings.NewReader(htmlStr))
	if err != nil {
		return htmlStr // fallback: return as-is
	}

	// Collect all IDs in the document
	ids := map[string]bool{}
	var collectIDs func(*html.Node)
	collectIDs = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for _, a := range n.Attr {
				if a.Key == "id" {
					ids[a.Val] = true
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collectIDs(c)
		}
	}
	collectIDs(doc)

	var clean func(*html.Node)
	clean = func(n *html.Node) {
		if n.Type == html.ElementNode {
			var filtered []html.Attribute
			for _, a := range n.Attr {
				if !isAllowedAttr(a) {
					continue
				}
				// Fix broken fragment links
				if a.Key == "href" && strings.HasPrefix(a.Val, "#") {
					frag := a.Val[1:]
					if frag != "" && !ids[frag] {
						continue // drop href to non-existent ID
					}
				}
				filtered = append(filtered, a)
			}
			n.Attr = filtered
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			clean(c)
		}
	}
	clean(doc)

	var buf bytes.Buffer
	renderXHTML(&buf, doc)

	result := buf.String()

	// html.Parse wraps in <html><head><body>, extract just the body content
	if idx := strings.Index(result, "<body>"); idx >= 0 {
		result = result[idx+len("<body>"):]
		if end := strings.LastIndex(result, "</body>"); end >= 0 {
			result = result[:end]
		}
	}

	return result
}

// renderXHTML renders an html.Node tree as XHTML (self-closing void elements).
func renderXHTML(buf *bytes.Buffer, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		buf.WriteString(gohtml.EscapeString(n.Data))
	case html.ElementNode:
		buf.WriteByte('<')
		buf.WriteString(n.Data)
		for _, a := range n.Attr {
			buf.WriteByte(' ')
			buf.WriteString(a.Key)
			buf.WriteString(`="`)
			buf.WriteString(gohtml.EscapeString(a.Val))
			buf.WriteByte('"')
		}
		if voidElements[n.DataAtom] && n.FirstChild == nil {
			buf.WriteString("/>")
			return
		}
		buf.WriteByte('>')
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			renderXHTML(buf, c)
		}
		buf.WriteString("</")
		buf.WriteString(n.Data)
		buf.WriteByte('>')
	case html.DocumentNode:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			renderXHTML(buf, c)
		}
	case html.CommentNode:
		// skip comments
	case html.RawNode:
		buf.WriteString(n.Data)
	}
}

// cachedFilePath maps a relative cached-attachment URL back to its file
// under the images directory, or "" for any other URL.
func cachedFilePath(imagesDir, src string) string {
	rel, ok := strings.CutPrefix(src, attachmentURLRoot+"/")
	if !ok {
		return ""
	}
	rel = filepath.FromSlash(rel)
	if rel == "" || strings.Contains(rel, "..") {
		return ""
	}
	return filepath.Join(imagesDir, rel)
}

// embedCachedImages rewrites cached-attachment img srcs to epub-internal
// image paths, optimizing each image on the way in. Full-size links
// wrapping the thumbnails are unwrapped since they have nowhere to go
// inside a book.
func embedCachedImages(e *epub.Epub, body string, chapterIdx int, imagesDir string, opts optimizeOpts) (string, int64, int64, error) {
	container, err := parseFragment(body)
	if err != nil {
		return "", 0, 0, err
	}

	var origTotal, embedTotal int64
	imgIdx := 0

	var anchors, images []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.A:
				if i := findAttrIndex(n, "href"); i >= 0 &&
					strings.HasPrefix(n.Attr[i].Val, attachmentURLRoot+"/") {
					anchors = append(anchors, n)
				}
			case atom.Img:
				images = append(images, n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(container)

	for _, img := range images {
		si := findAttrIndex(img, "src")
		if si < 0 {
			continue
		}
		path := cachedFilePath(imagesDir, img.Attr[si].Val)
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(logOut, "Warning: could not read cached attachment %s: %v\n", path, err)
			continue
		}
		origTotal += int64(len(data))

		mime := sniffImageMIME(data)
		ext := filepath.Ext(path)
		if optimized := optimizeImage(data, mime, opts); optimized != nil {
			data = optimized
			mime = "image/jpeg"
			ext = ".jpg"
		}
		embedTotal += int64(len(data))

		filename := fmt.Sprintf("ch%03d_img%03d%s", chapterIdx, imgIdx, ext)
		imgIdx++

		dataURI := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
		internalPath, err := e.AddImage(dataURI, filename)
		if err != nil {
			fmt.Fprintf(logOut, "Warning: failed to add image %s: %v\n", filename, err)
			continue
		}
		img.Attr[si].Val = internalPath
	}

	// Unwrap the full-size links around embedded thumbnails.
	for _, a := range anchors {
		parent := a.Parent
		for a.FirstChild != nil {
			child := a.FirstChild
			a.RemoveChild(child)
			parent.InsertBefore(child, a)
		}
		parent.RemoveChild(a)
	}

	out, err := serializeFragment(container)
	if err != nil {
		return "", 0, 0, err
	}
	return out, origTotal, embedTotal, nil
}

// buildTOCBody generates the front matter table of contents: a linked list
// of posts with their bylines and archived source URLs.
func buildTOCBody(posts []*convertedPost) string {
	var b strings.Builder
	b.WriteString("<h1>Contents</h1>\n<ol class=\"toc\">\n")
	for i, p := range posts {
		filename := fmt.Sprintf("post%03d.xhtml", i+1)
		b.WriteString("<li>\n")
		b.WriteString(fmt.Sprintf(`<a href="%s">%s</a>`, filename, gohtml.EscapeString(chapterTitle(p))))
		b.WriteByte('\n')

		var meta []string
		if p.Meta.Published != "" {
			meta = append(meta, gohtml.EscapeString(p.Meta.Published))
		}
		if p.Meta.Author.Name != "" {
			meta = append(meta, gohtml.EscapeString(p.Meta.Author.Name))
		}
		metaLine := strings.Join(meta, " · ")

		if p.Meta.Archived != "" {
			display := strings.TrimPrefix(p.Meta.Archived, "https://")
			link := fmt.Sprintf(`<a href="%s">%s</a>`,
				gohtml.EscapeString(p.Meta.Archived), gohtml.EscapeString(display))
			if metaLine != "" {
				metaLine += "<br/>" + link
			} else {
				metaLine = link
			}
		}

		if metaLine != "" {
			b.WriteString(fmt.Sprintf(`<p class="toc-meta">%s</p>`, metaLine))
			b.WriteByte('\n')
		}
		b.WriteString("</li>\n")
	}
	b.WriteString("</ol>\n")
	return b.String()
}

// buildArchiveEpub creates an epub3 from converted posts, with a generated
// cover, a front matter table of contents, and one chapter per post.
func buildArchiveEpub(posts []*convertedPost, title, outputPath, imagesDir string, opts optimizeOpts) error {
	e, err := epub.NewEpub(title)
	if err != nil {
		return fmt.Errorf("creating epub: %w", err)
	}
	e.SetLang("en")
	author := posts[0].Meta.Author.Name
	if author == "" {
		author = "chost2html"
	}
	e.SetAuthor(author)

	if coverPNG, err := generateCover(title, len(posts)); err != nil {
		fmt.Fprintf(logOut, "Warning: could not generate cover: %v\n", err)
	} else {
		coverURI := "data:image/png;base64," + base64.StdEncoding.EncodeToString(coverPNG)
		if coverPath, err := e.AddImage(coverURI, "cover.png"); err != nil {
			fmt.Fprintf(logOut, "Warning: could not add cover: %v\n", err)
		} else if err := e.SetCover(coverPath, ""); err != nil {
			fmt.Fprintf(logOut, "Warning: could not set cover: %v\n", err)
		}
	}

	// Minimal CSS for readability on e-readers
	css := `body { margin: 1em; line-height: 1.5; }
img { max-width: 100%; height: auto; }
pre, code { font-size: 0.85em; }
blockquote { margin-left: 1em; padding-left: 0.5em; border-left: 2px solid #999; }
blockquote.ask { font-style: normal; }
.ask-attribution { font-size: 0.85em; color: #666; }
.byline { font-size: 0.85em; color: #666; margin-top: -0.5em; margin-bottom: 1.5em; }
.byline a { color: #666; }
.toc { list-style-type: none; padding-left: 0; }
.toc li { margin-bottom: 1.2em; }
.toc a { text-decoration: none; }
.toc-meta { font-size: 0.85em; color: #666; margin-top: 0.1em; }
.toc-meta a { color: #666; }`
	cssDataURI := "data:text/css;base64," + base64.StdEncoding.EncodeToString([]byte(css))
	cssPath, err := e.AddCSS(cssDataURI, "styles.css")
	if err != nil {
		// CSS is optional, continue without it
		fmt.Fprintf(logOut, "Warning: could not add CSS: %v\n", err)
		cssPath = ""
	}

	if _, err := e.AddSection(buildTOCBody(posts), "Contents", "contents.xhtml", cssPath); err != nil {
		fmt.Fprintf(logOut, "Warning: could not add table of contents: %v\n", err)
	}

	var origTotal, embedTotal int64
	embedded := 0
	for i, p := range posts {
		chTitle := chapterTitle(p)
		body := fmt.Sprintf("<h1>%s</h1>\n%s\n%s",
			gohtml.EscapeString(chTitle), p.Meta.byline(), p.Body)

		body, orig, embed, err := embedCachedImages(e, body, i+1, imagesDir, opts)
		if err != nil {
			fmt.Fprintf(logOut, "Warning: could not embed images for %q: %v\n", chTitle, err)
			body = p.Body
		}
		origTotal += orig
		embedTotal += embed
		if orig > 0 {
			embedded++
		}

		body = sanitizeForXHTML(body)

		filename := fmt.Sprintf("post%03d.xhtml", i+1)
		if _, err := e.AddSection(body, chTitle, filename, cssPath); err != nil {
			fmt.Fprintf(logOut, "Warning: could not add section %q: %v\n", chTitle, err)
			continue
		}
	}

	if origTotal > 0 {
		pprintf("embedded images from %d posts: %s on disk, %s in book\n",
			embedded, humanSize(origTotal), humanSize(embedTotal))
	}

	if err := e.Write(outputPath); err != nil {
		return fmt.Errorf("writing epub: %w", err)
	}
	return nil
}
