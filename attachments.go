// The attachment cache mirrors cohost attachments to local storage, one
// directory per attachment id, named after the original filename extracted
// from the redirect endpoint. Presence on disk is trusted: no hashing, no
// freshness checks. Thumbnails are the service's own width transform and
// live under a separate root sharing the id keying.
package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	attachmentRedirectPath = "/rc/attachment-redirect/"
	attachmentURLRoot      = "attachments"
	thumbWidthParam        = "width=675"
)

var attachmentURLRe = regexp.MustCompile(
	`^https://cohost\.org/rc/attachment-redirect/` +
		`([0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12})` +
		`(?:[/?#].*)?$`)

// attachmentIDToURL builds the canonical redirect URL for an attachment id.
func attachmentIDToURL(id string) string {
	return "https://cohost.org" + attachmentRedirectPath + id
}

// attachmentURLToID extracts the attachment id from a canonical redirect
// URL. Any other URL reports false.
func attachmentURLToID(rawURL string) (string, bool) {
	m := attachmentURLRe.FindStringSubmatch(rawURL)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// attachmentContext resolves attachment ids to locally cached relative URLs.
// The conversion pipeline only ever sees this interface, so tests can swap
// in a stub that performs no I/O.
type attachmentContext interface {
	cacheImage(id string) (string, error)
	cacheThumb(id string) (string, error)
}

// diskAttachmentCache is the filesystem-backed attachmentContext. It is
// shared by every concurrently converted post; two workers racing on the
// same id write the same bytes under the same redirect-derived filename, so
// no locking is needed.
type diskAttachmentCache struct {
	imagesDir string
	thumbsDir string
	client    *http.Client // follows redirects; used for the actual download
	userAgent string

	// redirectOrigin is the scheme+host for redirect probes. Overridden in
	// tests to point at a local server.
	redirectOrigin string
}

func newDiskAttachmentCache(imagesDir string, client *http.Client, userAgent string) *diskAttachmentCache {
	return &diskAttachmentCache{
		imagesDir:      imagesDir,
		thumbsDir:      filepath.Join(imagesDir, "thumbs"),
		client:         client,
		userAgent:      userAgent,
		redirectOrigin: "https://cohost.org",
	}
}

func (c *diskAttachmentCache) cacheImage(id string) (string, error) {
	if err := c.fetch(id, c.imagesDir, nil); err != nil {
		return "", err
	}
	return cachedAttachmentURL(c.imagesDir, attachmentURLRoot, id)
}

func (c *diskAttachmentCache) cacheThumb(id string) (string, error) {
	// The attachment endpoint does not preserve query params across its
	// redirect, so the width transform is applied to the redirect target,
	// not the canonical URL.
	thumb := func(target string) string {
		return target + "?" + thumbWidthParam
	}
	if err := c.fetch(id, c.thumbsDir, thumb); err != nil {
		return "", err
	}
	return cachedAttachmentURL(c.thumbsDir, attachmentURLRoot+"/thumbs", id)
}

// cachedAttachmentURL derives the relative URL for a cached id from the
// variant root and whatever file its directory holds.
func cachedAttachmentURL(dir, urlRoot, id string) (string, error) {
	path := filepath.Join(dir, id)
	entries, err := os.ReadDir(path)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("attachment cache directory is empty: %s", path)
	}
	return urlRoot + "/" + id + "/" + entries[0].Name(), nil
}

// fetch ensures the id's directory under dir holds the attachment file,
// downloading it if needed. transformRedirectTarget, when non-nil, rewrites
// the resolved redirect target before the download.
//
// Neither the probe nor the download is retried. If the probe target itself
// answers with another redirect, the download fetches whatever that URL
// serves; the chain is not followed further.
func (c *diskAttachmentCache) fetch(id, dir string, transformRedirectTarget func(string) string) error {
	path := filepath.Join(dir, id)

	// Cache hit: the id directory holds at least one readable file.
	if entries, err := os.ReadDir(path); err == nil && len(entries) > 0 {
		f, err := os.Open(filepath.Join(path, entries[0].Name()))
		if err == nil {
			f.Close()
			return nil
		}
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return err
	}

	probeURL := c.redirectOrigin + attachmentRedirectPath + id
	target, err := c.resolveRedirect(probeURL)
	if err != nil {
		return fmt.Errorf("attachment %s: %w", id, err)
	}

	slash := strings.LastIndex(target, "/")
	if slash < 0 {
		return fmt.Errorf("attachment %s: redirect target has no slashes: %s", id, target)
	}
	originalFilename, err := url.PathUnescape(target[slash+1:])
	if err != nil {
		return fmt.Errorf("attachment %s: decoding filename: %w", id, err)
	}
	if originalFilename == "" {
		return fmt.Errorf("attachment %s: redirect target has no filename: %s", id, target)
	}

	if transformRedirectTarget != nil {
		target = transformRedirectTarget(target)
	}

	data, err := c.download(target)
	if err != nil {
		return fmt.Errorf("attachment %s: %w", id, err)
	}
	return os.WriteFile(filepath.Join(path, originalFilename), data, 0o644)
}

// resolveRedirect issues a redirect-only probe (no body fetch) and returns
// the Location target. A response without one is fatal for the attachment.
func (c *diskAttachmentCache) resolveRedirect(probeURL string) (string, error) {
	probe := *c.client
	probe.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	req, err := http.NewRequest(http.MethodHead, probeURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := probe.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	target := resp.Header.Get("Location")
	if target == "" {
		return "", fmt.Errorf("expected redirect but got HTTP %d: %s", resp.StatusCode, probeURL)
	}
	return target, nil
}

func (c *diskAttachmentCache) download(rawURL string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, rawURL)
	}
	return readLimited(resp.Body, maxResponseBytes)
}
