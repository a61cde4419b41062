// Package metadata extracts video metadata from platform pages via their
// OpenGraph tags. Extraction is bounded: the caller gets a result or a typed
// failure within the configured timeout, and a late result is discarded.
package metadata

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/bitcrank/chill/pkg/chillerr"
	"github.com/bitcrank/chill/pkg/urlcheck"
)

// DefaultTimeout bounds a single extraction attempt.
const DefaultTimeout = 10 * time.Second

const maxBodySize = 1024 * 1024 // 1MB page limit

// Extractor fetches a video page and reads its OpenGraph tags.
type Extractor struct {
	client  *http.Client
	timeout time.Duration
}

// NewExtractor creates an extractor with the default 10 second bound.
func NewExtractor() *Extractor {
	return NewExtractorWithTimeout(DefaultTimeout)
}

// NewExtractorWithTimeout creates an extractor with a custom bound.
func NewExtractorWithTimeout(timeout time.Duration) *Extractor {
	return &Extractor{
		client: &http.Client{
			// Transport timeout sits above our own race timer so the
			// typed Timeout error wins over a raw client error.
			Timeout: timeout + 5*time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		timeout: timeout,
	}
}

// Extract fetches metadata for a video URL. Failures map onto the typed
// kinds: chillerr.ErrUnsupportedPlatform, chillerr.ErrTimeout,
// chillerr.ErrNetwork, chillerr.ErrExtractionFailed.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (*Metadata, error) {
	validation := urlcheck.Validate(rawURL)
	if !validation.Valid {
		return nil, fmt.Errorf("%w: %s", chillerr.ErrUnsupportedPlatform, validation.Message)
	}

	return e.race(ctx, rawURL, validation.Platform)
}

// race runs the page fetch against the extractor's own timer. Exceeding the
// bound yields chillerr.ErrTimeout even if the underlying fetch would have
// eventually succeeded.
func (e *Extractor) race(ctx context.Context, rawURL string, platform urlcheck.Platform) (*Metadata, error) {
	type fetchResult struct {
		meta *Metadata
		err  error
	}

	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered so a late fetch result is dropped, never double-processed.
	results := make(chan fetchResult, 1)
	go func() {
		meta, err := e.fetchPage(fetchCtx, rawURL, platform)
		results <- fetchResult{meta: meta, err: err}
	}()

	timer := time.NewTimer(e.timeout)
	defer timer.Stop()

	select {
	case res := <-results:
		if res.err != nil {
			return nil, res.err
		}
		return res.meta, nil
	case <-timer.C:
		slog.Debug("Metadata extraction timed out", "url", rawURL, "timeout", e.timeout)
		return nil, chillerr.ErrTimeout
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", chillerr.ErrNetwork, ctx.Err())
	}
}

// fetchPage downloads and parses the video page.
func (e *Extractor) fetchPage(ctx context.Context, rawURL string, platform urlcheck.Platform) (*Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", ensureScheme(rawURL), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", chillerr.ErrExtractionFailed, err)
	}

	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; Chill/1.0; metadata fetcher)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := e.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, chillerr.ErrTimeout
		}
		return nil, fmt.Errorf("%w: %v", chillerr.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w: HTTP %d", chillerr.ErrNetwork, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: HTTP %d", chillerr.ErrExtractionFailed, resp.StatusCode)
	}

	var reader io.ReadCloser
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		reader, err = gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: bad gzip body", chillerr.ErrExtractionFailed)
		}
		defer reader.Close()
	default:
		reader = resp.Body
	}

	body, err := io.ReadAll(io.LimitReader(reader, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", chillerr.ErrNetwork, err)
	}

	content, err := toUTF8(body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", chillerr.ErrExtractionFailed, err)
	}

	meta, err := ParsePage(content, platform)
	if err != nil {
		return nil, err
	}

	slog.Debug("Extracted video metadata", "url", rawURL, "title", meta.Title, "platform", meta.Platform)
	return meta, nil
}

// ParsePage reads OpenGraph tags out of an HTML document and builds the
// metadata record. It fails with chillerr.ErrExtractionFailed when the page
// carries no usable title.
func ParsePage(content string, platform urlcheck.Platform) (*Metadata, error) {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", chillerr.ErrExtractionFailed, err)
	}

	meta := &Metadata{Platform: string(platform)}
	var docTitle string
	walkTags(doc, meta, &docTitle)

	// The document <title> is only a fallback; og/twitter titles win even
	// when the <title> element appears earlier in the page.
	if meta.Title == "" {
		meta.Title = docTitle
	}
	if meta.Title == "" {
		return nil, fmt.Errorf("%w: no title found", chillerr.ErrExtractionFailed)
	}

	if meta.Creator == "" {
		meta.Creator = "Unknown creator"
	}

	// Thumbnails must use a secure transport
	if meta.ThumbnailURL != "" && !urlcheck.IsSecureURL(meta.ThumbnailURL) {
		meta.ThumbnailURL = ""
	}

	// A direct video reference must be an absolute URL to be usable
	if meta.VideoURL != "" && !urlcheck.IsValidURL(meta.VideoURL) {
		meta.VideoURL = ""
	}

	meta.Title = clean(meta.Title, 200)
	meta.Description = clean(meta.Description, 500)
	meta.Creator = clean(meta.Creator, 100)

	return meta, nil
}

// walkTags recursively extracts OpenGraph meta tags from HTML. The document
// <title> is collected separately so it never shadows og/twitter titles.
func walkTags(n *html.Node, meta *Metadata, docTitle *string) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "meta":
			processMetaTag(n, meta)
		case "title":
			if *docTitle == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				*docTitle = strings.TrimSpace(n.FirstChild.Data)
			}
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkTags(c, meta, docTitle)
	}
}

// processMetaTag processes individual meta tags
func processMetaTag(n *html.Node, meta *Metadata) {
	var property, content, name string

	for _, attr := range n.Attr {
		switch attr.Key {
		case "property":
			property = attr.Val
		case "content":
			content = attr.Val
		case "name":
			name = attr.Val
		}
	}

	switch property {
	case "og:title":
		if meta.Title == "" {
			meta.Title = content
		}
	case "og:description":
		if meta.Description == "" {
			meta.Description = content
		}
	case "og:image":
		if meta.ThumbnailURL == "" {
			meta.ThumbnailURL = content
		}
	case "og:video", "og:video:url", "og:video:secure_url":
		if meta.VideoURL == "" {
			meta.VideoURL = content
		}
	case "og:video:duration", "video:duration":
		if meta.DurationSeconds == 0 {
			if seconds, err := strconv.Atoi(content); err == nil && seconds > 0 {
				meta.DurationSeconds = seconds
			}
		}
	case "og:site_name":
		// Page-reported site name never overrides the validated platform
	}

	// Twitter card fallbacks
	if meta.Title == "" && name == "twitter:title" {
		meta.Title = content
	}
	if meta.Description == "" && name == "twitter:description" {
		meta.Description = content
	}
	if meta.ThumbnailURL == "" && name == "twitter:image" {
		meta.ThumbnailURL = content
	}
	if meta.Creator == "" && (name == "twitter:creator" || property == "og:author") {
		meta.Creator = strings.TrimPrefix(content, "@")
	}
}

// clean trims whitespace, strips control bytes and truncates to max runes.
func clean(s string, max int) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\x00", ""))
	runes := []rune(s)
	if len(runes) > max {
		return string(runes[:max-3]) + "..."
	}
	return s
}

// toUTF8 converts a response body to UTF-8 with charset detection.
func toUTF8(body []byte, contentType string) (string, error) {
	utf8Reader, err := charset.NewReader(strings.NewReader(string(body)), contentType)
	if err != nil {
		// If charset detection fails, assume UTF-8
		slog.Warn("Failed to detect charset, assuming UTF-8", "error", err)
		return string(body), nil
	}

	utf8Bytes, err := io.ReadAll(utf8Reader)
	if err != nil {
		return "", fmt.Errorf("failed to convert to UTF-8: %w", err)
	}

	return string(utf8Bytes), nil
}

func ensureScheme(rawURL string) string {
	if strings.HasPrefix(rawURL, "http://") || strings.HasPrefix(rawURL, "https://") {
		return rawURL
	}
	return "https://" + rawURL
}
