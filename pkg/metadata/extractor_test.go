package metadata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bitcrank/chill/pkg/chillerr"
	"github.com/bitcrank/chill/pkg/urlcheck"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
<title>Fallback Title</title>
<meta property="og:title" content="A cat does a backflip" />
<meta property="og:description" content="Incredible feline athleticism." />
<meta property="og:image" content="https://cdn.example.com/cat.jpg" />
<meta property="og:video" content="https://video.example.com/cat.mp4" />
<meta property="og:video:duration" content="42" />
<meta name="twitter:creator" content="@catperson" />
</head>
<body><p>page body</p></body>
</html>`

func TestParsePage(t *testing.T) {
	meta, err := ParsePage(samplePage, urlcheck.PlatformTwitter)
	if err != nil {
		t.Fatalf("ParsePage failed: %v", err)
	}

	if meta.Title != "A cat does a backflip" {
		t.Errorf("Title = %q", meta.Title)
	}
	if meta.Description != "Incredible feline athleticism." {
		t.Errorf("Description = %q", meta.Description)
	}
	if meta.ThumbnailURL != "https://cdn.example.com/cat.jpg" {
		t.Errorf("ThumbnailURL = %q", meta.ThumbnailURL)
	}
	if meta.VideoURL != "https://video.example.com/cat.mp4" {
		t.Errorf("VideoURL = %q", meta.VideoURL)
	}
	if meta.DurationSeconds != 42 {
		t.Errorf("DurationSeconds = %d", meta.DurationSeconds)
	}
	if meta.Creator != "catperson" {
		t.Errorf("Creator = %q", meta.Creator)
	}
	if meta.Platform != string(urlcheck.PlatformTwitter) {
		t.Errorf("Platform = %q", meta.Platform)
	}
}

func TestParsePageFallbacks(t *testing.T) {
	page := `<html><head><title>Only a title</title></head><body></body></html>`

	meta, err := ParsePage(page, urlcheck.PlatformFacebook)
	if err != nil {
		t.Fatalf("ParsePage failed: %v", err)
	}
	if meta.Title != "Only a title" {
		t.Errorf("Title = %q, want document title fallback", meta.Title)
	}
	if meta.Creator != "Unknown creator" {
		t.Errorf("Creator = %q, want fallback", meta.Creator)
	}
}

func TestParsePagePrefersOpenGraphTitle(t *testing.T) {
	// The <head> <title> precedes the og tags in document order, as it does
	// on real video pages; og:title must still win.
	page := `<html><head>
	<title>Watch this video | Platform</title>
	<meta property="og:title" content="The real title" />
	</head><body></body></html>`

	meta, err := ParsePage(page, urlcheck.PlatformTwitter)
	if err != nil {
		t.Fatalf("ParsePage failed: %v", err)
	}
	if meta.Title != "The real title" {
		t.Errorf("Title = %q, want the og:title over the document title", meta.Title)
	}
}

func TestParsePageDropsMalformedVideoURL(t *testing.T) {
	page := `<html><head>
	<meta property="og:title" content="Video" />
	<meta property="og:video" content="not a video url" />
	</head></html>`

	meta, err := ParsePage(page, urlcheck.PlatformTwitter)
	if err != nil {
		t.Fatalf("ParsePage failed: %v", err)
	}
	if meta.VideoURL != "" {
		t.Errorf("VideoURL = %q, want malformed reference dropped", meta.VideoURL)
	}
}

func TestParsePageRejectsUntitled(t *testing.T) {
	_, err := ParsePage(`<html><head></head><body></body></html>`, urlcheck.PlatformTwitter)
	if !errors.Is(err, chillerr.ErrExtractionFailed) {
		t.Errorf("err = %v, want ErrExtractionFailed", err)
	}
}

func TestParsePageDropsInsecureThumbnail(t *testing.T) {
	page := `<html><head>
	<meta property="og:title" content="Video" />
	<meta property="og:image" content="http://cdn.example.com/cat.jpg" />
	</head></html>`

	meta, err := ParsePage(page, urlcheck.PlatformTwitter)
	if err != nil {
		t.Fatalf("ParsePage failed: %v", err)
	}
	if meta.ThumbnailURL != "" {
		t.Errorf("ThumbnailURL = %q, want empty for insecure scheme", meta.ThumbnailURL)
	}
}

func TestExtractRejectsUnsupportedPlatform(t *testing.T) {
	e := NewExtractor()

	_, err := e.Extract(context.Background(), "https://www.youtube.com/watch?v=abc")
	if !errors.Is(err, chillerr.ErrUnsupportedPlatform) {
		t.Errorf("err = %v, want ErrUnsupportedPlatform", err)
	}
}

func TestRaceFetchesWithinBound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if _, err := w.Write([]byte(samplePage)); err != nil {
			t.Errorf("write failed: %v", err)
		}
	}))
	defer server.Close()

	e := NewExtractor()
	meta, err := e.race(context.Background(), server.URL, urlcheck.PlatformTwitter)
	if err != nil {
		t.Fatalf("race failed: %v", err)
	}
	if meta.Title != "A cat does a backflip" {
		t.Errorf("Title = %q", meta.Title)
	}
}

func TestRaceTimesOut(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	e := NewExtractorWithTimeout(50 * time.Millisecond)
	start := time.Now()
	_, err := e.race(context.Background(), server.URL, urlcheck.PlatformTwitter)
	if !errors.Is(err, chillerr.ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout took %v, bound not honored", elapsed)
	}
}

func TestRaceMapsServerErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"server error is network", http.StatusInternalServerError, chillerr.ErrNetwork},
		{"not found is extraction failure", http.StatusNotFound, chillerr.ErrExtractionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			e := NewExtractor()
			_, err := e.race(context.Background(), server.URL, urlcheck.PlatformTwitter)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}
