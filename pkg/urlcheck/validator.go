// Package urlcheck validates video URLs against the supported platforms and
// normalizes them for duplicate detection.
package urlcheck

import (
	"net/url"
	"regexp"
	"strings"
)

// Platform identifies a supported video platform.
type Platform string

// Supported platforms. Submission only accepts Facebook and Twitter links.
const (
	PlatformFacebook Platform = "facebook"
	PlatformTwitter  Platform = "twitter"
)

// DisplayName returns the user-facing platform name.
func (p Platform) DisplayName() string {
	switch p {
	case PlatformFacebook:
		return "Facebook"
	case PlatformTwitter:
		return "Twitter"
	default:
		return string(p)
	}
}

// Result holds the outcome of validating a URL.
type Result struct {
	Valid         bool
	Platform      Platform
	NormalizedURL string
	Message       string
}

var (
	// Facebook URL patterns: standard, watch, short (fb.watch), mobile
	facebookPattern = regexp.MustCompile(`^(https?://)?(www\.|m\.)?(facebook\.com/([\w.]+/videos/|watch/\?v=)|fb\.watch/)[\w-]+`)

	// Twitter URL patterns: twitter.com, x.com, mobile, t.co shortened
	twitterPattern = regexp.MustCompile(`^(https?://)?(www\.|mobile\.)?(twitter\.com|x\.com)/\w+/status/\d+|^(https?://)?t\.co/\w+`)

	// Unsupported platforms, matched first for clearer error messages
	youtubePattern   = regexp.MustCompile(`youtube\.com|youtu\.be`)
	tiktokPattern    = regexp.MustCompile(`tiktok\.com`)
	instagramPattern = regexp.MustCompile(`instagram\.com`)
)

const (
	msgInvalidURL          = "Please enter a valid video URL"
	msgUnsupportedPlatform = "Only Facebook and Twitter videos are supported"
)

// Validate checks a URL string against the supported platform patterns and
// returns the detected platform plus the normalized form used for dedup.
func Validate(raw string) Result {
	trimmed := strings.TrimSpace(raw)

	if trimmed == "" {
		return Result{Message: msgInvalidURL}
	}

	if !strings.Contains(trimmed, ".") || strings.HasPrefix(trimmed, "javascript:") {
		return Result{Message: msgInvalidURL}
	}

	if youtubePattern.MatchString(trimmed) || tiktokPattern.MatchString(trimmed) || instagramPattern.MatchString(trimmed) {
		return Result{Message: msgUnsupportedPlatform}
	}

	if facebookPattern.MatchString(trimmed) {
		return Result{Valid: true, Platform: PlatformFacebook, NormalizedURL: Normalize(trimmed)}
	}

	if twitterPattern.MatchString(trimmed) {
		return Result{Valid: true, Platform: PlatformTwitter, NormalizedURL: Normalize(trimmed)}
	}

	return Result{Message: msgInvalidURL}
}

// Normalize produces a canonical URL form for duplicate detection:
// lowercase, scheme and www/m/mobile prefixes stripped, shortened hosts
// expanded, tracking query parameters removed, trailing slashes trimmed.
func Normalize(raw string) string {
	normalized := strings.ToLower(strings.TrimSpace(raw))

	normalized = strings.TrimPrefix(normalized, "https://")
	normalized = strings.TrimPrefix(normalized, "http://")

	for _, prefix := range []string{"www.", "m.", "mobile."} {
		normalized = strings.TrimPrefix(normalized, prefix)
	}

	// Expand shortened URLs to canonical form
	normalized = strings.Replace(normalized, "youtu.be/", "youtube.com/watch?v=", 1)
	normalized = strings.Replace(normalized, "fb.watch/", "facebook.com/watch/?v=", 1)

	// Keep only the video ID query parameter
	if idx := strings.IndexByte(normalized, '?'); idx >= 0 {
		base := normalized[:idx]
		var essential []string
		for _, param := range strings.Split(normalized[idx+1:], "&") {
			if strings.HasPrefix(param, "v=") {
				essential = append(essential, param)
			}
		}
		if len(essential) == 0 {
			normalized = base
		} else {
			normalized = base + "?" + strings.Join(essential, "&")
		}
	}

	return strings.Trim(normalized, "/")
}

// IsValidURL checks if a URL parses with both a scheme and a host.
func IsValidURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// IsSecureURL checks if a URL uses HTTPS. Thumbnail references are only
// accepted over a secure transport.
func IsSecureURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme == "https" && u.Host != ""
}
