// Package preview provides an interactive terminal view of the cached video
// cards and the submission queue using Bubble Tea.
package preview

import (
	"fmt"
	"strings"
	"time"

	"github.com/bitcrank/chill/pkg/queue"
	"github.com/bitcrank/chill/pkg/videocard"
)

// wrapText wraps text to the specified width, breaking at word boundaries when possible
func wrapText(text string, width int) string {
	if width <= 0 {
		width = 70
	}

	var result strings.Builder
	var line strings.Builder
	lineLen := 0

	words := strings.Fields(text)
	for i, word := range words {
		wordLen := len(word)

		// If adding this word would exceed width, start a new line
		if lineLen > 0 && lineLen+1+wordLen > width {
			result.WriteString(line.String())
			result.WriteString("\n")
			line.Reset()
			lineLen = 0
		}

		// Add space before word if not at start of line
		if lineLen > 0 {
			line.WriteString(" ")
			lineLen++
		}

		line.WriteString(word)
		lineLen += wordLen

		// Write the last line
		if i == len(words)-1 {
			result.WriteString(line.String())
		}
	}

	return result.String()
}

// FormatCompactCard formats a cached card for the list view.
// Example: " 1. [ 3:45] Twitter     Cat does a backflip (catperson)"
func FormatCompactCard(index int, card videocard.Card) string {
	title := card.Title
	const maxTitleLength = 60
	if len(title) > maxTitleLength {
		title = title[:maxTitleLength-3] + "..."
	}

	return fmt.Sprintf("%2d. [%5s] %-10s %s (%s)",
		index+1, card.DurationLabel(), card.PlatformDisplayName, title, card.CreatorDisplayName)
}

// FormatDetailedCard formats a cached card with all fields.
func FormatDetailedCard(card videocard.Card) string {
	var b strings.Builder

	b.WriteString("═══════════════════════════════════════════════════════════════════════\n")
	b.WriteString(fmt.Sprintf("Title: %s\n", card.Title))
	b.WriteString(fmt.Sprintf("Creator: %s\n", card.CreatorDisplayName))
	b.WriteString(fmt.Sprintf("Platform: %s\n", card.PlatformDisplayName))
	b.WriteString(fmt.Sprintf("Duration: %s\n", card.DurationLabel()))

	if card.ThumbnailURL != "" {
		b.WriteString(fmt.Sprintf("Thumbnail: %s\n", card.ThumbnailURL))
	}

	if !card.UpdatedAt.IsZero() {
		b.WriteString(fmt.Sprintf("Updated: %s\n", formatTimeAgo(card.UpdatedAt)))
	}
	if !card.SyncedAt.IsZero() {
		b.WriteString(fmt.Sprintf("Synced: %s\n", formatTimeAgo(card.SyncedAt)))
	}

	b.WriteString(fmt.Sprintf("ID: %s\n", card.ID))
	b.WriteString("═══════════════════════════════════════════════════════════════════════\n")

	return b.String()
}

// FormatCompactRequest formats a queued submission for the list view.
// Example: " 1. [failed    2/3] twitter.com/a/status/1"
func FormatCompactRequest(index int, req *queue.Request) string {
	url := req.NormalizedURL
	const maxURLLength = 60
	if len(url) > maxURLLength {
		url = url[:maxURLLength-3] + "..."
	}

	return fmt.Sprintf("%2d. [%-10s %d/%d] %s",
		index+1, req.Status, req.RetryCount, queue.MaxRetries, url)
}

// FormatDetailedRequest formats a queued submission with all fields.
func FormatDetailedRequest(req *queue.Request) string {
	var b strings.Builder

	b.WriteString("═══════════════════════════════════════════════════════════════════════\n")
	b.WriteString(fmt.Sprintf("URL: %s\n", req.OriginalURL))
	b.WriteString(fmt.Sprintf("Normalized: %s\n", req.NormalizedURL))
	b.WriteString(fmt.Sprintf("Status: %s | Retries: %d/%d\n", req.Status, req.RetryCount, queue.MaxRetries))

	if req.Note != "" {
		b.WriteString(fmt.Sprintf("Note: %s\n", wrapText(req.Note, 70)))
	}
	if req.LastErrorMessage != "" {
		b.WriteString(fmt.Sprintf("Last error: %s\n", req.LastErrorMessage))
	}
	if req.NextRetryAt != nil {
		b.WriteString(fmt.Sprintf("Next retry: %s\n", req.NextRetryAt.Format(time.RFC3339)))
	}
	if req.Metadata != nil {
		b.WriteString(fmt.Sprintf("Extracted title: %s\n", req.Metadata.Title))
		if req.Metadata.Creator != "" {
			b.WriteString(fmt.Sprintf("Extracted creator: %s\n", req.Metadata.Creator))
		}
	}

	if !req.CreatedAt.IsZero() {
		b.WriteString(fmt.Sprintf("Queued: %s\n", formatTimeAgo(req.CreatedAt)))
	}

	b.WriteString(fmt.Sprintf("ID: %s\n", req.ID))
	b.WriteString("═══════════════════════════════════════════════════════════════════════\n")

	return b.String()
}

// formatTimeAgo formats a time.Time as a human-readable "X ago" string
func formatTimeAgo(t time.Time) string {
	duration := time.Since(t)

	switch {
	case duration < time.Minute:
		return "just now"
	case duration < time.Hour:
		mins := int(duration.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case duration < 24*time.Hour:
		hours := int(duration.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case duration < 7*24*time.Hour:
		days := int(duration.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("2006-01-02")
	}
}
