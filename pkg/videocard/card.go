// Package videocard defines the video summary record cached for offline
// browsing, plus the wire DTO it is decoded from.
package videocard

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bitcrank/chill/pkg/urlcheck"
)

// MaxDurationSeconds caps stored durations at 12 hours.
const MaxDurationSeconds = 12 * 60 * 60

// UnknownCreator is the display fallback when the wire payload omits the
// creator name.
const UnknownCreator = "Unknown creator"

// Card is a cached video summary. ID is unique within the cache; UpdatedAt
// is server-assigned and drives the monotonic upsert guard, SyncedAt is
// client-assigned on each accepted write and drives the staleness purge.
type Card struct {
	ID                  uuid.UUID
	Title               string
	CreatorDisplayName  string
	PlatformDisplayName string
	DurationSeconds     int
	ThumbnailURL        string
	UpdatedAt           time.Time
	SyncedAt            time.Time
}

// DurationLabel formats the duration as m:ss.
func (c Card) DurationLabel() string {
	return fmt.Sprintf("%d:%02d", c.DurationSeconds/60, c.DurationSeconds%60)
}

// DTO is the wire shape of a video card as delivered by the backend's card
// view, both in page fetches and in change-feed events.
type DTO struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	CreatorName     string    `json:"creator_name"`
	PlatformName    string    `json:"platform_name"`
	DurationSeconds int       `json:"duration_seconds"`
	ThumbnailURL    string    `json:"thumbnail_url"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ToCard validates and converts a wire DTO into a Card. It returns false
// when a required field (title, platform) is missing; such payloads are
// rejected rather than cached. The duration is clamped to [0, 12h] and the
// thumbnail is dropped unless it uses a secure transport scheme.
func (d DTO) ToCard() (Card, bool) {
	if d.Title == "" || d.PlatformName == "" {
		return Card{}, false
	}

	creator := d.CreatorName
	if creator == "" {
		creator = UnknownCreator
	}

	thumbnail := ""
	if d.ThumbnailURL != "" && urlcheck.IsSecureURL(d.ThumbnailURL) {
		thumbnail = d.ThumbnailURL
	}

	return Card{
		ID:                  d.ID,
		Title:               d.Title,
		CreatorDisplayName:  creator,
		PlatformDisplayName: d.PlatformName,
		DurationSeconds:     ClampDuration(d.DurationSeconds),
		ThumbnailURL:        thumbnail,
		UpdatedAt:           d.UpdatedAt,
	}, true
}

// ClampDuration clamps a duration to the valid [0, MaxDurationSeconds] range.
func ClampDuration(seconds int) int {
	if seconds < 0 {
		return 0
	}
	if seconds > MaxDurationSeconds {
		return MaxDurationSeconds
	}
	return seconds
}
