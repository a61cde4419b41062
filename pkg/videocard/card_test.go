package videocard

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestDTOToCard(t *testing.T) {
	now := time.Now().UTC()
	id := uuid.New()

	tests := []struct {
		name string
		dto  DTO
		ok   bool
		want Card
	}{
		{
			name: "valid card",
			dto: DTO{
				ID:              id,
				Title:           "A video",
				CreatorName:     "Some Creator",
				PlatformName:    "Facebook",
				DurationSeconds: 95,
				ThumbnailURL:    "https://cdn.example.com/t.jpg",
				UpdatedAt:       now,
			},
			ok: true,
			want: Card{
				ID:                  id,
				Title:               "A video",
				CreatorDisplayName:  "Some Creator",
				PlatformDisplayName: "Facebook",
				DurationSeconds:     95,
				ThumbnailURL:        "https://cdn.example.com/t.jpg",
				UpdatedAt:           now,
			},
		},
		{
			name: "empty title rejected",
			dto:  DTO{ID: id, PlatformName: "Facebook", UpdatedAt: now},
			ok:   false,
		},
		{
			name: "empty platform rejected",
			dto:  DTO{ID: id, Title: "A video", UpdatedAt: now},
			ok:   false,
		},
		{
			name: "missing creator gets fallback",
			dto:  DTO{ID: id, Title: "A video", PlatformName: "Twitter", UpdatedAt: now},
			ok:   true,
			want: Card{
				ID:                  id,
				Title:               "A video",
				CreatorDisplayName:  UnknownCreator,
				PlatformDisplayName: "Twitter",
				UpdatedAt:           now,
			},
		},
		{
			name: "insecure thumbnail dropped",
			dto: DTO{
				ID:           id,
				Title:        "A video",
				PlatformName: "Twitter",
				ThumbnailURL: "http://cdn.example.com/t.jpg",
				UpdatedAt:    now,
			},
			ok: true,
			want: Card{
				ID:                  id,
				Title:               "A video",
				CreatorDisplayName:  UnknownCreator,
				PlatformDisplayName: "Twitter",
				UpdatedAt:           now,
			},
		},
		{
			name: "negative duration clamped to zero",
			dto: DTO{
				ID:              id,
				Title:           "A video",
				PlatformName:    "Twitter",
				DurationSeconds: -10,
				UpdatedAt:       now,
			},
			ok: true,
			want: Card{
				ID:                  id,
				Title:               "A video",
				CreatorDisplayName:  UnknownCreator,
				PlatformDisplayName: "Twitter",
				UpdatedAt:           now,
			},
		},
		{
			name: "oversized duration clamped to 12h",
			dto: DTO{
				ID:              id,
				Title:           "A video",
				PlatformName:    "Twitter",
				DurationSeconds: MaxDurationSeconds + 1,
				UpdatedAt:       now,
			},
			ok: true,
			want: Card{
				ID:                  id,
				Title:               "A video",
				CreatorDisplayName:  UnknownCreator,
				PlatformDisplayName: "Twitter",
				DurationSeconds:     MaxDurationSeconds,
				UpdatedAt:           now,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.dto.ToCard()
			if ok != tt.ok {
				t.Fatalf("ToCard() ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if got != tt.want {
				t.Errorf("ToCard() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDurationLabel(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "0:00"},
		{59, "0:59"},
		{60, "1:00"},
		{95, "1:35"},
		{3661, "61:01"},
	}

	for _, tt := range tests {
		c := Card{DurationSeconds: tt.seconds}
		if got := c.DurationLabel(); got != tt.want {
			t.Errorf("DurationLabel(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}
