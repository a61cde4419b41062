// Package sync coordinates the video list: initial load from the card
// source, the live change stream, and the offline fallback to cached cards.
package sync

import (
	"github.com/bitcrank/chill/pkg/videocard"
)

// Phase is where the video list load currently stands.
type Phase string

const (
	PhaseLoading Phase = "loading" // initial load in flight
	PhaseLoaded  Phase = "loaded"  // cards available, stream open or opening
	PhaseEmpty   Phase = "empty"   // load finished, nothing to show
	PhaseOffline Phase = "offline" // backend unreachable, showing cached cards
	PhaseError   Phase = "error"   // load failed with nothing to fall back on
)

// LoadState is the video list state exposed to consumers. Cards is set for
// Loaded and Offline; Err for Error.
type LoadState struct {
	Phase Phase
	Cards []videocard.Card
	Err   error
}

// Retryable reports whether Retry is meaningful in this state.
func (s LoadState) Retryable() bool {
	return s.Phase == PhaseOffline || s.Phase == PhaseError
}
