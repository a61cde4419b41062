// Package cardsource defines where video cards come from: a paged fetch for
// initial loads and a change-event subscription for live updates.
package cardsource

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/bitcrank/chill/pkg/videocard"
)

// EventKind discriminates change events on the card feed.
type EventKind string

const (
	EventInsert EventKind = "insert"
	EventUpdate EventKind = "update"
	EventDelete EventKind = "delete"
)

// Event is one change on the remote card collection. Card is set for
// inserts and updates; DeletedID for deletes.
type Event struct {
	Kind      EventKind
	Card      videocard.DTO
	DeletedID uuid.UUID
}

// Page is one page of cards from the remote source.
type Page struct {
	Cards      []videocard.DTO
	NextCursor int
	HasMore    bool
}

// Handle cancels a subscription. Cancel is idempotent: the first call tears
// the stream down, later calls are no-ops.
type Handle interface {
	Cancel()
}

// Source provides video cards from the backend.
type Source interface {
	// FetchPage fetches one page of cards, newest first.
	FetchPage(ctx context.Context, limit, cursor int) (Page, error)

	// Subscribe opens a change-event stream. The returned channel closes
	// when the stream fails or the handle is cancelled.
	Subscribe(ctx context.Context) (<-chan Event, Handle, error)
}

type onceHandle struct {
	once   sync.Once
	cancel func()
}

// NewHandle wraps cancel in an idempotent Handle.
func NewHandle(cancel func()) Handle {
	return &onceHandle{cancel: cancel}
}

func (h *onceHandle) Cancel() {
	h.once.Do(h.cancel)
}
