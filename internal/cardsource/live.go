package cardsource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/bitcrank/chill/internal/backend"
	"github.com/bitcrank/chill/internal/session"
	"github.com/bitcrank/chill/pkg/videocard"
)

// changeMessage is the wire shape of one realtime change notification.
type changeMessage struct {
	Type      string        `json:"type"` // INSERT, UPDATE or DELETE
	Record    videocard.DTO `json:"record"`
	OldRecord struct {
		ID uuid.UUID `json:"id"`
	} `json:"old_record"`
}

// LiveSource serves cards from the backend REST API and its realtime
// websocket change feed.
type LiveSource struct {
	client   *backend.Client
	sessions session.Provider
	pageSize int
}

// NewLiveSource creates a card source backed by the given backend client.
func NewLiveSource(client *backend.Client, sessions session.Provider, pageSize int) *LiveSource {
	return &LiveSource{client: client, sessions: sessions, pageSize: pageSize}
}

// FetchPage fetches one page of cards, newest first. The cursor is the
// record offset of the page start.
func (s *LiveSource) FetchPage(ctx context.Context, limit, cursor int) (Page, error) {
	if limit <= 0 {
		limit = s.pageSize
	}

	dtos, err := s.client.FetchCards(ctx, s.accessToken(), limit, cursor)
	if err != nil {
		return Page{}, fmt.Errorf("failed to fetch card page: %w", err)
	}

	return Page{
		Cards:      dtos,
		NextCursor: cursor + len(dtos),
		HasMore:    len(dtos) == limit,
	}, nil
}

// Subscribe opens the realtime change feed for the card table. The event
// channel closes when the socket fails or the handle is cancelled.
func (s *LiveSource) Subscribe(ctx context.Context) (<-chan Event, Handle, error) {
	wsURL, err := s.client.RealtimeURL("video_cards")
	if err != nil {
		return nil, nil, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open change feed: %w", err)
	}

	events := make(chan Event)
	handle := NewHandle(func() {
		if err := conn.Close(); err != nil {
			slog.Debug("Change feed close", "error", err)
		}
	})

	go s.readLoop(ctx, conn, events)

	return events, handle, nil
}

func (s *LiveSource) readLoop(ctx context.Context, conn *websocket.Conn, events chan<- Event) {
	defer close(events)

	for {
		var msg changeMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if !isExpectedClose(err) {
				slog.Warn("Change feed terminated", "error", err)
			}
			return
		}

		event, ok := toEvent(msg)
		if !ok {
			slog.Debug("Ignoring unknown change type", "type", msg.Type)
			continue
		}

		select {
		case events <- event:
		case <-ctx.Done():
			return
		}
	}
}

func toEvent(msg changeMessage) (Event, bool) {
	switch msg.Type {
	case "INSERT":
		return Event{Kind: EventInsert, Card: msg.Record}, true
	case "UPDATE":
		return Event{Kind: EventUpdate, Card: msg.Record}, true
	case "DELETE":
		return Event{Kind: EventDelete, DeletedID: msg.OldRecord.ID}, true
	default:
		return Event{}, false
	}
}

func isExpectedClose(err error) bool {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return true
	}
	// Cancel closes the connection out from under the read loop.
	var netErr *net.OpError
	return errors.As(err, &netErr)
}

func (s *LiveSource) accessToken() string {
	if sess := s.sessions.Current(); sess != nil {
		return sess.AccessToken
	}
	return ""
}
