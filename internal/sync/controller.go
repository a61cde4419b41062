package sync

import (
	"context"
	"fmt"
	"log/slog"
	stdsync "sync"

	"github.com/bitcrank/chill/internal/cardsource"
	"github.com/bitcrank/chill/internal/connectivity"
	"github.com/bitcrank/chill/internal/session"
	"github.com/bitcrank/chill/pkg/cache"
	"github.com/bitcrank/chill/pkg/videocard"
)

// updateBuffer bounds the pending state notifications. Consumers that fall
// this far behind lose the stream guarantee, so keep it generous.
const updateBuffer = 64

// Config wires the controller's collaborators.
type Config struct {
	Source    cardsource.Source
	Cache     *cache.Store
	Monitor   connectivity.Monitor
	Sessions  session.Provider
	Analytics Analytics // nil means no analytics
	PageSize  int       // cards per fetch, default 50
	PurgeDays int       // stale-card threshold, default cache.DefaultPurgeDays
}

// Controller owns the video list load-state machine. Start runs the initial
// load and opens the change stream; Retry and HandleReconnect re-run it from
// a failed state. All state transitions flow through setState, which emits
// exactly one notification per mutation on Updates.
type Controller struct {
	source    cardsource.Source
	cache     *cache.Store
	monitor   connectivity.Monitor
	sessions  session.Provider
	analytics Analytics
	pageSize  int
	purgeDays int

	mu         stdsync.Mutex
	state      LoadState
	updates    chan LoadState
	loading    bool
	handle     cardsource.Handle
	stopped    bool
	pageViewed bool
}

// NewController creates a controller in the Loading phase. Nothing happens
// until Start.
func NewController(cfg Config) *Controller {
	if cfg.Analytics == nil {
		cfg.Analytics = NoopAnalytics{}
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	if cfg.PurgeDays <= 0 {
		cfg.PurgeDays = cache.DefaultPurgeDays
	}

	return &Controller{
		source:    cfg.Source,
		cache:     cfg.Cache,
		monitor:   cfg.Monitor,
		sessions:  cfg.Sessions,
		analytics: cfg.Analytics,
		pageSize:  cfg.PageSize,
		purgeDays: cfg.PurgeDays,
		state:     LoadState{Phase: PhaseLoading},
		updates:   make(chan LoadState, updateBuffer),
	}
}

// State returns the current load state.
func (c *Controller) State() LoadState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Updates streams state transitions, one notification per mutation.
func (c *Controller) Updates() <-chan LoadState {
	return c.updates
}

// Start runs the initial load and, on success, opens the change stream.
// A second Start while a load or subscription is active is a no-op.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.loading || c.handle != nil {
		c.mu.Unlock()
		slog.Debug("Start ignored, load already active")
		return
	}
	c.loading = true
	c.stopped = false
	firstView := !c.pageViewed
	c.pageViewed = true
	c.setStateLocked(LoadState{Phase: PhaseLoading})
	c.mu.Unlock()

	if firstView {
		c.analytics.Event("page_view", "screen", "video_list")
	}

	c.load(ctx)
}

// Retry re-runs the initial load from Offline or Error. In any other phase
// it is a no-op.
func (c *Controller) Retry(ctx context.Context) {
	c.mu.Lock()
	if c.loading || !c.state.Retryable() {
		c.mu.Unlock()
		return
	}
	c.loading = true
	c.stopped = false
	c.setStateLocked(LoadState{Phase: PhaseLoading})
	c.mu.Unlock()

	c.analytics.Event("sync_retry")
	c.load(ctx)
}

// HandleReconnect retries a failed load when connectivity returns.
func (c *Controller) HandleReconnect(ctx context.Context) {
	if c.State().Retryable() {
		slog.Debug("Connectivity restored, retrying load")
		c.Retry(ctx)
	}
}

// Stop cancels the change stream. The current state is left in place.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.stopped = true
	handle := c.handle
	c.handle = nil
	c.mu.Unlock()

	if handle != nil {
		handle.Cancel()
	}
}

// Run drives the controller from connectivity and session changes until the
// context ends. Sign-out tears the subscription down.
func (c *Controller) Run(ctx context.Context) {
	connCh := c.monitor.Changes()
	sessCh := c.sessions.Changes()

	for {
		select {
		case <-ctx.Done():
			c.Stop()
			return
		case online := <-connCh:
			if online {
				c.HandleReconnect(ctx)
			}
		case sess := <-sessCh:
			if sess == nil {
				slog.Debug("Signed out, cancelling card stream")
				c.Stop()
			}
		}
	}
}

// load fetches every page, reconciles the cache, settles the state, and
// opens the change stream. It runs with c.loading held true.
func (c *Controller) load(ctx context.Context) {
	dtos, err := c.fetchAllPages(ctx)
	if err != nil {
		c.settleFromCache(err)
		return
	}

	if len(dtos) > 0 {
		written, err := c.cache.UpsertMany(dtos)
		if err != nil {
			c.finishLoad(LoadState{Phase: PhaseError, Err: fmt.Errorf("failed to store synced cards: %w", err)})
			return
		}
		slog.Debug("Synced cards", "fetched", len(dtos), "written", written)

		if purged, err := c.cache.PurgeStale(c.purgeDays); err != nil {
			slog.Warn("Stale purge failed", "error", err)
		} else if purged > 0 {
			slog.Debug("Purged stale cards", "count", purged)
		}
	}

	cards, err := c.cache.FetchAll()
	if err != nil {
		c.finishLoad(LoadState{Phase: PhaseError, Err: fmt.Errorf("failed to read cache: %w", err)})
		return
	}

	if len(cards) == 0 {
		c.finishLoad(LoadState{Phase: PhaseEmpty})
	} else {
		c.finishLoad(LoadState{Phase: PhaseLoaded, Cards: cards})
	}

	c.openStream(ctx, cards)
}

func (c *Controller) fetchAllPages(ctx context.Context) ([]videocard.DTO, error) {
	var dtos []videocard.DTO
	cursor := 0
	for {
		page, err := c.source.FetchPage(ctx, c.pageSize, cursor)
		if err != nil {
			return nil, err
		}
		dtos = append(dtos, page.Cards...)
		if !page.HasMore {
			return dtos, nil
		}
		cursor = page.NextCursor
	}
}

// settleFromCache resolves a failed fetch: cached cards mean Offline, an
// empty cache means Error.
func (c *Controller) settleFromCache(fetchErr error) {
	cards, err := c.cache.FetchAll()
	if err == nil && len(cards) > 0 {
		slog.Debug("Fetch failed, falling back to cache", "cards", len(cards), "error", fetchErr)
		c.finishLoad(LoadState{Phase: PhaseOffline, Cards: cards})
		return
	}
	c.finishLoad(LoadState{Phase: PhaseError, Err: fetchErr})
}

func (c *Controller) finishLoad(state LoadState) {
	c.mu.Lock()
	c.loading = false
	c.setStateLocked(state)
	c.mu.Unlock()
}

// openStream subscribes to the change feed. A subscription that cannot be
// opened degrades the state the same way a stream failure would.
func (c *Controller) openStream(ctx context.Context, cards []videocard.Card) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	events, handle, err := c.source.Subscribe(ctx)
	if err != nil {
		slog.Warn("Failed to open change stream", "error", err)
		c.degrade(cards, err)
		return
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		handle.Cancel()
		return
	}
	// Supersede any previous subscription.
	prev := c.handle
	c.handle = handle
	c.mu.Unlock()

	if prev != nil {
		prev.Cancel()
	}

	go c.consume(ctx, events, handle)
}

// consume applies stream events until the channel closes, then degrades the
// state unless the stream was deliberately stopped.
func (c *Controller) consume(ctx context.Context, events <-chan cardsource.Event, handle cardsource.Handle) {
	for event := range events {
		c.apply(event)
	}

	handle.Cancel()

	c.mu.Lock()
	stopped := c.stopped || c.handle != handle
	if c.handle == handle {
		c.handle = nil
	}
	cards := c.state.Cards
	c.mu.Unlock()

	if stopped {
		return
	}

	slog.Debug("Change stream ended")
	c.degrade(cards, fmt.Errorf("change stream ended"))
}

func (c *Controller) apply(event cardsource.Event) {
	switch event.Kind {
	case cardsource.EventInsert, cardsource.EventUpdate:
		if _, err := c.cache.UpsertMany([]videocard.DTO{event.Card}); err != nil {
			slog.Warn("Failed to apply card change", "error", err)
			return
		}
	case cardsource.EventDelete:
		if err := c.cache.DeleteByID(event.DeletedID); err != nil {
			slog.Warn("Failed to apply card deletion", "id", event.DeletedID, "error", err)
			return
		}
	default:
		return
	}

	cards, err := c.cache.FetchAll()
	if err != nil {
		slog.Warn("Failed to re-read cache after change", "error", err)
		return
	}

	c.mu.Lock()
	if len(cards) == 0 {
		c.setStateLocked(LoadState{Phase: PhaseEmpty})
	} else {
		c.setStateLocked(LoadState{Phase: PhaseLoaded, Cards: cards})
	}
	c.mu.Unlock()
}

// degrade moves to Offline when cached cards exist, Error otherwise. There
// is no automatic reopen; recovery comes through HandleReconnect or Retry.
func (c *Controller) degrade(cards []videocard.Card, cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(cards) > 0 {
		c.setStateLocked(LoadState{Phase: PhaseOffline, Cards: cards})
	} else {
		c.setStateLocked(LoadState{Phase: PhaseError, Err: cause})
	}
}

func (c *Controller) setStateLocked(state LoadState) {
	c.state = state
	select {
	case c.updates <- state:
	default:
		// Consumer fell more than updateBuffer behind; drop the oldest
		// pending notification to keep the latest visible.
		select {
		case <-c.updates:
		default:
		}
		c.updates <- state
	}
}
