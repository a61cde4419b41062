package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bitcrank/chill/pkg/httpclient"
)

// DefaultProbeInterval is how often the probe re-checks reachability.
const DefaultProbeInterval = 30 * time.Second

// Probe checks backend reachability by periodically issuing a cheap GET.
// Transitions are fanned out to every Changes subscriber.
type Probe struct {
	url      string
	interval time.Duration
	client   *httpclient.Client

	mu     sync.Mutex
	online bool
	subs   []chan bool
}

// NewProbe creates a probe against the given URL. The probe assumes offline
// until the first successful check.
func NewProbe(url string, interval time.Duration) *Probe {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}

	config := httpclient.DefaultConfig()
	config.Timeout = 5 * time.Second
	config.MaxRetries = 0

	return &Probe{
		url:      url,
		interval: interval,
		client:   httpclient.NewClient(config),
	}
}

// Run probes until the context is cancelled. The first check happens
// immediately.
func (p *Probe) Run(ctx context.Context) {
	p.CheckNow(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.CheckNow(ctx)
		}
	}
}

// IsOnline reports the last observed reachability.
func (p *Probe) IsOnline() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online
}

// Changes streams reachability transitions.
func (p *Probe) Changes() <-chan bool {
	ch := make(chan bool, 1)
	p.mu.Lock()
	p.subs = append(p.subs, ch)
	p.mu.Unlock()
	return ch
}

// CheckNow runs one reachability check immediately.
func (p *Probe) CheckNow(ctx context.Context) {
	online := false
	resp, err := p.client.Get(ctx, p.url)
	if err == nil {
		resp.Body.Close()
		online = resp.StatusCode < 500
	}
	p.set(online)
}

func (p *Probe) set(online bool) {
	p.mu.Lock()
	changed := online != p.online
	p.online = online
	subs := p.subs
	p.mu.Unlock()

	if !changed {
		return
	}

	slog.Debug("Connectivity changed", "online", online)
	for _, ch := range subs {
		select {
		case ch <- online:
		default:
			// Drop the stale pending transition and keep the latest.
			select {
			case <-ch:
			default:
			}
			ch <- online
		}
	}
}

// Always is a fixed-state monitor, used where no probe runs.
type Always bool

func (a Always) IsOnline() bool       { return bool(a) }
func (a Always) Changes() <-chan bool { return make(chan bool) }
