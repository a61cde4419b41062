package sync

import "log/slog"

// Analytics receives usage events from the controller.
type Analytics interface {
	Event(name string, attrs ...any)
}

// NoopAnalytics discards every event.
type NoopAnalytics struct{}

func (NoopAnalytics) Event(string, ...any) {}

// SlogAnalytics logs events through the structured logger.
type SlogAnalytics struct{}

func (SlogAnalytics) Event(name string, attrs ...any) {
	slog.Info("analytics event", append([]any{"event", name}, attrs...)...)
}
