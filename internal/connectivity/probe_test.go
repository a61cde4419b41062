package connectivity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestProbeDetectsTransitions(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer server.Close()

	probe := NewProbe(server.URL, time.Hour)
	changes := probe.Changes()

	probe.CheckNow(context.Background())
	if !probe.IsOnline() {
		t.Fatal("probe should be online after successful check")
	}
	select {
	case online := <-changes:
		if !online {
			t.Error("transition = offline, want online")
		}
	case <-time.After(time.Second):
		t.Fatal("no online transition")
	}

	// Repeated success does not re-notify.
	probe.CheckNow(context.Background())
	select {
	case online := <-changes:
		t.Errorf("unexpected transition: %v", online)
	case <-time.After(50 * time.Millisecond):
	}

	healthy.Store(false)
	probe.CheckNow(context.Background())
	if probe.IsOnline() {
		t.Fatal("probe should be offline after failed check")
	}
	select {
	case online := <-changes:
		if online {
			t.Error("transition = online, want offline")
		}
	case <-time.After(time.Second):
		t.Fatal("no offline transition")
	}
}

func TestProbeUnreachableHost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	probe := NewProbe(url, time.Hour)
	probe.CheckNow(context.Background())
	if probe.IsOnline() {
		t.Error("probe should stay offline when the host is unreachable")
	}
}

func TestAlways(t *testing.T) {
	if !Always(true).IsOnline() {
		t.Error("Always(true) should report online")
	}
	if Always(false).IsOnline() {
		t.Error("Always(false) should report offline")
	}
}
