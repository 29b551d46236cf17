package coordinator

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/airadcr/airadcr-desktop/internal/events"
)

type fakeHost struct {
	mu       sync.Mutex
	ready    bool
	fgCount  int
	onTop    int
	emitted  []string
}

func (h *fakeHost) Ready() bool { h.mu.Lock(); defer h.mu.Unlock(); return h.ready }
func (h *fakeHost) Foreground() { h.mu.Lock(); defer h.mu.Unlock(); h.fgCount++ }
func (h *fakeHost) AlwaysOnTop() { h.mu.Lock(); defer h.mu.Unlock(); h.onTop++ }
func (h *fakeHost) Emit(name, payload string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.emitted = append(h.emitted, name)
}
func (h *fakeHost) lastEmitted() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.emitted) == 0 {
		return ""
	}
	return h.emitted[len(h.emitted)-1]
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCoordinatorReadyReflectsHostAndStartup(t *testing.T) {
	host := &fakeHost{ready: true}
	c := New(Options{
		Log:  testLogger(),
		Nav:  events.NewNavigationBus(),
		Acts: events.NewActionBus(),
		Host: host,
	})

	if c.Ready() {
		t.Error("expected Ready() false before Run")
	}

	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)
	t.Cleanup(cancel)

	deadline := time.After(time.Second)
	for !c.Ready() {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for Ready()")
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestDispatchLoopTranslatesActionsToEvents(t *testing.T) {
	host := &fakeHost{ready: true}
	acts := events.NewActionBus()
	c := New(Options{Log: testLogger(), Nav: events.NewNavigationBus(), Acts: acts, Host: host})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.runDispatchLoop(ctx)

	acts.Publish(events.ActionToggleRecording)

	deadline := time.After(time.Second)
	for host.lastEmitted() == "" {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for dispatched event")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	if got := host.lastEmitted(); got != "airadcr:dictation_startstop" {
		t.Errorf("emitted event = %q, want airadcr:dictation_startstop", got)
	}
}

func TestHandleActionForceClickableForegroundsAndPins(t *testing.T) {
	host := &fakeHost{ready: true}
	c := New(Options{Log: testLogger(), Nav: events.NewNavigationBus(), Acts: events.NewActionBus(), Host: host})

	c.handleAction(actionForceClickable)

	if host.fgCount != 1 {
		t.Errorf("fgCount = %d, want 1", host.fgCount)
	}
	if host.onTop != 1 {
		t.Errorf("onTop = %d, want 1", host.onTop)
	}
}

func TestNavigateToPublishesOnNavBus(t *testing.T) {
	nav := events.NewNavigationBus()
	ch, cancel := nav.Subscribe()
	defer cancel()
	c := New(Options{Log: testLogger(), Nav: nav, Acts: events.NewActionBus(), Host: &fakeHost{ready: true}})

	c.NavigateTo("TEST_001")

	select {
	case got := <-ch:
		if got != "TEST_001" {
			t.Errorf("got %q, want TEST_001", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for navigation event")
	}
}

func TestEventForAction(t *testing.T) {
	cases := []struct {
		action events.Action
		want   string
		ok     bool
	}{
		{events.ActionToggleRecording, "airadcr:dictation_startstop", true},
		{events.ActionTogglePause, "airadcr:dictation_pause", true},
		{events.ActionInjectRaw, "airadcr:inject_raw", true},
		{events.ActionInjectStructured, "airadcr:inject_structured", true},
		{actionForceClickable, "", false},
	}
	for _, c := range cases {
		got, ok := eventForAction(c.action)
		if got != c.want || ok != c.ok {
			t.Errorf("eventForAction(%v) = (%q, %v), want (%q, %v)", c.action, got, ok, c.want, c.ok)
		}
	}
}
