package coordinator

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/airadcr/airadcr-desktop/internal/events"
	"github.com/airadcr/airadcr-desktop/internal/hid"
	"github.com/airadcr/airadcr-desktop/internal/inject"
	"github.com/airadcr/airadcr-desktop/internal/metrics"
)

// WindowHost is the thin contract the Coordinator needs from whatever
// owns the embedded view's native window. A production build wires this
// to the actual window shell; tests and the current daemon build use a
// no-op host that reports itself always ready.
type WindowHost interface {
	// Ready reports whether the window has finished constructing and can
	// receive navigation/action events.
	Ready() bool
	// Foreground brings the window to front and gives it input focus.
	Foreground()
	// Emit delivers a named event with a single string payload to the
	// embedded view, mirroring the five event names in the dispatch
	// contract (airadcr:dictation_startstop, …_pause, inject_raw,
	// inject_structured, navigate_to_report).
	Emit(eventName, payload string)
	// AlwaysOnTop re-asserts the window's topmost flag.
	AlwaysOnTop()
}

// noopWindowHost satisfies WindowHost when no native window shell has
// been wired into this build. It reports itself ready so downstream
// components (ingestion server, dispatch loop) are never blocked, but it
// drops every event it is asked to emit.
type noopWindowHost struct{ log *slog.Logger }

func (h *noopWindowHost) Ready() bool { return true }
func (h *noopWindowHost) Foreground() {}
func (h *noopWindowHost) Emit(eventName, payload string) {
	h.log.Debug("window host dropped event (no window shell wired)", "event", eventName)
}
func (h *noopWindowHost) AlwaysOnTop() {}

// eventForAction maps an abstract action onto the embedded-view event
// name the dispatch loop emits for it. Actions with no embedded-view
// counterpart (the development panels, force-clickable) are handled
// directly by the Coordinator instead.
func eventForAction(a events.Action) (string, bool) {
	switch a {
	case events.ActionToggleRecording:
		return "airadcr:dictation_startstop", true
	case events.ActionTogglePause:
		return "airadcr:dictation_pause", true
	case events.ActionInjectRaw:
		return "airadcr:inject_raw", true
	case events.ActionInjectStructured:
		return "airadcr:inject_structured", true
	default:
		return "", false
	}
}

// Coordinator owns the pieces of the application that don't belong to any
// single spec component: the dispatch goroutine translating shortcut and
// HID actions into embedded-view events, the HID session, the injection
// engine, and the View implementation the ingestion server navigates
// through.
type Coordinator struct {
	log  *slog.Logger
	nav  *events.NavigationBus
	acts *events.ActionBus
	host WindowHost

	hidSession *hid.Session
	injector   *inject.Engine
	hotkeys    *hotkeyRegistrar

	ready atomic.Bool
}

// Options configures a new Coordinator. Host may be nil, in which case a
// no-op host is used and window-dependent behavior (foregrounding,
// emitting events) becomes a logged no-op rather than a panic.
type Options struct {
	Log  *slog.Logger
	Nav  *events.NavigationBus
	Acts *events.ActionBus
	Host WindowHost
}

// New constructs a Coordinator. It does not start any goroutines; call
// Run for that.
func New(opts Options) *Coordinator {
	host := opts.Host
	if host == nil {
		host = &noopWindowHost{log: opts.Log}
	}
	c := &Coordinator{
		log:  opts.Log,
		nav:  opts.Nav,
		acts: opts.Acts,
		host: host,
	}
	c.hidSession = hid.NewSession(opts.Acts, opts.Log.With("component", "hid"))
	c.injector = inject.New()
	c.hotkeys = newHotkeyRegistrar(opts.Log.With("component", "shortcuts"))
	return c
}

// Ready implements ingest.View.
func (c *Coordinator) Ready() bool { return c.ready.Load() && c.host.Ready() }

// Foreground implements ingest.View.
func (c *Coordinator) Foreground() { c.host.Foreground() }

// Injector exposes the injection engine for the embedded view's
// inject-at-point and paste-at-caret operations. The ingestion server
// registers no injection route, so nothing in this module calls it.
func (c *Coordinator) Injector() *inject.Engine { return c.injector }

// Run executes the startup sequence and then blocks, running the
// dispatch loop, HID session, and shortcut registrar until ctx is
// cancelled. Steps are numbered to match the documented ten-step startup
// sequence; steps handled by the caller (logging init, config load,
// store/ingestion-server startup, cron jobs) happen before Run is called.
func (c *Coordinator) Run(ctx context.Context) {
	// Step 7: shortcuts are registered once the window exists; Ready is
	// flipped here so Ready()/Foreground() calls from the ingestion
	// server start succeeding from this point on.
	c.ready.Store(true)

	go c.hotkeys.runLoop(ctx, c.dispatch)
	go c.hidSession.Run(ctx)
	go c.runDispatchLoop(ctx)

	// Step 9: re-assert always-on-top ~800ms after the window exists,
	// once the initial paint and any focus-stealing from shortcut
	// registration has settled.
	go func() {
		select {
		case <-time.After(800 * time.Millisecond):
			c.host.AlwaysOnTop()
		case <-ctx.Done():
		}
	}()

	<-ctx.Done()
}

// dispatch is handed to the shortcut registrar; it re-publishes onto the
// shared action bus so HID and keyboard input are indistinguishable to
// every other subscriber.
func (c *Coordinator) dispatch(a events.Action) {
	c.acts.Publish(a)
}

// runDispatchLoop is the single consumer translating actions into
// embedded-view events or Coordinator-local handling.
func (c *Coordinator) runDispatchLoop(ctx context.Context) {
	ch, cancel := c.acts.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case a, ok := <-ch:
			if !ok {
				return
			}
			c.handleAction(a)
		}
	}
}

func (c *Coordinator) handleAction(a events.Action) {
	switch a {
	case actionForceClickable:
		c.host.Foreground()
		c.host.AlwaysOnTop()
		return
	case actionDevToggleDiagnostics, actionDevToggleLogs, actionDevToggleInspector:
		c.host.Emit(string(a), "")
		return
	}
	eventName, ok := eventForAction(a)
	if !ok {
		c.log.Warn("no embedded-view event for action", "action", a)
		return
	}
	c.host.Emit(eventName, "")
}

// NavigateTo publishes a validated technical_id onto the navigation bus,
// the same path the ingestion server's accepted POSTs and deep links use.
func (c *Coordinator) NavigateTo(tid string) {
	c.nav.Publish(tid)
}

// InjectionOutcome records a terminal injection attempt for the shared
// counter wired in internal/metrics, keeping the Coordinator the single
// place that increments it regardless of whether the call came from a
// shortcut, HID button, or an embedded-view request.
func (c *Coordinator) InjectionOutcome(err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	metrics.InjectionsTotal.WithLabelValues(outcome).Inc()
}
