package inject

import (
	"errors"
	"sync"
	"time"
)

// ErrUnsupportedPlatform is returned by every Engine operation on a
// platform other than Windows — window manipulation and synthetic input
// have no portable equivalent, and the desktop UI this subsystem backs
// only ships on Windows today.
var ErrUnsupportedPlatform = errors.New("inject: unsupported platform")

// These delays bracket the steps of the injection sequence so the
// window manager and input queue catch up before the next call fires.
const (
	restoreAnimationDelay = 200 * time.Millisecond
	moveSettleDelay       = 150 * time.Millisecond
	foregroundSettleDelay = 120 * time.Millisecond
	keyStepDelay          = 20 * time.Millisecond
)

// ClientRectInfo describes the window under a diagnostic point: its owning
// application, window and client rectangles, and its native handle.
type ClientRectInfo struct {
	AppName    string
	WindowRect Rect
	ClientRect Rect
	Handle     uintptr
}

// Engine places report text at a screen point in whatever foreign window
// currently occupies it, via the OS clipboard and a synthesized paste. One
// Engine serializes access to the clipboard across concurrent callers.
type Engine struct {
	clipboardMu sync.Mutex
	dpiOnce     sync.Once
}

// New constructs an Engine. DPI awareness is enabled lazily on first use
// rather than at construction, so importing the package has no side
// effects before an injection is actually attempted.
func New() *Engine {
	return &Engine{}
}
