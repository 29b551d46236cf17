//go:build !windows

package coordinator

import (
	"context"
	"log/slog"

	"github.com/airadcr/airadcr-desktop/internal/events"
)

// hotkeyRegistrar has no non-Windows implementation: global hotkeys and
// the desktop window they act on are Windows-only in this build, same as
// the injection engine.
type hotkeyRegistrar struct {
	log *slog.Logger
}

func newHotkeyRegistrar(log *slog.Logger) *hotkeyRegistrar {
	return &hotkeyRegistrar{log: log}
}

func (r *hotkeyRegistrar) runLoop(ctx context.Context, dispatch func(events.Action)) {
	r.log.Warn("global shortcuts unavailable on this platform")
	<-ctx.Done()
}
