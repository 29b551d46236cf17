//go:build windows

package coordinator

import (
	"context"
	"log/slog"
	"runtime"
	"syscall"
	"time"
	"unsafe"

	"github.com/airadcr/airadcr-desktop/internal/events"
)

// RegisterHotKey/PeekMessage have no stable home in the teacher's adopted
// Win32 wrapper, which targets window and input calls rather than the
// message-loop primitives a hidden hotkey window needs; they are bound
// directly off user32.dll the same way the injection engine binds
// SendInput, rather than add a dependency nothing else in the module
// needs.
var (
	user32               = syscall.NewLazyDLL("user32.dll")
	procRegisterHotKey   = user32.NewProc("RegisterHotKey")
	procUnregisterHotKey = user32.NewProc("UnregisterHotKey")
	procPeekMessageW     = user32.NewProc("PeekMessageW")
	procTranslateMessage = user32.NewProc("TranslateMessage")
	procDispatchMessageW = user32.NewProc("DispatchMessageW")
)

const (
	wmHotkey  = 0x0312
	pmRemove  = 0x0001
	pollEvery = 15 * time.Millisecond
)

// win32Msg mirrors the Win32 MSG structure well enough for PeekMessage,
// TranslateMessage, and DispatchMessage; only message and wParam are read
// by this package.
type win32Msg struct {
	hwnd    uintptr
	message uint32
	wParam  uintptr
	lParam  uintptr
	time    uint32
	pt      struct{ x, y int32 }
}

// hotkeyRegistrar owns a message-only queue bound to the OS thread that
// registered the hotkeys. RegisterHotKey, UnregisterHotKey, and
// PeekMessage are all thread-affine; runLoop locks itself to one OS
// thread for its entire lifetime.
type hotkeyRegistrar struct {
	log *slog.Logger
}

func newHotkeyRegistrar(log *slog.Logger) *hotkeyRegistrar {
	return &hotkeyRegistrar{log: log}
}

// runLoop registers every shortcutTable entry, then polls this thread's
// message queue until ctx is cancelled, calling dispatch once per
// WM_HOTKEY with the action bound to that id. Must run on its own
// goroutine; returns when ctx is done.
func (r *hotkeyRegistrar) runLoop(ctx context.Context, dispatch func(events.Action)) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var registered []int
	for _, sc := range shortcutTable {
		ok, _, callErr := procRegisterHotKey.Call(0, uintptr(sc.id), uintptr(sc.mods), uintptr(sc.key))
		if ok == 0 {
			r.log.Warn("hotkey registration failed", "shortcut", sc.name, "error", callErr)
			continue
		}
		registered = append(registered, sc.id)
	}
	defer func() {
		for _, id := range registered {
			procUnregisterHotKey.Call(0, uintptr(id))
		}
	}()
	r.log.Info("global shortcuts registered", "count", len(registered))

	var m win32Msg
	ticker := time.NewTicker(pollEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		has, _, _ := procPeekMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0, pmRemove)
		if has == 0 {
			continue
		}
		if m.message == wmHotkey {
			if action, ok := actionForHotkeyID(int(m.wParam)); ok {
				dispatch(action)
			}
		}
		procTranslateMessage.Call(uintptr(unsafe.Pointer(&m)))
		procDispatchMessageW.Call(uintptr(unsafe.Pointer(&m)))
	}
}

func actionForHotkeyID(id int) (events.Action, bool) {
	for _, sc := range shortcutTable {
		if sc.id == id {
			return sc.action, true
		}
	}
	return "", false
}
