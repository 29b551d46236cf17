//go:build windows

package inject

import (
	"fmt"
	"syscall"
	"time"
	"unsafe"

	"github.com/atotto/clipboard"
	ole "github.com/go-ole/go-ole"
	"github.com/lxn/win"
)

// user32 hosts the two calls this file needs that lxn/win either predates
// (SetProcessDpiAwarenessContext, Windows 10 1703+) or never wraps because
// its INPUT union is mouse-only (SendInput for synthetic keyboard events).
var user32 = syscall.NewLazyDLL("user32.dll")

var (
	procSetProcessDpiAwarenessContext = user32.NewProc("SetProcessDpiAwarenessContext")
	procSendInput                     = user32.NewProc("SendInput")
)

// dpiAwarenessContextPerMonitorAwareV2 is DPI_AWARENESS_CONTEXT_PER_MONITOR_AWARE_V2,
// declared as an address-sized sentinel per the Windows SDK header.
var dpiAwarenessContextPerMonitorAwareV2 = ^uintptr(3) // (DPI_AWARENESS_CONTEXT)-4

// inputKeyboard mirrors the Win32 INPUT struct laid out for the keyboard
// union member (type tag + KEYBDINPUT fields + padding to match the
// union's size on 64-bit Windows).
type inputKeyboard struct {
	Type        uint32
	_           uint32 // alignment padding before the union on amd64
	WVk         uint16
	WScan       uint16
	DwFlags     uint32
	Time        uint32
	DwExtraInfo uintptr
	_           uint64 // pad union to MOUSEINPUT's larger size
}

const (
	inputTypeKeyboard = 1
	keyEventFKeyUp    = 0x0002
)

// enableDPIAwareness switches the process to per-monitor-v2 DPI awareness
// so GetWindowRect/GetClientRect/ClientToScreen return physical
// coordinates that line up with the cursor position this engine sets,
// across mixed-DPI monitor setups. Safe to call more than once; only the
// first call (per process) has any effect. Missing on pre-1703 Windows,
// where the call simply fails and DPI virtualization stays in effect.
func (e *Engine) enableDPIAwareness() {
	e.dpiOnce.Do(func() {
		_, _, _ = procSetProcessDpiAwarenessContext.Call(dpiAwarenessContextPerMonitorAwareV2)
		// The CF_HTML path below stages data through the classic clipboard
		// API, but registering a clipboard format is documented as
		// requiring the apartment to be COM-initialized on the thread that
		// first touches it; we do it once up front rather than per call.
		_ = ole.CoInitialize(0)
	})
}

// VirtualDesktop returns the bounding rectangle of the whole virtual
// desktop, spanning every monitor including ones at negative offsets.
func (e *Engine) VirtualDesktop() Rect {
	e.enableDPIAwareness()
	return Rect{
		X:      int(win.GetSystemMetrics(win.SM_XVIRTUALSCREEN)),
		Y:      int(win.GetSystemMetrics(win.SM_YVIRTUALSCREEN)),
		Width:  int(win.GetSystemMetrics(win.SM_CXVIRTUALSCREEN)),
		Height: int(win.GetSystemMetrics(win.SM_CYVIRTUALSCREEN)),
	}
}

func primaryMonitorRect() Rect {
	return Rect{
		Width:  int(win.GetSystemMetrics(win.SM_CXSCREEN)),
		Height: int(win.GetSystemMetrics(win.SM_CYSCREEN)),
	}
}

func rectFromWin(r win.RECT) Rect {
	return Rect{X: int(r.Left), Y: int(r.Top), Width: int(r.Right - r.Left), Height: int(r.Bottom - r.Top)}
}

// ForegroundRect returns the physical screen rectangle of the current
// foreground window.
func (e *Engine) ForegroundRect() (Rect, error) {
	e.enableDPIAwareness()
	hwnd := win.GetForegroundWindow()
	if hwnd == 0 {
		return Rect{}, fmt.Errorf("inject: no foreground window")
	}
	var r win.RECT
	if !win.GetWindowRect(hwnd, &r) {
		return Rect{}, fmt.Errorf("inject: GetWindowRect failed")
	}
	return rectFromWin(r), nil
}

// ClientRectAt returns diagnostic window information for the window under
// (x, y).
func (e *Engine) ClientRectAt(x, y int) (ClientRectInfo, error) {
	e.enableDPIAwareness()
	root, err := rootWindowAt(x, y)
	if err != nil {
		return ClientRectInfo{}, err
	}

	var windowRect, clientRect win.RECT
	win.GetWindowRect(root, &windowRect)
	win.GetClientRect(root, &clientRect)

	topLeft := win.POINT{}
	win.ClientToScreen(root, &topLeft)

	var title [256]uint16
	win.GetWindowText(root, &title[0], int32(len(title)))

	return ClientRectInfo{
		AppName:    syscall.UTF16ToString(title[:]),
		WindowRect: rectFromWin(windowRect),
		ClientRect: Rect{X: int(topLeft.X), Y: int(topLeft.Y), Width: int(clientRect.Right - clientRect.Left), Height: int(clientRect.Bottom - clientRect.Top)},
		Handle:     uintptr(root),
	}, nil
}

func rootWindowAt(x, y int) (win.HWND, error) {
	pt := win.POINT{X: int32(x), Y: int32(y)}
	hwnd := win.WindowFromPoint(pt)
	if hwnd == 0 {
		return 0, fmt.Errorf("inject: no window at (%d, %d)", x, y)
	}
	return win.GetAncestor(hwnd, win.GA_ROOT), nil
}

// InjectAt clamps (x, y) to the virtual desktop, foregrounds whatever
// window sits there, and pastes text (or html, if non-empty) through the
// clipboard without clicking — a bare paste replaces a selection if the
// user has one and inserts at the caret otherwise.
func (e *Engine) InjectAt(x, y int, text, html string) error {
	e.enableDPIAwareness()

	bounds := e.VirtualDesktop()
	cx, cy := ClampPoint(x, y, bounds)

	root, err := rootWindowAt(cx, cy)
	if err != nil {
		return err
	}

	if win.IsIconic(root) {
		win.ShowWindow(root, win.SW_RESTORE)
		time.Sleep(restoreAnimationDelay)
	}

	var windowRect win.RECT
	win.GetWindowRect(root, &windowRect)
	winRect := rectFromWin(windowRect)
	if !winRect.Intersects(bounds) {
		safe := SafeOffset(winRect, primaryMonitorRect(), 40)
		win.SetWindowPos(root, 0, int32(safe.X), int32(safe.Y), 0, 0, win.SWP_NOSIZE|win.SWP_NOZORDER)
		time.Sleep(moveSettleDelay)
	}

	win.SetForegroundWindow(root)
	time.Sleep(foregroundSettleDelay)

	e.clipboardMu.Lock()
	defer e.clipboardMu.Unlock()

	saved, _ := clipboard.ReadAll()
	defer func() {
		if saved != "" {
			_ = clipboard.WriteAll(saved)
		}
	}()

	if err := stageClipboard(text, html); err != nil {
		return fmt.Errorf("inject: staging clipboard: %w", err)
	}

	win.SetCursorPos(int32(cx), int32(cy))

	if err := sendPaste(); err != nil {
		return fmt.Errorf("inject: synthesizing paste: %w", err)
	}
	return nil
}

// PasteAtCaret pastes text (or html) at whatever already has keyboard
// focus, skipping the clamp/locate/repair/foreground steps InjectAt
// performs — used when the caller already knows focus is correct.
func (e *Engine) PasteAtCaret(text, html string) error {
	e.clipboardMu.Lock()
	defer e.clipboardMu.Unlock()

	saved, _ := clipboard.ReadAll()
	defer func() {
		if saved != "" {
			_ = clipboard.WriteAll(saved)
		}
	}()
	if err := stageClipboard(text, html); err != nil {
		return fmt.Errorf("inject: staging clipboard: %w", err)
	}
	if err := sendPaste(); err != nil {
		return fmt.Errorf("inject: synthesizing paste: %w", err)
	}
	return nil
}

// HasTextSelection briefly issues a copy and compares the clipboard
// before/after, then restores it — reporting whether the currently
// focused control had a text selection.
func (e *Engine) HasTextSelection() (bool, error) {
	e.clipboardMu.Lock()
	defer e.clipboardMu.Unlock()

	before, _ := clipboard.ReadAll()
	defer func() {
		if before != "" {
			_ = clipboard.WriteAll(before)
		}
	}()
	if err := clipboard.WriteAll(""); err != nil {
		return false, fmt.Errorf("inject: clearing clipboard: %w", err)
	}
	if err := sendCopy(); err != nil {
		return false, fmt.Errorf("inject: synthesizing copy: %w", err)
	}
	time.Sleep(keyStepDelay)
	after, _ := clipboard.ReadAll()
	return after != "", nil
}

// stageClipboard writes html (as CF_HTML, with text as the plain-text
// fallback format) when html is non-empty, else writes text alone.
func stageClipboard(text, html string) error {
	if html == "" {
		return clipboard.WriteAll(text)
	}
	return writeHTMLFormat(html, text)
}

// writeHTMLFormat registers (or reuses) the CF_HTML clipboard format and
// writes the HTML fragment wrapped in the header CF_HTML requires, with
// text set as the CF_UNICODETEXT fallback in the same open-clipboard
// transaction so applications that don't understand CF_HTML still get
// readable text.
func writeHTMLFormat(html, text string) error {
	if !win.OpenClipboard(0) {
		return fmt.Errorf("OpenClipboard failed")
	}
	defer win.CloseClipboard()

	win.EmptyClipboard()

	formatName, err := syscall.UTF16PtrFromString("HTML Format")
	if err != nil {
		return err
	}
	cfHTML := win.RegisterClipboardFormat(formatName)
	if cfHTML != 0 {
		payload := buildCFHTMLHeader(html)
		setGlobalClipboardBytes(cfHTML, []byte(payload))
	}

	utf16, err := syscall.UTF16FromString(text)
	if err != nil {
		return err
	}
	setGlobalClipboardBytes(win.CF_UNICODETEXT, utf16ToBytes(utf16))
	return nil
}

// buildCFHTMLHeader wraps fragment in the fixed-width offset header the
// CF_HTML clipboard format requires (StartHTML/EndHTML/StartFragment/
// EndFragment byte offsets into this same buffer).
func buildCFHTMLHeader(fragment string) string {
	const headerTpl = "Version:0.9\r\n" +
		"StartHTML:%08d\r\n" +
		"EndHTML:%08d\r\n" +
		"StartFragment:%08d\r\n" +
		"EndFragment:%08d\r\n"
	const bodyPrefix = "<html><body><!--StartFragment-->"
	const bodySuffix = "<!--EndFragment--></body></html>"

	headerLen := len(fmt.Sprintf(headerTpl, 0, 0, 0, 0))
	startHTML := headerLen
	startFragment := headerLen + len(bodyPrefix)
	endFragment := startFragment + len(fragment)
	endHTML := endFragment + len(bodySuffix)

	header := fmt.Sprintf(headerTpl, startHTML, endHTML, startFragment, endFragment)
	return header + bodyPrefix + fragment + bodySuffix
}

func utf16ToBytes(u []uint16) []byte {
	b := make([]byte, len(u)*2)
	for i, v := range u {
		b[2*i] = byte(v)
		b[2*i+1] = byte(v >> 8)
	}
	return b
}

// setGlobalClipboardBytes allocates a movable global memory block, copies
// data into it, and hands ownership to the clipboard via SetClipboardData
// — the clipboard takes the handle over on success and it must not be
// freed by the caller.
func setGlobalClipboardBytes(format uint32, data []byte) {
	h := win.GlobalAlloc(win.GMEM_MOVEABLE, uintptr(len(data)))
	if h == 0 {
		return
	}
	ptr := win.GlobalLock(h)
	if ptr == nil {
		win.GlobalFree(h)
		return
	}
	dst := (*[1 << 30]byte)(unsafe.Pointer(ptr))[:len(data):len(data)]
	copy(dst, data)
	win.GlobalUnlock(h)

	if win.SetClipboardData(format, win.HANDLE(h)) == 0 {
		win.GlobalFree(h)
	}
}

// sendPaste synthesizes Ctrl+V through SendInput — a real input-queue
// event rather than a window message, so it works regardless of what
// toolkit the destination window uses.
func sendPaste() error {
	return sendModifiedKey(win.VK_CONTROL, 'V')
}

func sendCopy() error {
	return sendModifiedKey(win.VK_CONTROL, 'C')
}

func sendModifiedKey(modifier, key uint16) error {
	inputs := []inputKeyboard{
		keyInput(modifier, false),
		keyInput(key, false),
		keyInput(key, true),
		keyInput(modifier, true),
	}
	sent, _, _ := procSendInput.Call(
		uintptr(len(inputs)),
		uintptr(unsafe.Pointer(&inputs[0])),
		unsafe.Sizeof(inputs[0]),
	)
	if sent != uintptr(len(inputs)) {
		return fmt.Errorf("SendInput sent %d/%d events", sent, len(inputs))
	}
	time.Sleep(keyStepDelay)
	return nil
}

func keyInput(vk uint16, up bool) inputKeyboard {
	var flags uint32
	if up {
		flags = keyEventFKeyUp
	}
	return inputKeyboard{Type: inputTypeKeyboard, WVk: vk, DwFlags: flags}
}
