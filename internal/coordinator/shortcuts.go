// Package coordinator wires the rest of the application together: it owns
// the embedded-view window handle, the single-instance lock, deep-link
// parsing, global shortcut registration, and the dispatch goroutine that
// turns shortcut presses and HID button presses into the same closed set
// of action events.
package coordinator

import "github.com/airadcr/airadcr-desktop/internal/events"

// modifier is a bitmask of the Win32 MOD_* hotkey modifiers. Kept
// independent of any OS package so the shortcut table below compiles on
// every platform; only the registration side is OS-specific.
type modifier uint32

const (
	modAlt   modifier = 0x0001
	modCtrl  modifier = 0x0002
	modShift modifier = 0x0004
)

// vkey is a Win32 virtual-key code. The letter/digit keys match their
// ASCII value, which is what RegisterHotKey expects.
type vkey uint32

const (
	vkF9    vkey = 0x78
	vkSpace vkey = 0x20
	vkD     vkey = 'D'
	vkP     vkey = 'P'
	vkT     vkey = 'T'
	vkS     vkey = 'S'
	vkL     vkey = 'L'
	vkI     vkey = 'I'
)

// shortcut binds one global hotkey to an action. id is the small integer
// handed to RegisterHotKey; it has no meaning outside this process.
type shortcut struct {
	id   int
	mods modifier
	key  vkey
	name string
	action events.Action
}

// The development-panel and force-clickable actions have no HID
// equivalent; they ride the same dispatch channel but the Coordinator is
// the only subscriber that acts on them.
const (
	actionDevToggleDiagnostics events.Action = "dev_toggle_diagnostics"
	actionDevToggleLogs        events.Action = "dev_toggle_logs"
	actionDevToggleInspector   events.Action = "dev_toggle_inspector"
	actionForceClickable       events.Action = "force_clickable"
)

// shortcutTable is registered in full at startup. id values must be
// distinct; they are reused as the WM_HOTKEY wParam.
var shortcutTable = []shortcut{
	{id: 1, mods: modCtrl | modShift, key: vkD, name: "Ctrl+Shift+D", action: events.ActionToggleRecording},
	{id: 2, mods: modCtrl | modShift, key: vkP, name: "Ctrl+Shift+P", action: events.ActionTogglePause},
	{id: 3, mods: modCtrl | modShift, key: vkT, name: "Ctrl+Shift+T", action: events.ActionInjectRaw},
	{id: 4, mods: modCtrl | modShift, key: vkS, name: "Ctrl+Shift+S", action: events.ActionInjectStructured},
	{id: 5, mods: modCtrl, key: vkSpace, name: "Ctrl+Space", action: events.ActionToggleRecording},
	{id: 6, mods: modCtrl | modShift, key: vkSpace, name: "Ctrl+Shift+Space", action: events.ActionTogglePause},
	{id: 7, mods: modCtrl | modAlt, key: vkD, name: "Ctrl+Alt+D", action: actionDevToggleDiagnostics},
	{id: 8, mods: modCtrl | modAlt, key: vkL, name: "Ctrl+Alt+L", action: actionDevToggleLogs},
	{id: 9, mods: modCtrl | modAlt, key: vkI, name: "Ctrl+Alt+I", action: actionDevToggleInspector},
	{id: 10, mods: 0, key: vkF9, name: "F9", action: actionForceClickable},
}
