// Package hid discovers, opens, and polls supported dictation devices
// (Philips SpeechMike family, Nuance PowerMic) over raw USB HID, decoding
// button-press reports into abstract actions and driving status LEDs.
package hid

import "github.com/airadcr/airadcr-desktop/internal/events"

// DeviceFilter identifies one supported device by its USB vendor/product
// ID pair plus the usage-page/usage of the interface that carries button
// reports — composite devices expose several interfaces and only one of
// them is the right one.
type DeviceFilter struct {
	VendorID    uint16
	ProductID   uint16
	UsagePage   uint16
	Usage       uint16
	Description string
}

// SupportedDevices is the fixed allowlist of (vendor_id, product_id,
// usage_page, usage) tuples this subsystem will open.
var SupportedDevices = []DeviceFilter{
	{VendorID: 0x0911, ProductID: 0x0c1c, UsagePage: 0xffa0, Usage: 0x01, Description: "SpeechMike Premium (LFH35xx/36xx/SMP37xx/38xx)"},
	{VendorID: 0x0911, ProductID: 0x0c1d, UsagePage: 0xffa0, Usage: 0x01, Description: "SpeechMike Premium Air (SMP40xx)"},
	{VendorID: 0x0911, ProductID: 0x0c1e, UsagePage: 0xffa0, Usage: 0x01, Description: "SpeechOne (PSM6000) / Ambient (PSM5000)"},
	{VendorID: 0x0911, ProductID: 0x0fa0, UsagePage: 0xffa0, Usage: 0x01, Description: "SpeechMike (Browser/Gamepad mode)"},
	{VendorID: 0x0554, ProductID: 0x0064, UsagePage: 0xffa0, Usage: 0x01, Description: "Nuance PowerMic IV"},
	{VendorID: 0x0554, ProductID: 0x1001, UsagePage: 0xffa0, Usage: 0x01, Description: "Nuance PowerMic III"},
	{VendorID: 0x0911, ProductID: 0x1844, UsagePage: 0xffa0, Usage: 0x01, Description: "Philips Foot Control ACC2310/2320"},
	{VendorID: 0x0911, ProductID: 0x091a, UsagePage: 0xffa0, Usage: 0x01, Description: "Philips Foot Control ACC2330"},
}

// FindFilter returns the matching allowlist entry, if any.
func FindFilter(vendorID, productID uint16) (DeviceFilter, bool) {
	for _, f := range SupportedDevices {
		if f.VendorID == vendorID && f.ProductID == productID {
			return f, true
		}
	}
	return DeviceFilter{}, false
}

// IsPowerMic4 reports whether the pair identifies a PowerMic IV, which
// uses a distinct button-mapping layout.
func IsPowerMic4(vendorID, productID uint16) bool {
	return vendorID == 0x0554 && productID == 0x0064
}

// ButtonEvent is a bitmask of physical buttons, decoded from the device's
// raw input report bitmask.
type ButtonEvent uint32

const (
	ButtonRewind     ButtonEvent = 1 << 0
	ButtonPlay       ButtonEvent = 1 << 1
	ButtonForward    ButtonEvent = 1 << 2
	ButtonInsOvr     ButtonEvent = 1 << 4
	ButtonRecord     ButtonEvent = 1 << 5
	ButtonCommand    ButtonEvent = 1 << 6
	ButtonStop       ButtonEvent = 1 << 8
	ButtonInstr      ButtonEvent = 1 << 9
	ButtonF1A        ButtonEvent = 1 << 10
	ButtonF2B        ButtonEvent = 1 << 11
	ButtonF3C        ButtonEvent = 1 << 12
	ButtonF4D        ButtonEvent = 1 << 13
	ButtonEolPrio    ButtonEvent = 1 << 14
	ButtonTranscribe ButtonEvent = 1 << 15
)

// allButtons lists every bit extractButtons iterates, in a stable order.
var allButtons = []ButtonEvent{
	ButtonRewind, ButtonPlay, ButtonForward, ButtonInsOvr, ButtonRecord,
	ButtonCommand, ButtonStop, ButtonInstr, ButtonF1A, ButtonF2B, ButtonF3C,
	ButtonF4D, ButtonEolPrio, ButtonTranscribe,
}

// buttonMapping pairs a decoded ButtonEvent with the raw input-report bit
// it corresponds to on one device layout.
type buttonMapping struct {
	event    ButtonEvent
	inputBit uint16
}

// speechMikeMapping is the generic layout shared by the SpeechMike family.
var speechMikeMapping = []buttonMapping{
	{ButtonRewind, 1 << 12},
	{ButtonPlay, 1 << 10},
	{ButtonForward, 1 << 11},
	{ButtonInsOvr, 1 << 14},
	{ButtonRecord, 1 << 8},
	{ButtonCommand, 1 << 5},
	{ButtonStop, 1 << 9},
	{ButtonInstr, 1 << 15},
	{ButtonF1A, 1 << 1},
	{ButtonF2B, 1 << 2},
	{ButtonF3C, 1 << 3},
	{ButtonF4D, 1 << 4},
	{ButtonEolPrio, 1 << 13},
}

// powerMic4Mapping is the distinct PowerMic IV layout.
var powerMic4Mapping = []buttonMapping{
	{ButtonRewind, 1 << 13},
	{ButtonPlay, 1 << 10},
	{ButtonForward, 1 << 14},
	{ButtonRecord, 1 << 8},
	{ButtonCommand, 1 << 5},
	{ButtonF1A, 1 << 1},
	{ButtonF2B, 1 << 2},
	{ButtonF3C, 1 << 3},
	{ButtonF4D, 1 << 4},
	{ButtonTranscribe, 1 << 15},
}

// sliderMaskBits are masked out before decoding on slider-equipped models;
// they encode the 3-way physical slider position, not a button.
const sliderMaskBits uint16 = (1 << 5) | (1 << 6)

// HidCommand is a one-byte opcode sent to or received from the device.
type HidCommand byte

const (
	CmdSetLed           HidCommand = 0x02
	CmdSetEventMode     HidCommand = 0x0d
	CmdButtonPressEvent HidCommand = 0x80
)

// LedMode is the two-bit state of a single LED.
type LedMode byte

const (
	LedOff       LedMode = 0
	LedBlinkSlow LedMode = 1
	LedBlinkFast LedMode = 2
	LedOn        LedMode = 3
)

// LedState is one of the small set of predefined combined LED states the
// application drives.
type LedState int

const (
	LedStateOff LedState = iota
	LedStateRecordInsert
	LedStateRecordOverwrite
	LedStateRecordStandbyInsert
	LedStateRecordStandbyOverwrite
)

// buildLedReport packs state into the 8 data bytes of a SetLed output
// report, two bits per LED slot (RecordG/R, InsOvrG/R packed in the first
// two bytes; F1-F4 slots left zeroed since no state here drives them).
func buildLedReport(state LedState) [8]byte {
	var report [8]byte
	switch state {
	case LedStateRecordInsert:
		report[0] |= byte(LedOn)
		report[1] |= byte(LedOn) << 4
	case LedStateRecordOverwrite:
		report[0] |= byte(LedOn) << 2
	case LedStateRecordStandbyInsert:
		report[0] |= byte(LedBlinkSlow)
		report[1] |= byte(LedBlinkSlow) << 4
	case LedStateRecordStandbyOverwrite:
		report[0] |= byte(LedBlinkSlow) << 2
	}
	return report
}

// decodeInputReport extracts the ButtonEvent bitmask from one 64-byte
// input report. hasSlider models mask off the slider position bits before
// mapping, except on PM4 which has no slider.
func decodeInputReport(data []byte, isPM4, hasSlider bool) ButtonEvent {
	if len(data) < 9 || data[0] != byte(CmdButtonPressEvent) {
		return 0
	}
	raw := uint16(data[7]) | uint16(data[8])<<8
	if hasSlider && !isPM4 {
		raw &^= sliderMaskBits
	}

	mapping := speechMikeMapping
	if isPM4 {
		mapping = powerMic4Mapping
	}

	var out ButtonEvent
	for _, m := range mapping {
		if raw&m.inputBit != 0 {
			out |= m.event
		}
	}
	return out
}

// extractButtons returns the individual set bits of bitmask in stable
// order.
func extractButtons(bitmask ButtonEvent) []ButtonEvent {
	var out []ButtonEvent
	for _, b := range allButtons {
		if bitmask&b != 0 {
			out = append(out, b)
		}
	}
	return out
}

// actionForButton maps one decoded button to the abstract action it
// produces, mirroring the same table the global-shortcut dispatcher uses.
func actionForButton(b ButtonEvent) (events.Action, bool) {
	switch b {
	case ButtonRecord:
		return events.ActionToggleRecording, true
	case ButtonStop, ButtonPlay:
		return events.ActionTogglePause, true
	case ButtonInstr:
		return events.ActionInjectRaw, true
	case ButtonF1A, ButtonEolPrio:
		return events.ActionInjectStructured, true
	default:
		return "", false
	}
}
