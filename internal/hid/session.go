package hid

import (
	"context"
	"log/slog"
	"time"

	"github.com/airadcr/airadcr-desktop/internal/backoff"
	"github.com/airadcr/airadcr-desktop/internal/events"
	"github.com/airadcr/airadcr-desktop/internal/metrics"
	"github.com/karalabe/hid"
)

// debounceWindow suppresses a new press of a button that arrives within
// this interval of that button's last accepted press — the devices chatter
// on the wire well past a human's actual button-up.
const debounceWindow = 150 * time.Millisecond

const reportSize = 64

// Session owns one open dictation device: it polls for input reports,
// decodes and debounces them into Actions published on bus, and serves LED
// updates pushed through SetLED without contending with the poll loop for
// the device handle.
type Session struct {
	bus   *events.ActionBus
	log   *slog.Logger
	ledCh chan LedState
}

// NewSession constructs a Session publishing onto bus.
func NewSession(bus *events.ActionBus, log *slog.Logger) *Session {
	return &Session{bus: bus, log: log, ledCh: make(chan LedState, 1)}
}

// SetLED requests the LED state be applied on the next poll iteration. The
// channel is depth-1 and drops a stale pending state in favor of the
// latest one.
func (s *Session) SetLED(state LedState) {
	select {
	case s.ledCh <- state:
	default:
		select {
		case <-s.ledCh:
		default:
		}
		s.ledCh <- state
	}
}

// Run discovers a supported device and polls it until ctx is cancelled,
// reconnecting with capped backoff whenever the device disappears or a
// read fails.
func (s *Session) Run(ctx context.Context) {
	b := backoff.Default()
	for {
		if ctx.Err() != nil {
			return
		}
		dev, filter, err := openSupportedDevice()
		if err != nil {
			delay := b.Next()
			s.log.Debug("no supported dictation device found", "retry_in", delay)
			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return
			}
		}

		b.Reset()
		metrics.HIDConnected.Set(1)
		s.log.Info("dictation device connected", "device", filter.Description)
		s.pollUntilDisconnected(ctx, dev, filter)
		dev.Close()
		metrics.HIDConnected.Set(0)
		s.log.Info("dictation device disconnected", "device", filter.Description)
	}
}

// openSupportedDevice enumerates every allowlisted VID/PID and opens the
// first interface whose usage page identifies it as the button-report
// interface. An interface that reports usage page 0 is accepted as well
// (some platforms don't report it); the usage value itself is not compared.
func openSupportedDevice() (*hid.Device, DeviceFilter, error) {
	var lastErr error
	for _, filter := range SupportedDevices {
		infos, err := hid.Enumerate(filter.VendorID, filter.ProductID)
		if err != nil {
			lastErr = err
			continue
		}
		for _, info := range infos {
			if info.UsagePage != 0 && info.UsagePage != filter.UsagePage {
				continue
			}
			dev, err := info.Open()
			if err != nil {
				lastErr = err
				continue
			}
			return dev, filter, nil
		}
	}
	if lastErr == nil {
		lastErr = errNoDeviceFound
	}
	return nil, DeviceFilter{}, lastErr
}

var errNoDeviceFound = deviceError("no supported dictation device present")

type deviceError string

func (e deviceError) Error() string { return string(e) }

// pollUntilDisconnected reads input reports until ctx is cancelled or a
// read fails, decoding and debouncing button presses and draining pending
// LED updates between reads so the poll loop stays the sole owner of the
// device handle.
func (s *Session) pollUntilDisconnected(ctx context.Context, dev *hid.Device, filter DeviceFilter) {
	isPM4 := IsPowerMic4(filter.VendorID, filter.ProductID)
	hasSlider := !isPM4

	var prevBits ButtonEvent
	var lastPressed [32]time.Time
	buf := make([]byte, reportSize)

	for {
		select {
		case <-ctx.Done():
			return
		case state := <-s.ledCh:
			report := buildLedReport(state)
			if _, err := dev.Write(append([]byte{byte(CmdSetLed)}, report[:]...)); err != nil {
				s.log.Warn("led write failed", "error", err)
			}
		default:
		}

		n, err := dev.Read(buf)
		if err != nil {
			return
		}
		if n == 0 {
			continue
		}

		bits := decodeInputReport(buf[:n], isPM4, hasSlider)
		pressed := bits &^ prevBits
		prevBits = bits

		now := time.Now()
		for _, b := range extractButtons(pressed) {
			idx := bitIndex(b)
			if idx >= 0 && now.Sub(lastPressed[idx]) < debounceWindow {
				continue
			}
			if idx >= 0 {
				lastPressed[idx] = now
			}
			if action, ok := actionForButton(b); ok {
				s.bus.Publish(action)
			}
		}
	}
}

// bitIndex returns the position of the single set bit in b, or -1 if b is
// not a single-bit value (shouldn't happen for values produced by
// extractButtons).
func bitIndex(b ButtonEvent) int {
	for i := 0; i < 32; i++ {
		if b == 1<<uint(i) {
			return i
		}
	}
	return -1
}
