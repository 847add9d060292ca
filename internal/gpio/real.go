//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealRelay drives the relay and indicator LED on actual hardware using the
// Linux GPIO character device.
type RealRelay struct {
	chip     *gpiocdev.Chip
	relayPin *gpiocdev.Line
	ledPin   *gpiocdev.Line
}

// NewRealRelay creates a relay driver for actual Raspberry Pi hardware.
// Both lines are requested as outputs in the off position, so the lamp is
// guaranteed off once construction succeeds, whatever the relay module was
// doing before boot.
func NewRealRelay(pinRelay, pinLED int) (*RealRelay, error) {
	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	// The relay module is active-low: raw 0 energizes the coil.
	relayLine, err := chip.RequestLine(pinRelay, gpiocdev.AsOutput(1))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request relay pin %d: %w", pinRelay, err)
	}

	ledLine, err := chip.RequestLine(pinLED, gpiocdev.AsOutput(0))
	if err != nil {
		relayLine.Close()
		chip.Close()
		return nil, fmt.Errorf("request LED pin %d: %w", pinLED, err)
	}

	return &RealRelay{
		chip:     chip,
		relayPin: relayLine,
		ledPin:   ledLine,
	}, nil
}

// Set drives the relay to the given state and mirrors it on the LED.
// Inverts for the relay: logical on = raw 0, logical off = raw 1.
func (r *RealRelay) Set(on bool) error {
	relayRaw := 1
	ledRaw := 0
	if on {
		relayRaw = 0
		ledRaw = 1
	}

	if err := r.relayPin.SetValue(relayRaw); err != nil {
		return fmt.Errorf("set relay pin: %w", err)
	}
	if err := r.ledPin.SetValue(ledRaw); err != nil {
		return fmt.Errorf("set LED pin: %w", err)
	}
	return nil
}

// Close de-energizes the relay and releases GPIO resources.
// Reconfigures pins to input with pull-down (matching Pi boot defaults)
// before closing to ensure clean state for system shutdown/reboot.
func (r *RealRelay) Close() error {
	var errs []error

	// Leave the lamp off before letting go of the lines.
	if err := r.Set(false); err != nil {
		errs = append(errs, err)
	}

	if r.relayPin != nil {
		if err := r.relayPin.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure relay pin: %w", err))
		}
		if err := r.relayPin.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close relay pin: %w", err))
		}
	}
	if r.ledPin != nil {
		if err := r.ledPin.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure LED pin: %w", err))
		}
		if err := r.ledPin.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close LED pin: %w", err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
