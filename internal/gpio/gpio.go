// Package gpio provides relay output switching with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Relay switches the lamp relay (and its indicator LED) on or off.
type Relay interface {
	// Set drives the relay to the given state. Setting the current state
	// again is a no-op at the hardware level; callers may rely on that.
	Set(on bool) error

	// Close releases GPIO resources.
	Close() error
}

// Pin definitions (BCM numbering)
const (
	DefaultPinRelay = 24 // Lamp relay, active-low module
	DefaultPinLED   = 23 // Indicator LED, mirrors the relay
)
