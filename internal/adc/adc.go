// Package adc provides analog light level reading with hardware abstraction.
// The real implementation reads a Linux industrial I/O (IIO) raw voltage
// attribute, which is how ADC chips (MCP3008 and friends) appear on a Pi.
// The fake implementation allows testing without hardware.
package adc

// Sensor reads the ambient light level.
type Sensor interface {
	// Read returns the raw light level in the sensor's native range,
	// 0 (dark) .. 1023 (bright) for the 10-bit ADC used here.
	Read() (int, error)

	// Close releases sensor resources.
	Close() error
}

// DefaultDevicePath is the IIO raw voltage attribute for channel 0 of the
// first ADC on the bus.
const DefaultDevicePath = "/sys/bus/iio/devices/iio:device0/in_voltage0_raw"
