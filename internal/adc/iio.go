package adc

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// IIOSensor reads light levels from a Linux IIO sysfs attribute. The kernel
// re-samples the ADC on every read, so the file is opened per call rather
// than held open.
type IIOSensor struct {
	path string
}

// NewIIOSensor creates a sensor backed by the given IIO attribute path.
// It performs one read up front so a missing driver fails at startup
// instead of on the first tick.
func NewIIOSensor(path string) (*IIOSensor, error) {
	if path == "" {
		path = DefaultDevicePath
	}
	s := &IIOSensor{path: path}
	if _, err := s.Read(); err != nil {
		return nil, fmt.Errorf("probe adc: %w", err)
	}
	return s, nil
}

// Read returns the current raw ADC value.
func (s *IIOSensor) Read() (int, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", s.path, err)
	}

	value, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return value, nil
}

// Close releases sensor resources. The IIO sensor holds no open handles.
func (s *IIOSensor) Close() error {
	return nil
}
