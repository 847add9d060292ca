// Package logic contains the pure debounce state machine for the lamp
// controller. This package has NO external dependencies (no GPIO, MQTT, OS,
// or time.Sleep). Time is always injectable via time.Time parameters.
package logic

import "time"

// Condition classifies a light sample as dark or bright.
type Condition string

const (
	ConditionDark   Condition = "DARK"
	ConditionBright Condition = "BRIGHT"
)

// EventType represents a relay switch event.
type EventType string

const (
	EventLampOn  EventType = "LAMP_ON"
	EventLampOff EventType = "LAMP_OFF"
)

// Event represents a relay switch to be applied and published.
type Event struct {
	Timestamp  time.Time
	Type       EventType
	LightLevel int
	Condition  Condition
}

// On reports whether the event switches the relay on.
func (e Event) On() bool {
	return e.Type == EventLampOn
}

// Settings are the user-adjustable controller parameters. Both are validated
// to [1,100] by the configuration layer and are fixed for the controller's
// lifetime; changes apply on restart.
type Settings struct {
	// DarkThreshold is the light level at or below which a sample
	// classifies as dark. The threshold is inclusive on the dark side.
	DarkThreshold int

	// StableTicks is the number of consecutive ticks a classification must
	// hold before the relay may switch.
	StableTicks int
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	LampOn  int
	LampOff int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}
