package logic

import "time"

// SensorMax is the highest value the 10-bit ADC can report. It is the
// initial light level, so the controller boots classified as bright.
const SensorMax = 1023

// Controller is the tick-driven debounce state machine that decides when the
// lamp relay switches. It is the only mutator of its own state; the poll loop
// calls Tick strictly serially and applies the returned events to hardware.
type Controller struct {
	settings Settings

	lightLevel  int
	dark        bool
	stableTicks int
	relayOn     bool

	eventCounts   EventCounts
	startTime     time.Time
	lastHeartbeat time.Time
}

// NewController creates a controller with the given settings. The controller
// starts bright with the relay off; the caller must force the physical relay
// off before the first tick so hardware and state agree after boot.
func NewController(settings Settings, startTime time.Time) *Controller {
	return &Controller{
		settings:      settings,
		lightLevel:    SensorMax,
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Tick processes one sensor sample. It returns the switch event to apply and
// publish, if the debounced classification disagrees with the relay state.
//
// A changed classification starts a new streak, and the establishing tick
// counts as stable tick 1. The streak counter saturates at
// Settings.StableTicks so it never overflows over long uptimes.
func (c *Controller) Tick(level int, now time.Time) (Event, bool) {
	c.lightLevel = level
	newDark := level <= c.settings.DarkThreshold

	if newDark != c.dark {
		c.stableTicks = 0
	}
	c.stableTicks++
	if c.stableTicks > c.settings.StableTicks {
		c.stableTicks = c.settings.StableTicks
	}
	c.dark = newDark

	switchAllowed := c.stableTicks >= c.settings.StableTicks

	switch {
	case !c.relayOn && c.dark && switchAllowed:
		c.relayOn = true
		c.eventCounts.LampOn++
		return Event{
			Timestamp:  now,
			Type:       EventLampOn,
			LightLevel: level,
			Condition:  ConditionDark,
		}, true

	case c.relayOn && !c.dark && switchAllowed:
		c.relayOn = false
		c.eventCounts.LampOff++
		return Event{
			Timestamp:  now,
			Type:       EventLampOff,
			LightLevel: level,
			Condition:  ConditionBright,
		}, true
	}

	return Event{}, false
}

// LightLevel returns the last raw sensor sample.
func (c *Controller) LightLevel() int {
	return c.lightLevel
}

// Dark returns the current classification.
func (c *Controller) Dark() bool {
	return c.dark
}

// Condition returns the current classification as a Condition.
func (c *Controller) Condition() Condition {
	if c.dark {
		return ConditionDark
	}
	return ConditionBright
}

// RelayOn returns the commanded relay state.
func (c *Controller) RelayOn() bool {
	return c.relayOn
}

// StableTickCount returns how many consecutive ticks the current
// classification has held, saturated at Settings.StableTicks.
func (c *Controller) StableTickCount() int {
	return c.stableTicks
}

// Counts returns a copy of the event counts since startup.
func (c *Controller) Counts() EventCounts {
	return c.eventCounts
}

// Settings returns the controller settings.
func (c *Controller) Settings() Settings {
	return c.settings
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed or
// if interval is <= 0 (disabled).
func (c *Controller) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if now.Sub(c.lastHeartbeat) < interval {
		return nil
	}

	c.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(c.startTime),
		Counts:    c.eventCounts,
	}
}
