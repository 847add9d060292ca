package status

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/lamp-control/internal/logic"
)

var testConfig = Config{
	DarkThreshold: 25,
	StableTicks:   30,
	PollMs:        1000,
	HeartbeatMs:   900000,
	Broker:        "tcp://broker.local:1883",
	HTTPAddr:      ":80",
	DatabasePath:  "lamp-control.sqlite",
}

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tr := NewTracker(start, testConfig)

	snap := tr.Snapshot()
	if snap.Ready {
		t.Error("should not be ready before first update")
	}
	if !snap.StartTime.Equal(start) {
		t.Errorf("start time: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config != testConfig {
		t.Errorf("config: got %+v", snap.Config)
	}
}

func TestTrackerUpdate(t *testing.T) {
	tr := NewTracker(time.Now(), testConfig)

	tr.Update(42, logic.ConditionDark, true, 12, logic.EventCounts{LampOn: 3, LampOff: 2})

	snap := tr.Snapshot()
	if snap.LightLevel != 42 {
		t.Errorf("light level: got %d, want 42", snap.LightLevel)
	}
	if snap.Condition != logic.ConditionDark {
		t.Errorf("condition: got %s, want DARK", snap.Condition)
	}
	if !snap.RelayOn {
		t.Error("relay should be on")
	}
	if snap.StableTickCount != 12 {
		t.Errorf("stable ticks: got %d, want 12", snap.StableTickCount)
	}
	if !snap.Ready {
		t.Error("should be ready after update")
	}
	if snap.Counts.LampOn != 3 || snap.Counts.LampOff != 2 {
		t.Errorf("counts: got %+v", snap.Counts)
	}
}

func TestTrackerSetters(t *testing.T) {
	tr := NewTracker(time.Now(), testConfig)

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("mqtt connected not set")
	}

	net := &NetworkInfo{Type: "wifi", IP: "192.168.1.50", Status: "connected", SSID: "Home"}
	tr.SetNetwork(net)
	snap := tr.Snapshot()
	if snap.Network == nil || snap.Network.IP != "192.168.1.50" {
		t.Errorf("network: got %+v", snap.Network)
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Now().Add(-90 * time.Second)
	tr := NewTracker(start, testConfig)

	uptime := tr.Snapshot().Uptime()
	if uptime < 89*time.Second || uptime > 95*time.Second {
		t.Errorf("uptime: got %v, want ~90s", uptime)
	}
}

func TestTrackerConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), testConfig)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tr.Update(n, logic.ConditionBright, false, j, logic.EventCounts{})
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = tr.Snapshot()
			}
		}()
	}
	wg.Wait()
}

func TestFormatJSON(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tr := NewTracker(start, testConfig)
	tr.Update(18, logic.ConditionDark, true, 30, logic.EventCounts{LampOn: 1})
	tr.SetMQTTConnected(true)

	data := FormatJSON(tr.Snapshot())

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	inner := parsed.Status
	if inner.LightLevel != 18 {
		t.Errorf("light_level: got %d, want 18", inner.LightLevel)
	}
	if inner.Condition != "DARK" {
		t.Errorf("condition: got %s, want DARK", inner.Condition)
	}
	if inner.Relay != "ON" {
		t.Errorf("relay: got %s, want ON", inner.Relay)
	}
	if inner.StableTickCount != 30 {
		t.Errorf("stable_ticks: got %d, want 30", inner.StableTickCount)
	}
	if !inner.Ready {
		t.Error("ready: got false")
	}
	if !inner.MQTT.Connected || inner.MQTT.Broker != testConfig.Broker {
		t.Errorf("mqtt: got %+v", inner.MQTT)
	}
	if inner.Counts.LampOn != 1 {
		t.Errorf("counts: got %+v", inner.Counts)
	}
	if inner.Config.DarkThreshold != 25 || inner.Config.StableTicks != 30 {
		t.Errorf("config: got %+v", inner.Config)
	}
	if inner.Event != "" {
		t.Errorf("web JSON should not carry event, got %q", inner.Event)
	}
	if inner.StartTime != "2026-01-01T12:00:00Z" {
		t.Errorf("start_time: got %s", inner.StartTime)
	}
}

func TestFormatJSONUnknownCondition(t *testing.T) {
	tr := NewTracker(time.Now(), testConfig)

	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(tr.Snapshot()), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Condition != "UNKNOWN" {
		t.Errorf("condition before first tick: got %s, want UNKNOWN", parsed.Status.Condition)
	}
	if parsed.Status.Relay != "OFF" {
		t.Errorf("relay before first tick: got %s, want OFF", parsed.Status.Relay)
	}
}

func TestFormatStatusEvent(t *testing.T) {
	tr := NewTracker(time.Now(), testConfig)
	tr.Update(500, logic.ConditionBright, false, 30, logic.EventCounts{})

	data := FormatStatusEvent(tr.Snapshot(), "SHUTDOWN", "SIGTERM")

	// MQTT payloads are compact, not indented.
	if strings.Contains(string(data), "\n") {
		t.Error("status event payload should be compact JSON")
	}

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "SHUTDOWN" {
		t.Errorf("event: got %s", parsed.Status.Event)
	}
	if parsed.Status.Reason != "SIGTERM" {
		t.Errorf("reason: got %s", parsed.Status.Reason)
	}
}

func TestFormatStatusEventNetwork(t *testing.T) {
	tr := NewTracker(time.Now(), testConfig)
	tr.SetNetwork(&NetworkInfo{Type: "ethernet", IP: "10.0.0.2", Status: "connected"})

	var parsed StatusJSON
	if err := json.Unmarshal(FormatStatusEvent(tr.Snapshot(), "STARTUP", ""), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Network == nil || parsed.Status.Network.IP != "10.0.0.2" {
		t.Errorf("network: got %+v", parsed.Status.Network)
	}
}
