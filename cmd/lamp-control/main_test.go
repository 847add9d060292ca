package main

import (
	"errors"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/sweeney/lamp-control/internal/adc"
	"github.com/sweeney/lamp-control/internal/gpio"
	"github.com/sweeney/lamp-control/internal/logic"
	"github.com/sweeney/lamp-control/internal/mqtt"
	"github.com/sweeney/lamp-control/internal/status"
)

func TestReadNetworkInfoAllSet(t *testing.T) {
	t.Setenv(envNetworkType, "wifi")
	t.Setenv(envNetworkIP, "192.168.1.100")
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkGateway, "192.168.1.1")
	t.Setenv(envNetworkWifiStatus, "connected")
	t.Setenv(envNetworkWifiSSID, "MyNetwork")

	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo")
	}
	if info.Type != "wifi" {
		t.Errorf("Type: got %q, want wifi", info.Type)
	}
	if info.IP != "192.168.1.100" {
		t.Errorf("IP: got %q", info.IP)
	}
	if info.Status != "connected" {
		t.Errorf("Status: got %q", info.Status)
	}
	if info.Gateway != "192.168.1.1" {
		t.Errorf("Gateway: got %q", info.Gateway)
	}
	if info.SSID != "MyNetwork" {
		t.Errorf("SSID: got %q", info.SSID)
	}
}

func TestReadNetworkInfoNoneSet(t *testing.T) {
	t.Setenv(envNetworkStatus, "")
	info := readNetworkInfo()
	if info != nil {
		t.Errorf("expected nil when NETWORK_STATUS is unset, got %+v", info)
	}
}

// fakeClock returns a clock function stepping by step on each call.
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

// repeat returns n copies of level.
func repeat(level, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = level
	}
	return out
}

// faultSensor wraps a FakeSensor and returns errors for a fixed range of
// Read() calls.
type faultSensor struct {
	inner      *adc.FakeSensor
	call       int
	faultStart int // first call index that returns error (inclusive)
	faultEnd   int // last call index that returns error (exclusive)
}

func (s *faultSensor) Read() (int, error) {
	i := s.call
	s.call++
	if i >= s.faultStart && i < s.faultEnd {
		return 0, errors.New("adc fault")
	}
	return s.inner.Read()
}

func (s *faultSensor) Close() error { return s.inner.Close() }

var testSettings = logic.Settings{DarkThreshold: 25, StableTicks: 3}

type loopFixture struct {
	relay   *gpio.FakeRelay
	pub     *mqtt.FakePublisher
	tracker *status.Tracker
}

// runRunLoop drives runLoop with the given sensor for nTicks ticks, then
// delivers stop (a signal or a restart reason) and returns the loop error.
func runRunLoop(t *testing.T, sensor adc.Sensor, fx *loopFixture, heartbeat time.Duration, clock func() time.Time, nTicks int, sig os.Signal, restartReason string) error {
	t.Helper()
	tick := make(chan time.Time)
	sigCh := make(chan os.Signal, 1)
	restartCh := make(chan string, 1)

	errCh := make(chan error, 1)
	go func() {
		errCh <- runLoop(sensor, fx.relay, fx.pub, fx.pub, fx.tracker, nil,
			testSettings, heartbeat, clock, tick, sigCh, restartCh)
	}()

	for i := 0; i < nTicks; i++ {
		tick <- time.Time{}
	}
	if restartReason != "" {
		restartCh <- restartReason
	} else {
		sigCh <- sig
	}

	return <-errCh
}

func newLoopFixture() *loopFixture {
	return &loopFixture{
		relay: gpio.NewFakeRelay(),
		pub:   mqtt.NewFakePublisher(),
	}
}

func TestRunLoopForcesRelayOff(t *testing.T) {
	fx := newLoopFixture()
	sensor := adc.NewFakeSensor(repeat(500, 2))
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Second)

	err := runRunLoop(t, sensor, fx, 0, clock, 2, syscall.SIGTERM, "")
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(fx.relay.Sets) == 0 || fx.relay.Sets[0] != false {
		t.Errorf("first relay command should force off, got %v", fx.relay.Sets)
	}
	if fx.relay.On {
		t.Error("relay should stay off under bright readings")
	}
}

func TestRunLoopSwitchesOnAfterStableDark(t *testing.T) {
	fx := newLoopFixture()
	sensor := adc.NewFakeSensor(repeat(10, 4))
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Second)

	err := runRunLoop(t, sensor, fx, 0, clock, 4, syscall.SIGTERM, "")
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if !fx.relay.On {
		t.Error("relay should be on after stable dark readings")
	}
	if len(fx.pub.Events) != 1 {
		t.Fatalf("expected 1 lamp event, got %d", len(fx.pub.Events))
	}
	if fx.pub.Events[0].Type != logic.EventLampOn {
		t.Errorf("expected LAMP_ON, got %s", fx.pub.Events[0].Type)
	}

	// Relay commands: forced off, then on. No redundant writes.
	want := []bool{false, true}
	if len(fx.relay.Sets) != len(want) {
		t.Fatalf("relay commands: got %v, want %v", fx.relay.Sets, want)
	}
}

func TestRunLoopFullCycle(t *testing.T) {
	// Dark long enough to switch on, then bright long enough to switch off.
	fx := newLoopFixture()
	samples := append(repeat(10, 4), repeat(90, 4)...)
	sensor := adc.NewFakeSensor(samples)
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Second)

	err := runRunLoop(t, sensor, fx, 0, clock, len(samples), syscall.SIGTERM, "")
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(fx.pub.Events) != 2 {
		t.Fatalf("expected 2 lamp events, got %d", len(fx.pub.Events))
	}
	if fx.pub.Events[0].Type != logic.EventLampOn || fx.pub.Events[1].Type != logic.EventLampOff {
		t.Errorf("event order: got %s, %s", fx.pub.Events[0].Type, fx.pub.Events[1].Type)
	}
	if fx.relay.On {
		t.Error("relay should be off at the end of the cycle")
	}
}

func TestRunLoopBounceRejection(t *testing.T) {
	// A single dark sample inside a bright stretch must not switch.
	fx := newLoopFixture()
	samples := append(repeat(500, 3), append([]int{10}, repeat(500, 4)...)...)
	sensor := adc.NewFakeSensor(samples)
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Second)

	err := runRunLoop(t, sensor, fx, 0, clock, len(samples), syscall.SIGTERM, "")
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(fx.pub.Events) != 0 {
		t.Errorf("expected 0 lamp events (bounce rejected), got %d", len(fx.pub.Events))
	}
	if fx.relay.On {
		t.Error("relay flipped on a transient sample")
	}
}

func TestRunLoopSensorReadError(t *testing.T) {
	// 2 valid reads then 2 faults. Loop should continue past errors and
	// still publish SHUTDOWN.
	fx := newLoopFixture()
	sensor := &faultSensor{
		inner:      adc.NewFakeSensor(repeat(500, 2)),
		faultStart: 2, // calls 2,3 return error
		faultEnd:   4,
	}
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Second)

	err := runRunLoop(t, sensor, fx, 0, clock, 4, syscall.SIGTERM, "")
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	found := false
	for _, se := range fx.pub.SystemEvents {
		if se.Event == "SHUTDOWN" {
			found = true
		}
	}
	if !found {
		t.Error("expected SHUTDOWN system event after sensor errors")
	}
}

func TestRunLoopShutdownReason(t *testing.T) {
	fx := newLoopFixture()
	sensor := adc.NewFakeSensor(repeat(500, 1))
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Second)

	err := runRunLoop(t, sensor, fx, 0, clock, 1, syscall.SIGINT, "")
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(fx.pub.SystemEvents) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(fx.pub.SystemEvents))
	}
	se := fx.pub.SystemEvents[0]
	if se.Event != "SHUTDOWN" {
		t.Errorf("event: got %q, want SHUTDOWN", se.Event)
	}
	if se.Reason != "SIGINT" {
		t.Errorf("reason: got %q, want SIGINT", se.Reason)
	}
	if !se.Retained {
		t.Error("shutdown event should be retained")
	}
}

func TestRunLoopRestartOnConfigSave(t *testing.T) {
	fx := newLoopFixture()
	sensor := adc.NewFakeSensor(repeat(500, 1))
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Second)

	err := runRunLoop(t, sensor, fx, 0, clock, 1, nil, "CONFIG_SAVED")
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(fx.pub.SystemEvents) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(fx.pub.SystemEvents))
	}
	if fx.pub.SystemEvents[0].Reason != "CONFIG_SAVED" {
		t.Errorf("reason: got %q, want CONFIG_SAVED", fx.pub.SystemEvents[0].Reason)
	}
}

func TestRunLoopHeartbeat(t *testing.T) {
	// 5-minute clock step and a 15-minute heartbeat interval: the third
	// tick lands exactly 15 minutes after start, so one heartbeat fires.
	fx := newLoopFixture()
	sensor := adc.NewFakeSensor(repeat(500, 4))
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 5*time.Minute)

	err := runRunLoop(t, sensor, fx, 15*time.Minute, clock, 4, syscall.SIGTERM, "")
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	var heartbeats, shutdowns int
	for _, se := range fx.pub.SystemEvents {
		switch se.Event {
		case "HEARTBEAT":
			heartbeats++
		case "SHUTDOWN":
			shutdowns++
		}
	}
	if heartbeats != 1 {
		t.Errorf("expected 1 HEARTBEAT event, got %d", heartbeats)
	}
	if shutdowns != 1 {
		t.Errorf("expected 1 SHUTDOWN event, got %d", shutdowns)
	}
}

func TestRunLoopUpdatesTracker(t *testing.T) {
	fx := newLoopFixture()
	fx.tracker = status.NewTracker(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), status.Config{})
	fx.pub.Connected = true
	sensor := adc.NewFakeSensor(repeat(10, 4))
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Second)

	err := runRunLoop(t, sensor, fx, 0, clock, 4, syscall.SIGTERM, "")
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	snap := fx.tracker.Snapshot()
	if !snap.Ready {
		t.Error("tracker should be ready after ticks")
	}
	if snap.LightLevel != 10 {
		t.Errorf("tracker light level: got %d, want 10", snap.LightLevel)
	}
	if snap.Condition != logic.ConditionDark {
		t.Errorf("tracker condition: got %s, want DARK", snap.Condition)
	}
	if !snap.RelayOn {
		t.Error("tracker relay: got off, want on")
	}
	if !snap.MQTTConnected {
		t.Error("tracker should reflect MQTT connectivity")
	}
	if snap.Counts.LampOn != 1 {
		t.Errorf("tracker counts: got %+v", snap.Counts)
	}
}
