// Command lamp-control reads an ambient light sensor and switches a lamp
// relay on when it has been stably dark and off when it has been stably
// bright. It publishes switch events to MQTT and serves a status page.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sweeney/lamp-control/internal/adc"
	"github.com/sweeney/lamp-control/internal/config"
	"github.com/sweeney/lamp-control/internal/gpio"
	"github.com/sweeney/lamp-control/internal/logic"
	"github.com/sweeney/lamp-control/internal/mqtt"
	"github.com/sweeney/lamp-control/internal/status"
	"github.com/sweeney/lamp-control/internal/store"
	"github.com/sweeney/lamp-control/internal/web"
)

func main() {
	configPath := flag.String("config", "/etc/lamp-control/config.yaml", "Path to configuration file")
	printState := flag.Bool("print-state", false, "Read the sensor once, print the light level, and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Fatal().Err(err).Str("config", *configPath).Msg("load configuration")
		}
		// First boot: run on defaults, the config form creates the file.
		cfg = config.Default()
	}

	setupLogging(cfg.Log)

	if err := run(cfg, *configPath, *printState); err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
}

func setupLogging(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Console {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

func run(cfg *config.Config, configPath string, printState bool) error {
	sensor, err := adc.NewIIOSensor(cfg.Hardware.SensorPath)
	if err != nil {
		return fmt.Errorf("init sensor: %w", err)
	}
	defer sensor.Close()

	// Print state mode
	if printState {
		level, err := sensor.Read()
		if err != nil {
			return fmt.Errorf("read sensor: %w", err)
		}
		condition := logic.ConditionBright
		if level <= cfg.Settings.DarkThreshold {
			condition = logic.ConditionDark
		}
		fmt.Printf("light level: %d (%s, dark at <= %d)\n", level, condition, cfg.Settings.DarkThreshold)
		return nil
	}

	relay, err := gpio.NewRealRelay(cfg.Hardware.RelayPin, cfg.Hardware.LEDPin)
	if err != nil {
		return fmt.Errorf("init relay: %w", err)
	}
	defer relay.Close()

	// Switch ledger (optional)
	var ledger *store.Store
	if cfg.Database.Path != "" {
		ledger, err = store.Open(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("open switch ledger: %w", err)
		}
		defer ledger.Close()
	}

	// MQTT (optional)
	var publisher mqtt.Publisher
	var mqttStatus mqtt.ConnectionStatus
	if cfg.MQTT.Enabled {
		real := mqtt.NewRealPublisher(cfg.MQTT.Broker)
		defer real.Close()
		publisher = real
		mqttStatus = real
	}

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		DarkThreshold: cfg.Settings.DarkThreshold,
		StableTicks:   cfg.Settings.StableTicks,
		PollMs:        cfg.PollInterval.Duration().Milliseconds(),
		HeartbeatMs:   cfg.HeartbeatInterval.Duration().Milliseconds(),
		Broker:        cfg.MQTT.Broker,
		HTTPAddr:      cfg.HTTP.Addr,
		DatabasePath:  cfg.Database.Path,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	// Publish startup event with full status snapshot
	if publisher != nil {
		snap := tracker.Snapshot()
		startupEvent := mqtt.SystemEvent{
			Timestamp:  snap.Now,
			Event:      "STARTUP",
			Retained:   true,
			RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
		}
		if err := publisher.PublishSystem(startupEvent); err != nil {
			log.Warn().Err(err).Msg("publish startup event")
		}
	}

	// Config saves from the web form land here and stop the loop; the
	// supervisor restarts the daemon with the new settings.
	restartCh := make(chan string, 1)
	requestRestart := func(reason string) {
		select {
		case restartCh <- reason:
		default:
		}
	}

	// Start HTTP status server
	if cfg.HTTP.Addr != "" {
		var events web.EventSource
		if ledger != nil {
			events = ledger
		}
		srv := web.New(cfg.HTTP.Addr, tracker, events, cfg, configPath, requestRestart)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("http server")
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("http status server listening")
	}

	log.Info().
		Dur("poll", cfg.PollInterval.Duration()).
		Int("dark_threshold", cfg.Settings.DarkThreshold).
		Int("stable_ticks", cfg.Settings.StableTicks).
		Str("broker", cfg.MQTT.Broker).
		Bool("mqtt", cfg.MQTT.Enabled).
		Msg("started")

	ticker := time.NewTicker(cfg.PollInterval.Duration())
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(sensor, relay, publisher, mqttStatus, tracker, ledger,
		cfg.Settings.Logic(), cfg.HeartbeatInterval.Duration(),
		time.Now, ticker.C, sigCh, restartCh)
}

func runLoop(
	sensor adc.Sensor,
	relay gpio.Relay,
	publisher mqtt.Publisher,
	mqttStatus mqtt.ConnectionStatus,
	tracker *status.Tracker,
	ledger *store.Store,
	settings logic.Settings,
	heartbeat time.Duration,
	now func() time.Time,
	tick <-chan time.Time,
	sig <-chan os.Signal,
	restart <-chan string,
) error {
	controller := logic.NewController(settings, now())

	// Force the relay off before the first tick so the physical state is
	// known regardless of where the relay sat before boot.
	if err := relay.Set(false); err != nil {
		return fmt.Errorf("force relay off: %w", err)
	}

	for {
		select {
		case s := <-sig:
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			log.Info().Str("signal", signalName).Msg("shutting down")
			publishShutdown(publisher, mqttStatus, tracker, now(), signalName)
			return nil

		case reason := <-restart:
			log.Info().Str("reason", reason).Msg("restarting to apply configuration")
			publishShutdown(publisher, mqttStatus, tracker, now(), reason)
			return nil

		case <-tick:
			t := now()
			level, err := sensor.Read()
			if err != nil {
				log.Warn().Err(err).Msg("sensor read")
				continue
			}

			if event, ok := controller.Tick(level, t); ok {
				log.Info().
					Str("event", string(event.Type)).
					Int("light_level", event.LightLevel).
					Msg("switching relay")

				if err := relay.Set(event.On()); err != nil {
					log.Error().Err(err).Msg("relay write")
					// Don't crash: the next allowed tick retries via
					// the controller's steady state.
				}
				if publisher != nil {
					if err := publisher.Publish(event); err != nil {
						log.Warn().Err(err).Msg("publish event")
					}
				}
				if ledger != nil {
					if err := ledger.Append(event); err != nil {
						log.Warn().Err(err).Msg("append switch event")
					}
				}
			}

			// Check for heartbeat
			if hb := controller.CheckHeartbeat(t, heartbeat); hb != nil {
				log.Info().
					Dur("uptime", hb.Uptime).
					Int("lamp_on", hb.Counts.LampOn).
					Int("lamp_off", hb.Counts.LampOff).
					Msg("heartbeat")

				hbEvent := mqtt.SystemEvent{
					Timestamp: hb.Timestamp,
					Event:     "HEARTBEAT",
				}
				if tracker != nil {
					refreshTracker(tracker, controller, mqttStatus)
					// Refresh network info for heartbeat
					if net := readNetworkInfo(); net != nil {
						tracker.SetNetwork(net)
					}
					snap := tracker.Snapshot()
					hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
				}
				if publisher != nil {
					if err := publisher.PublishSystem(hbEvent); err != nil {
						log.Warn().Err(err).Msg("publish heartbeat")
					}
				}
			}

			// Update status tracker for HTTP consumers
			if tracker != nil {
				refreshTracker(tracker, controller, mqttStatus)
			}
		}
	}
}

func refreshTracker(tracker *status.Tracker, controller *logic.Controller, mqttStatus mqtt.ConnectionStatus) {
	tracker.Update(
		controller.LightLevel(),
		controller.Condition(),
		controller.RelayOn(),
		controller.StableTickCount(),
		controller.Counts(),
	)
	if mqttStatus != nil {
		tracker.SetMQTTConnected(mqttStatus.IsConnected())
	}
}

func publishShutdown(publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, now time.Time, reason string) {
	if publisher == nil {
		return
	}
	event := mqtt.SystemEvent{
		Timestamp: now,
		Event:     "SHUTDOWN",
		Reason:    reason,
		Retained:  true,
	}
	if tracker != nil {
		if mqttStatus != nil {
			tracker.SetMQTTConnected(mqttStatus.IsConnected())
		}
		snap := tracker.Snapshot()
		event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", reason)
	}
	if err := publisher.PublishSystem(event); err != nil {
		log.Warn().Err(err).Msg("publish shutdown event")
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
