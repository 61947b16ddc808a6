package app

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"brood-flow/internal/ble"
	"brood-flow/internal/config"
	"brood-flow/internal/device"
	"brood-flow/internal/dispatch"
	"brood-flow/internal/hass"
	"brood-flow/internal/httpapi"
	"brood-flow/internal/influx"
	"brood-flow/internal/journal"
	"brood-flow/internal/logging"
	"brood-flow/internal/mqtt"
)

// ErrStreamEnded is returned when the BLE scan stops while the gateway is still meant to run.
var ErrStreamEnded = errors.New("app: advertisement stream ended")

const eventBuffer = 64

func Run(ctx context.Context, cfg config.Config) error {
	logger := slog.Default()
	logger.Info("initializing gateway",
		"mqtt_enabled", cfg.MQTTEnabled,
		"mqtt_broker", cfg.MQTTBroker,
		"mqtt_port", cfg.MQTTPort,
		"mqtt_client_id", cfg.MQTTClientID,
		"discovery_prefix", cfg.DiscoveryPrefix,
		"configured_devices", len(cfg.Devices),
		"ble_adapter", cfg.BLEAdapter,
		"http_addr", cfg.HTTPAddr,
	)

	registry := device.NewRegistry()

	policy := hass.NewPolicy(cfg.DiscoveryPrefix, overrides(cfg.Devices))
	policy.ConfigInterval = cfg.ConfigInterval
	policy.StateInterval = cfg.StateInterval

	var (
		publisher dispatch.Publisher
		transport httpapi.TransportStatus
		client    *mqtt.Client
	)
	if cfg.MQTTEnabled {
		c, err := mqtt.NewClient(cfg, policy.Topics.Availability(), logging.Component(logger, "mqtt"))
		if err != nil {
			return err
		}
		client, publisher, transport = c, c, c
	} else {
		logger.Info("mqtt publishing disabled; devices are tracked only")
	}

	var (
		recorders []dispatch.Recorder
		history   httpapi.HistoryReader
	)
	if cfg.JournalPath != "" {
		j, err := journal.Open(ctx, cfg.JournalPath, logging.Component(logger, "journal"))
		if err != nil {
			return err
		}
		defer func() {
			if err := j.Close(); err != nil {
				logger.Error("journal close", "error", err)
			}
		}()
		recorders = append(recorders, j)
		history = j
	}
	if cfg.InfluxURL != "" {
		sink, err := influx.Connect(ctx, cfg, logging.Component(logger, "influx"))
		if err != nil {
			logger.Warn("influx unavailable (continuing without time-series output)", "error", err)
		} else {
			defer sink.Close()
			recorders = append(recorders, sink)
		}
	}

	listener := ble.NewListener(ble.Options{
		Adapter: cfg.BLEAdapter,
		Logger:  logging.Component(logger, "ble"),
	})

	dispatcher := dispatch.New(registry, policy, publisher, dispatch.Options{
		PublishEnabled: cfg.MQTTEnabled,
		Resolver:       listener,
		Recorders:      recorders,
		Logger:         logging.Component(logger, "dispatch"),
	})

	g, gctx := errgroup.WithContext(ctx)
	events := make(chan ble.Event, eventBuffer)

	g.Go(func() error {
		return listener.Run(gctx, events)
	})

	g.Go(func() error {
		if err := dispatcher.Run(gctx, events); err != nil {
			return err
		}
		if gctx.Err() != nil {
			return gctx.Err()
		}
		return ErrStreamEnded
	})

	if client != nil {
		g.Go(func() error {
			return client.Run(gctx)
		})
	}

	if cfg.HTTPAddr != "" {
		httpLogger := logging.Component(logger, "http")
		mux := httpapi.NewMux(httpapi.Deps{
			Devices: registry,
			MQTT:    transport,
			History: history,
			Logger:  httpLogger,
		})
		srv := httpapi.NewServer(cfg.HTTPAddr, mux, httpLogger)
		g.Go(func() error {
			return httpapi.Serve(gctx, srv, httpLogger)
		})
	}

	err := g.Wait()
	logger.Info("gateway shutting down", "devices", registry.Len())
	return err
}

// overrides indexes the configured per-device settings by device ID.
func overrides(devices []config.Device) map[string]hass.Override {
	out := make(map[string]hass.Override, len(devices))
	for _, d := range devices {
		out[d.ID] = hass.Override{
			Name:     d.Name,
			ObjectID: d.Topic,
			Realtime: d.Realtime,
		}
	}
	return out
}
