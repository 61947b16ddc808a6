package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"brood-flow/internal/ble"
	"brood-flow/internal/broodminder"
	"brood-flow/internal/device"
	"brood-flow/internal/hass"
	"brood-flow/internal/utils"
)

// Publisher accepts a message for delivery and returns without waiting for it.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// NameResolver maps an advertiser address to its human readable name, if known.
type NameResolver interface {
	ResolveName(address string) (string, bool)
}

// Recorder receives every decoded reading, e.g. for a history sink.
type Recorder interface {
	Record(ctx context.Context, deviceID string, reading broodminder.Reading, at time.Time) error
}

type Options struct {
	// PublishEnabled turns discovery/state publication on.
	PublishEnabled bool
	Resolver       NameResolver
	Recorders      []Recorder
	Now            func() time.Time
	Logger         *slog.Logger
}

// Dispatcher turns advertisement events into registry updates and outbound messages.
type Dispatcher struct {
	registry  *device.Registry
	policy    *hass.Policy
	publisher Publisher

	publishEnabled bool
	resolver       NameResolver
	recorders      []Recorder
	now            func() time.Time
	logger         *slog.Logger
}

func New(registry *device.Registry, policy *hass.Policy, publisher Publisher, opts Options) *Dispatcher {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Dispatcher{
		registry:       registry,
		policy:         policy,
		publisher:      publisher,
		publishEnabled: opts.PublishEnabled && publisher != nil,
		resolver:       opts.Resolver,
		recorders:      opts.Recorders,
		now:            opts.Now,
		logger:         opts.Logger,
	}
}

// Run handles events one at a time until the channel is closed (nil) or ctx is done.
func (d *Dispatcher) Run(ctx context.Context, events <-chan ble.Event) error {
	d.logger.Info("listening for broodminder events", "publish_enabled", d.publishEnabled)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				d.logger.Info("advertisement stream ended", "devices", d.registry.Len())
				return nil
			}
			d.Handle(ctx, ev)
		}
	}
}

// Handle processes a single advertisement.
func (d *Dispatcher) Handle(ctx context.Context, ev ble.Event) {
	if ev.Kind != ble.KindManufacturerData {
		return
	}
	if !broodminder.IsRecognized(ev.ManufacturerData) {
		return
	}

	data := ev.ManufacturerData[broodminder.ManufacturerID]
	deviceID := d.resolveIdentity(ev)

	reading, err := broodminder.Decode(data)
	if err != nil {
		if errors.Is(err, broodminder.ErrMalformedPayload) {
			d.logger.Warn("dropping malformed broodminder payload",
				"device_id", deviceID,
				"addr", ev.Address,
				"data", utils.BytesToHex(data),
				"error", err,
			)
			return
		}
		d.logger.Error("decode failed", "device_id", deviceID, "addr", ev.Address, "error", err)
		return
	}

	seenAt := ev.SeenAt
	if seenAt.IsZero() {
		seenAt = d.now()
	}

	rec, isNew := d.registry.Upsert(deviceID, reading, seenAt)
	if isNew {
		d.logger.Info("new broodminder device detected",
			"device_id", deviceID,
			"addr", ev.Address,
			"model", broodminder.ModelName(reading.Model),
			"firmware", reading.Firmware(),
		)
	} else {
		d.logger.Debug("updated broodminder device",
			"device_id", deviceID,
			"sightings", rec.Sightings,
			"temperature_c", reading.TemperatureC,
			"realtime_temperature_c", reading.RealtimeTemperatureC,
			"battery_percent", reading.BatteryPercent,
		)
	}

	d.record(ctx, deviceID, reading, seenAt)

	if !d.publishEnabled {
		return
	}

	now := d.now()
	var configMsgs, stateMsgs []hass.Message
	d.registry.Update(deviceID, func(rec *device.Record) {
		configMsgs = d.policy.ConfigMessages(rec, now)
		stateMsgs = d.policy.StateMessages(rec, now)
	})

	if len(configMsgs) > 0 {
		d.logger.Info("publishing discovery config", "device_id", deviceID, "messages", len(configMsgs))
	}
	d.publish(deviceID, configMsgs)
	if len(stateMsgs) > 0 {
		d.logger.Info("publishing state", "device_id", deviceID)
	}
	d.publish(deviceID, stateMsgs)
}

func (d *Dispatcher) resolveIdentity(ev ble.Event) string {
	if ev.LocalName != "" {
		return ev.LocalName
	}
	if d.resolver != nil {
		if name, ok := d.resolver.ResolveName(ev.Address); ok && name != "" {
			return name
		}
	}
	return device.UnresolvedID
}

func (d *Dispatcher) record(ctx context.Context, deviceID string, reading broodminder.Reading, at time.Time) {
	for _, r := range d.recorders {
		if err := r.Record(ctx, deviceID, reading, at); err != nil {
			d.logger.Warn("failed to record reading", "device_id", deviceID, "error", err)
		}
	}
}

func (d *Dispatcher) publish(deviceID string, msgs []hass.Message) {
	for _, m := range msgs {
		payload, err := m.Encode()
		if err != nil {
			d.logger.Error("failed to encode message", "device_id", deviceID, "topic", m.Topic, "error", err)
			continue
		}
		d.logger.Debug("submitting message", "topic", m.Topic, "payload", string(payload))
		if err := d.publisher.Publish(m.Topic, payload); err != nil {
			d.logger.Warn("failed to submit message", "device_id", deviceID, "topic", m.Topic, "error", err)
		}
	}
}
