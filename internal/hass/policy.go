package hass

import (
	"time"

	"brood-flow/internal/broodminder"
	"brood-flow/internal/device"
)

// Default publication windows.
const (
	DefaultConfigInterval = time.Hour
	DefaultStateInterval  = 30 * time.Second
)

// Override customizes how one device is published.
type Override struct {
	// Name replaces the device ID in entity names.
	Name string
	// ObjectID replaces the default "BM<id>" topic object ID.
	ObjectID string
	// Realtime selects the realtime temperature (true, default) or the aggregated one.
	Realtime *bool
}

// Policy decides which discovery and state messages a device is due for.
// It mutates only the publication timestamps of the record it is given.
type Policy struct {
	Topics         Topics
	ConfigInterval time.Duration
	StateInterval  time.Duration
	Overrides      map[string]Override
}

// NewPolicy returns a policy with the default windows.
func NewPolicy(prefix string, overrides map[string]Override) *Policy {
	return &Policy{
		Topics:         Topics{Prefix: prefix},
		ConfigInterval: DefaultConfigInterval,
		StateInterval:  DefaultStateInterval,
		Overrides:      overrides,
	}
}

func (p *Policy) configInterval() time.Duration {
	if p.ConfigInterval <= 0 {
		return DefaultConfigInterval
	}
	return p.ConfigInterval
}

func (p *Policy) stateInterval() time.Duration {
	if p.StateInterval <= 0 {
		return DefaultStateInterval
	}
	return p.StateInterval
}

func (p *Policy) override(deviceID string) Override {
	return p.Overrides[deviceID]
}

func (p *Policy) objectID(deviceID string) string {
	if o := p.override(deviceID); o.ObjectID != "" {
		return o.ObjectID
	}
	return ObjectID(deviceID)
}

// ConfigMessages returns the discovery messages rec is due for at now.
// When the config window has elapsed, LastConfigSent is advanced even if the model
// exposes no channels, so discovery stays on the hourly cadence.
func (p *Policy) ConfigMessages(rec *device.Record, now time.Time) []Message {
	if !rec.Resolved() || !rec.ConfigDue(now, p.configInterval()) {
		return nil
	}

	model := rec.Reading.Model
	objectID := p.objectID(rec.DeviceID)
	simpleID := SimpleID(rec.DeviceID)
	stateTopic := p.Topics.State(objectID)
	availability := p.Topics.Availability()

	name := rec.DeviceID
	if o := p.override(rec.DeviceID); o.Name != "" {
		name = o.Name
	}
	dev := DeviceInfo{
		Identifiers:  []string{rec.DeviceID},
		Manufacturer: manufacturer,
		Model:        broodminder.ModelName(model),
		SWVersion:    rec.Reading.Firmware(),
		Name:         name,
	}

	var msgs []Message
	if broodminder.HasTemperature(model) {
		msgs = append(msgs, Message{
			Topic:   p.Topics.TemperatureConfig(objectID),
			Payload: newDiscoveryConfig(temperatureChannel, name, simpleID, stateTopic, availability, dev),
		})
	}
	if broodminder.IsScale(model) {
		msgs = append(msgs, Message{
			Topic:   p.Topics.WeightConfig(objectID),
			Payload: newDiscoveryConfig(weightChannel, name, simpleID, stateTopic, availability, dev),
		})
	}

	rec.MarkConfigSent(now)
	return msgs
}

// StateMessages returns the state message rec is due for at now, advancing LastStateSent.
func (p *Policy) StateMessages(rec *device.Record, now time.Time) []Message {
	if !rec.Resolved() || !rec.StateDue(now, p.stateInterval()) {
		return nil
	}

	r := rec.Reading
	celsius := r.RealtimeTemperatureC
	if o := p.override(rec.DeviceID); o.Realtime != nil && !*o.Realtime {
		celsius = r.TemperatureC
	}

	var body Payload = NewTemperatureState(celsius)
	if broodminder.IsScale(r.Model) {
		body = NewScaleState(celsius, r.RealtimeWeightLbs)
	}

	rec.MarkStateSent(now)
	return []Message{{
		Topic:   p.Topics.State(p.objectID(rec.DeviceID)),
		Payload: body,
	}}
}
