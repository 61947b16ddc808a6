package hass

import (
	"encoding/json"
	"fmt"
)

// Payload is one of the message bodies this package produces:
// TemperatureState, ScaleState or DiscoveryConfig.
type Payload interface {
	payload()
}

// Message is a topic plus a typed payload, encoded at the transport boundary.
type Message struct {
	Topic   string
	Payload Payload
}

// Encode serializes the payload to JSON.
func (m Message) Encode() ([]byte, error) {
	if m.Payload == nil {
		return nil, fmt.Errorf("hass: empty payload for %s", m.Topic)
	}
	b, err := json.Marshal(m.Payload)
	if err != nil {
		return nil, fmt.Errorf("hass: marshal %s: %w", m.Topic, err)
	}
	return b, nil
}

// TemperatureState is the state body for temperature-only devices.
type TemperatureState struct {
	TemperatureC float32 `json:"temperature_c"`
}

// ScaleState is the state body for scales.
type ScaleState struct {
	TemperatureC float32 `json:"temperature_c"`
	WeightLbs    float32 `json:"weight_lbs"`
}

// NewTemperatureState builds a temperature-only state body.
func NewTemperatureState(celsius float32) TemperatureState {
	return TemperatureState{TemperatureC: celsius}
}

// NewScaleState builds a scale state body.
func NewScaleState(celsius, lbs float32) ScaleState {
	return ScaleState{TemperatureC: celsius, WeightLbs: lbs}
}

// DeviceInfo groups entities under one device in Home Assistant.
type DeviceInfo struct {
	Identifiers  []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model,omitempty"`
	SWVersion    string   `json:"sw_version,omitempty"`
	Name         string   `json:"name,omitempty"`
}

// DiscoveryConfig is a Home Assistant MQTT sensor discovery body.
// https://www.home-assistant.io/integrations/sensor.mqtt/
type DiscoveryConfig struct {
	Name              string     `json:"name"`
	UniqueID          string     `json:"unique_id"`
	DeviceClass       string     `json:"device_class,omitempty"`
	StateClass        string     `json:"state_class"`
	Unit              string     `json:"unit_of_measurement"`
	StateTopic        string     `json:"state_topic"`
	ValueTemplate     string     `json:"value_template"`
	AvailabilityTopic string     `json:"availability_topic,omitempty"`
	ExpireAfter       int        `json:"expire_after"`
	ForceUpdate       bool       `json:"force_update"`
	Device            DeviceInfo `json:"device"`
}

const (
	expireAfterSeconds = 3600
	manufacturer       = "Broodminder"
)

// channel describes one sensor value exposed by a device.
type channel struct {
	suffix      string
	deviceClass string
	unit        string
	stateKey    string
}

var (
	temperatureChannel = channel{suffix: "temperature", deviceClass: "temperature", unit: "°C", stateKey: "temperature_c"}
	weightChannel      = channel{suffix: "weight", deviceClass: "weight", unit: "lb", stateKey: "weight_lbs"}
)

func newDiscoveryConfig(ch channel, name, simpleID, stateTopic, availabilityTopic string, dev DeviceInfo) DiscoveryConfig {
	return DiscoveryConfig{
		Name:              fmt.Sprintf("%s_%s", name, ch.suffix),
		UniqueID:          fmt.Sprintf("%s_%s", simpleID, ch.suffix),
		DeviceClass:       ch.deviceClass,
		StateClass:        "measurement",
		Unit:              ch.unit,
		StateTopic:        stateTopic,
		ValueTemplate:     fmt.Sprintf("{{ value_json.%s }}", ch.stateKey),
		AvailabilityTopic: availabilityTopic,
		ExpireAfter:       expireAfterSeconds,
		ForceUpdate:       true,
		Device:            dev,
	}
}

func (TemperatureState) payload() {}
func (ScaleState) payload()       {}
func (DiscoveryConfig) payload()  {}
