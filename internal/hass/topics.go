package hass

import (
	"fmt"
	"strings"
)

// DefaultPrefix is Home Assistant's default MQTT discovery prefix.
const DefaultPrefix = "homeassistant"

// objectIDPrefix keeps Broodminder object IDs from colliding with other sensors.
const objectIDPrefix = "BM"

// Topics builds discovery and state topics under a discovery prefix.
//
//	topics := hass.Topics{Prefix: "homeassistant"}
//	topics.State("BM470102") // homeassistant/sensor/BM470102/state
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultPrefix
	}
	return t.Prefix
}

// State returns the state topic for a sensor object ID.
func (t Topics) State(objectID string) string {
	return fmt.Sprintf("%s/sensor/%s/state", t.prefix(), objectID)
}

// TemperatureConfig returns the discovery topic for a device's temperature channel.
func (t Topics) TemperatureConfig(objectID string) string {
	return fmt.Sprintf("%s/sensor/%sTemp/config", t.prefix(), objectID)
}

// WeightConfig returns the discovery topic for a device's weight channel.
func (t Topics) WeightConfig(objectID string) string {
	return fmt.Sprintf("%s/sensor/%sWeight/config", t.prefix(), objectID)
}

// Availability returns the gateway's retained online/offline topic.
func (t Topics) Availability() string {
	return fmt.Sprintf("%s/brood-flow/status", t.prefix())
}

// SimpleID strips the ':' separators from a Broodminder device ID ("47:01:02" -> "470102").
func SimpleID(deviceID string) string {
	return strings.ReplaceAll(deviceID, ":", "")
}

// ObjectID is the default topic object ID for a device.
func ObjectID(deviceID string) string {
	return objectIDPrefix + SimpleID(deviceID)
}
