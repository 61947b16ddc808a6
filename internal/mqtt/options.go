package mqtt

import (
	"fmt"
	"time"

	"brood-flow/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	publishTimeout    = 5 * time.Second
	disconnectQuiesce = 250 // milliseconds

	payloadOnline  = "online"
	payloadOffline = "offline"
)

// buildClientOptions maps gateway config onto paho options. The broker publishes
// payloadOffline on availabilityTopic if the gateway drops off without a clean disconnect.
func buildClientOptions(cfg config.Config, availabilityTopic string) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID)

	// Session settings
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	// Keepalive / timeouts
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	if availabilityTopic != "" {
		opts.SetWill(availabilityTopic, payloadOffline, byte(cfg.MQTTQoS), true)
	}

	return opts
}
