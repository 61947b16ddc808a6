package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"brood-flow/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type message struct {
	topic   string
	payload []byte
}

// Client is a submit-and-continue publisher. Publish only enqueues; Run owns the
// broker connection and drains the queue.
type Client struct {
	client    mqtt.Client
	cfg       config.Config
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	availabilityTopic string
	qos               byte
	queue             chan message

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewClient configures the client. availabilityTopic carries the retained
// online/offline status; pass "" to disable it.
func NewClient(cfg config.Config, availabilityTopic string, logger *slog.Logger) (*Client, error) {
	if cfg.MQTTQueueSize <= 0 {
		return nil, fmt.Errorf("mqtt: queue size must be positive, got %d", cfg.MQTTQueueSize)
	}

	c := &Client{
		cfg:               cfg,
		logger:            logger,
		availabilityTopic: availabilityTopic,
		qos:               byte(cfg.MQTTQoS),
		queue:             make(chan message, cfg.MQTTQueueSize),
		stopCh:            make(chan struct{}),
	}

	opts := buildClientOptions(cfg, availabilityTopic)

	// Callbacks keep internal state accurate
	opts.SetOnConnectHandler(func(mc mqtt.Client) {
		c.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
		c.announceOnline(mc)
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	c.client = mqtt.NewClient(opts)
	return c, nil
}

// Publish enqueues a message and returns immediately.
func (c *Client) Publish(topic string, payload []byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}

	select {
	case <-c.stopCh:
		return ErrStopped
	default:
	}

	select {
	case c.queue <- message{topic: topic, payload: payload}:
		return nil
	default:
		return fmt.Errorf("%w: %d pending, dropping %s", ErrQueueFull, len(c.queue), topic)
	}
}

// Run connects and then delivers queued messages until ctx is done or Disconnect is called.
// Failing to establish the initial connection is fatal and returns ErrConnectionFailed.
func (c *Client) Run(ctx context.Context) error {
	if err := c.Connect(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	defer c.Disconnect()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return nil
		case m := <-c.queue:
			if err := c.deliver(m); err != nil {
				c.logger.Warn("mqtt publish failed", "topic", m.topic, "error", err)
			}
		}
	}
}

// Connect establishes connection to the MQTT broker.
// This function waits for the initial connection, and respects ctx and Disconnect().
func (c *Client) Connect(ctx context.Context) error {
	select {
	case <-c.stopCh:
		return ErrStopped
	default:
	}

	if c.IsConnected() {
		return nil
	}

	// With ConnectRetry(true), paho keeps retrying internally until the token completes.
	token := c.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			c.setConnected(true)
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return ErrStopped
		default:
		}
	}
}

func (c *Client) deliver(m message) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(m.topic, c.qos, false, m.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: timeout for topic %s", ErrPublishFailed, m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	c.logger.Debug("published", "topic", m.topic, "bytes", len(m.payload))
	return nil
}

func (c *Client) announceOnline(mc mqtt.Client) {
	if c.availabilityTopic == "" {
		return
	}
	token := mc.Publish(c.availabilityTopic, c.qos, true, payloadOnline)
	go func() {
		if !token.WaitTimeout(publishTimeout) || token.Error() != nil {
			c.logger.Warn("failed to announce availability", "topic", c.availabilityTopic, "error", token.Error())
		}
	}()
}

// Pending reports how many messages wait in the queue.
func (c *Client) Pending() int {
	return len(c.queue)
}

// IsConnected returns whether the client is connected.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	return connected && c.client.IsConnected()
}

// Status is a short connection description for health reporting.
func (c *Client) Status() string {
	if c.IsConnected() {
		return "connected"
	}
	return "disconnected"
}

// Disconnect stops the client and closes the MQTT connection.
// Idempotent; after Disconnect, Publish returns ErrStopped.
func (c *Client) Disconnect() {
	alreadyStopped := true
	c.stopOnce.Do(func() {
		close(c.stopCh)
		alreadyStopped = false
	})
	if alreadyStopped {
		return
	}

	if c.client != nil && c.client.IsConnectionOpen() && c.availabilityTopic != "" {
		c.client.Publish(c.availabilityTopic, c.qos, true, payloadOffline).WaitTimeout(time.Second)
	}
	if c.client != nil {
		c.client.Disconnect(disconnectQuiesce)
	}

	c.setConnected(false)
	c.logger.Info("mqtt disconnected", "dropped", len(c.queue))
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}
