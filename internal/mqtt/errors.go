package mqtt

import "errors"

// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned when a message is delivered while the broker is unreachable.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed is fatal: the transport loop cannot reach the broker.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed is returned when the broker rejects or times out a publish.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrQueueFull is returned when the outbound queue cannot take another message.
	ErrQueueFull = errors.New("mqtt: publish queue full")

	// ErrInvalidTopic is returned for an empty topic.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")

	// ErrStopped is returned after Disconnect.
	ErrStopped = errors.New("mqtt: client stopped")
)
