package mqtt

import "errors"

// Broker errors. Seat publishing is best effort, so callers mostly log these;
// the sentinels let the health endpoint and tests tell them apart.
var (
	// ErrNotConnected means the broker link is down, either before the first
	// connect or while paho is reconnecting.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed is returned by Connect when the broker refuses or
	// does not answer within connectTimeout.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed wraps a seat state or status publish the broker did not
	// acknowledge.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrPayloadTooLarge rejects a payload above maxPayloadSize before it
	// reaches the broker.
	ErrPayloadTooLarge = errors.New("mqtt: payload too large")

	// ErrSubscribeFailed wraps a rejected sensor report subscription.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	ErrInvalidQoS   = errors.New("mqtt: QoS must be 0, 1 or 2")
	ErrInvalidTopic = errors.New("mqtt: empty topic")
)
