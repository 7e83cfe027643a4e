package mqtt

import (
	"fmt"
)

// maxPayloadSize caps a single message. Seat events are a few hundred bytes,
// so anything near this is a bug upstream rather than a real seat.
const maxPayloadSize = 1 << 20

// Publish sends payload to topic and waits up to ackTimeout for the broker.
//
// The occupancy service only publishes retained seat state and its own
// status, so most callers want PublishRetained. QoS above 0 is needed for
// the broker to acknowledge at all; with QoS 0 the wait returns as soon as
// the packet is written.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: %d bytes on %s", ErrPayloadTooLarge, len(payload), topic)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(ackTimeout) {
		return fmt.Errorf("%w: %s not acknowledged within %v", ErrPublishFailed, topic, ackTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}
	return nil
}

// PublishRetained publishes with the configured QoS and the retain flag set,
// so a dashboard subscribing to Topics.AllSeatStates sees every seat at once.
//
//	client.PublishRetained(mqtt.Topics{}.SeatState("Sugiura"), event)
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.Publish(topic, payload, byte(c.cfg.QoS), true)
}
