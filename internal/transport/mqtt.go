// Package transport carries questnav values over MQTT. It adapts the paho
// client to the bus the core package consumes: subscriptions buffer into
// per-topic queues drained by the tick loop, publishes block until the
// broker has acknowledged.
package transport

import (
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/STMARobotics/QuestNav/internal/questnav"
)

// Event reports a change in the broker link.
type Event int

const (
	EventConnected Event = iota
	EventConnectionLost
)

func (e Event) String() string {
	switch e {
	case EventConnected:
		return "connected"
	case EventConnectionLost:
		return "connection lost"
	}
	return "unknown"
}

const eventBuffer = 16

// Client is an MQTT-backed value bus.
type Client struct {
	mqtt   mqtt.Client
	events chan Event
}

var _ questnav.Bus = (*Client)(nil)

// Dial connects to the broker and blocks until the session is up. The
// client reconnects on its own afterwards; link transitions are reported on
// Events.
func Dial(broker, clientID string) (*Client, error) {
	c := &Client{events: make(chan Event, eventBuffer)}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		c.notify(EventConnected)
	})
	opts.SetConnectionLostHandler(func(mqtt.Client, error) {
		c.notify(EventConnectionLost)
	})

	c.mqtt = mqtt.NewClient(opts)
	if token := c.mqtt.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, token.Error())
	}
	return c, nil
}

// Subscribe attaches a buffering queue to topic with at-least-once delivery
// and returns it.
func (c *Client) Subscribe(topic string) (questnav.Queue, error) {
	q := &Queue{}
	handler := func(_ mqtt.Client, msg mqtt.Message) {
		q.push(msg.Payload())
	}
	if token := c.mqtt.Subscribe(topic, 1, handler); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt subscribe %s: %w", topic, token.Error())
	}
	return q, nil
}

// Publish sends payload at QoS 1 without the retained flag.
func (c *Client) Publish(topic string, payload []byte) error {
	token := c.mqtt.Publish(topic, 1, false, payload)
	token.Wait()
	return token.Error()
}

// Events exposes link transitions for logging. The channel is small and
// lossy so the network callbacks never block on a slow consumer.
func (c *Client) Events() <-chan Event {
	return c.events
}

func (c *Client) notify(e Event) {
	select {
	case c.events <- e:
	default:
	}
}

// Close flushes in-flight work and disconnects.
func (c *Client) Close() {
	c.mqtt.Disconnect(250)
}
