package mqttbus

import (
	"context"
	"log"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Handler processes one inbound message. Returning an error only logs it: one
// bad message must never stop the subscription.
type Handler func(topic string, message mqtt.Message) error

// IConsumer subscribes to a topic and feeds messages of (nominal) type T to
// its handler. The type parameter documents the expected payload; decoding
// stays in the handler.
type IConsumer[T any] interface {
	Consume(ctx context.Context)
	SetHandler(handler Handler)
}

// Consumer is the single-topic IConsumer implementation.
type Consumer[T any] struct {
	client  mqtt.Client
	topic   string
	handler Handler
}

func NewConsumer[T any](client mqtt.Client, topic string, handler Handler) *Consumer[T] {
	return &Consumer[T]{client: client, topic: topic, handler: handler}
}

func (c *Consumer[T]) SetHandler(handler Handler) { c.handler = handler }

// qosFor picks the subscription QoS: the channels that feed state changes ride
// at-least-once, everything else at-most-once.
func qosFor(topic string) byte {
	t := strings.TrimSpace(topic)
	if strings.HasPrefix(t, "sensor/data") ||
		strings.HasPrefix(t, "irrigation/request") ||
		strings.HasPrefix(t, "irrigation/confirmation") ||
		strings.HasPrefix(t, "event/alert") {
		return 1
	}
	return 0
}

// Consume subscribes and blocks until ctx is cancelled, then unsubscribes.
func (c *Consumer[T]) Consume(ctx context.Context) {
	token := c.client.Subscribe(c.topic, qosFor(c.topic), func(_ mqtt.Client, message mqtt.Message) {
		if c.handler == nil {
			log.Printf("mqttbus: no handler set for topic %s", c.topic)
			return
		}
		if err := c.handler(c.topic, message); err != nil {
			log.Printf("mqttbus: handler error on %s: %v", c.topic, err)
		}
	})
	if token.Wait() && token.Error() != nil {
		log.Printf("mqttbus: subscribe %s failed: %v", c.topic, token.Error())
		return
	}
	log.Printf("mqttbus: subscribed to %s", c.topic)

	<-ctx.Done()

	unsub := c.client.Unsubscribe(c.topic)
	unsub.Wait()
}
