package mqttbus

import (
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// IPublisher publishes payloads to a fixed topic.
type IPublisher interface {
	Publish(payload []byte) error
	PublishQos(qos byte, retained bool, payload []byte) error
	Topic() string
	Close()
}

// Publisher binds a shared MQTT client to one topic.
type Publisher struct {
	client mqtt.Client
	topic  string
}

func NewPublisher(client mqtt.Client, topic string) *Publisher {
	return &Publisher{client: client, topic: topic}
}

func (p *Publisher) Topic() string { return p.topic }

// Publish sends at QoS 0 (at most once).
func (p *Publisher) Publish(payload []byte) error {
	return p.PublishQos(0, false, payload)
}

// PublishQos sends with an explicit QoS level.
func (p *Publisher) PublishQos(qos byte, retained bool, payload []byte) error {
	token := p.client.Publish(p.topic, qos, retained, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, token.Error())
	}
	return nil
}

// Close releases the underlying client.
func (p *Publisher) Close() {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
		log.Println("mqttbus: publisher disconnected")
	}
}
