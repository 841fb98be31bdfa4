package isochrone

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/paulmach/orb/geojson"
)

// Publisher publishes computed isochrones and request failures to MQTT
type Publisher struct {
	client        mqtt.Client
	publishPrefix string
	qos           byte
	retain        bool
}

// NewPublisher creates a publisher writing below prefix
func NewPublisher(client mqtt.Client, prefix string) *Publisher {
	if prefix == "" {
		prefix = "isoreach"
	}
	return &Publisher{
		client:        client,
		publishPrefix: prefix,
		qos:           1,
		retain:        false,
	}
}

// errorMessage is the payload published when a request fails
type errorMessage struct {
	ID        string `json:"id"`
	Error     string `json:"error"`
	Timestamp int64  `json:"timestamp"`
}

// PublishResult publishes fc to {prefix}/result/{id}
func (p *Publisher) PublishResult(id string, fc *geojson.FeatureCollection) error {
	payload, err := json.Marshal(fc)
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}
	return p.publish(fmt.Sprintf("%s/result/%s", p.publishPrefix, topicID(id)), payload)
}

// PublishError publishes a failure to {prefix}/error/{id}
func (p *Publisher) PublishError(id string, reqErr error) error {
	payload, err := json.Marshal(errorMessage{
		ID:        id,
		Error:     reqErr.Error(),
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshaling error: %w", err)
	}
	return p.publish(fmt.Sprintf("%s/error/%s", p.publishPrefix, topicID(id)), payload)
}

func (p *Publisher) publish(topic string, payload []byte) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}
	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}
	return nil
}

// SetQoS sets the Quality of Service level for publishing (0, 1, or 2)
func (p *Publisher) SetQoS(qos byte) {
	if qos <= 2 {
		p.qos = qos
	}
}

// topicID keeps ids from adding topic levels or wildcards
func topicID(id string) string {
	if id == "" {
		return "anonymous"
	}
	out := []rune(id)
	for i, r := range out {
		switch r {
		case '/', '+', '#':
			out[i] = '_'
		}
	}
	return string(out)
}
