package mqtt

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// RealPublisher publishes to an actual MQTT broker.
type RealPublisher struct {
	client paho.Client
	prefix string
	log    zerolog.Logger
}

// NewRealPublisher creates a publisher rooted at topicPrefix, connected
// to the given broker. A broker that is merely unreachable does not fail
// construction: paho keeps retrying in the background and messages flow
// once it connects.
func NewRealPublisher(broker, topicPrefix string, log zerolog.Logger) (*RealPublisher, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("lightning-sensor").
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.Warn().Str("broker", broker).Msg("mqtt connect pending, continuing in background")
	} else if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return &RealPublisher{
		client: client,
		prefix: topicPrefix,
		log:    log,
	}, nil
}

// Publish sends payload to the prefix plus suffix. Retained messages go
// QoS 1 (at-least-once) so the state document survives reconnects;
// everything else goes QoS 0 (at-most-once).
func (p *RealPublisher) Publish(suffix string, payload []byte, retain bool) error {
	var qos byte
	if retain {
		qos = 1
	}

	topic := p.prefix + suffix
	token := p.client.Publish(topic, qos, retain, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish to %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	return nil
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnected()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
