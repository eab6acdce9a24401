package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// DefaultTopic carries flag changes between processes.
const DefaultTopic = "mudra/config"

const (
	mqttQoS            = 1
	mqttConnectTimeout = 5 * time.Second
	mqttPublishTimeout = 2 * time.Second
)

// MQTTConfig configures the cross-process transport.
type MQTTConfig struct {
	Broker   string // host:port or a full tcp:// URL
	Topic    string
	ClientID string
	Logger   zerolog.Logger

	// ConnectTimeout bounds the initial connect. Zero means 5s.
	ConnectTimeout time.Duration
}

// MQTTTransport publishes changes to a broker topic and feeds changes from
// other processes back into a Receiver.
type MQTTTransport struct {
	client   mqtt.Client
	topic    string
	receiver Receiver
	logger   zerolog.Logger
}

// DialMQTT connects to the broker and subscribes to the topic. The
// subscription is renewed on every reconnect.
func DialMQTT(cfg MQTTConfig, recv Receiver) (*MQTTTransport, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt broker is required")
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = mqttConnectTimeout
	}

	t := &MQTTTransport{
		topic:    cfg.Topic,
		receiver: recv,
		logger:   cfg.Logger,
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL(cfg.Broker))
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		if err := t.subscribe(); err != nil {
			t.logger.Warn().Err(err).Str("topic", t.topic).Msg("mqtt subscribe failed")
			return
		}
		t.logger.Info().Str("broker", cfg.Broker).Str("topic", t.topic).Msg("mqtt connection established")
	})
	opts.SetConnectionLostHandler(func(c mqtt.Client, err error) {
		t.logger.Warn().Err(err).Str("broker", cfg.Broker).Msg("mqtt connection lost, will auto-reconnect")
	})

	t.client = mqtt.NewClient(opts)

	token := t.client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		t.client.Disconnect(0)
		return nil, fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		t.client.Disconnect(0)
		return nil, fmt.Errorf("mqtt connection failed: %w", err)
	}

	return t, nil
}

func brokerURL(broker string) string {
	for _, scheme := range []string{"tcp://", "ssl://", "ws://", "wss://", "mqtt://"} {
		if len(broker) >= len(scheme) && broker[:len(scheme)] == scheme {
			return broker
		}
	}
	return "tcp://" + broker
}

func (t *MQTTTransport) subscribe() error {
	token := t.client.Subscribe(t.topic, mqttQoS, t.handleMessage)
	if !token.WaitTimeout(mqttConnectTimeout) {
		return fmt.Errorf("subscribe timeout")
	}
	return token.Error()
}

func (t *MQTTTransport) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	var c Change
	if err := json.Unmarshal(msg.Payload(), &c); err != nil {
		t.logger.Warn().Err(err).Str("topic", msg.Topic()).Msg("dropping malformed relay message")
		return
	}
	t.receiver.Receive(c)
}

// Name implements Transport.
func (t *MQTTTransport) Name() string { return "mqtt" }

// Publish implements Transport.
func (t *MQTTTransport) Publish(ctx context.Context, c Change) error {
	if !t.client.IsConnected() {
		return fmt.Errorf("mqtt not connected")
	}

	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal change: %w", err)
	}

	timeout := mqttPublishTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}

	token := t.client.Publish(t.topic, mqttQoS, false, payload)
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	return nil
}

// Close disconnects from the broker.
func (t *MQTTTransport) Close() {
	if t.client != nil && t.client.IsConnected() {
		t.client.Disconnect(250)
	}
}
