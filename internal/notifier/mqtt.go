package notifier

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTNotifier publishes events as JSON to an MQTT topic, e.g. for a home
// automation system to consume.
type MQTTNotifier struct {
	client mqtt.Client
	topic  string
	logger *slog.Logger
}

var _ Notifier = &MQTTNotifier{}

// NewMQTTNotifier connects to the broker. If the broker is down, the client
// keeps retrying in the background and the notifier is returned anyway.
func NewMQTTNotifier(broker, topic string, logger *slog.Logger) (*MQTTNotifier, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID("restmode").
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(time.Minute).
		SetWriteTimeout(10 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("mqtt connection lost", "err", err)
		})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.WaitTimeout(10*time.Second) && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return &MQTTNotifier{client: client, topic: topic, logger: logger}, nil
}

func (m *MQTTNotifier) Notify(e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		m.logger.Error("failed to encode event", "err", err)
		return
	}
	token := m.client.Publish(m.topic, 1, false, payload)
	go func() {
		if token.Wait() && token.Error() != nil {
			m.logger.Error("mqtt publish failed", "err", token.Error())
		}
	}()
}

// Close disconnects from the broker, allowing in-flight publishes to drain.
func (m *MQTTNotifier) Close() {
	m.client.Disconnect(250)
}
