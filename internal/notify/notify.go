package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"meddispense/m/domain"
)

// Publisher fans out recorded dispense events.
type Publisher interface {
	Publish(ctx context.Context, event domain.DispenseEvent) error
	Close()
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, domain.DispenseEvent) error { return nil }
func (Nop) Close()                                              {}

const publishTimeout = 5 * time.Second

// MQTTPublisher publishes events as JSON on one topic with QoS 1.
type MQTTPublisher struct {
	client mqtt.Client
	topic  string
	logger *zap.Logger
}

// NewMQTT connects to broker ("host:port" or a full URL) and returns a
// publisher for topic.
func NewMQTT(broker, topic string, logger *zap.Logger) (*MQTTPublisher, error) {
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID("dispenser-" + uuid.NewString())
	opts.SetAutoReconnect(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost, will auto-reconnect", zap.String("broker", broker), zap.Error(err))
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(publishTimeout) {
		return nil, fmt.Errorf("mqtt connection timeout: %s", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection failed: %w", err)
	}
	logger.Info("mqtt connection established", zap.String("broker", broker), zap.String("topic", topic))
	return &MQTTPublisher{client: client, topic: topic, logger: logger}, nil
}

// Payload is the wire form of an event.
func Payload(event domain.DispenseEvent) ([]byte, error) {
	return json.Marshal(struct {
		ID             int64  `json:"id"`
		MedicationName string `json:"medication_name"`
		Dosage         string `json:"dosage"`
		Timestamp      string `json:"dispense_timestamp"`
	}{
		ID:             event.ID,
		MedicationName: event.MedicationName,
		Dosage:         event.Dosage,
		Timestamp:      event.DispensedAt.UTC().Format(time.RFC3339),
	})
}

func (p *MQTTPublisher) Publish(ctx context.Context, event domain.DispenseEvent) error {
	payload, err := Payload(event)
	if err != nil {
		return err
	}
	token := p.client.Publish(p.topic, 1, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishTimeout):
		return errors.New("mqtt publish timeout")
	}
}

func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
