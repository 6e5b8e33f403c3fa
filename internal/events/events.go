package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
	"github.com/ukydev/fleetflow/internal/models"
)

// Publisher announces committed fleet changes.
type Publisher interface {
	Publish(ctx context.Context, ev models.FleetEvent)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, models.FleetEvent) {}

// MQTTPublisher publishes events as JSON to <prefix>/<organization>/events.
// Delivery failures are logged and never reach the caller: the state change
// they describe is already committed.
type MQTTPublisher struct {
	client  mqtt.Client
	prefix  string
	timeout time.Duration
}

// ConnectMQTT dials the broker.
func ConnectMQTT(broker, clientID, prefix string) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logrus.WithError(err).Warn("mqtt connection lost")
		})
	client := mqtt.NewClient(opts)
	tok := client.Connect()
	if !tok.WaitTimeout(15 * time.Second) {
		return nil, fmt.Errorf("mqtt connect to %s: timed out", broker)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", broker, err)
	}
	return NewMQTTPublisher(client, prefix), nil
}

// NewMQTTPublisher wraps a connected client.
func NewMQTTPublisher(client mqtt.Client, prefix string) *MQTTPublisher {
	if prefix == "" {
		prefix = "fleetflow"
	}
	return &MQTTPublisher{client: client, prefix: prefix, timeout: 5 * time.Second}
}

// Topic returns the topic events of an organization go to.
func (p *MQTTPublisher) Topic(orgID string) string {
	return fmt.Sprintf("%s/%s/events", p.prefix, orgID)
}

func (p *MQTTPublisher) Publish(ctx context.Context, ev models.FleetEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	log := logrus.WithFields(logrus.Fields{"event": ev.Type, "organization_id": ev.OrganizationID})
	payload, err := json.Marshal(ev)
	if err != nil {
		log.WithError(err).Error("encode event")
		return
	}
	tok := p.client.Publish(p.Topic(ev.OrganizationID), 1, false, payload)
	wait := p.timeout
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) < wait {
		wait = time.Until(dl)
	}
	if !tok.WaitTimeout(wait) {
		log.Warn("event publish timed out")
		return
	}
	if err := tok.Error(); err != nil {
		log.WithError(err).Warn("event publish failed")
		return
	}
	log.Debug("event published")
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
