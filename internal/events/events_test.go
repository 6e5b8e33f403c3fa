package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleetflow/internal/models"
)

type fakeToken struct {
	mqtt.Token
	err  error
	done bool
}

func (t *fakeToken) WaitTimeout(time.Duration) bool { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic   string
	qos     byte
	payload []byte
}

type fakeClient struct {
	mqtt.Client
	sent         []published
	token        *fakeToken
	disconnected bool
}

func (c *fakeClient) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	c.sent = append(c.sent, published{topic: topic, qos: qos, payload: payload.([]byte)})
	return c.token
}

func (c *fakeClient) Disconnect(uint) { c.disconnected = true }

func TestMQTTPublisher_Publish(t *testing.T) {
	client := &fakeClient{token: &fakeToken{done: true}}
	p := NewMQTTPublisher(client, "fleet")

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	p.Publish(context.Background(), models.FleetEvent{
		Type:           models.EventTripDispatched,
		OrganizationID: "org1",
		TripID:         "t1",
		At:             at,
	})

	require.Len(t, client.sent, 1)
	assert.Equal(t, "fleet/org1/events", client.sent[0].topic)
	assert.Equal(t, byte(1), client.sent[0].qos)

	var ev models.FleetEvent
	require.NoError(t, json.Unmarshal(client.sent[0].payload, &ev))
	assert.Equal(t, models.EventTripDispatched, ev.Type)
	assert.Equal(t, "t1", ev.TripID)
	assert.True(t, at.Equal(ev.At))
}

func TestMQTTPublisher_FailuresAreSwallowed(t *testing.T) {
	tests := []struct {
		name  string
		token *fakeToken
	}{
		{"timeout", &fakeToken{done: false}},
		{"error", &fakeToken{done: true, err: errors.New("broker gone")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{token: tt.token}
			p := NewMQTTPublisher(client, "")
			assert.NotPanics(t, func() {
				p.Publish(context.Background(), models.FleetEvent{Type: models.EventTripCompleted, OrganizationID: "o"})
			})
			require.Len(t, client.sent, 1)
			assert.Equal(t, "fleetflow/o/events", client.sent[0].topic)
		})
	}
}

func TestMQTTPublisher_StampsTime(t *testing.T) {
	client := &fakeClient{token: &fakeToken{done: true}}
	p := NewMQTTPublisher(client, "x")
	p.Publish(context.Background(), models.FleetEvent{Type: models.EventMaintenanceOpened, OrganizationID: "o"})

	var ev models.FleetEvent
	require.NoError(t, json.Unmarshal(client.sent[0].payload, &ev))
	assert.False(t, ev.At.IsZero())

	p.Close()
	assert.True(t, client.disconnected)
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NotPanics(t, func() { p.Publish(context.Background(), models.FleetEvent{}) })
}
