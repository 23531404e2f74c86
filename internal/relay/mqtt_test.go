package relay

import (
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wsprbridge/internal/telemetry"
)

type fakeToken struct {
	err  error
	done chan struct{}
}

func newFakeToken(err error) *fakeToken {
	done := make(chan struct{})
	close(done)
	return &fakeToken{err: err, done: done}
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// fakeClient implements the calls the publisher makes
type fakeClient struct {
	mqtt.Client
	connected    bool
	connectErr   error
	connects     int
	disconnected bool
	messages     []published
}

func (c *fakeClient) IsConnected() bool { return c.connected }

func (c *fakeClient) Connect() mqtt.Token {
	c.connects++
	if c.connectErr == nil {
		c.connected = true
	}
	return newFakeToken(c.connectErr)
}

func (c *fakeClient) Disconnect(uint) {
	c.connected = false
	c.disconnected = true
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.messages = append(c.messages, published{topic, qos, retained, payload.([]byte)})
	return newFakeToken(nil)
}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestTopic(t *testing.T) {
	tests := []struct {
		prefix   string
		payload  string
		expected string
	}{
		{"wsprbridge", "TEST-1", "wsprbridge/TEST-1/telemetry"},
		{"balloons/", "TEST-1", "balloons/TEST-1/telemetry"},
		{"wsprbridge", "A/B+C#", "wsprbridge/A_B_C_/telemetry"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, Topic(tt.prefix, tt.payload))
		})
	}
}

func TestPublisher_Publish(t *testing.T) {
	client := &fakeClient{}
	pub := NewPublisherWithClient(client, "wsprbridge", newTestLogger())

	temp := -50
	tel := telemetry.Telemetry{
		Format:      telemetry.FormatTraquito,
		Time:        time.Date(2024, 5, 12, 10, 4, 0, 0, time.UTC),
		Grid:        "JO91ho",
		Latitude:    51.6041667,
		Longitude:   18.625,
		Altitude:    7880,
		Temperature: &temp,
	}

	require.NoError(t, pub.Publish(NewRecord("TEST-1", tel, []string{"DL1ABC"})))
	require.NoError(t, pub.Publish(NewRecord("TEST-1", tel, nil)))

	assert.Equal(t, 1, client.connects)
	require.Len(t, client.messages, 2)

	msg := client.messages[0]
	assert.Equal(t, "wsprbridge/TEST-1/telemetry", msg.topic)
	assert.Equal(t, byte(0), msg.qos)
	assert.True(t, msg.retained)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.payload, &doc))
	assert.Equal(t, "traquito", doc["format"])
	assert.Equal(t, "JO91ho", doc["grid"])
	assert.Equal(t, float64(7880), doc["alt"])
	assert.Equal(t, float64(-50), doc["temp"])
	assert.Equal(t, "2024-05-12T10:04:00Z", doc["time"])
	assert.NotContains(t, doc, "batt")

	pub.Close()
	assert.True(t, client.disconnected)
}

func TestPublisher_ConnectFailure(t *testing.T) {
	client := &fakeClient{connectErr: errors.New("connection refused")}
	pub := NewPublisherWithClient(client, "wsprbridge", newTestLogger())

	err := pub.Publish(Record{Payload: "TEST-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Empty(t, client.messages)

	pub.Close()
	assert.False(t, client.disconnected)
}
