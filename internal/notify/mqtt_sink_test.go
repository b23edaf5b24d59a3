package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/fleetdesk/leaveguard/internal/app"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToken struct {
	err  error
	done chan struct{}
}

func newFakeToken(err error, complete bool) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	if complete {
		close(t.done)
	}
	return t
}

func (t *fakeToken) Wait() bool                     { <-t.done; return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic   string
	qos     byte
	payload []byte
}

type fakePaho struct {
	published    []published
	err          error
	hang         bool
	disconnected bool
}

func (f *fakePaho) IsConnected() bool { return true }
func (f *fakePaho) Disconnect(uint)   { f.disconnected = true }
func (f *fakePaho) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	f.published = append(f.published, published{topic: topic, qos: qos, payload: payload.([]byte)})
	return newFakeToken(f.err, !f.hang)
}

func withFakeClient(t *testing.T, fake *fakePaho) {
	t.Helper()
	orig := newMQTTClient
	newMQTTClient = func(MQTTConfig) (pahoClient, error) { return fake, nil }
	t.Cleanup(func() { newMQTTClient = orig })
}

func TestMQTTSink_PublishesJSONToTypedTopic(t *testing.T) {
	fake := &fakePaho{}
	withFakeClient(t, fake)

	sink, err := NewMQTTSink(MQTTConfig{Enabled: true, Broker: "tcp://broker:1883", TopicPrefix: "fleet/leave/", QoS: 1})
	require.NoError(t, err)

	e := app.Event{ID: "e1", Type: app.EventSuggestionAccepted, ConflictID: "c1", OccurredAt: time.Date(2025, 3, 9, 8, 0, 0, 0, time.UTC)}
	require.NoError(t, sink.Publish(context.Background(), e))

	require.Len(t, fake.published, 1)
	assert.Equal(t, "fleet/leave/suggestion_accepted", fake.published[0].topic)
	assert.Equal(t, byte(1), fake.published[0].qos)

	var decoded app.Event
	require.NoError(t, json.Unmarshal(fake.published[0].payload, &decoded))
	assert.Equal(t, "c1", decoded.ConflictID)

	sink.Close()
	assert.True(t, fake.disconnected)
}

func TestMQTTSink_PublishError(t *testing.T) {
	fake := &fakePaho{err: errors.New("not authorised")}
	withFakeClient(t, fake)

	sink, err := NewMQTTSink(MQTTConfig{Enabled: true, Broker: "tcp://broker:1883"})
	require.NoError(t, err)
	err = sink.Publish(context.Background(), app.Event{ID: "e1", Type: app.EventLeaveCreated})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not authorised")
	assert.Equal(t, "leaveguard/events/leave_created", fake.published[0].topic)
}

func TestMQTTSink_PublishTimeout(t *testing.T) {
	fake := &fakePaho{hang: true}
	withFakeClient(t, fake)

	sink, err := NewMQTTSink(MQTTConfig{Enabled: true, Broker: "tcp://broker:1883", PublishTimeoutMS: 10})
	require.NoError(t, err)
	err = sink.Publish(context.Background(), app.Event{ID: "e1", Type: app.EventLeaveCreated})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestMQTTConfig_Validate(t *testing.T) {
	assert.NoError(t, MQTTConfig{}.Validate())
	assert.Error(t, MQTTConfig{Enabled: true}.Validate())
	assert.Error(t, MQTTConfig{Enabled: true, Broker: "tcp://b", QoS: 3}.Validate())
}

func TestNewMQTTSink_ConnectError(t *testing.T) {
	orig := newMQTTClient
	newMQTTClient = func(MQTTConfig) (pahoClient, error) { return nil, errors.New("refused") }
	t.Cleanup(func() { newMQTTClient = orig })

	_, err := NewMQTTSink(MQTTConfig{Enabled: true, Broker: "tcp://broker:1883"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused")
}
