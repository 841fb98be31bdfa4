package isochrone

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitMQTT_Disabled(t *testing.T) {
	t.Setenv("MQTT_BROKER", "")
	client := InitMQTT(MQTTConfig{RequestTopic: "isoreach/request"}, nil, nil)
	assert.Nil(t, client)
}

func TestInitMQTT_ReturnsImmediately(t *testing.T) {
	t.Setenv("MQTT_BROKER", "tcp://127.0.0.1:1")

	done := make(chan *MQTTClient, 1)
	go func() {
		done <- InitMQTT(MQTTConfig{RequestTopic: "isoreach/request"}, nil, nil)
	}()

	select {
	case c := <-done:
		require.NotNil(t, c)
		assert.False(t, c.IsConnected())
		assert.Equal(t, "tcp://127.0.0.1:1", c.config.Broker, "env overrides config")
	case <-time.After(2 * time.Second):
		t.Fatal("InitMQTT blocked on connect")
	}
}

func TestMQTTClient_IsConnected(t *testing.T) {
	client := &MQTTClient{}
	assert.False(t, client.IsConnected(), "New client should not be connected")

	client.setConnected(true)
	assert.True(t, client.IsConnected())

	client.setConnected(false)
	assert.False(t, client.IsConnected())
}

func TestProfileFromTopic(t *testing.T) {
	tests := []struct {
		name         string
		requestTopic string
		topic        string
		want         string
	}{
		{"profile segment", "isoreach/request", "isoreach/request/cycling-regular", "cycling-regular"},
		{"trailing slash in config", "isoreach/request/", "isoreach/request/foot-walking", "foot-walking"},
		{"bare topic", "isoreach/request", "isoreach/request", ""},
		{"nested segments", "isoreach/request", "isoreach/request/a/b", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, profileFromTopic(tt.requestTopic, tt.topic))
		})
	}
}

func TestMQTTClient_OnConnectSubscribes(t *testing.T) {
	mock := NewMockClient()
	mock.SetConnected(true)

	var mu sync.Mutex
	var gotProfile string
	var gotPayload []byte
	handler := func(profile string, payload []byte) {
		mu.Lock()
		defer mu.Unlock()
		gotProfile = profile
		gotPayload = payload
	}

	c := newMQTTClientWith(mock, MQTTConfig{RequestTopic: "isoreach/request"}, handler)
	c.onConnect(mock)

	assert.True(t, c.IsConnected())
	assert.Equal(t, []string{"isoreach/request/#"}, mock.Subscriptions())

	mock.SimulateMessage("isoreach/request/#", "isoreach/request/driving-car", []byte(`{"range":[60]}`))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "driving-car", gotProfile)
	assert.Equal(t, `{"range":[60]}`, string(gotPayload))
}

func TestMQTTClient_OnConnectSubscribeError(t *testing.T) {
	mock := NewMockClient()
	mock.SetConnected(true)
	mock.SetSubscribeError(errors.New("not authorized"))

	c := newMQTTClientWith(mock, MQTTConfig{RequestTopic: "isoreach/request"}, nil)
	c.onConnect(mock)

	assert.Empty(t, mock.Subscriptions())
	assert.True(t, c.IsConnected(), "the connection itself is up")
}

func TestMQTTClient_NilHandler(t *testing.T) {
	mock := NewMockClient()
	mock.SetConnected(true)

	c := newMQTTClientWith(mock, MQTTConfig{RequestTopic: "isoreach/request"}, nil)
	c.onConnect(mock)

	// must not panic
	mock.SimulateMessage("isoreach/request/#", "isoreach/request", []byte("{}"))
}

func TestMQTTClient_Disconnect(t *testing.T) {
	mock := NewMockClient()
	mock.SetConnected(true)

	c := newMQTTClientWith(mock, MQTTConfig{}, nil)
	c.setConnected(true)
	assert.Equal(t, mock, c.GetClient())

	c.Disconnect()
	assert.False(t, c.IsConnected())
	assert.False(t, mock.IsConnected())
}

func TestMQTTClient_ConcurrentAccess(t *testing.T) {
	c := &MQTTClient{}
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(v bool) {
			defer wg.Done()
			c.setConnected(v)
		}(i%2 == 0)
		go func() {
			defer wg.Done()
			_ = c.IsConnected()
		}()
	}
	wg.Wait()
}
