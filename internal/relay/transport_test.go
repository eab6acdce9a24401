package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/mudra/internal/store"
)

func TestOverlayPusher_Publish(t *testing.T) {
	var got OverlayUpdate
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	p := NewOverlayPusher(server.URL)
	err := p.Publish(context.Background(), Change{Key: store.KeyHybridMode, Old: true, New: false})
	require.NoError(t, err)
	assert.False(t, got.HybridMode)

	require.NoError(t, p.Publish(context.Background(), Change{Key: "other", New: true}))
	assert.Equal(t, 1, calls, "only hybrid mode is pushed")
}

func TestOverlayPusher_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := Change{Key: store.KeyHybridMode, New: true}
	assert.Error(t, NewOverlayPusher(server.URL).Publish(context.Background(), c))

	url := server.URL
	server.Close()
	assert.Error(t, NewOverlayPusher(url).Publish(context.Background(), c))
}

func TestOverlayPusher_UnreachableDoesNotFailSet(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	r := newTestRelay(t, newMemSettings())
	r.AddTransport(NewOverlayPusher(url))

	_, err := r.SetHybridMode(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, r.HybridMode())
}

func newFakeMQTT(broker *fakeBroker, recv Receiver) *MQTTTransport {
	return &MQTTTransport{
		client:   &fakeMQTTClient{broker: broker, connected: true},
		topic:    DefaultTopic,
		receiver: recv,
		logger:   zerolog.Nop(),
	}
}

func TestMQTTTransport_CrossProcessConvergence(t *testing.T) {
	broker := newFakeBroker()

	// Each relay has its own store, as two processes on different
	// machines would.
	a := newTestRelay(t, newMemSettings())
	b := newTestRelay(t, newMemSettings())

	ta := newFakeMQTT(broker, a)
	tb := newFakeMQTT(broker, b)
	require.NoError(t, ta.subscribe())
	require.NoError(t, tb.subscribe())
	a.AddTransport(ta)
	b.AddTransport(tb)

	aChanges := 0
	a.Subscribe(func(Change) { aChanges++ })

	_, err := a.SetHybridMode(context.Background(), false)
	require.NoError(t, err)

	assert.False(t, b.HybridMode())
	assert.Equal(t, 1, aChanges, "a ignores its own echo")

	_, err = b.SetHybridMode(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, a.HybridMode())
}

func TestMQTTTransport_DropsMalformed(t *testing.T) {
	broker := newFakeBroker()
	r := newTestRelay(t, newMemSettings())
	tr := newFakeMQTT(broker, r)
	require.NoError(t, tr.subscribe())

	other := &fakeMQTTClient{broker: broker, connected: true}
	other.Publish(DefaultTopic, 1, false, []byte(`{"key":`))

	assert.True(t, r.HybridMode())
}

func TestMQTTTransport_NotConnected(t *testing.T) {
	tr := &MQTTTransport{
		client: &fakeMQTTClient{broker: newFakeBroker()},
		topic:  DefaultTopic,
		logger: zerolog.Nop(),
	}
	assert.Error(t, tr.Publish(context.Background(), Change{Key: store.KeyHybridMode}))
	assert.Equal(t, "mqtt", tr.Name())
}

func TestBrokerURL(t *testing.T) {
	assert.Equal(t, "tcp://localhost:1883", brokerURL("localhost:1883"))
	assert.Equal(t, "ssl://broker:8883", brokerURL("ssl://broker:8883"))
}

func TestDialMQTT_RequiresBroker(t *testing.T) {
	_, err := DialMQTT(MQTTConfig{}, nil)
	assert.Error(t, err)
}

func TestDialMQTT_SilentBrokerTimesOutAndHangsUp(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	start := time.Now()
	_, err = DialMQTT(MQTTConfig{
		Broker:         ln.Addr().String(),
		ClientID:       "silent-test",
		Logger:         zerolog.Nop(),
		ConnectTimeout: 200 * time.Millisecond,
	}, nil)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 3*time.Second)

	var conn net.Conn
	select {
	case conn = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("client never dialed the broker")
	}
	defer conn.Close()

	// The client must not keep the half-open session alive.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	buf := make([]byte, 512)
	for {
		if _, err := conn.Read(buf); err != nil {
			var ne net.Error
			assert.False(t, errors.As(err, &ne) && ne.Timeout(), "expected the client to hang up, got %v", err)
			return
		}
	}
}
