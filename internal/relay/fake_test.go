package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// memSettings is an in-memory Settings with switchable failures.
type memSettings struct {
	mu       sync.Mutex
	values   map[string]bool
	readErr  error
	writeErr error
}

func newMemSettings() *memSettings {
	return &memSettings{values: make(map[string]bool)}
}

func (m *memSettings) GetBool(key string, def bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return def, m.readErr
	}
	v, ok := m.values[key]
	if !ok {
		return def, nil
	}
	return v, nil
}

func (m *memSettings) SetBool(key string, value bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.values[key] = value
	return nil
}

func (m *memSettings) get(key string) (bool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok
}

// recordingTransport remembers published changes and optionally fails.
type recordingTransport struct {
	mu      sync.Mutex
	changes []Change
	err     error
}

func (t *recordingTransport) Name() string { return "recording" }

func (t *recordingTransport) Publish(_ context.Context, c Change) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.changes = append(t.changes, c)
	return t.err
}

func (t *recordingTransport) published() []Change {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Change(nil), t.changes...)
}

// fakeRecorder records recording-state calls.
type fakeRecorder struct {
	mu    sync.Mutex
	calls []bool
	err   error
	state bool
}

func (f *fakeRecorder) SetRecordingState(_ context.Context, recording bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recording)
	if f.err != nil {
		return f.err
	}
	f.state = recording
	return nil
}

func (f *fakeRecorder) recording() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// fakeBroker delivers published payloads to every subscriber synchronously.
type fakeBroker struct {
	mu   sync.Mutex
	subs map[string][]mqtt.MessageHandler
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{subs: make(map[string][]mqtt.MessageHandler)}
}

type fakeMQTTClient struct {
	mqtt.Client
	broker    *fakeBroker
	connected bool
}

func (c *fakeMQTTClient) IsConnected() bool { return c.connected }

func (c *fakeMQTTClient) Subscribe(topic string, _ byte, cb mqtt.MessageHandler) mqtt.Token {
	c.broker.mu.Lock()
	c.broker.subs[topic] = append(c.broker.subs[topic], cb)
	c.broker.mu.Unlock()
	return doneToken{}
}

func (c *fakeMQTTClient) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	var data []byte
	switch p := payload.(type) {
	case []byte:
		data = p
	case string:
		data = []byte(p)
	default:
		return doneToken{err: errors.New("unsupported payload")}
	}

	c.broker.mu.Lock()
	handlers := append([]mqtt.MessageHandler(nil), c.broker.subs[topic]...)
	c.broker.mu.Unlock()

	for _, h := range handlers {
		h(c, fakeMessage{topic: topic, payload: data})
	}
	return doneToken{}
}

type fakeMessage struct {
	mqtt.Message
	topic   string
	payload []byte
}

func (m fakeMessage) Topic() string   { return m.topic }
func (m fakeMessage) Payload() []byte { return m.payload }

type doneToken struct {
	err error
}

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }

func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
