package mqtt

import (
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

type sent struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// broker routes messages between mock clients sharing it.
type broker struct {
	mu   sync.Mutex
	subs map[string][]sub
}

type sub struct {
	client *mockClient
	h      paho.MessageHandler
}

func newBroker() *broker { return &broker{subs: make(map[string][]sub)} }

func (b *broker) deliver(topic string, payload []byte) {
	b.mu.Lock()
	targets := append([]sub(nil), b.subs[topic]...)
	b.mu.Unlock()
	for _, s := range targets {
		go s.h(s.client, mockMessage{topic: topic, p: payload})
	}
}

// mockClient implements pahoClient for tests
type mockClient struct {
	opts   *paho.ClientOptions
	broker *broker

	mu         sync.Mutex
	subscribed []struct {
		topic string
		qos   byte
	}
	handlers    map[string]paho.MessageHandler
	published   []sent
	publishErrs []error
	// stall makes every publish token stay incomplete, as with a QoS 1
	// publish whose PUBACK never arrives.
	stall bool
	// onPublish is called after a successful publish.
	onPublish func(topic string, payload []byte)
}

func (m *mockClient) IsConnected() bool { return true }
func (m *mockClient) Connect() paho.Token {
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(m)
	}
	return &dummyToken{}
}
func (m *mockClient) Disconnect(uint) {}
func (m *mockClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	data, _ := payload.([]byte)
	m.mu.Lock()
	m.published = append(m.published, sent{topic: topic, qos: qos, retained: retained, payload: data})
	if m.stall {
		m.mu.Unlock()
		return stalledToken{done: make(chan struct{})}
	}
	if len(m.publishErrs) > 0 {
		err := m.publishErrs[0]
		m.publishErrs = m.publishErrs[1:]
		if err != nil {
			m.mu.Unlock()
			return &dummyToken{err: err}
		}
	}
	hook := m.onPublish
	m.mu.Unlock()
	if hook != nil {
		hook(topic, data)
	}
	if m.broker != nil {
		m.broker.deliver(topic, data)
	}
	return &dummyToken{}
}
func (m *mockClient) Subscribe(topic string, qos byte, h paho.MessageHandler) paho.Token {
	m.mu.Lock()
	m.subscribed = append(m.subscribed, struct {
		topic string
		qos   byte
	}{topic, qos})
	if m.handlers == nil {
		m.handlers = make(map[string]paho.MessageHandler)
	}
	m.handlers[topic] = h
	m.mu.Unlock()
	if m.broker != nil {
		m.broker.mu.Lock()
		m.broker.subs[topic] = append(m.broker.subs[topic], sub{client: m, h: h})
		m.broker.mu.Unlock()
	}
	return &dummyToken{}
}
func (m *mockClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return &dummyToken{}
}
func (m *mockClient) Unsubscribe(...string) paho.Token        { return &dummyToken{} }
func (m *mockClient) AddRoute(string, paho.MessageHandler)    {}
func (m *mockClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }
func (m *mockClient) IsConnectionOpen() bool                  { return true }

// deliver invokes the handler subscribed to topic.
func (m *mockClient) deliver(topic string, payload []byte) {
	m.mu.Lock()
	h := m.handlers[topic]
	m.mu.Unlock()
	if h != nil {
		h(m, mockMessage{topic: topic, p: payload})
	}
}

func (m *mockClient) messages() []sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sent(nil), m.published...)
}

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }

// stalledToken never completes.
type stalledToken struct{ done chan struct{} }

func (s stalledToken) Wait() bool                       { <-s.done; return true }
func (s stalledToken) WaitTimeout(d time.Duration) bool { time.Sleep(d); return false }
func (s stalledToken) Done() <-chan struct{}            { return s.done }
func (s stalledToken) Error() error                     { return nil }

type mockMessage struct {
	topic string
	p     []byte
}

func (m mockMessage) Duplicate() bool   { return false }
func (m mockMessage) Qos() byte         { return 0 }
func (m mockMessage) Retained() bool    { return false }
func (m mockMessage) Topic() string     { return m.topic }
func (m mockMessage) MessageID() uint16 { return 0 }
func (m mockMessage) Payload() []byte   { return m.p }
func (m mockMessage) Ack()              {}

// useMock installs mc as the client returned by newMQTTClient until the test ends.
func useMock(t interface{ Cleanup(func()) }, mc *mockClient) {
	prev := newMQTTClient
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() { newMQTTClient = prev })
}
