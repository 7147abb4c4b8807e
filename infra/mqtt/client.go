package mqtt

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kilianp07/evreco/core/model"
	"github.com/kilianp07/evreco/core/monitoring"
	coreprediction "github.com/kilianp07/evreco/core/prediction"
	"github.com/kilianp07/evreco/infra/logger"
)

// Default topics used when the configuration leaves them empty.
const (
	DefaultRequestTopic  = "evreco/model/request"
	DefaultResponseTopic = "evreco/model/response"
	DefaultStatusTopic   = "evreco/model/status"
)

// ErrorModelUnavailable is the error code a responder sends when it has no
// trained model.
const ErrorModelUnavailable = "model_unavailable"

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker        string          `json:"broker"`
	ClientID      string          `json:"client_id"`
	Username      string          `json:"username"`
	Password      string          `json:"password"`
	RequestTopic  string          `json:"request_topic"`
	ResponseTopic string          `json:"response_topic"`
	StatusTopic   string          `json:"status_topic"`
	UseTLS        bool            `json:"use_tls"`
	ClientCert    string          `json:"client_cert"`
	ClientKey     string          `json:"client_key"`
	CABundle      string          `json:"ca_bundle"`
	AuthMethod    string          `json:"auth_method"`
	QoS           map[string]byte `json:"qos"`
	LWTTopic      string          `json:"lwt_topic"`
	LWTPayload    string          `json:"lwt_payload"`
	LWTQoS        byte            `json:"lwt_qos"`
	LWTRetain     bool            `json:"lwt_retain"`
	MaxRetries    int             `json:"max_retries"`
	BackoffMS     int             `json:"backoff_ms"`
	TLSConfig     *tls.Config     `json:"-"`
}

// SetDefaults fills in topics and retry settings.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "evreco-" + uuid.NewString()[:8]
	}
	if c.RequestTopic == "" {
		c.RequestTopic = DefaultRequestTopic
	}
	if c.ResponseTopic == "" {
		c.ResponseTopic = DefaultResponseTopic
	}
	if c.StatusTopic == "" {
		c.StatusTopic = DefaultStatusTopic
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS <= 0 {
		c.BackoffMS = 100
	}
}

// Validate checks the broker settings.
func (c Config) Validate() error {
	if c.Broker == "" {
		return fmt.Errorf("mqtt: broker is required")
	}
	switch c.AuthMethod {
	case "", "username_password", "tls", "both":
	default:
		return fmt.Errorf("mqtt: unknown auth_method %q", c.AuthMethod)
	}
	for k, q := range c.QoS {
		if q > 2 {
			return fmt.Errorf("mqtt: qos %s must be 0, 1 or 2", k)
		}
	}
	return nil
}

func (c Config) qos(key string) byte {
	if q, ok := c.QoS[key]; ok {
		return q
	}
	return 0
}

// pahoClient is the subset of paho.Client used here.
type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// envelope is the wire form of a model request.
type envelope struct {
	RequestID string `json:"request_id"`
	coreprediction.Request
}

// reply is the wire form of a model response.
type reply struct {
	RequestID string          `json:"request_id"`
	Stations  json.RawMessage `json:"stations"`
	Error     string          `json:"error,omitempty"`
}

// ModelClient implements prediction.ModelClient over MQTT. Each request
// carries a request_id that the responder echoes back on the response topic.
type ModelClient struct {
	cli    pahoClient
	cfg    Config
	logger logger.Logger

	mu      sync.Mutex
	pending map[string]chan reply
	status  *coreprediction.Status

	backoff time.Duration
}

// NewModelClient connects to the broker and subscribes to the response and
// status topics.
func NewModelClient(cfg Config) (*ModelClient, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_model")
	mc := &ModelClient{
		cfg:     cfg,
		logger:  log,
		pending: make(map[string]chan reply),
		backoff: time.Duration(cfg.BackoffMS) * time.Millisecond,
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		if token := c.Subscribe(cfg.ResponseTopic, cfg.qos("response"), mc.onResponse); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe %s: %v", cfg.ResponseTopic, token.Error())
		}
		if token := c.Subscribe(cfg.StatusTopic, cfg.qos("status"), mc.onStatus); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe %s: %v", cfg.StatusTopic, token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	mc.cli = c
	return mc, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS || cfg.AuthMethod == "tls" || cfg.AuthMethod == "both" {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caBytes) {
		return nil, fmt.Errorf("ca bundle %s holds no certificate", c.CABundle)
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

func (m *ModelClient) onResponse(_ paho.Client, msg paho.Message) {
	var r reply
	if err := json.Unmarshal(msg.Payload(), &r); err != nil {
		m.logger.Errorf("failed to decode model response: %v", err)
		return
	}
	m.mu.Lock()
	ch, ok := m.pending[r.RequestID]
	m.mu.Unlock()
	if !ok {
		m.logger.Debugf("dropping response for unknown request %s", r.RequestID)
		return
	}
	select {
	case ch <- r:
	default:
	}
}

func (m *ModelClient) onStatus(_ paho.Client, msg paho.Message) {
	var body struct {
		IsTrained bool   `json:"is_trained"`
		Detail    string `json:"detail"`
	}
	if err := json.Unmarshal(msg.Payload(), &body); err != nil {
		m.logger.Warnf("failed to decode model status: %v", err)
		return
	}
	st := coreprediction.Status{Transport: "mqtt", Trained: body.IsTrained, Detail: body.Detail, CheckedAt: time.Now()}
	m.mu.Lock()
	m.status = &st
	m.mu.Unlock()
}

// Predict implements prediction.ModelClient. It publishes the request and
// blocks until the matching response arrives or ctx is done.
func (m *ModelClient) Predict(ctx context.Context, req coreprediction.Request) ([]model.ScoredStation, error) {
	id := uuid.NewString()
	payload, err := json.Marshal(envelope{RequestID: id, Request: req})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal model request: %w", err)
	}

	ch := make(chan reply, 1)
	m.mu.Lock()
	m.pending[id] = ch
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.pending, id)
		m.mu.Unlock()
	}()

	if err := m.publish(ctx, id, payload); err != nil {
		monitoring.Capture(err, "mqtt", "module", "mqtt", "request_id", id)
		return nil, err
	}

	select {
	case r := <-ch:
		return decodeReply(r)
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for model response %s: %w", id, ctx.Err())
	}
}

func (m *ModelClient) publish(ctx context.Context, id string, payload []byte) error {
	qos := m.cfg.qos("request")
	var publishErr error
	for attempt := 0; attempt <= m.cfg.MaxRetries; attempt++ {
		token := m.cli.Publish(m.cfg.RequestTopic, qos, false, payload)
		select {
		case <-token.Done():
		case <-ctx.Done():
			return fmt.Errorf("publish model request: %w", ctx.Err())
		}
		publishErr = token.Error()
		if publishErr == nil {
			m.logger.Debugf("sent model request %s to %s", id, m.cfg.RequestTopic)
			return nil
		}
		m.logger.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		if attempt == m.cfg.MaxRetries {
			break
		}
		timer := time.NewTimer(m.backoff * time.Duration(1<<attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("publish model request: %w", ctx.Err())
		case <-timer.C:
		}
	}
	return fmt.Errorf("publish model request: %w", publishErr)
}

func decodeReply(r reply) ([]model.ScoredStation, error) {
	if r.Error != "" {
		if r.Error == ErrorModelUnavailable {
			return nil, coreprediction.ErrModelUnavailable
		}
		return nil, fmt.Errorf("model responder: %s", r.Error)
	}
	data := bytes.TrimSpace(r.Stations)
	if len(data) == 0 || data[0] != '[' {
		return nil, fmt.Errorf("%w: expected a JSON array", coreprediction.ErrMalformedResponse)
	}
	var out []model.ScoredStation
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", coreprediction.ErrMalformedResponse, err)
	}
	return out, nil
}

// Status implements prediction.StatusReporter with the last status message
// retained on the status topic.
func (m *ModelClient) Status(context.Context) (coreprediction.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != nil {
		return *m.status, nil
	}
	st := coreprediction.Status{Transport: "mqtt", CheckedAt: time.Now(), Detail: "no status received"}
	if m.cli == nil || !m.cli.IsConnected() {
		st.Detail = "not connected"
	}
	return st, nil
}

// Close gracefully closes the MQTT connection.
func (m *ModelClient) Close() error {
	if m.cli != nil && m.cli.IsConnected() {
		m.cli.Disconnect(250)
	}
	return nil
}

