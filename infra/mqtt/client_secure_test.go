package mqtt

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/evreco/core/model"
	coreprediction "github.com/kilianp07/evreco/core/prediction"
)

// helper to generate self-signed cert
func generateCert(t *testing.T) (certFile, keyFile, caFile string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	tmpl := x509.Certificate{SerialNumber: big.NewInt(1), Subject: pkix.Name{CommonName: "test"}, NotBefore: time.Now(), NotAfter: time.Now().Add(time.Hour)}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("create cert: %v", err)
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})

	dir := t.TempDir()
	certFile = dir + "/cert.pem"
	keyFile = dir + "/key.pem"
	caFile = dir + "/ca.pem"
	for path, data := range map[string][]byte{certFile: certPEM, keyFile: keyPEM, caFile: certPEM} {
		if err := os.WriteFile(path, data, 0o600); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	return
}

func testRequest() coreprediction.Request {
	stations := []model.Station{
		{ID: model.IntID(1), Name: "A"},
		{ID: model.StringID("b"), Name: "B"},
	}
	return coreprediction.NewRequest(stations, model.UserPreferences{Latitude: 48.8, Longitude: 2.3, MaxDistance: 10, Budget: 50}, time.Now())
}

// answer replies to every request published on the request topic with
// rating for each station.
func answer(mc *mockClient, rating float64) {
	mc.onPublish = func(topic string, payload []byte) {
		if topic != DefaultRequestTopic {
			return
		}
		var env envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			return
		}
		scored := make([]model.ScoredStation, 0, len(env.Stations))
		for _, st := range env.Stations {
			scored = append(scored, model.ScoredStation{Station: st, PredictedRating: rating})
		}
		data, _ := json.Marshal(scored)
		out, _ := json.Marshal(reply{RequestID: env.RequestID, Stations: data})
		go mc.deliver(DefaultResponseTopic, out)
	}
}

func TestLoadTLSConfig(t *testing.T) {
	cert, key, ca := generateCert(t)
	cfg := Config{UseTLS: true, ClientCert: cert, ClientKey: key, CABundle: ca}
	tlsCfg, err := cfg.LoadTLSConfig()
	if err != nil {
		t.Fatalf("load tls: %v", err)
	}
	if len(tlsCfg.Certificates) == 0 {
		t.Fatalf("no certs loaded")
	}
	if tlsCfg.RootCAs == nil {
		t.Fatalf("no root CAs")
	}
}

func TestLoadTLSConfigMissingFiles(t *testing.T) {
	_, err := NewClientOptions(Config{Broker: "tcp://localhost:1883", UseTLS: true})
	require.Error(t, err)
}

func TestNewClientOptionsAuth(t *testing.T) {
	opts, err := NewClientOptions(Config{Broker: "tcp://localhost:1883", ClientID: "id", Username: "u", Password: "p"})
	if err != nil {
		t.Fatalf("opts: %v", err)
	}
	if opts.Username != "u" || opts.Password != "p" {
		t.Fatalf("auth not set")
	}
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()
	assert.Equal(t, DefaultRequestTopic, cfg.RequestTopic)
	assert.Equal(t, DefaultResponseTopic, cfg.ResponseTopic)
	assert.NotEmpty(t, cfg.ClientID)
	assert.Error(t, cfg.Validate())

	cfg.Broker = "tcp://localhost:1883"
	assert.NoError(t, cfg.Validate())
	cfg.QoS = map[string]byte{"request": 3}
	assert.Error(t, cfg.Validate())
	cfg.QoS = nil
	cfg.AuthMethod = "kerberos"
	assert.Error(t, cfg.Validate())
}

func TestQoSSettings(t *testing.T) {
	mc := &mockClient{}
	useMock(t, mc)
	answer(mc, 4)
	cfg := Config{Broker: "tcp://localhost:1883", ClientID: "id", QoS: map[string]byte{"request": 2, "response": 1}}
	cli, err := NewModelClient(cfg)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if len(mc.subscribed) == 0 || mc.subscribed[0].topic != DefaultResponseTopic || mc.subscribed[0].qos != 1 {
		t.Fatalf("subscribe qos not applied")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	out, err := cli.Predict(ctx, testRequest())
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 4.0, out[0].PredictedRating)

	sent := mc.messages()
	if len(sent) == 0 || sent[0].qos != 2 {
		t.Fatalf("publish qos not applied")
	}
	var env envelope
	require.NoError(t, json.Unmarshal(sent[0].payload, &env))
	assert.NotEmpty(t, env.RequestID)
	assert.Len(t, env.Stations, 2)
	assert.NotEmpty(t, env.Timestamp)
}

func TestLWTConfigured(t *testing.T) {
	mc := &mockClient{}
	useMock(t, mc)
	cfg := Config{Broker: "tcp://localhost:1883", ClientID: "id", LWTTopic: "lwt", LWTPayload: "bye", LWTQoS: 1}
	cli, err := NewModelClient(cfg)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if !mc.opts.WillEnabled {
		t.Fatalf("will not enabled")
	}
	if mc.opts.WillTopic != "lwt" || string(mc.opts.WillPayload) != "bye" {
		t.Fatalf("will options incorrect")
	}
	_ = cli.Close()
	if len(mc.messages()) != 0 {
		t.Fatalf("unexpected publish on disconnect")
	}
}

func TestRetryLogic(t *testing.T) {
	mc := &mockClient{publishErrs: []error{fmt.Errorf("net fail"), nil}}
	useMock(t, mc)
	answer(mc, 3)
	cfg := Config{Broker: "tcp://localhost:1883", ClientID: "id", MaxRetries: 1, BackoffMS: 1}
	cli, err := NewModelClient(cfg)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := cli.Predict(ctx, testRequest()); err != nil {
		t.Fatalf("predict: %v", err)
	}
	if len(mc.messages()) != 2 {
		t.Fatalf("expected retries")
	}
}

func TestPredictTimeoutReleasesWaiter(t *testing.T) {
	mc := &mockClient{}
	useMock(t, mc)
	cli, err := NewModelClient(Config{Broker: "tcp://localhost:1883"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = cli.Predict(ctx, testRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	cli.mu.Lock()
	defer cli.mu.Unlock()
	assert.Empty(t, cli.pending)
}

func TestPredictStalledPublishHonoursDeadline(t *testing.T) {
	mc := &mockClient{stall: true}
	useMock(t, mc)
	cli, err := NewModelClient(Config{Broker: "tcp://localhost:1883", QoS: map[string]byte{"request": 1}})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = cli.Predict(ctx, testRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	cli.mu.Lock()
	defer cli.mu.Unlock()
	assert.Empty(t, cli.pending)
}

func TestPredictErrorReplies(t *testing.T) {
	cases := []struct {
		name  string
		reply func(id string) reply
		want  error
	}{
		{"unavailable", func(id string) reply { return reply{RequestID: id, Error: ErrorModelUnavailable} }, coreprediction.ErrModelUnavailable},
		{"object", func(id string) reply { return reply{RequestID: id, Stations: json.RawMessage(`{"a":1}`)} }, coreprediction.ErrMalformedResponse},
		{"missing", func(id string) reply { return reply{RequestID: id} }, coreprediction.ErrMalformedResponse},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mc := &mockClient{}
			useMock(t, mc)
			mc.onPublish = func(_ string, payload []byte) {
				var env envelope
				_ = json.Unmarshal(payload, &env)
				out, _ := json.Marshal(tc.reply(env.RequestID))
				go mc.deliver(DefaultResponseTopic, out)
			}
			cli, err := NewModelClient(Config{Broker: "tcp://localhost:1883"})
			require.NoError(t, err)
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_, err = cli.Predict(ctx, testRequest())
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestUnknownResponseIgnored(t *testing.T) {
	mc := &mockClient{}
	useMock(t, mc)
	mc.onPublish = func(_ string, payload []byte) {
		var env envelope
		_ = json.Unmarshal(payload, &env)
		stray, _ := json.Marshal(reply{RequestID: "someone-else", Stations: json.RawMessage(`[]`)})
		mc.deliver(DefaultResponseTopic, stray)
		mc.deliver(DefaultResponseTopic, []byte("not json"))
		good, _ := json.Marshal(reply{RequestID: env.RequestID, Stations: json.RawMessage(`[{"id":1,"predicted_rating":2},{"id":"b","predicted_rating":5}]`)})
		go mc.deliver(DefaultResponseTopic, good)
	}
	cli, err := NewModelClient(Config{Broker: "tcp://localhost:1883"})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	out, err := cli.Predict(ctx, testRequest())
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "1", out[0].ID.String())
	assert.Equal(t, 5.0, out[1].PredictedRating)
}

func TestStatusFromStatusTopic(t *testing.T) {
	mc := &mockClient{}
	useMock(t, mc)
	cli, err := NewModelClient(Config{Broker: "tcp://localhost:1883"})
	require.NoError(t, err)

	st, err := cli.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, st.Trained)
	assert.Equal(t, "mqtt", st.Transport)

	mc.deliver(DefaultStatusTopic, []byte(`{"is_trained":true,"detail":"rf-v2"}`))
	st, err = cli.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, st.Trained)
	assert.Equal(t, "rf-v2", st.Detail)
}

func TestModelClientThroughResponder(t *testing.T) {
	b := newBroker()
	responderSide := &mockClient{broker: b}
	clientSide := &mockClient{broker: b}
	useMock(t, responderSide)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	backend := &coreprediction.MockModelClient{Ratings: map[string]float64{"1": 4.5}, Default: 2}
	_, err := NewResponder(ctx, Config{Broker: "tcp://localhost:1883"}, backend, time.Second)
	require.NoError(t, err)

	useMock(t, clientSide)
	cli, err := NewModelClient(Config{Broker: "tcp://localhost:1883"})
	require.NoError(t, err)

	callCtx, callCancel := context.WithTimeout(ctx, time.Second)
	defer callCancel()
	out, err := cli.Predict(callCtx, testRequest())
	require.NoError(t, err)
	require.Len(t, out, 2)
	ratings := map[string]float64{}
	for _, s := range out {
		ratings[s.ID.String()] = s.PredictedRating
	}
	assert.Equal(t, map[string]float64{"1": 4.5, "b": 2}, ratings)
	assert.Equal(t, 1, backend.Calls())
}

func TestResponderForwardsUnavailable(t *testing.T) {
	mc := &mockClient{}
	useMock(t, mc)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	backend := &coreprediction.MockModelClient{Err: coreprediction.ErrModelUnavailable}
	_, err := NewResponder(ctx, Config{Broker: "tcp://localhost:1883"}, backend, time.Second)
	require.NoError(t, err)

	req, _ := json.Marshal(envelope{RequestID: "r1", Request: testRequest()})
	mc.deliver(DefaultRequestTopic, req)

	require.Eventually(t, func() bool {
		for _, m := range mc.messages() {
			if m.topic == DefaultResponseTopic {
				var r reply
				return json.Unmarshal(m.payload, &r) == nil && r.RequestID == "r1" && r.Error == ErrorModelUnavailable
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}
