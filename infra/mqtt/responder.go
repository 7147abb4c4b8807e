package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/evreco/core/model"
	coreprediction "github.com/kilianp07/evreco/core/prediction"
	"github.com/kilianp07/evreco/infra/logger"
)

// Responder answers model requests published on the request topic with a
// local prediction.ModelClient. It bridges a subprocess or HTTP model onto
// the broker.
type Responder struct {
	cli     pahoClient
	cfg     Config
	backend coreprediction.ModelClient
	timeout time.Duration
	logger  logger.Logger
	ctx     context.Context
}

// NewResponder connects to the broker and starts serving requests until ctx
// is cancelled. timeout bounds each backend call.
func NewResponder(ctx context.Context, cfg Config, backend coreprediction.ModelClient, timeout time.Duration) (*Responder, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	r := &Responder{
		cfg:     cfg,
		backend: backend,
		timeout: timeout,
		logger:  logger.New("mqtt_responder"),
		ctx:     ctx,
	}
	opts.OnConnect = func(c paho.Client) {
		if token := c.Subscribe(cfg.RequestTopic, cfg.qos("request"), r.onRequest); token.Wait() && token.Error() != nil {
			r.logger.Errorf("subscribe %s: %v", cfg.RequestTopic, token.Error())
		}
		r.publishStatus(c)
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	r.cli = c
	go func() {
		<-ctx.Done()
		if c.IsConnected() {
			c.Disconnect(250)
		}
	}()
	return r, nil
}

func (r *Responder) publishStatus(c paho.Client) {
	sr, ok := r.backend.(coreprediction.StatusReporter)
	if !ok {
		return
	}
	st, err := sr.Status(r.ctx)
	if err != nil {
		r.logger.Warnf("backend status: %v", err)
		return
	}
	payload, _ := json.Marshal(st)
	c.Publish(r.cfg.StatusTopic, r.cfg.qos("status"), true, payload)
}

func (r *Responder) onRequest(c paho.Client, msg paho.Message) {
	var env envelope
	if err := json.Unmarshal(msg.Payload(), &env); err != nil || env.RequestID == "" {
		r.logger.Warnf("ignoring undecodable model request")
		return
	}
	go r.serve(c, env)
}

func (r *Responder) serve(c paho.Client, env envelope) {
	ctx := r.ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	out := reply{RequestID: env.RequestID}
	scored, err := r.backend.Predict(ctx, env.Request)
	switch {
	case errors.Is(err, coreprediction.ErrModelUnavailable):
		out.Error = ErrorModelUnavailable
	case err != nil:
		out.Error = err.Error()
	default:
		if scored == nil {
			scored = []model.ScoredStation{}
		}
		out.Stations, _ = json.Marshal(scored)
	}
	payload, err := json.Marshal(out)
	if err != nil {
		r.logger.Errorf("encode reply %s: %v", env.RequestID, err)
		return
	}
	token := c.Publish(r.cfg.ResponseTopic, r.cfg.qos("response"), false, payload)
	if token.Wait() && token.Error() != nil {
		r.logger.Errorf("publish reply %s: %v", env.RequestID, token.Error())
	}
}

// Close disconnects from the broker.
func (r *Responder) Close() error {
	if r.cli != nil && r.cli.IsConnected() {
		r.cli.Disconnect(250)
	}
	return nil
}
