package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	coremetrics "github.com/kilianp07/evreco/core/metrics"
)

// KafkaConfig selects the brokers and topic receiving the events.
type KafkaConfig struct {
	Brokers []string `json:"brokers"`
	Topic   string   `json:"topic"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes every event as a JSON message. The message key is the
// request id or the source name so that related events share a partition.
// The event kind travels in the "type" header.
type KafkaSink struct {
	w       messageWriter
	timeout time.Duration
}

// NewKafkaSink creates a synchronous writer on cfg.Topic.
func NewKafkaSink(cfg KafkaConfig) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, fmt.Errorf("kafka sink: brokers and topic are required")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
	return &KafkaSink{w: w, timeout: 5 * time.Second}, nil
}

func (s *KafkaSink) send(kind, key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.w.WriteMessages(ctx, kafka.Message{
		Key:     []byte(key),
		Value:   payload,
		Headers: []kafka.Header{{Key: "type", Value: []byte(kind)}},
		Time:    time.Now(),
	})
}

// RecordRecommendation implements coremetrics.MetricsSink.
func (s *KafkaSink) RecordRecommendation(ev coremetrics.RecommendationEvent) error {
	return s.send("recommendation", ev.RequestID, ev)
}

// RecordDiscovery implements coremetrics.DiscoveryRecorder.
func (s *KafkaSink) RecordDiscovery(ev coremetrics.DiscoveryEvent) error {
	return s.send("discovery", ev.Source, ev)
}

// RecordFallback implements coremetrics.FallbackRecorder.
func (s *KafkaSink) RecordFallback(ev coremetrics.FallbackEvent) error {
	return s.send("fallback", ev.RequestID, ev)
}

// Close flushes and closes the writer.
func (s *KafkaSink) Close() error { return s.w.Close() }
