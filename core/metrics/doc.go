// Package metrics defines interfaces for recording recommendation outcomes.
// Sinks like PromSink, InfluxSink and KafkaSink live in infra/metrics and can
// be combined with NewMultiSink. The factory helpers return a MultiSink
// automatically when multiple sinks are configured.
package metrics
