package metrics

import "errors"

// MultiSink fans out events to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordRecommendation forwards the event to all sinks. Every sink is
// called; the returned error joins the individual failures.
func (m *MultiSink) RecordRecommendation(ev RecommendationEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if err := s.RecordRecommendation(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordDiscovery forwards discovery events when supported by the sink.
func (m *MultiSink) RecordDiscovery(ev DiscoveryEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(DiscoveryRecorder); ok {
			if err := rec.RecordDiscovery(ev); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// RecordFallback forwards fallback events when supported by the sink.
func (m *MultiSink) RecordFallback(ev FallbackEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(FallbackRecorder); ok {
			if err := rec.RecordFallback(ev); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
