package metrics

import (
	"context"

	"github.com/kilianp07/evreco/core/events"
	"github.com/kilianp07/evreco/core/logger"
	coremetrics "github.com/kilianp07/evreco/core/metrics"
	"github.com/kilianp07/evreco/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and forwards events to the
// sink. Recommendation events that carry a fallback reason are also reported
// as fallbacks. It stops when the context is canceled or the bus is closed.
func StartEventCollector(ctx context.Context, bus *eventbus.Bus, sink coremetrics.MetricsSink, log logger.Logger) {
	if bus == nil || sink == nil {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := dispatch(ev, sink); err != nil {
					log.Warnf("metrics sink: %v", err)
				}
			}
		}
	}()
}

func dispatch(ev eventbus.Event, sink coremetrics.MetricsSink) error {
	switch e := ev.(type) {
	case events.RecommendationEvent:
		if err := sink.RecordRecommendation(RecommendationFromEvent(e)); err != nil {
			return err
		}
		if e.FallbackReason == "" {
			return nil
		}
		if r, ok := sink.(coremetrics.FallbackRecorder); ok {
			return r.RecordFallback(coremetrics.FallbackEvent{
				RequestID: e.RequestID,
				Reason:    e.FallbackReason,
				Stations:  e.Matched,
				Time:      e.Time,
			})
		}
	case events.DiscoveryEvent:
		if r, ok := sink.(coremetrics.DiscoveryRecorder); ok {
			errStr := ""
			if e.Err != nil {
				errStr = e.Err.Error()
			}
			return r.RecordDiscovery(coremetrics.DiscoveryEvent{
				Source:   e.Source,
				CacheHit: e.CacheHit,
				Stations: e.Stations,
				Error:    errStr,
				Latency:  e.Latency,
				Time:     e.Time,
			})
		}
	}
	return nil
}

// RecommendationFromEvent converts a bus event to its metrics form.
func RecommendationFromEvent(e events.RecommendationEvent) coremetrics.RecommendationEvent {
	return coremetrics.RecommendationEvent{
		RequestID:      e.RequestID,
		Strategy:       e.Strategy,
		FallbackReason: e.FallbackReason,
		Reason:         e.Reason,
		Raw:            e.Raw,
		Candidates:     e.Candidates,
		Matched:        e.Matched,
		Returned:       e.Returned,
		TopStationID:   e.TopStationID,
		TopRating:      e.TopRating,
		ModelLatency:   e.ModelLatency,
		Duration:       e.Duration,
		Time:           e.Time,
	}
}
