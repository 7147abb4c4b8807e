// Package events defines the recommendation related events emitted on the event bus.
//
// Available event types:
//   - RecommendationEvent: outcome of one recommendation request
//   - DiscoveryEvent: result of a station lookup against an upstream source
package events
