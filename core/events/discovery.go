package events

import "time"

// DiscoveryEvent is published after each lookup against a station source.
type DiscoveryEvent struct {
	Source   string
	CacheHit bool
	Stations int
	Err      error
	Latency  time.Duration
	Time     time.Time
}
