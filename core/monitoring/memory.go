package monitoring

import (
	"fmt"
	"sync"
	"time"
)

type panicError struct{ v any }

func (p panicError) Error() string { return fmt.Sprintf("panic: %v", p.v) }

// Captured is an error reported to a MemoryMonitor.
type Captured struct {
	Err  error
	Tags map[string]string
}

// MemoryMonitor keeps captured errors in memory. It is meant for tests.
type MemoryMonitor struct {
	mu     sync.Mutex
	events []Captured
}

func (m *MemoryMonitor) CaptureException(err error, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, Captured{Err: err, Tags: tags})
}

func (m *MemoryMonitor) Recover()            {}
func (m *MemoryMonitor) Flush(time.Duration) {}

// Events returns a copy of the captured errors.
func (m *MemoryMonitor) Events() []Captured {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Captured, len(m.events))
	copy(out, m.events)
	return out
}
