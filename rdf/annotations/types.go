// Package annotations provides a clean, low-overhead annotation system for
// tracking store and optimizer activity as structured events.
package annotations

import (
	"sync"
	"time"
)

// Event name constants following hierarchical naming pattern
const (
	// Transaction lifecycle
	TxBegin    = "tx/begin"
	TxCommit   = "tx/commit"
	TxRollback = "tx/rollback"
	TxConflict = "tx/conflict"

	// Node dictionary
	NodeRegistered    = "node/registered"
	NodeRaceRecovered = "node/race-recovered"

	// ID allocation
	IDLease = "id/lease"

	// Statement access
	StatementScan = "statement/scan"

	// Algebra optimizer
	OptimizerPass     = "optimizer/pass"
	OptimizerRotation = "optimizer/rotation"

	// Errors
	ErrorBackend = "error/backend"
)

// Event represents a single annotation event.
type Event struct {
	Name    string                 // Event name using hierarchical constants above
	Start   time.Time              // Start timestamp
	End     time.Time              // End timestamp
	Latency time.Duration          // Duration (End - Start)
	Data    map[string]interface{} // Additional event-specific data
}

// Handler processes annotation events as they occur.
type Handler func(event Event)

// Collector accumulates events and forwards them to a handler.
// A nil *Collector is valid and discards everything.
type Collector struct {
	enabled bool
	handler Handler
	events  []Event
	limit   int
	mu      sync.Mutex
}

// NewCollector creates a new annotation collector. Only the most recent
// 1024 events are retained; the handler sees all of them.
func NewCollector(handler Handler) *Collector {
	return &Collector{
		enabled: handler != nil,
		handler: handler,
		events:  make([]Event, 0, 64),
		limit:   1024,
	}
}

// Enabled reports whether events are being recorded
func (c *Collector) Enabled() bool {
	return c != nil && c.enabled
}

// Handler returns the underlying event handler.
func (c *Collector) Handler() Handler {
	if c == nil {
		return nil
	}
	return c.handler
}

// Add records a new event.
// Thread-safe for concurrent access.
func (c *Collector) Add(event Event) {
	if !c.Enabled() {
		return
	}

	c.mu.Lock()
	if len(c.events) >= c.limit {
		c.events = append(c.events[:0], c.events[1:]...)
	}
	c.events = append(c.events, event)
	c.mu.Unlock()

	// Call handler outside the lock to avoid deadlocks
	c.handler(event)
}

// AddTiming records an event with timing information.
func (c *Collector) AddTiming(name string, start time.Time, data map[string]interface{}) {
	if !c.Enabled() {
		return
	}

	end := time.Now()
	c.Add(Event{
		Name:    name,
		Start:   start,
		End:     end,
		Latency: end.Sub(start),
		Data:    data,
	})
}

// Events returns all collected events.
func (c *Collector) Events() []Event {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	eventsCopy := make([]Event, len(c.events))
	copy(eventsCopy, c.events)
	return eventsCopy
}

// Count returns how many retained events carry the given name
func (c *Collector) Count(name string) int {
	n := 0
	for _, e := range c.Events() {
		if e.Name == name {
			n++
		}
	}
	return n
}

// Reset clears the collector for reuse.
func (c *Collector) Reset() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = c.events[:0]
}
