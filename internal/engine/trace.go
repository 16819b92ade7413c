package engine

import (
	"sync"
	"time"
)

// TraceEventKind classifies each trace event by type.
type TraceEventKind string

const (
	// KindSkipped is emitted when capture is disabled for the subject.
	KindSkipped TraceEventKind = "skipped"

	// KindContextLoaded is emitted after known facts and turns are read.
	KindContextLoaded TraceEventKind = "context_loaded"

	// KindExtracted is emitted after the extraction call returns.
	KindExtracted TraceEventKind = "extracted"

	// KindFactsUpserted is emitted after returned facts are written.
	KindFactsUpserted TraceEventKind = "facts_upserted"

	// KindFactsTouched is emitted after mentioned keys are bumped.
	KindFactsTouched TraceEventKind = "facts_touched"

	// KindContinuityMerged is emitted after the continuity delta is written.
	KindContinuityMerged TraceEventKind = "continuity_merged"
)

// TraceEvent is a single structured event emitted during a pipeline run.
type TraceEvent struct {
	// Kind identifies the event type.
	Kind TraceEventKind `json:"kind"`

	// At is the wall-clock time the event was recorded.
	At time.Time `json:"at"`

	// Count is the number of facts, keys or turns involved.
	Count int `json:"count,omitempty"`

	// Status is the result kind of the step, empty on success.
	Status string `json:"status,omitempty"`
}

// TraceCollector accumulates TraceEvents for a single run. Steps that run
// concurrently may emit into the same collector.
type TraceCollector struct {
	mu        sync.Mutex
	events    []TraceEvent
	startedAt time.Time
}

// NewTraceCollector returns a fresh collector.
func NewTraceCollector() *TraceCollector {
	return &TraceCollector{startedAt: time.Now()}
}

// Emit records an event of kind.
func (tc *TraceCollector) Emit(kind TraceEventKind, count int, status string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.events = append(tc.events, TraceEvent{Kind: kind, At: time.Now(), Count: count, Status: status})
}

// Events returns a copy of the collected events in emission order.
func (tc *TraceCollector) Events() []TraceEvent {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return append([]TraceEvent(nil), tc.events...)
}

// ElapsedMS returns the elapsed time since the collector was created, in milliseconds.
func (tc *TraceCollector) ElapsedMS() int64 {
	return time.Since(tc.startedAt).Milliseconds()
}
