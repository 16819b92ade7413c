// Package engine runs the memory pipeline: after a user message is recorded
// it decides whether capture is on, asks the extraction client for facts,
// and fans the results out to the fact store and continuity manager. Jobs
// can run inline with Process or fire-and-forget through a worker pool.
package engine

import (
	"fmt"
	"time"

	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/internal/result"
	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/pkg/types"
)

// Job is one extraction run for a subject.
type Job struct {
	Identity    string
	Subject     string
	SubjectName string

	// Turns overrides the transcript lookup when set.
	Turns []types.Turn

	// Timestamp is when the job was queued.
	Timestamp time.Time
}

// Outcome reports what a run did. It is diagnostic only; a run never fails
// its caller.
type Outcome struct {
	// Skipped is set when capture is disabled for the subject.
	Skipped bool

	// ErrorCode is the failure kind of the extraction call, if any.
	ErrorCode result.Kind

	// Fallback is set when the heuristic extractor replaced the remote call.
	Fallback bool

	FactsWritten      int
	KeysTouched       int
	ContinuityUpdated bool

	Trace []TraceEvent
}

// Config holds configuration for the pipeline.
type Config struct {
	// NumWorkers is the number of worker goroutines (default: 2).
	NumWorkers int

	// QueueSize is the size of the job queue buffer (default: 100).
	QueueSize int

	// ShutdownTimeout is the maximum time to wait for workers to drain on shutdown (default: 30s).
	ShutdownTimeout time.Duration

	// RecentTurns is how many transcript turns are sent for extraction (default: 6).
	RecentTurns int

	// KnownFactLimit caps the known facts sent with each request (default: 50).
	KnownFactLimit int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		NumWorkers:      2,
		QueueSize:       100,
		ShutdownTimeout: 30 * time.Second,
		RecentTurns:     6,
		KnownFactLimit:  50,
	}
}

// Validate checks if the config is valid.
func (c *Config) Validate() error {
	if c.NumWorkers < 1 {
		return fmt.Errorf("NumWorkers must be >= 1, got %d", c.NumWorkers)
	}

	if c.QueueSize < 1 {
		return fmt.Errorf("QueueSize must be >= 1, got %d", c.QueueSize)
	}

	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("ShutdownTimeout must be >= 0, got %v", c.ShutdownTimeout)
	}

	if c.RecentTurns < 1 {
		return fmt.Errorf("RecentTurns must be >= 1, got %d", c.RecentTurns)
	}

	if c.KnownFactLimit < 0 {
		return fmt.Errorf("KnownFactLimit must be >= 0, got %d", c.KnownFactLimit)
	}

	return nil
}
