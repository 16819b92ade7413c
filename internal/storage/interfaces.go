// Package storage provides composable storage interfaces for subject memory.
//
// The storage layer is designed with small, focused interfaces that can be
// implemented independently and composed as needed. Every method is scoped
// by identity: no statement reads or writes rows owned by another identity.
package storage

import (
	"context"
	"time"

	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/pkg/types"
)

// FactStore persists facts keyed by (identity, subject, key).
type FactStore interface {
	// UpsertFacts writes facts in a single batched statement. A fact whose
	// (identity, subject, key) already exists updates that row in place and
	// keeps its ID and CreatedAt. Duplicate keys within the batch keep the last.
	// Returns the number of rows written.
	UpsertFacts(ctx context.Context, facts []types.Fact) (int, error)

	// TouchFacts sets last_mentioned_at and updated_at to at for the given keys.
	// Keys that do not exist are ignored. Returns the number of rows touched.
	TouchFacts(ctx context.Context, identity, subject string, keys []string, at time.Time) (int, error)

	// ListFacts returns facts for one subject ordered by importance DESC,
	// last_mentioned_at DESC NULLS LAST, updated_at DESC.
	ListFacts(ctx context.Context, identity, subject string, opts ListOptions) ([]types.Fact, error)

	// GetFact retrieves a fact by ID.
	// Returns ErrNotFound if the fact doesn't exist for identity.
	GetFact(ctx context.Context, identity, id string) (*types.Fact, error)

	// UpdateFact applies a user edit and returns the updated fact.
	// Returns ErrNotFound if the fact doesn't exist for identity.
	UpdateFact(ctx context.Context, identity, id string, edit types.FactEdit, at time.Time) (*types.Fact, error)

	// DeleteFacts hard-deletes the given facts.
	// Returns ErrNotFound if none of the IDs exist for identity.
	DeleteFacts(ctx context.Context, identity string, ids []string) (int, error)
}

// ContinuityStore persists one ContinuitySummary per (identity, subject).
type ContinuityStore interface {
	// GetContinuity returns the stored summary.
	// Returns ErrNotFound when no row exists yet.
	GetContinuity(ctx context.Context, identity, subject string) (*types.ContinuitySummary, error)

	// UpsertContinuity writes every field of summary, creating the row if needed.
	UpsertContinuity(ctx context.Context, summary *types.ContinuitySummary) error

	// SetContinuityEnabled changes only the enabled flag and updated_at.
	// A missing row is created with default fields.
	SetContinuityEnabled(ctx context.Context, identity, subject string, enabled bool, at time.Time) error
}

// TranscriptStore records conversational turns so extraction can read
// recent context.
type TranscriptStore interface {
	// AppendTurn records a turn.
	AppendTurn(ctx context.Context, identity, subject string, turn types.Turn) error

	// RecentTurns returns up to limit most recent turns, oldest first.
	RecentTurns(ctx context.Context, identity, subject string, limit int) ([]types.Turn, error)
}

// Store is the full persistence surface implemented by each backend.
type Store interface {
	FactStore
	ContinuityStore
	TranscriptStore

	// Close releases the underlying connection.
	Close() error
}
