package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/internal/storage"
	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/pkg/types"
)

// GetContinuity returns the summary for (identity, subject) or ErrNotFound.
func (s *Store) GetContinuity(ctx context.Context, identity, subject string) (*types.ContinuitySummary, error) {
	var (
		c     types.ContinuitySummary
		loops string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT identity, subject, enabled, summary, open_loops, next_question,
			current_goal, last_advice, created_at, updated_at
		FROM continuity WHERE identity = ? AND subject = ?`, identity, subject,
	).Scan(&c.Identity, &c.Subject, &c.Enabled, &c.Summary, &loops, &c.NextQuestion,
		&c.CurrentGoal, &c.LastAdvice, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to get continuity: %w", err)
	}
	if err := json.Unmarshal([]byte(loops), &c.OpenLoops); err != nil {
		return nil, fmt.Errorf("sqlite: failed to decode open loops: %w", err)
	}
	if c.OpenLoops == nil {
		c.OpenLoops = []string{}
	}
	return &c, nil
}

// UpsertContinuity writes the summary fields. Enabled is written only when
// the row is created; after that SetContinuityEnabled owns the flag.
func (s *Store) UpsertContinuity(ctx context.Context, c *types.ContinuitySummary) error {
	if c == nil || c.Identity == "" || c.Subject == "" {
		return fmt.Errorf("%w: identity and subject are required", storage.ErrInvalidInput)
	}
	loops := c.OpenLoops
	if loops == nil {
		loops = []string{}
	}
	loopsJSON, err := json.Marshal(loops)
	if err != nil {
		return fmt.Errorf("sqlite: failed to encode open loops: %w", err)
	}

	now := s.now().UTC()
	created, updated := c.CreatedAt, c.UpdatedAt
	if created.IsZero() {
		created = now
	}
	if updated.IsZero() {
		updated = now
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO continuity (identity, subject, enabled, summary, open_loops, next_question,
			current_goal, last_advice, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(identity, subject) DO UPDATE SET
			summary = excluded.summary,
			open_loops = excluded.open_loops,
			next_question = excluded.next_question,
			current_goal = excluded.current_goal,
			last_advice = excluded.last_advice,
			updated_at = excluded.updated_at`,
		c.Identity, c.Subject, c.Enabled, c.Summary, string(loopsJSON), c.NextQuestion,
		c.CurrentGoal, c.LastAdvice, created.UTC(), updated.UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: failed to upsert continuity: %w", err)
	}
	return nil
}

// SetContinuityEnabled flips only the enabled flag, creating the row if needed.
func (s *Store) SetContinuityEnabled(ctx context.Context, identity, subject string, enabled bool, at time.Time) error {
	if identity == "" || subject == "" {
		return fmt.Errorf("%w: identity and subject are required", storage.ErrInvalidInput)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO continuity (identity, subject, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(identity, subject) DO UPDATE SET
			enabled = excluded.enabled,
			updated_at = excluded.updated_at`,
		identity, subject, enabled, at.UTC(), at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: failed to set continuity enabled: %w", err)
	}
	return nil
}
