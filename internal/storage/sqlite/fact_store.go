package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/internal/storage"
	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/pkg/types"
)

// upsertChunkSize bounds the rows per INSERT so a batch stays well under
// SQLite's bound-variable limit.
const upsertChunkSize = 500

const factColumns = `id, identity, subject, category, fact_key, value, importance, confidence,
	source, last_mentioned_at, created_at, updated_at`

const factConflictClause = `
	ON CONFLICT(identity, subject, fact_key) DO UPDATE SET
		category = excluded.category,
		value = excluded.value,
		importance = excluded.importance,
		confidence = excluded.confidence,
		source = excluded.source,
		last_mentioned_at = COALESCE(excluded.last_mentioned_at, facts.last_mentioned_at),
		updated_at = excluded.updated_at`

// UpsertFacts writes the batch in one transaction.
func (s *Store) UpsertFacts(ctx context.Context, facts []types.Fact) (int, error) {
	if len(facts) == 0 {
		return 0, nil
	}
	batch := storage.LastByKey(facts)
	for _, f := range batch {
		if err := storage.ValidateFact(f); err != nil {
			return 0, err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: failed to begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now().UTC()
	for start := 0; start < len(batch); start += upsertChunkSize {
		end := start + upsertChunkSize
		if end > len(batch) {
			end = len(batch)
		}
		query, args := buildUpsert(batch[start:end], now)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return 0, fmt.Errorf("sqlite: failed to upsert facts: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: failed to commit upsert: %w", err)
	}
	return len(batch), nil
}

func buildUpsert(batch []types.Fact, now time.Time) (string, []interface{}) {
	var b strings.Builder
	b.WriteString("INSERT INTO facts (" + factColumns + ") VALUES ")
	args := make([]interface{}, 0, len(batch)*12)
	for i, f := range batch {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")

		id := f.ID
		if id == "" {
			id = uuid.NewString()
		}
		created, updated := f.CreatedAt, f.UpdatedAt
		if created.IsZero() {
			created = now
		}
		if updated.IsZero() {
			updated = now
		}
		args = append(args,
			id, f.Identity, f.Subject, categoryOrDefault(f.Category), f.Key, f.Value,
			types.ClampScore(f.Importance), types.ClampScore(f.Confidence), f.Source,
			nullableTime(f.LastMentionedAt), created.UTC(), updated.UTC(),
		)
	}
	b.WriteString(factConflictClause)
	return b.String(), args
}

// TouchFacts marks keys as mentioned at the given time.
func (s *Store) TouchFacts(ctx context.Context, identity, subject string, keys []string, at time.Time) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	args := []interface{}{at.UTC(), at.UTC(), identity, subject}
	for _, k := range keys {
		args = append(args, k)
	}
	query := `UPDATE facts SET last_mentioned_at = ?, updated_at = ?
		WHERE identity = ? AND subject = ? AND fact_key IN (` + inClause(len(keys)) + `)`

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("sqlite: failed to touch facts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: failed to check rows affected: %w", err)
	}
	return int(n), nil
}

// ListFacts returns the ranked facts for one subject.
func (s *Store) ListFacts(ctx context.Context, identity, subject string, opts storage.ListOptions) ([]types.Fact, error) {
	opts.Normalize()

	query := "SELECT " + factColumns + " FROM facts WHERE identity = ? AND subject = ?"
	args := []interface{}{identity, subject}
	if opts.Category != "" {
		query += " AND category = ?"
		args = append(args, opts.Category)
	}
	query += " ORDER BY importance DESC, last_mentioned_at DESC NULLS LAST, updated_at DESC LIMIT ?"
	args = append(args, opts.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list facts: %w", err)
	}
	defer rows.Close()

	facts := []types.Fact{}
	for rows.Next() {
		f, err := scanFact(rows)
		if err != nil {
			return nil, err
		}
		facts = append(facts, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: failed to iterate facts: %w", err)
	}
	return facts, nil
}

// GetFact retrieves a single fact owned by identity.
func (s *Store) GetFact(ctx context.Context, identity, id string) (*types.Fact, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: fact ID is required", storage.ErrInvalidInput)
	}
	row := s.db.QueryRowContext(ctx,
		"SELECT "+factColumns+" FROM facts WHERE identity = ? AND id = ?", identity, id)
	f, err := scanFact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	return f, err
}

// UpdateFact applies a user edit. Edited facts are attributed to the user.
func (s *Store) UpdateFact(ctx context.Context, identity, id string, edit types.FactEdit, at time.Time) (*types.Fact, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: fact ID is required", storage.ErrInvalidInput)
	}

	sets := []string{"source = ?", "updated_at = ?"}
	args := []interface{}{types.SourceUser, at.UTC()}
	if edit.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, categoryOrDefault(*edit.Category))
	}
	if edit.Value != nil {
		sets = append(sets, "value = ?")
		args = append(args, *edit.Value)
	}
	if edit.Importance != nil {
		sets = append(sets, "importance = ?")
		args = append(args, types.ClampScore(*edit.Importance))
	}
	args = append(args, identity, id)

	res, err := s.db.ExecContext(ctx,
		"UPDATE facts SET "+strings.Join(sets, ", ")+" WHERE identity = ? AND id = ?", args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to update fact: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to check rows affected: %w", err)
	}
	if n == 0 {
		return nil, storage.ErrNotFound
	}
	return s.GetFact(ctx, identity, id)
}

// DeleteFacts removes facts owned by identity.
func (s *Store) DeleteFacts(ctx context.Context, identity string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: at least one fact ID is required", storage.ErrInvalidInput)
	}
	args := []interface{}{identity}
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM facts WHERE identity = ? AND id IN ("+inClause(len(ids))+")", args...)
	if err != nil {
		return 0, fmt.Errorf("sqlite: failed to delete facts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: failed to check rows affected: %w", err)
	}
	if n == 0 {
		return 0, storage.ErrNotFound
	}
	return int(n), nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFact(row rowScanner) (*types.Fact, error) {
	var (
		f             types.Fact
		lastMentioned sql.NullTime
	)
	err := row.Scan(&f.ID, &f.Identity, &f.Subject, &f.Category, &f.Key, &f.Value,
		&f.Importance, &f.Confidence, &f.Source, &lastMentioned, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("sqlite: failed to scan fact: %w", err)
	}
	if lastMentioned.Valid {
		t := lastMentioned.Time
		f.LastMentionedAt = &t
	}
	return &f, nil
}

func inClause(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func categoryOrDefault(c string) string {
	if c = strings.TrimSpace(c); c == "" {
		return types.CategoryGeneral
	}
	return c
}
