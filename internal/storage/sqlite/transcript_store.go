package sqlite

import (
	"context"
	"fmt"

	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/internal/storage"
	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/pkg/types"
)

// AppendTurn records one conversational turn.
func (s *Store) AppendTurn(ctx context.Context, identity, subject string, turn types.Turn) error {
	if identity == "" || subject == "" {
		return fmt.Errorf("%w: identity and subject are required", storage.ErrInvalidInput)
	}
	if turn.Role != types.RoleUser && turn.Role != types.RoleAssistant {
		return fmt.Errorf("%w: unknown turn role %q", storage.ErrInvalidInput, turn.Role)
	}
	ts := turn.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO turns (identity, subject, role, text, created_at) VALUES (?, ?, ?, ?, ?)",
		identity, subject, turn.Role, turn.Text, ts.UTC())
	if err != nil {
		return fmt.Errorf("sqlite: failed to append turn: %w", err)
	}
	return nil
}

// RecentTurns returns up to limit most recent turns, oldest first.
func (s *Store) RecentTurns(ctx context.Context, identity, subject string, limit int) ([]types.Turn, error) {
	if limit < 1 {
		return []types.Turn{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, text, created_at FROM turns
		WHERE identity = ? AND subject = ?
		ORDER BY id DESC LIMIT ?`, identity, subject, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to read turns: %w", err)
	}
	defer rows.Close()

	turns := []types.Turn{}
	for rows.Next() {
		var t types.Turn
		if err := rows.Scan(&t.Role, &t.Text, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: failed to iterate turns: %w", err)
	}

	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}
