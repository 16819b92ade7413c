// Package continuity keeps the rolling per-subject summary: what was
// discussed, which threads are still open, and whether new facts may be
// captured at all.
package continuity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/internal/logger"
	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/internal/result"
	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/internal/storage"
	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/pkg/types"
)

// Manager merges continuity deltas into stored summaries.
type Manager struct {
	store storage.ContinuityStore
	log   *logger.Logger
	now   func() time.Time
}

// NewManager creates a Manager over store.
func NewManager(store storage.ContinuityStore, log *logger.Logger) *Manager {
	return &Manager{
		store: store,
		log:   logger.OrNop(log).With("component", "continuity"),
		now:   time.Now,
	}
}

// Get returns the stored summary, or the defaults when none exists. A read
// failure is reported in the result alongside the defaults.
func (m *Manager) Get(ctx context.Context, identity, subject string) result.Result[types.ContinuitySummary] {
	c, err := m.store.GetContinuity(ctx, identity, subject)
	switch {
	case err == nil:
		return result.OK(*c)
	case errors.Is(err, storage.ErrNotFound):
		return result.OK(types.DefaultContinuity(identity, subject))
	default:
		m.log.Warn("failed to read continuity, using defaults", "identity", identity, "subject", subject, "error", err)
		return result.Result[types.ContinuitySummary]{
			Value: types.DefaultContinuity(identity, subject),
			Kind:  result.KindPersistence,
			Err:   err,
		}
	}
}

// IsEnabled reports whether fact capture is on for the subject. It is true
// when no summary exists or the read fails.
func (m *Manager) IsEnabled(ctx context.Context, identity, subject string) bool {
	return m.Get(ctx, identity, subject).Value.Enabled
}

// Merge folds delta into the freshly read summary and writes it back.
// A nil delta still creates the row with defaults. Nothing is written when
// the read fails.
func (m *Manager) Merge(ctx context.Context, identity, subject string, delta *types.ContinuityDelta) result.Result[types.ContinuitySummary] {
	current := m.Get(ctx, identity, subject)
	if !current.IsOK() {
		return current
	}
	next := Apply(current.Value, delta)
	next.UpdatedAt = m.now().UTC()

	if err := m.store.UpsertContinuity(ctx, &next); err != nil {
		m.log.Error("failed to write continuity", "identity", identity, "subject", subject, "error", err)
		return result.Result[types.ContinuitySummary]{Value: next, Kind: result.KindPersistence, Err: err}
	}
	m.log.Debug("merged continuity", "identity", identity, "subject", subject, "open_loops", len(next.OpenLoops))
	return result.OK(next)
}

// SetEnabled turns fact capture on or off. Stored facts and the other
// summary fields are left alone.
func (m *Manager) SetEnabled(ctx context.Context, identity, subject string, enabled bool) result.Result[bool] {
	if err := m.store.SetContinuityEnabled(ctx, identity, subject, enabled, m.now().UTC()); err != nil {
		m.log.Error("failed to set continuity enabled", "identity", identity, "subject", subject, "enabled", enabled, "error", err)
		return result.Result[bool]{Value: enabled, Kind: result.KindPersistence, Err: err}
	}
	m.log.Info("continuity capture toggled", "identity", identity, "subject", subject, "enabled", enabled)
	return result.OK(enabled)
}

// Apply returns current with delta merged in. Text fields change only when
// the delta carries a non-empty value. current is not modified.
func Apply(current types.ContinuitySummary, delta *types.ContinuityDelta) types.ContinuitySummary {
	next := current
	next.OpenLoops = MergeOpenLoops(current.OpenLoops, nil)
	if delta == nil {
		return next
	}
	next.Summary = replaceIfSet(current.Summary, delta.Summary)
	next.NextQuestion = replaceIfSet(current.NextQuestion, delta.NextQuestion)
	next.CurrentGoal = replaceIfSet(current.CurrentGoal, delta.CurrentGoal)
	next.LastAdvice = replaceIfSet(current.LastAdvice, delta.LastAdvice)
	next.OpenLoops = MergeOpenLoops(current.OpenLoops, delta.OpenLoops)
	return next
}

func replaceIfSet(old, candidate string) string {
	if strings.TrimSpace(candidate) == "" {
		return old
	}
	return strings.TrimSpace(candidate)
}

// MergeOpenLoops unions existing and incoming loops, existing first, with
// exact-match dedup. When the union exceeds types.MaxOpenLoops the oldest
// existing loops not re-raised by incoming are dropped first.
func MergeOpenLoops(existing, incoming []string) []string {
	fresh := make(map[string]bool, len(incoming))
	for _, l := range incoming {
		if l = strings.TrimSpace(l); l != "" {
			fresh[l] = true
		}
	}

	seen := make(map[string]bool, len(existing)+len(incoming))
	merged := make([]string, 0, len(existing)+len(incoming))
	for _, list := range [][]string{existing, incoming} {
		for _, l := range list {
			l = strings.TrimSpace(l)
			if l == "" || seen[l] {
				continue
			}
			seen[l] = true
			merged = append(merged, l)
		}
	}

	excess := len(merged) - types.MaxOpenLoops
	if excess <= 0 {
		return merged
	}

	out := make([]string, 0, len(merged))
	for _, l := range merged {
		if excess > 0 && !fresh[l] {
			excess--
			continue
		}
		out = append(out, l)
	}
	// More incoming loops than fit: keep the latest.
	if len(out) > types.MaxOpenLoops {
		out = out[len(out)-types.MaxOpenLoops:]
	}
	return out
}
