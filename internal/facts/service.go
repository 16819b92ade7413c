// Package facts is the fact upsert engine. It filters low-signal candidates,
// stamps mention times, and writes through a storage.FactStore. Every
// operation returns a result.Result and logs failures instead of raising
// them, since extraction runs off the chat send path.
package facts

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/internal/logger"
	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/internal/result"
	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/internal/storage"
	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/pkg/types"
)

const (
	// MinValueLength is the shortest value, in runes, worth storing.
	MinValueLength = 3

	// MinConfidence is the lowest confidence worth storing.
	MinConfidence = 2
)

// bareAge matches a value that is nothing but an age.
var bareAge = regexp.MustCompile(`(?i)^\s*(?:age[: ]*\d{1,3}|\d{1,3}\s*(?:years?|yrs?)(?:\s*old)?|\d{1,3})\s*\.?\s*$`)

// Service is the fact upsert engine.
type Service struct {
	store storage.FactStore
	log   *logger.Logger
	now   func() time.Time
}

// NewService creates a Service over store.
func NewService(store storage.FactStore, log *logger.Logger) *Service {
	return &Service{
		store: store,
		log:   logger.OrNop(log).With("component", "facts"),
		now:   time.Now,
	}
}

// Filter drops low-signal candidates and collapses duplicate keys, keeping
// the last occurrence. It reports how many candidates were dropped.
func Filter(candidates []types.Fact) ([]types.Fact, int) {
	kept := make([]types.Fact, 0, len(candidates))
	for _, f := range candidates {
		if lowSignal(f) {
			continue
		}
		kept = append(kept, f)
	}
	kept = storage.LastByKey(kept)
	return kept, len(candidates) - len(kept)
}

func lowSignal(f types.Fact) bool {
	switch {
	case strings.TrimSpace(f.Key) == "":
		return true
	case utf8.RuneCountInString(strings.TrimSpace(f.Value)) < MinValueLength:
		return true
	case f.Confidence < MinConfidence:
		return true
	case bareAge.MatchString(f.Value) && !strings.Contains(f.Key, "_at_"):
		// "Age 10" means nothing unless the key ties it to an event.
		return true
	}
	return false
}

// UpsertFacts filters candidates, stamps them for identity and subject, and
// writes the survivors in one batch. The value is the number of rows
// written. KindFiltered means nothing survived the filter.
func (s *Service) UpsertFacts(ctx context.Context, identity, subject string, candidates []types.Fact) result.Result[int] {
	if len(candidates) == 0 {
		return result.OK(0)
	}
	if identity == "" || subject == "" {
		err := fmt.Errorf("%w: identity and subject are required", storage.ErrInvalidInput)
		s.log.Warn("refusing unscoped upsert", "error", err)
		return result.Fail[int](result.KindPersistence, err)
	}

	kept, dropped := Filter(candidates)
	if dropped > 0 {
		s.log.Debug("dropped low-signal facts", "identity", identity, "subject", subject, "dropped", dropped)
	}
	if len(kept) == 0 {
		return result.Fail[int](result.KindFiltered, nil)
	}

	now := s.now().UTC()
	for i := range kept {
		kept[i].Identity = identity
		kept[i].Subject = subject
		kept[i].Value = strings.TrimSpace(kept[i].Value)
		kept[i].Importance = types.ClampScore(kept[i].Importance)
		kept[i].Confidence = types.ClampScore(kept[i].Confidence)
		kept[i].UpdatedAt = now
		at := now
		kept[i].LastMentionedAt = &at
	}

	n, err := s.store.UpsertFacts(ctx, kept)
	if err != nil {
		s.log.Error("failed to upsert facts", "identity", identity, "subject", subject, "count", len(kept), "error", err)
		return result.Fail[int](result.KindPersistence, err)
	}
	s.log.Debug("upserted facts", "identity", identity, "subject", subject, "count", n)
	return result.OK(n)
}

// TouchFacts bumps last-mentioned time for keys that were referenced again.
// Empty input is a no-op.
func (s *Service) TouchFacts(ctx context.Context, identity, subject string, keys []string) result.Result[int] {
	keys = compactKeys(keys)
	if len(keys) == 0 {
		return result.OK(0)
	}
	n, err := s.store.TouchFacts(ctx, identity, subject, keys, s.now().UTC())
	if err != nil {
		s.log.Error("failed to touch facts", "identity", identity, "subject", subject, "keys", len(keys), "error", err)
		return result.Fail[int](result.KindPersistence, err)
	}
	return result.OK(n)
}

// ListFacts returns up to limit facts for the subject, most important
// first. On failure the value is an empty slice.
func (s *Service) ListFacts(ctx context.Context, identity, subject string, limit int) result.Result[[]types.Fact] {
	list, err := s.store.ListFacts(ctx, identity, subject, storage.ListOptions{Limit: limit})
	if err != nil {
		s.log.Error("failed to list facts", "identity", identity, "subject", subject, "error", err)
		return result.Result[[]types.Fact]{Value: []types.Fact{}, Kind: result.KindPersistence, Err: err}
	}
	if list == nil {
		list = []types.Fact{}
	}
	return result.OK(list)
}

// UpdateFact applies a user edit to one fact owned by identity.
func (s *Service) UpdateFact(ctx context.Context, identity, id string, edit types.FactEdit) result.Result[*types.Fact] {
	if edit.Value != nil && utf8.RuneCountInString(strings.TrimSpace(*edit.Value)) == 0 {
		return result.Fail[*types.Fact](result.KindPersistence, fmt.Errorf("%w: value cannot be empty", storage.ErrInvalidInput))
	}
	f, err := s.store.UpdateFact(ctx, identity, id, edit, s.now().UTC())
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.log.Error("failed to update fact", "identity", identity, "id", id, "error", err)
		}
		return result.Fail[*types.Fact](result.KindPersistence, err)
	}
	return result.OK(f)
}

// DeleteFact removes one fact owned by identity.
func (s *Service) DeleteFact(ctx context.Context, identity, id string) result.Result[int] {
	return s.deleteIDs(ctx, identity, []string{id})
}

// DeleteDisplayMemory removes every fact behind a consolidated display item.
func (s *Service) DeleteDisplayMemory(ctx context.Context, identity string, item types.DisplayMemory) result.Result[int] {
	return s.deleteIDs(ctx, identity, item.SourceFactIDs)
}

func (s *Service) deleteIDs(ctx context.Context, identity string, ids []string) result.Result[int] {
	ids = compactKeys(ids)
	if len(ids) == 0 {
		return result.OK(0)
	}
	n, err := s.store.DeleteFacts(ctx, identity, ids)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.log.Error("failed to delete facts", "identity", identity, "ids", len(ids), "error", err)
		}
		return result.Fail[int](result.KindPersistence, err)
	}
	return result.OK(n)
}

func compactKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
