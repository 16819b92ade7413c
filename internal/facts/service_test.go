package facts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/internal/logger"
	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/internal/result"
	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/internal/storage"
	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/internal/storage/sqlite"
	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/pkg/types"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestService(t *testing.T) (*Service, *clock) {
	t.Helper()
	store, err := sqlite.NewStore(":memory:", logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := NewService(store, logger.Nop())
	s.now = c.now
	return s, c
}

func candidate(category, key, value string, importance, confidence int) types.Fact {
	return types.Fact{
		Category:   category,
		Key:        key,
		Value:      value,
		Importance: importance,
		Confidence: confidence,
		Source:     types.SourceRemote,
	}
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name string
		fact types.Fact
		keep bool
	}{
		{"ordinary fact", candidate("Location", "residence", "Lives in Ohio", 3, 3), true},
		{"short value", candidate("General", "mood", "ok", 3, 3), false},
		{"whitespace padded short value", candidate("General", "mood", "  ok  ", 3, 3), false},
		{"confidence one", candidate("General", "pet", "Has a dog named Rex", 3, 1), false},
		{"confidence two", candidate("General", "pet", "Has a dog named Rex", 3, 2), true},
		{"empty key", candidate("General", " ", "Something useful", 3, 3), false},
		{"bare age", candidate("Timeline", "age", "Age 10", 3, 3), false},
		{"bare years old", candidate("Timeline", "age_reference", "10 years old", 3, 3), false},
		{"bare number", candidate("Timeline", "age_mention", "42", 3, 3), false},
		{"age tied to event", candidate("Timeline", "age_at_diagnosis", "Age 10", 3, 3), true},
		{"age inside sentence", candidate("Timeline", "age_at_kidney_failure", "kidney failure at age 10", 4, 3), true},
		{"age with context", candidate("General", "age", "Turned 80 last spring", 3, 3), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kept, dropped := Filter([]types.Fact{tt.fact})
			if tt.keep {
				assert.Len(t, kept, 1)
				assert.Equal(t, 0, dropped)
			} else {
				assert.Empty(t, kept)
				assert.Equal(t, 1, dropped)
			}
		})
	}
}

func TestFilter_BatchDuplicatesKeepLast(t *testing.T) {
	kept, dropped := Filter([]types.Fact{
		candidate("Location", "residence", "Lives in Ohio", 3, 3),
		candidate("Work", "occupation", "Works as nurse", 3, 3),
		candidate("Location", "residence", "Lives in Denver", 3, 3),
	})
	require.Len(t, kept, 2)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, "Lives in Denver", kept[0].Value)
	assert.Equal(t, "occupation", kept[1].Key)
}

func TestUpsertFacts_IdempotentAndStamped(t *testing.T) {
	s, c := newTestService(t)
	ctx := context.Background()
	batch := []types.Fact{candidate("Location", "residence", "Lives in Ohio", 3, 4)}

	res := s.UpsertFacts(ctx, "u1", "mom", batch)
	require.True(t, res.IsOK(), res.String())
	assert.Equal(t, 1, res.Value)

	first := s.ListFacts(ctx, "u1", "mom", 0)
	require.True(t, first.IsOK())
	require.Len(t, first.Value, 1)
	f1 := first.Value[0]
	require.NotNil(t, f1.LastMentionedAt, "fresh facts are not stale")
	assert.True(t, f1.LastMentionedAt.Equal(c.t))
	assert.True(t, f1.UpdatedAt.Equal(c.t))

	c.advance(time.Hour)
	res = s.UpsertFacts(ctx, "u1", "mom", batch)
	require.True(t, res.IsOK())

	second := s.ListFacts(ctx, "u1", "mom", 0)
	require.Len(t, second.Value, 1)
	f2 := second.Value[0]
	assert.Equal(t, f1.ID, f2.ID)
	assert.Equal(t, f1.Category, f2.Category)
	assert.Equal(t, f1.Value, f2.Value)
	assert.True(t, f2.UpdatedAt.After(f1.UpdatedAt))
	assert.True(t, f2.LastMentionedAt.After(*f1.LastMentionedAt))
	assert.Equal(t, "u1", f2.Identity)
	assert.Equal(t, "mom", f2.Subject)
}

func TestUpsertFacts_LowSignalProducesNoRow(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	res := s.UpsertFacts(ctx, "u1", "mom", []types.Fact{
		candidate("General", "mood", "ok", 3, 3),
		candidate("General", "pet", "Has a dog named Rex", 3, 1),
	})
	assert.Equal(t, result.KindFiltered, res.Kind)
	assert.Empty(t, s.ListFacts(ctx, "u1", "mom", 0).Value)
}

func TestUpsertFacts_UniquenessAcrossCalls(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	for _, v := range []string{"Lives in Ohio", "Lives in Utah", "Lives in Denver"} {
		s.UpsertFacts(ctx, "u1", "mom", []types.Fact{candidate("Location", "residence", v, 3, 3)})
	}
	list := s.ListFacts(ctx, "u1", "mom", 0).Value
	require.Len(t, list, 1)
	assert.Equal(t, "Lives in Denver", list[0].Value)
}

func TestUpsertFacts_EmptyAndUnscoped(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	assert.True(t, s.UpsertFacts(ctx, "u1", "mom", nil).IsOK())

	res := s.UpsertFacts(ctx, "", "mom", []types.Fact{candidate("General", "pet", "Has a dog", 3, 3)})
	assert.Equal(t, result.KindPersistence, res.Kind)
	assert.True(t, errors.Is(res.Err, storage.ErrInvalidInput))
}

func TestTouchFacts(t *testing.T) {
	s, c := newTestService(t)
	ctx := context.Background()
	s.UpsertFacts(ctx, "u1", "mom", []types.Fact{
		candidate("Location", "residence", "Lives in Ohio", 3, 3),
		candidate("Work", "occupation", "Works as nurse", 3, 3),
	})

	assert.Equal(t, result.OK(0), s.TouchFacts(ctx, "u1", "mom", nil))

	c.advance(time.Hour)
	res := s.TouchFacts(ctx, "u1", "mom", []string{"occupation", "occupation", "missing", ""})
	require.True(t, res.IsOK())
	assert.Equal(t, 1, res.Value)

	list := s.ListFacts(ctx, "u1", "mom", 0).Value
	require.Len(t, list, 2)
	assert.Equal(t, "occupation", list[0].Key, "recently mentioned sorts first at equal importance")
	assert.True(t, list[0].LastMentionedAt.Equal(c.t))
}

func TestUpdateAndDelete(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	s.UpsertFacts(ctx, "u1", "mom", []types.Fact{
		candidate("Health", "medical_diabetes", "diabetes", 5, 4),
		candidate("Timeline", "age_at_diabetes", "diabetes at age 40", 4, 3),
	})
	list := s.ListFacts(ctx, "u1", "mom", 0).Value
	require.Len(t, list, 2)

	value := "type 2 diabetes"
	upd := s.UpdateFact(ctx, "u1", list[0].ID, types.FactEdit{Value: &value})
	require.True(t, upd.IsOK(), upd.String())
	assert.Equal(t, value, upd.Value.Value)
	assert.Equal(t, types.SourceUser, upd.Value.Source)

	empty := " "
	assert.Equal(t, result.KindPersistence, s.UpdateFact(ctx, "u1", list[0].ID, types.FactEdit{Value: &empty}).Kind)

	other := s.UpdateFact(ctx, "u2", list[0].ID, types.FactEdit{Value: &value})
	assert.True(t, errors.Is(other.Err, storage.ErrNotFound))

	item := types.DisplayMemory{SourceFactIDs: []string{list[0].ID, list[1].ID}}
	assert.Equal(t, result.KindPersistence, s.DeleteDisplayMemory(ctx, "u2", item).Kind)
	del := s.DeleteDisplayMemory(ctx, "u1", item)
	require.True(t, del.IsOK())
	assert.Equal(t, 2, del.Value)
	assert.Empty(t, s.ListFacts(ctx, "u1", "mom", 0).Value)

	assert.True(t, errors.Is(s.DeleteFact(ctx, "u1", list[0].ID).Err, storage.ErrNotFound))
}

type brokenStore struct{ storage.FactStore }

var errDown = errors.New("connection refused")

func (brokenStore) UpsertFacts(context.Context, []types.Fact) (int, error) { return 0, errDown }

func (brokenStore) TouchFacts(context.Context, string, string, []string, time.Time) (int, error) {
	return 0, errDown
}

func (brokenStore) ListFacts(context.Context, string, string, storage.ListOptions) ([]types.Fact, error) {
	return nil, errDown
}

func TestPersistenceFailuresAreSwallowed(t *testing.T) {
	s := NewService(brokenStore{}, nil)
	ctx := context.Background()

	up := s.UpsertFacts(ctx, "u1", "mom", []types.Fact{candidate("Location", "residence", "Lives in Ohio", 3, 3)})
	assert.Equal(t, result.KindPersistence, up.Kind)
	assert.ErrorIs(t, up.Err, errDown)

	assert.Equal(t, result.KindPersistence, s.TouchFacts(ctx, "u1", "mom", []string{"residence"}).Kind)

	list := s.ListFacts(ctx, "u1", "mom", 10)
	assert.Equal(t, result.KindPersistence, list.Kind)
	assert.NotNil(t, list.Value)
	assert.Empty(t, list.Value)
}
