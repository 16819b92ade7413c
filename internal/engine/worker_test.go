package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/internal/extraction"
	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/internal/result"
	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/pkg/types"
)

// memFacts is an in-memory FactService keyed by fact key.
type memFacts struct {
	mu    sync.Mutex
	facts map[string]types.Fact
}

func newMemFacts() *memFacts { return &memFacts{facts: map[string]types.Fact{}} }

func (m *memFacts) UpsertFacts(_ context.Context, _, _ string, list []types.Fact) result.Result[int] {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range list {
		m.facts[f.Key] = f
	}
	return result.OK(len(list))
}

func (m *memFacts) TouchFacts(_ context.Context, _, _ string, keys []string) result.Result[int] {
	return result.OK(len(keys))
}

func (m *memFacts) ListFacts(_ context.Context, _, _ string, _ int) result.Result[[]types.Fact] {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Fact, 0, len(m.facts))
	for _, f := range m.facts {
		out = append(out, f)
	}
	return result.OK(out)
}

// memContinuity is always enabled and counts merges.
type memContinuity struct {
	merges atomic.Int32
}

func (m *memContinuity) IsEnabled(context.Context, string, string) bool { return true }

func (m *memContinuity) Merge(_ context.Context, identity, subject string, _ *types.ContinuityDelta) result.Result[types.ContinuitySummary] {
	m.merges.Add(1)
	return result.OK(types.DefaultContinuity(identity, subject))
}

// gateExtractor blocks every call until release is closed.
type gateExtractor struct {
	entered chan struct{}
	release chan struct{}
}

func (g *gateExtractor) RequestExtraction(ctx context.Context, req extraction.Request) extraction.Outcome {
	g.entered <- struct{}{}
	select {
	case <-g.release:
	case <-ctx.Done():
	}
	return extraction.Outcome{}
}

func newStubPipeline(t *testing.T, cfg Config, ext Extractor) (*Pipeline, *memContinuity) {
	t.Helper()
	cont := &memContinuity{}
	p, err := NewPipeline(cfg, Deps{Facts: newMemFacts(), Continuity: cont, Extractor: ext}, nil)
	require.NoError(t, err)
	return p, cont
}

func TestSubmit_BeforeStart(t *testing.T) {
	p, _ := newStubPipeline(t, DefaultConfig(), &stubExtractor{})
	assert.False(t, p.Submit(userJob("hello there")))
	assert.Equal(t, 0, p.QueueLength())
}

func TestWorkerPool_DrainsQueueOnShutdown(t *testing.T) {
	defer goleak.VerifyNone(t)

	ext := &stubExtractor{outcome: extraction.Outcome{
		Facts: []types.Fact{{Key: "residence", Value: "Lives in Ohio", Importance: 3, Confidence: 3}},
	}}
	p, cont := newStubPipeline(t, DefaultConfig(), ext)

	var completed atomic.Int32
	p.OnComplete(func(job Job, out Outcome) {
		assert.False(t, job.Timestamp.IsZero())
		assert.Equal(t, 1, out.FactsWritten)
		completed.Add(1)
	})

	require.NoError(t, p.Start(context.Background()))
	for i := 0; i < 10; i++ {
		require.True(t, p.Submit(userJob("My mom lives in Ohio.")))
	}
	require.NoError(t, p.Shutdown(context.Background()))

	assert.Equal(t, int32(10), completed.Load())
	assert.Equal(t, int32(10), cont.merges.Load())
	assert.Equal(t, 10, ext.calls())
	assert.False(t, p.Submit(userJob("after shutdown")))
}

func TestWorkerPool_StartTwice(t *testing.T) {
	defer goleak.VerifyNone(t)

	p, _ := newStubPipeline(t, DefaultConfig(), &stubExtractor{})
	require.NoError(t, p.Start(context.Background()))
	assert.Error(t, p.Start(context.Background()))
	require.NoError(t, p.Shutdown(context.Background()))
	assert.Error(t, p.Shutdown(context.Background()))
}

func TestWorkerPool_QueueFull(t *testing.T) {
	defer goleak.VerifyNone(t)

	gate := &gateExtractor{entered: make(chan struct{}, 4), release: make(chan struct{})}
	cfg := DefaultConfig()
	cfg.NumWorkers = 1
	cfg.QueueSize = 1
	p, _ := newStubPipeline(t, cfg, gate)

	require.NoError(t, p.Start(context.Background()))
	require.True(t, p.Submit(userJob("first message")))
	<-gate.entered

	require.True(t, p.Submit(userJob("second message")))
	assert.Equal(t, 1, p.QueueLength())
	assert.False(t, p.Submit(userJob("third message")), "queue is full")

	close(gate.release)
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestWorkerPool_ShutdownTimeoutCancelsInFlight(t *testing.T) {
	defer goleak.VerifyNone(t)

	gate := &gateExtractor{entered: make(chan struct{}, 4), release: make(chan struct{})}
	cfg := DefaultConfig()
	cfg.NumWorkers = 1
	cfg.ShutdownTimeout = 20 * time.Millisecond
	p, _ := newStubPipeline(t, cfg, gate)

	var completed atomic.Int32
	p.OnComplete(func(Job, Outcome) { completed.Add(1) })

	require.NoError(t, p.Start(context.Background()))
	require.True(t, p.Submit(userJob("first message")))
	require.True(t, p.Submit(userJob("second message")))
	<-gate.entered

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Equal(t, int32(1), completed.Load(), "queued job dropped after cancel")
}

func TestWorkerPool_ShutdownContextCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	gate := &gateExtractor{entered: make(chan struct{}, 4), release: make(chan struct{})}
	cfg := DefaultConfig()
	cfg.NumWorkers = 1
	p, _ := newStubPipeline(t, cfg, gate)

	require.NoError(t, p.Start(context.Background()))
	require.True(t, p.Submit(userJob("first message")))
	<-gate.entered

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Shutdown(ctx), context.Canceled)
}
