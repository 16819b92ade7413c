package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/internal/consolidate"
	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/internal/extraction"
	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/internal/logger"
	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/internal/result"
	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/internal/storage"
	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/pkg/types"
)

// FactService is the fact upsert engine. *facts.Service implements it.
type FactService interface {
	UpsertFacts(ctx context.Context, identity, subject string, facts []types.Fact) result.Result[int]
	TouchFacts(ctx context.Context, identity, subject string, keys []string) result.Result[int]
	ListFacts(ctx context.Context, identity, subject string, limit int) result.Result[[]types.Fact]
}

// ContinuityService is the continuity manager. *continuity.Manager implements it.
type ContinuityService interface {
	IsEnabled(ctx context.Context, identity, subject string) bool
	Merge(ctx context.Context, identity, subject string, delta *types.ContinuityDelta) result.Result[types.ContinuitySummary]
}

// Extractor runs one extraction call. *extraction.Client implements it.
type Extractor interface {
	RequestExtraction(ctx context.Context, req extraction.Request) extraction.Outcome
}

// TranscriptSource supplies the recent conversation for a subject, oldest first.
type TranscriptSource interface {
	RecentTurns(ctx context.Context, identity, subject string, limit int) ([]types.Turn, error)
}

// Deps are the collaborators a Pipeline drives. Transcripts may be nil when
// every Job carries its own turns.
type Deps struct {
	Facts        FactService
	Continuity   ContinuityService
	Extractor    Extractor
	Transcripts  TranscriptSource
	Consolidator *consolidate.Engine
}

// Pipeline is the top-level extraction entry point.
type Pipeline struct {
	config Config
	deps   Deps
	log    *logger.Logger

	mu           sync.RWMutex
	started      bool
	queue        chan Job
	workerWG     sync.WaitGroup
	workerCtx    context.Context
	workerCancel context.CancelFunc

	cbMu       sync.RWMutex
	onComplete func(Job, Outcome)
}

// NewPipeline creates a Pipeline. Facts, Continuity and Extractor are required.
func NewPipeline(config Config, deps Deps, log *logger.Logger) (*Pipeline, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if deps.Facts == nil || deps.Continuity == nil || deps.Extractor == nil {
		return nil, fmt.Errorf("facts, continuity and extractor are required")
	}
	if deps.Consolidator == nil {
		deps.Consolidator = consolidate.NewEngine(consolidate.Options{})
	}
	return &Pipeline{
		config: config,
		deps:   deps,
		log:    logger.OrNop(log).With("component", "pipeline"),
	}, nil
}

// OnComplete registers a callback invoked after each queued job finishes.
func (p *Pipeline) OnComplete(fn func(Job, Outcome)) {
	p.cbMu.Lock()
	defer p.cbMu.Unlock()
	p.onComplete = fn
}

// Process runs one extraction for job and writes the results. It never
// returns an error; Outcome says which path was taken.
func (p *Pipeline) Process(ctx context.Context, job Job) Outcome {
	trace := NewTraceCollector()
	log := p.log.With("identity", job.Identity, "subject", job.Subject)

	if !p.deps.Continuity.IsEnabled(ctx, job.Identity, job.Subject) {
		trace.Emit(KindSkipped, 0, string(result.KindDisabled))
		log.Debug("capture disabled, skipping extraction")
		return Outcome{Skipped: true, ErrorCode: result.KindDisabled, Trace: trace.Events()}
	}

	known := p.deps.Facts.ListFacts(ctx, job.Identity, job.Subject, p.config.KnownFactLimit)
	turns := p.turns(ctx, job)
	userTurns, lastAssistant := splitTurns(turns)
	trace.Emit(KindContextLoaded, len(userTurns), string(known.Kind))

	if len(userTurns) == 0 {
		log.Debug("no user turns to extract from")
		return Outcome{ErrorCode: result.KindFiltered, Trace: trace.Events()}
	}

	req := extraction.Request{
		SubjectName:       job.SubjectName,
		RecentUserTurns:   userTurns,
		LastAssistantTurn: lastAssistant,
		KnownFacts:        knownFacts(known.Value),
		Identity:          job.Identity,
		Subject:           job.Subject,
	}
	ext := p.deps.Extractor.RequestExtraction(ctx, req)
	trace.Emit(KindExtracted, len(ext.Facts), string(ext.ErrorCode))

	out := Outcome{ErrorCode: ext.ErrorCode, Fallback: ext.Fallback}
	if !ext.OK() {
		out.FactsWritten = ext.FallbackFacts
		// A nil delta leaves an existing summary alone and creates a missing row.
		res := p.deps.Continuity.Merge(ctx, job.Identity, job.Subject, nil)
		out.ContinuityUpdated = res.IsOK()
		trace.Emit(KindContinuityMerged, len(res.Value.OpenLoops), string(res.Kind))
		out.Trace = trace.Events()
		log.Info("extraction fell back to heuristics", "kind", string(ext.ErrorCode), "facts", ext.FallbackFacts)
		return out
	}

	// Steps are independent: each records its own result and none cancels the others.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if len(ext.Facts) == 0 {
			return nil
		}
		res := p.deps.Facts.UpsertFacts(gctx, job.Identity, job.Subject, ext.Facts)
		out.FactsWritten = res.Value
		trace.Emit(KindFactsUpserted, res.Value, string(res.Kind))
		return nil
	})
	g.Go(func() error {
		if len(ext.MentionedKeys) == 0 {
			return nil
		}
		res := p.deps.Facts.TouchFacts(gctx, job.Identity, job.Subject, ext.MentionedKeys)
		out.KeysTouched = res.Value
		trace.Emit(KindFactsTouched, res.Value, string(res.Kind))
		return nil
	})
	g.Go(func() error {
		res := p.deps.Continuity.Merge(gctx, job.Identity, job.Subject, ext.Continuity)
		out.ContinuityUpdated = res.IsOK()
		trace.Emit(KindContinuityMerged, len(res.Value.OpenLoops), string(res.Kind))
		return nil
	})
	_ = g.Wait()

	out.Trace = trace.Events()
	log.Debug("extraction applied",
		"facts", out.FactsWritten,
		"touched", out.KeysTouched,
		"continuity", out.ContinuityUpdated,
		"elapsed_ms", trace.ElapsedMS(),
	)
	return out
}

// Memories returns the consolidated display view for a subject.
func (p *Pipeline) Memories(ctx context.Context, identity, subject string) []types.Section {
	list := p.deps.Facts.ListFacts(ctx, identity, subject, storage.MaxListLimit)
	return p.deps.Consolidator.Consolidate(list.Value)
}

func (p *Pipeline) turns(ctx context.Context, job Job) []types.Turn {
	if len(job.Turns) > 0 {
		if len(job.Turns) > p.config.RecentTurns {
			return job.Turns[len(job.Turns)-p.config.RecentTurns:]
		}
		return job.Turns
	}
	if p.deps.Transcripts == nil {
		return nil
	}
	turns, err := p.deps.Transcripts.RecentTurns(ctx, job.Identity, job.Subject, p.config.RecentTurns)
	if err != nil {
		p.log.Warn("failed to read recent turns", "identity", job.Identity, "subject", job.Subject, "error", err)
		return nil
	}
	return turns
}

// splitTurns returns the user texts in order and the text of the last
// assistant turn.
func splitTurns(turns []types.Turn) ([]string, string) {
	var user []string
	var assistant string
	for _, t := range turns {
		text := strings.TrimSpace(t.Text)
		if text == "" {
			continue
		}
		switch t.Role {
		case types.RoleUser:
			user = append(user, text)
		case types.RoleAssistant:
			assistant = text
		}
	}
	return user, assistant
}

func knownFacts(list []types.Fact) []types.KnownFact {
	out := make([]types.KnownFact, 0, len(list))
	for _, f := range list {
		out = append(out, f.Known())
	}
	return out
}
