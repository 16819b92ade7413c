package extraction

import (
	"context"
	"errors"

	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/internal/heuristic"
	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/internal/logger"
	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/internal/result"
	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/pkg/types"
)

// FactWriter persists fallback facts. internal/facts.Service satisfies it.
type FactWriter interface {
	UpsertFacts(ctx context.Context, identity, subject string, facts []types.Fact) result.Result[int]
}

// Outcome is what RequestExtraction reports. On failure ErrorCode names the
// kind and Facts is empty: fallback facts have already been written.
type Outcome struct {
	Facts         []types.Fact
	MentionedKeys []string
	Continuity    *types.ContinuityDelta

	// Fallback is set when the heuristic extractor ran.
	Fallback bool
	// FallbackFacts is how many heuristic facts the writer accepted.
	FallbackFacts int

	ErrorCode result.Kind
	Err       error
}

// OK reports whether the remote call succeeded.
func (o Outcome) OK() bool {
	return o.ErrorCode == result.KindNone
}

// Client calls the remote service and falls back to local extraction.
type Client struct {
	service   Service
	heuristic *heuristic.Extractor
	writer    FactWriter
	log       *logger.Logger
}

// NewClient creates a Client. service may be nil, in which case every call
// takes the fallback path with KindUnconfigured. writer may be nil, in
// which case fallback facts are extracted but not stored.
func NewClient(service Service, extractor *heuristic.Extractor, writer FactWriter, log *logger.Logger) *Client {
	if extractor == nil {
		extractor = heuristic.NewDefaultExtractor()
	}
	return &Client{
		service:   service,
		heuristic: extractor,
		writer:    writer,
		log:       logger.OrNop(log).With("component", "extraction"),
	}
}

// RequestExtraction runs one extraction call. It never returns an error:
// failures are reported through Outcome.ErrorCode after the fallback ran.
func (c *Client) RequestExtraction(ctx context.Context, req Request) Outcome {
	if isNilService(c.service) {
		return c.fallback(ctx, req, result.KindUnconfigured, errors.New("extraction service not configured"))
	}

	resp, err := c.service.Extract(ctx, req)
	if err != nil {
		kind := result.KindOf(err)
		if kind == result.KindNone {
			kind = result.KindTransport
		}
		return c.fallback(ctx, req, kind, err)
	}
	if resp == nil {
		return c.fallback(ctx, req, result.KindMalformed, errors.New("empty response"))
	}

	facts := ToFacts(resp.Facts, req.Identity, req.Subject)
	c.log.Debug("extraction succeeded",
		"identity", req.Identity,
		"subject", req.Subject,
		"facts", len(facts),
		"mentioned", len(resp.MentionedKeys),
		"continuity", resp.Continuity != nil,
	)
	return Outcome{
		Facts:         facts,
		MentionedKeys: normalizeKeys(resp.MentionedKeys),
		Continuity:    resp.Continuity,
	}
}

func (c *Client) fallback(ctx context.Context, req Request, kind result.Kind, err error) Outcome {
	c.log.Warn("remote extraction failed, using heuristic extractor",
		"identity", req.Identity,
		"subject", req.Subject,
		"kind", string(kind),
		"error", err,
	)

	out := Outcome{Fallback: true, ErrorCode: kind, Err: err}

	var facts []types.Fact
	seen := make(map[string]int)
	for _, turn := range req.RecentUserTurns {
		for _, f := range c.heuristic.Extract(turn, req.SubjectName) {
			f.Identity = req.Identity
			f.Subject = req.Subject
			if i, ok := seen[f.Key]; ok {
				facts[i] = f
				continue
			}
			seen[f.Key] = len(facts)
			facts = append(facts, f)
		}
	}
	if len(facts) == 0 || c.writer == nil {
		return out
	}

	// The caller's context may already be past its deadline.
	writeCtx := ctx
	if ctx.Err() != nil {
		writeCtx = context.WithoutCancel(ctx)
	}
	res := c.writer.UpsertFacts(writeCtx, req.Identity, req.Subject, facts)
	if !res.IsOK() {
		c.log.Warn("failed to store heuristic facts", "kind", string(res.Kind), "error", res.Err)
		return out
	}
	out.FallbackFacts = res.Value
	return out
}

func normalizeKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		k = heuristic.Slug(k)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

func isNilService(s Service) bool {
	if s == nil {
		return true
	}
	if h, ok := s.(*HTTPService); ok && h == nil {
		return true
	}
	return false
}
