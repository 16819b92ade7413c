// Package extraction is the remote extraction client. It calls the external
// extraction service with recent turns and known facts, classifies every
// failure, and falls back to the local heuristic extractor so a failed
// call never loses what the user said.
package extraction

import (
	"context"

	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/pkg/types"
)

// Request is the extraction request. It is also the JSON body POSTed to
// the remote service.
type Request struct {
	SubjectName       string            `json:"subject_name"`
	RecentUserTurns   []string          `json:"recent_user_turns"`
	LastAssistantTurn string            `json:"last_assistant_turn,omitempty"`
	KnownFacts        []types.KnownFact `json:"known_facts"`
	Identity          string            `json:"identity"`
	Subject           string            `json:"subject_id"`
}

// WireFact is a candidate fact as the service sends it. Scores are floats
// because the service may use a fractional 0-1 confidence scale.
type WireFact struct {
	Category   string  `json:"category"`
	Key        string  `json:"key"`
	Value      string  `json:"value"`
	Importance float64 `json:"importance"`
	Confidence float64 `json:"confidence"`
}

// Response is the decoded service response.
type Response struct {
	Facts         []WireFact             `json:"facts"`
	MentionedKeys []string               `json:"mentioned_keys"`
	Continuity    *types.ContinuityDelta `json:"continuity,omitempty"`
	Error         *string                `json:"error"`
}

// Service is a remote extraction backend. Errors returned by
// implementations carry a result.Kind (see result.KindOf).
type Service interface {
	Extract(ctx context.Context, req Request) (*Response, error)
}
