package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/pkg/types"
)

var (
	// ErrNotFound indicates that the requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")
)

const (
	// DefaultListLimit is used when ListOptions.Limit is unset.
	DefaultListLimit = 50

	// MaxListLimit caps a single ListFacts call.
	MaxListLimit = 500
)

// ListOptions provides limiting and filtering for ListFacts.
type ListOptions struct {
	// Limit is the maximum number of facts (default: 50, max: 500).
	Limit int

	// Category filters on the raw stored category. Empty means no filter.
	Category string
}

// Normalize applies defaults and bounds.
func (o *ListOptions) Normalize() {
	if o.Limit < 1 {
		o.Limit = DefaultListLimit
	}
	if o.Limit > MaxListLimit {
		o.Limit = MaxListLimit
	}
	o.Category = strings.TrimSpace(o.Category)
}

// LastByKey collapses facts sharing (identity, subject, key), keeping the
// last occurrence in the position of the first. Backends that reject a
// batch touching the same row twice rely on this.
func LastByKey(facts []types.Fact) []types.Fact {
	type k struct{ identity, subject, key string }
	index := make(map[k]int, len(facts))
	out := make([]types.Fact, 0, len(facts))
	for _, f := range facts {
		id := k{f.Identity, f.Subject, f.Key}
		if i, ok := index[id]; ok {
			out[i] = f
			continue
		}
		index[id] = len(out)
		out = append(out, f)
	}
	return out
}

// ValidateFact checks the fields every backend requires.
func ValidateFact(f types.Fact) error {
	switch {
	case f.Identity == "":
		return fmt.Errorf("%w: identity is required", ErrInvalidInput)
	case f.Subject == "":
		return fmt.Errorf("%w: subject is required", ErrInvalidInput)
	case strings.TrimSpace(f.Key) == "":
		return fmt.Errorf("%w: key is required", ErrInvalidInput)
	}
	return nil
}
