package ingest

import "github.com/tallyhq/tally/internal/domain"

// Normalizer adjusts a candidate from one source channel before validation.
type Normalizer func(domain.Candidate) domain.Candidate

// Registry maps a stable source-channel key to its normalizer. Handlers are
// resolved by direct lookup only; unknown channels pass through untouched.
type Registry struct {
	handlers map[string]Normalizer
}

// NewRegistry returns a registry with the built-in handlers.
func NewRegistry() *Registry {
	r := &Registry{handlers: make(map[string]Normalizer)}
	r.Register("splitwise", normalizeSplitwise)
	return r
}

// Register installs a handler for a source-channel key.
func (r *Registry) Register(channel string, n Normalizer) {
	r.handlers[channel] = n
}

// Normalize applies the channel's handler, if any.
func (r *Registry) Normalize(c domain.Candidate) domain.Candidate {
	if n, ok := r.handlers[c.SourceChannel]; ok {
		return n(c)
	}
	return c
}

// normalizeSplitwise lifts a payload-embedded expense id into the external
// reference field and copies the top-level payer into the breakdown, so
// downstream stages only ever look in one place.
func normalizeSplitwise(c domain.Candidate) domain.Candidate {
	if c.ExternalRef == "" {
		c.ExternalRef = domain.ExternalRefFromPayload(c.RawPayload)
	}
	if c.Split != nil && c.Split.PaidBy == "" && c.PaidBy != "" {
		c.Split.PaidBy = c.PaidBy
	}
	return c
}
