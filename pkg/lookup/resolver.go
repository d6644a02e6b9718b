// Package lookup resolves (world, name) pairs to numeric character ids.
//
// The upstream search index is eventually consistent: a character that exists
// may transiently come back with no results. Resolver re-issues an empty lookup
// a bounded number of times before reporting ErrNotFound, and never confuses a
// transport failure with an absent character.
package lookup

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// DefaultRetries is the number of extra attempts after an empty first lookup.
const DefaultRetries = 1

// Resolver maps world and name to a character id.
type Resolver struct {
	searcher Searcher
	retries  int
	logger   zerolog.Logger
}

// NewResolver creates a resolver making up to retries extra attempts on an empty result.
func NewResolver(searcher Searcher, retries int, logger zerolog.Logger) (*Resolver, error) {
	if searcher == nil {
		return nil, fmt.Errorf("searcher is required")
	}
	return &Resolver{
		searcher: searcher,
		retries:  retries,
		logger:   logger.With().Str("component", "lookup").Logger(),
	}, nil
}

// ResolveID returns the id of the first matching character.
//
// Attempts stop at the first non-empty result. After 1+retries empty results
// ResolveID returns ErrNotFound. A negative budget returns ErrNotFound without
// searching. Transport failures are returned immediately and wrap ErrTransport.
func (r *Resolver) ResolveID(ctx context.Context, world, name string) (int64, error) {
	return r.resolve(ctx, world, name, r.retries)
}

func (r *Resolver) resolve(ctx context.Context, world, name string, budget int) (int64, error) {
	if budget < 0 {
		r.logger.Warn().
			Str("world", world).
			Str("name", name).
			Int("retries", budget).
			Msg("Negative lookup budget, reporting not found without searching")
		lookupResolutionsTotal.WithLabelValues("not_found").Inc()
		return 0, ErrNotFound
	}

	start := time.Now()
	for attempt := 0; attempt <= budget; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		candidates, err := r.searcher.Search(ctx, world, name)
		if err != nil {
			lookupAttemptsTotal.WithLabelValues("transport_error").Inc()
			lookupResolutionsTotal.WithLabelValues("transport_error").Inc()
			r.logger.Error().
				Err(err).
				Str("world", world).
				Str("name", name).
				Int("attempt", attempt+1).
				Msg("Character search failed")
			return 0, err
		}

		if len(candidates) > 0 {
			lookupAttemptsTotal.WithLabelValues("found").Inc()
			lookupResolutionsTotal.WithLabelValues("resolved").Inc()
			id := candidates[0].ID
			r.logger.Debug().
				Str("world", world).
				Str("name", name).
				Int64("id", id).
				Int("attempts", attempt+1).
				Dur("duration", time.Since(start)).
				Msg("Character resolved")
			return id, nil
		}

		lookupAttemptsTotal.WithLabelValues("empty").Inc()
		if attempt < budget {
			r.logger.Warn().
				Str("world", world).
				Str("name", name).
				Int("attempt", attempt+1).
				Int("max_attempts", budget+1).
				Msg("Empty search result, retrying")
		}
	}

	lookupResolutionsTotal.WithLabelValues("not_found").Inc()
	r.logger.Info().
		Str("world", world).
		Str("name", name).
		Int("attempts", budget+1).
		Msg("Character not found")
	return 0, ErrNotFound
}
