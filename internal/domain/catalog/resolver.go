package catalog

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jecaicedo27/toppingfrozen-sub005/internal/core/apperror"
	"github.com/jecaicedo27/toppingfrozen-sub005/pkg/logger"
)

// sharedLookupTimeout bounds a lookup that outlives the caller who started it.
const sharedLookupTimeout = 2 * time.Minute

// Lookup fetches one product from the ledger catalog by exact code.
// A miss must be reported as an apperror NOT_FOUND.
type Lookup interface {
	LookupProduct(ctx context.Context, code string) (ProductReference, error)
}

// Resolution is a successful resolve.
type Resolution struct {
	Product ProductReference
	// Code is the candidate that resolved.
	Code string
	// Fallback is set when only the configured fallback code resolved.
	// Callers should treat such references as lower confidence.
	Fallback bool
}

// Resolver probes candidate codes against the catalog, first hit wins.
type Resolver struct {
	lookup Lookup
	cache  Cache
	flight singleflight.Group
	log    *logger.Logger
}

// NewResolver creates a resolver. A nil cache gets a fresh MemoryCache.
func NewResolver(lookup Lookup, cache Cache, log *logger.Logger) *Resolver {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Resolver{
		lookup: lookup,
		cache:  cache,
		log:    log.OrDefault().WithComponent("catalog.resolver"),
	}
}

// Resolve tries candidates in the given order, then the fallback code.
// Misses come back as NOT_FOUND so callers can degrade to their own data;
// only context cancellation is returned as-is.
func (r *Resolver) Resolve(ctx context.Context, candidates []string, fallback string) (Resolution, error) {
	codes := NormalizeCandidates(candidates)
	fb := NormalizeCode(fallback)

	strategies := make([]Strategy, 0, len(codes)+1)
	for _, code := range codes {
		strategies = append(strategies, r.probe(code))
	}
	useFallback := fb != "" && !contains(codes, fb)
	if useFallback {
		strategies = append(strategies, r.probe(fb))
	}
	if len(strategies) == 0 {
		return Resolution{}, apperror.NewNotFound("product", codes)
	}

	ref, idx, err := FirstSuccess(ctx, strategies...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Resolution{}, ctxErr
		}
		return Resolution{}, apperror.NewNotFound("product", codes).WithCause(err)
	}

	if idx < len(codes) {
		return Resolution{Product: ref, Code: codes[idx]}, nil
	}

	r.log.WithContext(ctx).Warnw("no candidate resolved, using configured fallback product",
		"candidates", codes,
		"fallback", fb)
	return Resolution{Product: ref, Code: fb, Fallback: true}, nil
}

// probe checks the cache, then asks the catalog. Concurrent probes of the
// same code share one lookup, which runs detached from the caller that
// started it so its cancellation cannot fail the others. Only successful
// lookups are cached.
func (r *Resolver) probe(code string) Strategy {
	return func(ctx context.Context) (ProductReference, error) {
		if ref, ok := r.cache.Get(ctx, code); ok {
			return ref, nil
		}

		ch := r.flight.DoChan(code, func() (any, error) {
			lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedLookupTimeout)
			defer cancel()

			ref, err := r.lookup.LookupProduct(lookupCtx, code)
			if err != nil {
				return nil, err
			}
			r.cache.Put(lookupCtx, code, ref)
			return ref, nil
		})

		select {
		case <-ctx.Done():
			return ProductReference{}, ctx.Err()
		case res := <-ch:
			if res.Err != nil {
				if apperror.IsNotFound(res.Err) {
					r.log.WithContext(ctx).Debugw("code not in catalog", "code", code)
				} else {
					r.log.WithContext(ctx).Warnw("catalog probe failed", "code", code, "error", res.Err)
				}
				return ProductReference{}, fmt.Errorf("probe %s: %w", code, res.Err)
			}
			return res.Val.(ProductReference).Clone(), nil
		}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
