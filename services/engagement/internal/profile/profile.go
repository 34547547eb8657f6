// Package profile resolves denormalized author display data for
// realtime comment enrichment, with a cross-thread cache so one session
// never fetches the same author twice.
package profile

import (
	"context"

	"go.uber.org/zap"
)

// Profile is the display shape joined onto comments.
type Profile struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// PlaceholderName is used when enrichment fails. A comment is never
// dropped for a missing profile.
const PlaceholderName = "Unknown"

// Placeholder returns the degraded profile for an unresolvable author.
func Placeholder(id string) Profile {
	return Profile{ID: id, DisplayName: PlaceholderName}
}

// Source is the backing lookup for author profiles.
type Source interface {
	Profiles(ctx context.Context, ids []string) (map[string]Profile, error)
}

// Cache stores resolved profiles. Entries are idempotently
// overwritable, so implementations need no fancy coordination.
type Cache interface {
	Get(ctx context.Context, id string) (Profile, bool)
	Set(ctx context.Context, p Profile)
}

// Resolver combines a Source with a Cache and degrades to a
// placeholder on lookup failure.
type Resolver struct {
	src   Source
	cache Cache
	log   *zap.Logger
}

func NewResolver(src Source, cache Cache, log *zap.Logger) *Resolver {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{src: src, cache: cache, log: log}
}

// Resolve returns the profile for id, from cache when possible. On a
// source failure it returns a placeholder and logs; the caller renders
// the comment regardless.
func (r *Resolver) Resolve(ctx context.Context, id string) Profile {
	if p, ok := r.cache.Get(ctx, id); ok {
		return p
	}
	found, err := r.src.Profiles(ctx, []string{id})
	if err != nil {
		r.log.Warn("profile lookup failed, using placeholder", zap.String("author_id", id), zap.Error(err))
		return Placeholder(id)
	}
	p, ok := found[id]
	if !ok {
		r.log.Warn("profile not found, using placeholder", zap.String("author_id", id))
		return Placeholder(id)
	}
	r.cache.Set(ctx, p)
	return p
}

// Warm seeds the cache, typically from a joined thread read.
func (r *Resolver) Warm(ctx context.Context, profiles []Profile) {
	for _, p := range profiles {
		if p.ID != "" {
			r.cache.Set(ctx, p)
		}
	}
}
