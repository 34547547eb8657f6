package profile

import (
	"context"
	"errors"
	"testing"
)

type fakeSource struct {
	profiles map[string]Profile
	err      error
	calls    int
}

func (f *fakeSource) Profiles(_ context.Context, ids []string) (map[string]Profile, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]Profile)
	for _, id := range ids {
		if p, ok := f.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func TestResolver_CachesLookups(t *testing.T) {
	src := &fakeSource{profiles: map[string]Profile{
		"u1": {ID: "u1", Username: "ada", DisplayName: "Ada"},
	}}
	r := NewResolver(src, NewMemoryCache(), nil)
	ctx := context.Background()

	p := r.Resolve(ctx, "u1")
	if p.Username != "ada" {
		t.Fatalf("unexpected profile: %+v", p)
	}
	_ = r.Resolve(ctx, "u1")
	if src.calls != 1 {
		t.Fatalf("expected one source call, got %d", src.calls)
	}
}

func TestResolver_PlaceholderOnError(t *testing.T) {
	src := &fakeSource{err: errors.New("backend down")}
	r := NewResolver(src, NewMemoryCache(), nil)

	p := r.Resolve(context.Background(), "u2")
	if p.DisplayName != PlaceholderName || p.ID != "u2" {
		t.Fatalf("expected placeholder, got %+v", p)
	}
}

func TestResolver_PlaceholderOnMissing(t *testing.T) {
	src := &fakeSource{profiles: map[string]Profile{}}
	r := NewResolver(src, NewMemoryCache(), nil)

	p := r.Resolve(context.Background(), "ghost")
	if p.DisplayName != PlaceholderName {
		t.Fatalf("expected placeholder for unknown author, got %+v", p)
	}
	// Placeholders are not cached; a later retry may succeed.
	src.profiles["ghost"] = Profile{ID: "ghost", Username: "casper", DisplayName: "Casper"}
	p = r.Resolve(context.Background(), "ghost")
	if p.Username != "casper" {
		t.Fatalf("expected recovery after source knows the author, got %+v", p)
	}
}

func TestResolver_Warm(t *testing.T) {
	src := &fakeSource{}
	r := NewResolver(src, NewMemoryCache(), nil)
	r.Warm(context.Background(), []Profile{{ID: "u3", Username: "lin", DisplayName: "Lin"}})

	p := r.Resolve(context.Background(), "u3")
	if p.Username != "lin" {
		t.Fatalf("expected warmed profile, got %+v", p)
	}
	if src.calls != 0 {
		t.Fatalf("warmed resolve should not hit the source, calls=%d", src.calls)
	}
}
