package storage

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const (
	DriverCookie = "cookie"
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// Config selects and configures the credential store backend.
type Config struct {
	Driver string
	Limit  int
	Redis  RedisOptions
}

// Provider hands out the store that backs a given request.
type Provider interface {
	For(w http.ResponseWriter, r *http.Request) Store
	Close() error
}

type sharedProvider struct {
	store Store
	close func() error
}

func (p *sharedProvider) For(http.ResponseWriter, *http.Request) Store { return p.store }

func (p *sharedProvider) Close() error {
	if p.close == nil {
		return nil
	}
	return p.close()
}

type cookieProvider struct {
	limit int
}

func (p *cookieProvider) For(w http.ResponseWriter, r *http.Request) Store {
	return NewCookieStore(r, w, p.limit)
}

func (p *cookieProvider) Close() error { return nil }

// NewProvider builds the provider for cfg.Driver.
func NewProvider(ctx context.Context, cfg Config) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverCookie:
		return &cookieProvider{limit: cfg.Limit}, nil
	case DriverMemory:
		return &sharedProvider{store: NewMemoryStore(cfg.Limit)}, nil
	case DriverRedis:
		opts := cfg.Redis
		if opts.Limit == 0 {
			opts.Limit = cfg.Limit
		}
		rs, err := NewRedisStore(ctx, opts)
		if err != nil {
			return nil, err
		}
		return &sharedProvider{store: rs, close: rs.Close}, nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}

// SharedProvider wraps a single store for every request.
func SharedProvider(s Store) Provider {
	return &sharedProvider{store: s}
}

type storeCtxKey struct{}

// WithStore attaches a store to ctx.
func WithStore(ctx context.Context, s Store) context.Context {
	return context.WithValue(ctx, storeCtxKey{}, s)
}

// FromContext returns the store attached by WithStore.
func FromContext(ctx context.Context) (Store, bool) {
	s, ok := ctx.Value(storeCtxKey{}).(Store)
	return s, ok && s != nil
}
