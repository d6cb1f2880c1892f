// Package resolver produces the ChatConfig of a widget instance from the defaults, the
// remote widget API and the host page's inline config, and caches it per widget id.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/chatwidget/internal/logger"
	"github.com/chatwidget/internal/model"
	"github.com/chatwidget/internal/storage"
	"github.com/chatwidget/internal/widgetconfig"
)

const (
	defaultFetchTimeout = 5 * time.Second
	maxConfigBody       = 1 << 20
)

var ErrEmptyWidgetID = errors.New("resolver: empty widget id")

type Options struct {
	WidgetID      string
	RemoteBaseURL string
	InlineConfig  *model.ConfigPatch
}

// Resolver is owned by the embedding application; independent resolvers share nothing.
type Resolver struct {
	cache        storage.ConfigStore
	client       *http.Client
	fetchTimeout time.Duration
	group        singleflight.Group
	fetches      atomic.Int64
}

type Option func(*Resolver)

// WithHTTPClient replaces the client used for the remote config fetch; nil keeps the default.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) {
		if c != nil {
			r.client = c
		}
	}
}

// WithFetchTimeout bounds the remote config fetch; non-positive values keep the default.
func WithFetchTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.fetchTimeout = d
		}
	}
}

func New(cache storage.ConfigStore, opts ...Option) *Resolver {
	r := &Resolver{
		cache:        cache,
		client:       &http.Client{},
		fetchTimeout: defaultFetchTimeout,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Fetches is the number of remote fetches attempted so far.
func (r *Resolver) Fetches() int64 { return r.fetches.Load() }

// Resolve returns the cached config for opts.WidgetID, or builds it as
// defaults <- remote config <- inline config and caches the result.
// Concurrent calls for one uncached id share a single build. Remote failures are
// logged and leave the defaults in place; the only error is an empty widget id.
func (r *Resolver) Resolve(ctx context.Context, opts Options) (model.ChatConfig, error) {
	if opts.WidgetID == "" {
		return widgetconfig.Default(), ErrEmptyWidgetID
	}
	if cfg := r.cached(ctx, opts.WidgetID); cfg != nil {
		return *cfg, nil
	}
	// The shared build outlives any single caller's cancellation.
	shared := context.WithoutCancel(ctx)
	v, _, _ := r.group.Do(opts.WidgetID, func() (any, error) {
		ctx := shared
		if cfg := r.cached(ctx, opts.WidgetID); cfg != nil {
			return *cfg, nil
		}
		cfg := r.build(ctx, opts)
		if err := r.cache.Set(ctx, opts.WidgetID, cfg); err != nil {
			logger.Warnf("resolver: cache %s: %v", opts.WidgetID, err)
		}
		return cfg, nil
	})
	return v.(model.ChatConfig).Clone(), nil
}

func (r *Resolver) cached(ctx context.Context, widgetID string) *model.ChatConfig {
	cfg, err := r.cache.Get(ctx, widgetID)
	if err != nil {
		logger.Warnf("resolver: cache lookup %s: %v", widgetID, err)
		return nil
	}
	return cfg
}

// build layers defaults, then the remote config, then the inline config.
func (r *Resolver) build(ctx context.Context, opts Options) model.ChatConfig {
	var remote *model.ConfigPatch
	if opts.RemoteBaseURL != "" {
		patch, err := r.fetchRemote(ctx, opts.RemoteBaseURL, opts.WidgetID)
		if err != nil {
			logger.Warnf("resolver: remote config for %s unavailable, using defaults: %v", opts.WidgetID, err)
		}
		remote = patch
	}
	return widgetconfig.MergeAll(widgetconfig.Default(), remote, opts.InlineConfig)
}

// ConfigURL is GET {base}/api/widgets/{id}/config.
func ConfigURL(baseURL, widgetID string) string {
	return strings.TrimRight(baseURL, "/") + "/api/widgets/" + url.PathEscape(widgetID) + "/config"
}

func (r *Resolver) fetchRemote(ctx context.Context, baseURL, widgetID string) (*model.ConfigPatch, error) {
	defer logger.DeferLogDuration("resolver.fetchRemote", time.Now())()
	r.fetches.Add(1)

	ctx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ConfigURL(baseURL, widgetID), nil)
	if err != nil {
		return nil, fmt.Errorf("resolver.fetchRemote: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("resolver.fetchRemote: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("resolver.fetchRemote: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxConfigBody))
	if err != nil {
		return nil, fmt.Errorf("resolver.fetchRemote: read: %w", err)
	}
	patch, err := widgetconfig.DecodePatch(body)
	if err != nil {
		return nil, fmt.Errorf("resolver.fetchRemote: %w", err)
	}
	return patch, nil
}

// UpdateConfig merges patch into the cached config (defaults when absent) and stores the
// result. The remote API is not consulted.
func (r *Resolver) UpdateConfig(ctx context.Context, widgetID string, patch *model.ConfigPatch) (model.ChatConfig, error) {
	if widgetID == "" {
		return widgetconfig.Default(), ErrEmptyWidgetID
	}
	base := widgetconfig.Default()
	if cfg := r.cached(ctx, widgetID); cfg != nil {
		base = *cfg
	}
	out := widgetconfig.Merge(base, patch)
	if err := r.cache.Set(ctx, widgetID, out); err != nil {
		return out, fmt.Errorf("resolver.UpdateConfig: %w", err)
	}
	return out, nil
}

// Replace stores cfg as the cached config of widgetID, dropping whatever was cached before.
func (r *Resolver) Replace(ctx context.Context, widgetID string, cfg model.ChatConfig) (model.ChatConfig, error) {
	if widgetID == "" {
		return widgetconfig.Default(), ErrEmptyWidgetID
	}
	out := widgetconfig.Normalize(cfg.Clone())
	if err := r.cache.Set(ctx, widgetID, out); err != nil {
		return out, fmt.Errorf("resolver.Replace: %w", err)
	}
	return out, nil
}

// Invalidate forces the next Resolve of widgetID to rebuild.
func (r *Resolver) Invalidate(ctx context.Context, widgetID string) {
	if err := r.cache.Delete(ctx, widgetID); err != nil {
		logger.Warnf("resolver: invalidate %s: %v", widgetID, err)
	}
	r.group.Forget(widgetID)
}

func (r *Resolver) InvalidateAll(ctx context.Context) {
	if err := r.cache.Clear(ctx); err != nil {
		logger.Warnf("resolver: invalidate all: %v", err)
	}
}
