package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sifan077/SafeURL/internal/app/model"
	"github.com/sifan077/SafeURL/internal/app/repository"
	"go.uber.org/zap"
)

// RedirectResolver turns a short code into the URL to redirect to.
type RedirectResolver interface {
	Resolve(ctx context.Context, code string) (string, error)
}

// ResolverDeps groups what a RedirectResolver needs.
type ResolverDeps struct {
	Logger     *zap.Logger
	Links      repository.LinkRepository
	Cache      repository.LinkCache
	Clicks     ClickCounter
	Validator  URLValidator
	Metrics    *Metrics
	Background *Background

	CacheTTL     time.Duration
	StoreTimeout time.Duration
	CacheTimeout time.Duration
}

type redirectResolver struct {
	logger     *zap.Logger
	links      repository.LinkRepository
	cache      repository.LinkCache
	clicks     ClickCounter
	validator  URLValidator
	metrics    *Metrics
	background *Background

	cacheTTL     time.Duration
	storeTimeout time.Duration
	cacheTimeout time.Duration
}

// NewRedirectResolver fills unset options with defaults. A nil Cache resolves
// every request from the store; a nil Clicks disables counting.
func NewRedirectResolver(deps ResolverDeps) RedirectResolver {
	r := &redirectResolver{
		logger:       deps.Logger,
		links:        deps.Links,
		cache:        deps.Cache,
		clicks:       deps.Clicks,
		validator:    deps.Validator,
		metrics:      deps.Metrics,
		background:   deps.Background,
		cacheTTL:     deps.CacheTTL,
		storeTimeout: deps.StoreTimeout,
		cacheTimeout: deps.CacheTimeout,
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.cache == nil {
		r.cache = repository.NopCache{}
	}
	if r.metrics == nil {
		r.metrics = NewMetrics(nil)
	}
	if r.background == nil {
		r.background = NewBackground(r.logger, r.metrics, 0)
	}
	if r.cacheTTL <= 0 {
		r.cacheTTL = DefaultCacheTTL
	}
	if r.storeTimeout <= 0 {
		r.storeTimeout = DefaultStoreTimeout
	}
	if r.cacheTimeout <= 0 {
		r.cacheTimeout = DefaultCacheTimeout
	}
	return r
}

// Resolve checks the cache first. Cached URLs are trusted until their TTL
// runs out; anything read from the store is revalidated, and a link that
// fails revalidation is deleted. A revalidation that could not reach DNS
// leaves the link in place and reports ErrTransient.
func (r *redirectResolver) Resolve(ctx context.Context, code string) (string, error) {
	if code == "" {
		return "", fmt.Errorf("resolve: %w", ErrInvalidInput)
	}
	// code is captured by background tasks that run after the caller returns.
	code = strings.Clone(code)

	if url, hit := r.lookupCache(ctx, code); hit {
		r.metrics.Resolutions.WithLabelValues(OutcomeCacheHit).Inc()
		r.countClick(code)
		return url, nil
	}

	link, err := r.load(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			r.metrics.Resolutions.WithLabelValues(OutcomeNotFound).Inc()
			return "", ErrNotFound
		}
		r.metrics.Resolutions.WithLabelValues(OutcomeError).Inc()
		r.logger.Error("failed to load link", zap.String("code", code), zap.Error(err))
		return "", fmt.Errorf("%w: load link: %w", ErrTransient, err)
	}

	if res := r.validator.Validate(ctx, link.URL); !res.Valid {
		r.metrics.ValidationRejects.WithLabelValues(res.Reason).Inc()
		if res.Transient {
			// The link may be fine; keep it and let the client retry.
			r.metrics.Resolutions.WithLabelValues(OutcomeError).Inc()
			r.logger.Warn("could not revalidate stored link",
				zap.String("code", code),
				zap.String("reason", res.Reason),
			)
			return "", fmt.Errorf("%w: revalidate link: %s", ErrTransient, res.Reason)
		}
		return "", r.invalidate(ctx, code, res.Reason)
	}

	r.background.Go(TaskCachePopulate, code, func(ctx context.Context) error {
		return r.cache.Set(ctx, code, link.URL, r.cacheTTL)
	})
	r.countClick(code)

	r.metrics.Resolutions.WithLabelValues(OutcomeResolved).Inc()
	r.logger.Debug("resolved short link from store", zap.String("code", code))
	return link.URL, nil
}

func (r *redirectResolver) lookupCache(ctx context.Context, code string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, r.cacheTimeout)
	defer cancel()

	url, hit, err := r.cache.Get(ctx, code)
	if err != nil {
		r.metrics.CacheErrors.Inc()
		r.logger.Warn("cache lookup failed, falling back to store", zap.String("code", code), zap.Error(err))
		return "", false
	}
	return url, hit
}

func (r *redirectResolver) load(ctx context.Context, code string) (*model.Link, error) {
	ctx, cancel := context.WithTimeout(ctx, r.storeTimeout)
	defer cancel()
	return r.links.GetByCode(ctx, code)
}

func (r *redirectResolver) invalidate(ctx context.Context, code, reason string) error {
	dctx, cancel := context.WithTimeout(ctx, r.storeTimeout)
	defer cancel()

	if err := r.links.Delete(dctx, code); err != nil {
		r.metrics.Resolutions.WithLabelValues(OutcomeError).Inc()
		r.logger.Error("failed to delete invalidated link",
			zap.String("code", code),
			zap.String("reason", reason),
			zap.Error(err),
		)
		return fmt.Errorf("%w: delete invalidated link: %w", ErrTransient, err)
	}

	r.background.Go(TaskCacheInvalidate, code, func(ctx context.Context) error {
		return r.cache.Delete(ctx, code)
	})

	r.metrics.Resolutions.WithLabelValues(OutcomeInvalidated).Inc()
	r.logger.Warn("stored link failed revalidation and was removed",
		zap.String("code", code),
		zap.String("reason", reason),
	)
	return &InvalidatedError{Code: code, Reason: reason}
}

func (r *redirectResolver) countClick(code string) {
	if r.clicks == nil {
		return
	}
	r.background.Go(TaskClickIncrement, code, func(ctx context.Context) error {
		return r.clicks.Increment(ctx, code)
	})
}
