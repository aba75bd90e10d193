package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sifan077/SafeURL/internal/app/model"
	"github.com/sifan077/SafeURL/internal/app/repository"
	"github.com/sifan077/SafeURL/internal/app/shortcode"
	"github.com/sifan077/SafeURL/internal/app/urlguard"
	"go.uber.org/zap"
)

const (
	DefaultMaxAttempts  = 5
	DefaultLinkLifetime = 30 * 24 * time.Hour
	DefaultCacheTTL     = time.Hour
	DefaultStoreTimeout = 2 * time.Second
	DefaultCacheTimeout = 500 * time.Millisecond
)

// URLValidator decides whether a URL may be stored or followed.
type URLValidator interface {
	Validate(ctx context.Context, raw string) urlguard.Result
}

// RetryPolicy bounds how many candidate codes a create tries.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// CreatedLink is the result of a successful create.
type CreatedLink struct {
	Code      string
	URL       string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// LinkCreator publishes new short links.
type LinkCreator interface {
	Create(ctx context.Context, rawURL string) (*CreatedLink, error)
}

// CreatorDeps groups what a LinkCreator needs.
type CreatorDeps struct {
	Logger     *zap.Logger
	Links      repository.LinkRepository
	Cache      repository.LinkCache
	Validator  URLValidator
	Codes      shortcode.Generator
	Metrics    *Metrics
	Background *Background

	CodeLength   int
	Retry        RetryPolicy
	Lifetime     time.Duration
	CacheTTL     time.Duration
	StoreTimeout time.Duration
	Now          func() time.Time
}

type linkCreator struct {
	logger     *zap.Logger
	links      repository.LinkRepository
	cache      repository.LinkCache
	validator  URLValidator
	codes      shortcode.Generator
	metrics    *Metrics
	background *Background

	codeLength   int
	retry        RetryPolicy
	lifetime     time.Duration
	cacheTTL     time.Duration
	storeTimeout time.Duration
	now          func() time.Time
}

// NewLinkCreator fills unset options with defaults.
func NewLinkCreator(deps CreatorDeps) LinkCreator {
	c := &linkCreator{
		logger:       deps.Logger,
		links:        deps.Links,
		cache:        deps.Cache,
		validator:    deps.Validator,
		codes:        deps.Codes,
		metrics:      deps.Metrics,
		background:   deps.Background,
		codeLength:   deps.CodeLength,
		retry:        deps.Retry,
		lifetime:     deps.Lifetime,
		cacheTTL:     deps.CacheTTL,
		storeTimeout: deps.StoreTimeout,
		now:          deps.Now,
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.cache == nil {
		c.cache = repository.NopCache{}
	}
	if c.codes == nil {
		c.codes = shortcode.New()
	}
	if c.metrics == nil {
		c.metrics = NewMetrics(nil)
	}
	if c.background == nil {
		c.background = NewBackground(c.logger, c.metrics, 0)
	}
	if c.codeLength <= 0 {
		c.codeLength = shortcode.DefaultLength
	}
	if c.retry.MaxAttempts <= 0 {
		c.retry.MaxAttempts = DefaultMaxAttempts
	}
	if c.lifetime <= 0 {
		c.lifetime = DefaultLinkLifetime
	}
	if c.cacheTTL <= 0 {
		c.cacheTTL = DefaultCacheTTL
	}
	if c.storeTimeout <= 0 {
		c.storeTimeout = DefaultStoreTimeout
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

func (c *linkCreator) Create(ctx context.Context, rawURL string) (*CreatedLink, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		c.metrics.CreateFailures.WithLabelValues("invalid_input").Inc()
		return nil, fmt.Errorf("create link: %w", ErrInvalidInput)
	}

	if res := c.validator.Validate(ctx, rawURL); !res.Valid {
		c.metrics.ValidationRejects.WithLabelValues(res.Reason).Inc()
		c.metrics.CreateFailures.WithLabelValues("validation").Inc()
		return nil, &ValidationError{Reason: res.Reason}
	}
	target := urlguard.Canonical(rawURL)

	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := c.wait(ctx); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrStore, err)
			}
		}

		code, err := c.codes.Generate(c.codeLength)
		if err != nil {
			c.metrics.CreateFailures.WithLabelValues("codegen").Inc()
			return nil, fmt.Errorf("generate short code: %w", err)
		}

		now := c.now().UTC()
		link := &model.Link{
			Code:      code,
			URL:       target,
			CreatedAt: now,
			ExpiresAt: now.Add(c.lifetime),
		}

		err = c.insert(ctx, link)
		if err == nil {
			c.metrics.LinksCreated.Inc()
			c.warmCache(code, target)
			return &CreatedLink{
				Code:      code,
				URL:       target,
				CreatedAt: link.CreatedAt,
				ExpiresAt: link.ExpiresAt,
			}, nil
		}

		if errors.Is(err, repository.ErrLinkExists) {
			c.metrics.Collisions.Inc()
			c.logger.Warn("short code collision, retrying",
				zap.String("code", code),
				zap.Int("attempt", attempt),
			)
			continue
		}

		c.metrics.CreateFailures.WithLabelValues("store").Inc()
		c.logger.Error("failed to persist link", zap.String("code", code), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}

	c.metrics.CreateFailures.WithLabelValues("exhausted").Inc()
	return nil, fmt.Errorf("%w after %d attempts", ErrExhaustedRetries, c.retry.MaxAttempts)
}

func (c *linkCreator) insert(ctx context.Context, link *model.Link) error {
	ctx, cancel := context.WithTimeout(ctx, c.storeTimeout)
	defer cancel()
	return c.links.CreateIfAbsent(ctx, link)
}

func (c *linkCreator) wait(ctx context.Context) error {
	if c.retry.Backoff <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(c.retry.Backoff)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *linkCreator) warmCache(code, url string) {
	c.background.Go(TaskCachePopulate, code, func(ctx context.Context) error {
		return c.cache.Set(ctx, code, url, c.cacheTTL)
	})
}
