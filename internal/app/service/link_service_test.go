package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sifan077/SafeURL/internal/app/model"
	"github.com/sifan077/SafeURL/internal/app/repository"
	"github.com/sifan077/SafeURL/internal/app/urlguard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLinkRepository struct {
	createFn        func(ctx context.Context, link *model.Link) error
	getFn           func(ctx context.Context, code string) (*model.Link, error)
	deleteFn        func(ctx context.Context, code string) error
	deleteExpiredFn func(ctx context.Context, before time.Time) (int64, error)
}

func (m *mockLinkRepository) CreateIfAbsent(ctx context.Context, link *model.Link) error {
	if m.createFn != nil {
		return m.createFn(ctx, link)
	}
	return nil
}

func (m *mockLinkRepository) GetByCode(ctx context.Context, code string) (*model.Link, error) {
	if m.getFn != nil {
		return m.getFn(ctx, code)
	}
	return nil, repository.ErrLinkNotFound
}

func (m *mockLinkRepository) Delete(ctx context.Context, code string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, code)
	}
	return nil
}

func (m *mockLinkRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	if m.deleteExpiredFn != nil {
		return m.deleteExpiredFn(ctx, before)
	}
	return 0, nil
}

// memLinkStore is an in-memory LinkRepository with conditional-create semantics.
type memLinkStore struct {
	mu    sync.Mutex
	links map[string]model.Link
}

func newMemLinkStore() *memLinkStore {
	return &memLinkStore{links: make(map[string]model.Link)}
}

func (s *memLinkStore) CreateIfAbsent(_ context.Context, link *model.Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.links[link.Code]; ok {
		return repository.ErrLinkExists
	}
	s.links[link.Code] = *link
	return nil
}

func (s *memLinkStore) GetByCode(_ context.Context, code string) (*model.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.links[code]
	if !ok || link.Expired(time.Now()) {
		return nil, repository.ErrLinkNotFound
	}
	return &link, nil
}

func (s *memLinkStore) Delete(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.links, code)
	return nil
}

func (s *memLinkStore) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for code, link := range s.links {
		if !link.ExpiresAt.After(before) {
			delete(s.links, code)
			n++
		}
	}
	return n, nil
}

func (s *memLinkStore) has(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.links[code]
	return ok
}

type memCache struct {
	mu     sync.Mutex
	items  map[string]string
	ttls   map[string]time.Duration
	getErr error
}

func newMemCache() *memCache {
	return &memCache{items: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (c *memCache) Get(_ context.Context, code string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return "", false, c.getErr
	}
	url, ok := c.items[code]
	return url, ok, nil
}

func (c *memCache) Set(_ context.Context, code, url string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[code] = url
	c.ttls[code] = ttl
	return nil
}

func (c *memCache) Delete(_ context.Context, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, code)
	delete(c.ttls, code)
	return nil
}

func (c *memCache) lookup(code string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	url, ok := c.items[code]
	return url, ok
}

// stubValidator rejects URLs listed in rejects and accepts everything else.
type stubValidator struct {
	mu      sync.Mutex
	rejects map[string]urlguard.Result
	calls   int
}

func (v *stubValidator) Validate(_ context.Context, raw string) urlguard.Result {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++
	if res, ok := v.rejects[raw]; ok {
		return res
	}
	return urlguard.Result{Valid: true}
}

func (v *stubValidator) reject(raw, reason string) {
	v.set(raw, urlguard.Result{Reason: reason})
}

func (v *stubValidator) rejectTransient(raw string) {
	v.set(raw, urlguard.Result{Reason: urlguard.ReasonDNSError, Transient: true})
}

func (v *stubValidator) set(raw string, res urlguard.Result) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.rejects == nil {
		v.rejects = make(map[string]urlguard.Result)
	}
	v.rejects[raw] = res
}

func (v *stubValidator) callCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

func waitBackground(t *testing.T, b *Background) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, b.Wait(ctx))
}

func TestLinkService_GetLink(t *testing.T) {
	repo := &mockLinkRepository{
		getFn: func(ctx context.Context, code string) (*model.Link, error) {
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
			return &model.Link{Code: code, URL: "https://example.com"}, nil
		},
	}

	svc := NewLinkService(repo, time.Second)
	link, err := svc.GetLink(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", link.Code)
}

func TestLinkService_GetLink_NotFound(t *testing.T) {
	svc := NewLinkService(&mockLinkRepository{}, time.Second)

	_, err := svc.GetLink(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLinkService_GetLink_StoreFailure(t *testing.T) {
	boom := errors.New("connection reset")
	repo := &mockLinkRepository{
		getFn: func(context.Context, string) (*model.Link, error) { return nil, boom },
	}

	_, err := NewLinkService(repo, time.Second).GetLink(context.Background(), "abc")
	assert.ErrorIs(t, err, ErrTransient)
	assert.ErrorIs(t, err, boom)
}

func TestLinkService_GetLink_EmptyCode(t *testing.T) {
	_, err := NewLinkService(&mockLinkRepository{}, 0).GetLink(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
