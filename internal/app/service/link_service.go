package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sifan077/SafeURL/internal/app/model"
	"github.com/sifan077/SafeURL/internal/app/repository"
)

// LinkService exposes read-only lookups of stored links.
type LinkService interface {
	GetLink(ctx context.Context, code string) (*model.Link, error)
}

type linkService struct {
	repo    repository.LinkRepository
	timeout time.Duration
}

// NewLinkService returns a service implementation backed by the given repository.
func NewLinkService(repo repository.LinkRepository, timeout time.Duration) LinkService {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return &linkService{repo: repo, timeout: timeout}
}

func (s *linkService) GetLink(ctx context.Context, code string) (*model.Link, error) {
	if code == "" {
		return nil, fmt.Errorf("get link: %w", ErrInvalidInput)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	link, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: get link: %w", ErrTransient, err)
	}
	return link, nil
}
