package service

import (
	"context"

	"github.com/sifan077/SafeURL/internal/app/repository"
)

// ClickCounter records one redirect for a short link.
type ClickCounter interface {
	Increment(ctx context.Context, code string) error
}

// NewDirectClickCounter writes every click straight to the store.
func NewDirectClickCounter(repo repository.ClickRepository) ClickCounter {
	return repo
}
