package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
)

const incrementClicksSQL = `UPDATE links SET click_count = click_count + 1 WHERE code = $1`

// ClickRepository bumps the click counter of a link in place.
type ClickRepository interface {
	Increment(ctx context.Context, code string) error
}

// Execer is the subset of *pgxpool.Pool used for counter updates.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type clickRepository struct {
	db Execer
}

// NewClickRepository returns a pgx-backed ClickRepository.
func NewClickRepository(db Execer) ClickRepository {
	return &clickRepository{db: db}
}

func (r *clickRepository) Increment(ctx context.Context, code string) error {
	tag, err := r.db.Exec(ctx, incrementClicksSQL, code)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLinkNotFound
	}
	return nil
}
