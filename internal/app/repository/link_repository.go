package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sifan077/SafeURL/internal/app/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrLinkNotFound signals that the requested short link does not exist.
	ErrLinkNotFound = errors.New("link not found")

	// ErrLinkExists signals that the conditional create lost: the code is taken.
	ErrLinkExists = errors.New("link code already exists")
)

const uniqueViolation = "23505"

// LinkRepository defines the data access contract for short links.
type LinkRepository interface {
	// CreateIfAbsent inserts link only when no row holds its code.
	CreateIfAbsent(ctx context.Context, link *model.Link) error
	// GetByCode returns live (unexpired) links only.
	GetByCode(ctx context.Context, code string) (*model.Link, error)
	Delete(ctx context.Context, code string) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type linkRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewLinkRepository returns a GORM-backed LinkRepository.
func NewLinkRepository(db *gorm.DB) LinkRepository {
	return &linkRepository{db: db, now: time.Now}
}

func (r *linkRepository) CreateIfAbsent(ctx context.Context, link *model.Link) error {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "code"}}, DoNothing: true}).
		Create(link)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return ErrLinkExists
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLinkExists
	}
	return nil
}

func (r *linkRepository) GetByCode(ctx context.Context, code string) (*model.Link, error) {
	var link model.Link
	err := r.db.WithContext(ctx).
		Where("code = ? AND expires_at > ?", code, r.now()).
		First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}

func (r *linkRepository) Delete(ctx context.Context, code string) error {
	return r.db.WithContext(ctx).Where("code = ?", code).Delete(&model.Link{}).Error
}

func (r *linkRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("expires_at <= ?", before).Delete(&model.Link{})
	return result.RowsAffected, result.Error
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
