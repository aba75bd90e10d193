package model

import "time"

// Link is the durable short-code mapping stored in Postgres.
type Link struct {
	Code       string    `db:"code" gorm:"primaryKey;size:32"`
	URL        string    `db:"url" gorm:"type:text;not null"`
	ClickCount int64     `db:"click_count" gorm:"not null;default:0"`
	ExpiresAt  time.Time `db:"expires_at" gorm:"index;not null"`
	CreatedAt  time.Time `db:"created_at" gorm:"not null"`
}

// Expired reports whether the link is past its store-side expiry.
func (l *Link) Expired(now time.Time) bool {
	return !l.ExpiresAt.After(now)
}
