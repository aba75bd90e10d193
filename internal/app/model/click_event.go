package model

import "time"

// ClickEvent represents a single resolved redirect for a short link.
type ClickEvent struct {
	ID        string    `json:"id"`
	LinkCode  string    `json:"link_code"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	ClickStreamName     = "CLICKS"
	ClickStreamSubject  = "clicks.events"
	ClickConsumerName   = "click-counter"
	ClickStreamMaxBytes = 1024 * 1024 * 100 // 100MB
)
