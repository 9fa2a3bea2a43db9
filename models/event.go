package models

import "time"

const (
	EventFeed   = "feed"
	EventDiaper = "diaper"
)

// Event is a single feed or diaper-change log entry.
type Event struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"-"`
	Type      string    `gorm:"size:20;index;not null" json:"type"` // "feed" | "diaper"
	AmountML  *int      `json:"amount_ml"`                          // feed only
	Note      string    `gorm:"type:text" json:"note"`
	Timestamp time.Time `gorm:"column:logged_at;index;not null" json:"timestamp"`
}

// IsValidEventType reports whether t names a known event type.
func IsValidEventType(t string) bool {
	return t == EventFeed || t == EventDiaper
}
