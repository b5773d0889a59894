package models

import "time"

// Blocker records something a task is waiting on, together with the hints the
// inbound-mail matcher uses to spot updates about it.
type Blocker struct {
	BaseModel

	TaskID      string `gorm:"type:uuid;index" json:"task_id"`
	Description string `gorm:"type:varchar(255);not null" json:"description"`
	WaitingOn   string `gorm:"type:varchar(128)" json:"waiting_on"`

	// WatchPattern is a case-insensitive substring matched against inbound
	// message subjects and bodies.
	WatchPattern string `gorm:"type:varchar(128)" json:"watch_pattern"`

	ResolvedAt *time.Time `gorm:"index" json:"resolved_at"`
	ResolvedBy string     `gorm:"type:varchar(64)" json:"resolved_by"`
}

// Resolved reports whether the blocker has been closed.
func (b *Blocker) Resolved() bool { return b.ResolvedAt != nil }
