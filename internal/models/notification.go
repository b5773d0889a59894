package models

import (
	"time"

	"gorm.io/datatypes"
)

// Priority determines when and how a notification reaches the user.
type Priority string

const (
	// PriorityImmediate is delivered synchronously on every configured channel.
	PriorityImmediate Priority = "immediate"
	// PriorityBatched waits for the next daily digest slot.
	PriorityBatched Priority = "batched"
	// PriorityWeekly waits for the weekly report slot.
	PriorityWeekly Priority = "weekly"
	// PrioritySilent is written to the audit trail only, never delivered.
	PrioritySilent Priority = "silent"
)

// AllPriorities lists the four tiers in severity order.
func AllPriorities() []Priority {
	return []Priority{PriorityImmediate, PriorityBatched, PriorityWeekly, PrioritySilent}
}

// Valid reports whether p is one of the four known tiers.
func (p Priority) Valid() bool {
	switch p {
	case PriorityImmediate, PriorityBatched, PriorityWeekly, PrioritySilent:
		return true
	}
	return false
}

// Channel names for delivery adapters. The set is fixed; adapters register under these names.
const (
	ChannelTelegram = "telegram"
	ChannelSMS      = "sms"
	ChannelLog      = "log"
)

// Notification is one queued or delivered message to the user.
//
// Context carries event_kind plus an optional source_entity_id and free-form
// metadata. The engine uses it only for dedup keys and digest grouping.
type Notification struct {
	BaseModel

	Priority Priority       `gorm:"type:varchar(16);not null;index:idx_notifications_schedule,priority:1" json:"priority"`
	Channel  string         `gorm:"type:varchar(32);not null" json:"channel"`
	Message  string         `gorm:"type:text;not null" json:"message"`
	Context  datatypes.JSON `json:"context"`

	ScheduledFor *time.Time `gorm:"index:idx_notifications_schedule,priority:2" json:"scheduled_for"`
	SentAt       *time.Time `gorm:"index" json:"sent_at"`
}

// Pending reports whether the notification still awaits delivery.
func (n *Notification) Pending() bool {
	return n.SentAt == nil
}

// NotificationContext is the decoded shape of Notification.Context.
type NotificationContext struct {
	EventKind      string         `json:"event_kind"`
	SourceEntityID string         `json:"source_entity_id,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}
