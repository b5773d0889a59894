package models

import "time"

// DedupEntry records the last time a (event_kind, source_entity_id) pair was
// allowed through intake. Later entries supersede earlier ones; rows are never
// deleted.
//
// A type-wide key (no associated entity) is stored with an empty
// SourceEntityID, so empty matches only empty for the same event kind.
type DedupEntry struct {
	EventKind      string    `gorm:"primaryKey;type:varchar(128)" json:"event_kind"`
	SourceEntityID string    `gorm:"primaryKey;type:varchar(64);default:''" json:"source_entity_id"`
	LastSentAt     time.Time `gorm:"not null" json:"last_sent_at"`
}

// TableName keeps the ledger name stable across drivers.
func (DedupEntry) TableName() string { return "dedup_entries" }
