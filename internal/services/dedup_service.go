package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/batterybuildsog1/Project-manager/internal/models"
)

// CooldownTable maps each priority tier to its dedup window.
type CooldownTable map[models.Priority]time.Duration

// DefaultCooldowns returns the design-default windows.
func DefaultCooldowns() CooldownTable {
	return CooldownTable{
		models.PriorityImmediate: 4 * time.Hour,
		models.PriorityBatched:   8 * time.Hour,
		models.PriorityWeekly:    7 * 24 * time.Hour,
		models.PrioritySilent:    time.Hour,
	}
}

// Window returns the cooldown for a tier, falling back to the immediate
// window for unknown tiers rather than failing the lookup.
func (t CooldownTable) Window(priority models.Priority) time.Duration {
	if w, ok := t[priority]; ok {
		return w
	}
	return 4 * time.Hour
}

// DedupService owns the durable (event_kind, source_entity_id) ledger that
// answers whether the user has already been told about a situation within
// the priority's cooldown window.
type DedupService struct {
	db        *gorm.DB
	cooldowns CooldownTable
	now       func() time.Time
}

// DedupOption customises the DedupService.
type DedupOption func(*DedupService)

// WithDedupClock overrides the clock, primarily for tests.
func WithDedupClock(now func() time.Time) DedupOption {
	return func(s *DedupService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewDedupService constructs the ledger service.
func NewDedupService(db *gorm.DB, cooldowns CooldownTable, opts ...DedupOption) (*DedupService, error) {
	if db == nil {
		return nil, errors.New("dedup service: db is required")
	}
	if len(cooldowns) == 0 {
		cooldowns = DefaultCooldowns()
	}

	s := &DedupService{db: db, cooldowns: cooldowns, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// IsDuplicate reports whether an entry for the key exists with last_sent_at
// strictly after now minus the tier's cooldown. Read-only.
func (s *DedupService) IsDuplicate(ctx context.Context, priority models.Priority, eventKind, sourceEntityID string) (bool, error) {
	cutoff := s.now().UTC().Add(-s.cooldowns.Window(priority))

	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.DedupEntry{}).
		Where("event_kind = ? AND source_entity_id = ? AND last_sent_at > ?", eventKind, sourceEntityID, cutoff).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("dedup service: lookup: %w", err)
	}
	return count > 0, nil
}

// Record unconditionally upserts the key's last_sent_at to now.
func (s *DedupService) Record(ctx context.Context, eventKind, sourceEntityID string) error {
	now := s.now().UTC()
	entry := models.DedupEntry{EventKind: eventKind, SourceEntityID: sourceEntityID, LastSentAt: now}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_kind"}, {Name: "source_entity_id"}},
		DoUpdates: clause.Assignments(map[string]any{"last_sent_at": now}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("dedup service: record: %w", err)
	}
	return nil
}

// Claim atomically performs the check-then-record sequence for the key: it
// succeeds (returns true) iff no entry inside the cooldown window existed at
// the moment of the write, and in that case stamps the entry to now. Two
// concurrent claims for the same key cannot both succeed; the conditional
// upsert is a single statement, so there is no read-then-write gap.
func (s *DedupService) Claim(ctx context.Context, priority models.Priority, eventKind, sourceEntityID string) (bool, error) {
	return s.claim(ctx, s.db, priority, eventKind, sourceEntityID)
}

// ClaimInTx runs Claim inside the caller's transaction so a failed intake
// rolls the ledger stamp back together with the notification row.
func (s *DedupService) ClaimInTx(ctx context.Context, tx *gorm.DB, priority models.Priority, eventKind, sourceEntityID string) (bool, error) {
	if tx == nil {
		return false, errors.New("dedup service: nil transaction")
	}
	return s.claim(ctx, tx, priority, eventKind, sourceEntityID)
}

func (s *DedupService) claim(ctx context.Context, db *gorm.DB, priority models.Priority, eventKind, sourceEntityID string) (bool, error) {
	now := s.now().UTC()
	cutoff := now.Add(-s.cooldowns.Window(priority))
	entry := models.DedupEntry{EventKind: eventKind, SourceEntityID: sourceEntityID, LastSentAt: now}

	res := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_kind"}, {Name: "source_entity_id"}},
		DoUpdates: clause.Assignments(map[string]any{"last_sent_at": now}),
		Where: clause.Where{Exprs: []clause.Expression{
			gorm.Expr("dedup_entries.last_sent_at <= ?", cutoff),
		}},
	}).Create(&entry)
	if res.Error != nil {
		return false, fmt.Errorf("dedup service: claim: %w", res.Error)
	}

	return res.RowsAffected > 0, nil
}
