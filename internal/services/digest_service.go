package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/batterybuildsog1/Project-manager/internal/audit"
	"github.com/batterybuildsog1/Project-manager/internal/channels"
	"github.com/batterybuildsog1/Project-manager/internal/models"
	apperrors "github.com/batterybuildsog1/Project-manager/pkg/errors"
	"github.com/batterybuildsog1/Project-manager/pkg/logger"
)

const digestHeader = "=== Daily Update ==="

// DigestService drains pending batched and weekly notifications when the
// external clock fires. Runs for the same tier are mutually exclusive;
// overlapping invocations queue up behind the per-tier mutex rather than
// double-delivering.
type DigestService struct {
	db       *gorm.DB
	registry *channels.Registry
	trail    *audit.Trail
	log      *zap.Logger

	batchMu  sync.Mutex
	weeklyMu sync.Mutex
}

// NewDigestService constructs the processor.
func NewDigestService(db *gorm.DB, registry *channels.Registry, trail *audit.Trail) (*DigestService, error) {
	if db == nil {
		return nil, errors.New("digest service: db is required")
	}
	if registry == nil {
		return nil, errors.New("digest service: channel registry is required")
	}

	return &DigestService{
		db:       db,
		registry: registry,
		trail:    trail,
		log:      logger.WithModule("digest"),
	}, nil
}

// RunBatch folds every pending batched notification whose scheduled time has
// arrived into one digest, sends it once on the batched-tier channel, and —
// only after the adapter acknowledged — marks all constituents sent in a
// single update. A send failure leaves every item pending for the next run.
// Returns the number of notifications sent.
func (s *DigestService) RunBatch(ctx context.Context, now time.Time) (int, error) {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()

	now = now.UTC()

	var pending []models.Notification
	err := s.db.WithContext(ctx).
		Where("priority = ? AND sent_at IS NULL AND scheduled_for IS NOT NULL AND scheduled_for <= ?",
			models.PriorityBatched, now).
		Order("created_at ASC").
		Find(&pending).Error
	if err != nil {
		return 0, apperrors.ErrStorageUnavailable.WithInternal(fmt.Errorf("select pending batch: %w", err))
	}

	if len(pending) == 0 {
		s.log.Debug("no batched notifications ready")
		return 0, nil
	}

	digest := renderDigest(pending)

	if err := s.registry.DeliverPrimary(ctx, models.PriorityBatched, digest); err != nil {
		s.log.Warn("batch digest delivery failed, items stay pending",
			zap.Int("count", len(pending)),
			zap.Error(err),
		)
		return 0, err
	}

	if err := s.markSent(ctx, pending, now); err != nil {
		return 0, err
	}

	s.trail.Record(models.PriorityBatched, "batch_digest", audit.OutcomeSent,
		fmt.Sprintf("batch digest with %d notifications", len(pending)))
	s.log.Info("batch digest sent", zap.Int("count", len(pending)))
	return len(pending), nil
}

// RunWeekly sends the pending weekly report whose slot has arrived, if any.
// When more than one is pending (a scheduling hiccup, not an error) only the
// most recently created one goes out; every selected row is marked sent so a
// stale report is never re-sent later. Returns whether a report was sent.
func (s *DigestService) RunWeekly(ctx context.Context, now time.Time) (bool, error) {
	s.weeklyMu.Lock()
	defer s.weeklyMu.Unlock()

	now = now.UTC()

	var pending []models.Notification
	err := s.db.WithContext(ctx).
		Where("priority = ? AND sent_at IS NULL AND scheduled_for IS NOT NULL AND scheduled_for <= ?",
			models.PriorityWeekly, now).
		Order("created_at ASC").
		Find(&pending).Error
	if err != nil {
		return false, apperrors.ErrStorageUnavailable.WithInternal(fmt.Errorf("select pending weekly: %w", err))
	}

	if len(pending) == 0 {
		s.log.Debug("no weekly report pending")
		return false, nil
	}

	report := pending[len(pending)-1]

	if err := s.registry.DeliverPrimary(ctx, models.PriorityWeekly, report.Message); err != nil {
		s.log.Warn("weekly report delivery failed, stays pending", zap.Error(err))
		return false, err
	}

	if err := s.markSent(ctx, pending, now); err != nil {
		return false, err
	}

	s.trail.Record(models.PriorityWeekly, EventKindWeeklyReport, audit.OutcomeSent, report.Message)
	s.log.Info("weekly report sent", zap.Int("superseded", len(pending)-1))
	return true, nil
}

// markSent stamps every given row in one statement; there is no partial
// marking.
func (s *DigestService) markSent(ctx context.Context, rows []models.Notification, now time.Time) error {
	ids := make([]string, 0, len(rows))
	for _, n := range rows {
		ids = append(ids, n.ID)
	}

	err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id IN ?", ids).
		Update("sent_at", now).Error
	if err != nil {
		return apperrors.ErrStorageUnavailable.WithInternal(fmt.Errorf("mark sent: %w", err))
	}
	return nil
}

// renderDigest groups the selected notifications by event kind, in
// first-seen order, each group listing its items in creation order.
func renderDigest(items []models.Notification) string {
	lines := []string{digestHeader, ""}

	var order []string
	byKind := make(map[string][]models.Notification)
	for _, item := range items {
		kind := eventKindOf(item)
		if _, seen := byKind[kind]; !seen {
			order = append(order, kind)
		}
		byKind[kind] = append(byKind[kind], item)
	}

	for _, kind := range order {
		lines = append(lines, "["+headline(kind)+"]")
		for _, item := range byKind[kind] {
			lines = append(lines, "  - "+item.Message)
		}
		lines = append(lines, "")
	}

	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}

func eventKindOf(n models.Notification) string {
	if len(n.Context) == 0 {
		return "other"
	}
	var ctx models.NotificationContext
	if err := json.Unmarshal(n.Context, &ctx); err != nil || ctx.EventKind == "" {
		return "other"
	}
	return ctx.EventKind
}

// headline renders an event kind as a digest group title: "wip_warning"
// becomes "Wip Warning".
func headline(kind string) string {
	words := strings.Split(strings.ReplaceAll(kind, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
