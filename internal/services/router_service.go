package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/batterybuildsog1/Project-manager/internal/audit"
	"github.com/batterybuildsog1/Project-manager/internal/channels"
	"github.com/batterybuildsog1/Project-manager/internal/models"
	"github.com/batterybuildsog1/Project-manager/internal/schedule"
	apperrors "github.com/batterybuildsog1/Project-manager/pkg/errors"
	"github.com/batterybuildsog1/Project-manager/pkg/logger"
	"github.com/batterybuildsog1/Project-manager/pkg/validator"
)

// EventKindWeeklyReport is the event kind stamped on weekly-tier intakes that
// arrive without one.
const EventKindWeeklyReport = "weekly_report"

// IntakeOutcome classifies what an intake call did.
type IntakeOutcome string

const (
	// OutcomeCreated means a notification row was persisted (and, for the
	// immediate tier, delivered synchronously).
	OutcomeCreated IntakeOutcome = "created"
	// OutcomeSuppressed means the dedup ledger swallowed the call. This is
	// the only normal no-op outcome and is not an error.
	OutcomeSuppressed IntakeOutcome = "suppressed"
	// OutcomeLogged means a silent-tier call went to the audit trail only.
	OutcomeLogged IntakeOutcome = "logged"
)

// IntakeInput carries one event from a trigger detector into the router.
// EventKind is an open string space: detectors may introduce new kinds
// without router changes.
type IntakeInput struct {
	Priority       models.Priority `json:"priority" validate:"required"`
	Message        string          `json:"message" validate:"required"`
	EventKind      string          `json:"event_kind" validate:"required"`
	SourceEntityID string          `json:"source_entity_id"`
	Metadata       map[string]any  `json:"metadata"`
}

// IntakeResult reports the outcome plus the persisted row when one exists.
type IntakeResult struct {
	Outcome      IntakeOutcome        `json:"outcome"`
	Notification *models.Notification `json:"notification,omitempty"`
}

// RouterService decides whether, when and how the user hears about an event.
type RouterService struct {
	db       *gorm.DB
	dedup    *DedupService
	registry *channels.Registry
	trail    *audit.Trail
	plan     schedule.Plan
	log      *zap.Logger
	now      func() time.Time
}

// RouterOption customises the RouterService.
type RouterOption func(*RouterService)

// WithRouterClock overrides the clock, primarily for tests.
func WithRouterClock(now func() time.Time) RouterOption {
	return func(s *RouterService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewRouterService constructs the router.
func NewRouterService(db *gorm.DB, dedup *DedupService, registry *channels.Registry, trail *audit.Trail, plan schedule.Plan, opts ...RouterOption) (*RouterService, error) {
	if db == nil {
		return nil, errors.New("router service: db is required")
	}
	if dedup == nil {
		return nil, errors.New("router service: dedup service is required")
	}
	if registry == nil {
		return nil, errors.New("router service: channel registry is required")
	}

	s := &RouterService{
		db:       db,
		dedup:    dedup,
		registry: registry,
		trail:    trail,
		plan:     plan,
		log:      logger.WithModule("router"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Intake routes one event. The dedup check-and-stamp and the notification
// write commit in one transaction: either both land or neither does.
func (s *RouterService) Intake(ctx context.Context, input IntakeInput) (*IntakeResult, error) {
	input.Message = strings.TrimSpace(input.Message)
	input.EventKind = strings.TrimSpace(input.EventKind)
	input.SourceEntityID = strings.TrimSpace(input.SourceEntityID)

	if input.Priority == models.PriorityWeekly && input.EventKind == "" {
		input.EventKind = EventKindWeeklyReport
	}

	if err := validator.ValidateStruct(input); err != nil {
		return nil, apperrors.NewBadRequest(err.Error())
	}
	if !input.Priority.Valid() {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown priority %q", input.Priority))
	}

	switch input.Priority {
	case models.PriorityWeekly:
		return s.intakeWeekly(ctx, input)
	case models.PrioritySilent:
		return s.intakeSilent(ctx, input)
	default:
		return s.intakeDeliverable(ctx, input)
	}
}

// QueueImmediate routes an immediate-tier event: deduplicated, persisted and
// delivered synchronously on every immediate channel.
func (s *RouterService) QueueImmediate(ctx context.Context, message, eventKind, sourceEntityID string, metadata map[string]any) (*IntakeResult, error) {
	return s.Intake(ctx, IntakeInput{
		Priority:       models.PriorityImmediate,
		Message:        message,
		EventKind:      eventKind,
		SourceEntityID: sourceEntityID,
		Metadata:       metadata,
	})
}

// QueueBatched routes a batched-tier event: deduplicated, persisted and held
// for the next daily digest slot.
func (s *RouterService) QueueBatched(ctx context.Context, message, eventKind, sourceEntityID string, metadata map[string]any) (*IntakeResult, error) {
	return s.Intake(ctx, IntakeInput{
		Priority:       models.PriorityBatched,
		Message:        message,
		EventKind:      eventKind,
		SourceEntityID: sourceEntityID,
		Metadata:       metadata,
	})
}

// QueueWeekly stores the weekly report for the next weekly slot. Weekly
// intakes are never dedup-suppressed; a newer report supersedes the older at
// send time.
func (s *RouterService) QueueWeekly(ctx context.Context, message string, metadata map[string]any) (*IntakeResult, error) {
	return s.Intake(ctx, IntakeInput{
		Priority: models.PriorityWeekly,
		Message:  message,
		Metadata: metadata,
	})
}

// QueueSilent records an event on the audit trail without ever reaching the
// user. Silent events still stamp the dedup ledger to avoid log spam.
func (s *RouterService) QueueSilent(ctx context.Context, message, eventKind string, metadata map[string]any) (*IntakeResult, error) {
	return s.Intake(ctx, IntakeInput{
		Priority:  models.PrioritySilent,
		Message:   message,
		EventKind: eventKind,
		Metadata:  metadata,
	})
}

func (s *RouterService) intakeDeliverable(ctx context.Context, input IntakeInput) (*IntakeResult, error) {
	now := s.now().UTC()

	notification := &models.Notification{
		Priority: input.Priority,
		Channel:  s.registry.PrimaryChannel(input.Priority),
		Message:  input.Message,
	}
	ctxJSON, err := encodeContext(input)
	if err != nil {
		return nil, apperrors.Wrap(err, "router service: encode context")
	}
	notification.Context = ctxJSON

	if input.Priority == models.PriorityBatched {
		slot := s.plan.NextBatch(now)
		notification.ScheduledFor = &slot
	}

	claimed := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var claimErr error
		claimed, claimErr = s.dedup.ClaimInTx(ctx, tx, input.Priority, input.EventKind, input.SourceEntityID)
		if claimErr != nil {
			return claimErr
		}
		if !claimed {
			return nil
		}
		return tx.Create(notification).Error
	})
	if err != nil {
		return nil, apperrors.ErrStorageUnavailable.WithInternal(err)
	}

	if !claimed {
		s.log.Info("intake suppressed by dedup window",
			zap.String("priority", string(input.Priority)),
			zap.String("event_kind", input.EventKind),
			zap.String("source_entity_id", input.SourceEntityID),
		)
		s.trail.Record(input.Priority, input.EventKind, audit.OutcomeSuppressed, input.Message)
		return &IntakeResult{Outcome: OutcomeSuppressed}, nil
	}

	if input.Priority == models.PriorityImmediate {
		return s.deliverImmediate(ctx, input, notification)
	}

	s.trail.Record(input.Priority, input.EventKind, audit.OutcomeQueued, input.Message)
	s.log.Info("notification queued for batch",
		zap.String("event_kind", input.EventKind),
		zap.Timep("scheduled_for", notification.ScheduledFor),
	)
	return &IntakeResult{Outcome: OutcomeCreated, Notification: notification}, nil
}

// deliverImmediate fans the message out synchronously and marks the row sent
// regardless of per-channel outcome: immediate delivery is best-effort across
// redundant channels, and a single channel failure is logged, not retried.
func (s *RouterService) deliverImmediate(ctx context.Context, input IntakeInput, notification *models.Notification) (*IntakeResult, error) {
	if err := s.registry.Deliver(ctx, models.PriorityImmediate, input.Message); err != nil {
		s.log.Warn("immediate delivery incomplete",
			zap.String("event_kind", input.EventKind),
			zap.Error(err),
		)
	}

	sentAt := s.now().UTC()
	if err := s.db.WithContext(ctx).
		Model(notification).
		Update("sent_at", sentAt).Error; err != nil {
		return nil, apperrors.ErrStorageUnavailable.WithInternal(fmt.Errorf("mark sent: %w", err))
	}
	notification.SentAt = &sentAt

	s.trail.Record(input.Priority, input.EventKind, audit.OutcomeSent, input.Message)
	return &IntakeResult{Outcome: OutcomeCreated, Notification: notification}, nil
}

// intakeWeekly persists the report without consulting the ledger: two weekly
// intakes before a run must both land so the processor can send the newer one
// and retire both.
func (s *RouterService) intakeWeekly(ctx context.Context, input IntakeInput) (*IntakeResult, error) {
	now := s.now().UTC()
	slot := s.plan.NextWeekly(now)

	notification := &models.Notification{
		Priority:     models.PriorityWeekly,
		Channel:      s.registry.PrimaryChannel(models.PriorityWeekly),
		Message:      input.Message,
		ScheduledFor: &slot,
	}
	ctxJSON, err := encodeContext(input)
	if err != nil {
		return nil, apperrors.Wrap(err, "router service: encode context")
	}
	notification.Context = ctxJSON

	if err := s.db.WithContext(ctx).Create(notification).Error; err != nil {
		return nil, apperrors.ErrStorageUnavailable.WithInternal(err)
	}

	s.trail.Record(input.Priority, input.EventKind, audit.OutcomeQueued, input.Message)
	return &IntakeResult{Outcome: OutcomeCreated, Notification: notification}, nil
}

// intakeSilent writes an audit line only; no notification row is ever
// retrievable for this tier. The ledger is still stamped so a recurring
// condition does not spam the trail.
func (s *RouterService) intakeSilent(ctx context.Context, input IntakeInput) (*IntakeResult, error) {
	claimed, err := s.dedup.Claim(ctx, models.PrioritySilent, input.EventKind, input.SourceEntityID)
	if err != nil {
		return nil, apperrors.ErrStorageUnavailable.WithInternal(err)
	}

	if !claimed {
		s.trail.Record(input.Priority, input.EventKind, audit.OutcomeSuppressed, input.Message)
		return &IntakeResult{Outcome: OutcomeSuppressed}, nil
	}

	s.trail.Record(input.Priority, input.EventKind, audit.OutcomeLogged, input.Message)
	s.log.Debug("silent event logged", zap.String("event_kind", input.EventKind))
	return &IntakeResult{Outcome: OutcomeLogged}, nil
}

// ListNotificationsInput defines filters for querying stored notifications.
type ListNotificationsInput struct {
	Priority models.Priority
	Pending  *bool
	Limit    int
	Offset   int
}

// List returns stored notifications ordered by recency.
func (s *RouterService) List(ctx context.Context, input ListNotificationsInput) ([]models.Notification, error) {
	limit := input.Limit
	if limit <= 0 || limit > 100 {
		limit = 25
	}

	query := s.db.WithContext(ctx).Model(&models.Notification{})
	if input.Priority != "" {
		query = query.Where("priority = ?", input.Priority)
	}
	if input.Pending != nil {
		if *input.Pending {
			query = query.Where("sent_at IS NULL")
		} else {
			query = query.Where("sent_at IS NOT NULL")
		}
	}

	var rows []models.Notification
	if err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(max(0, input.Offset)).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("router service: list notifications: %w", err)
	}
	return rows, nil
}

func encodeContext(input IntakeInput) (datatypes.JSON, error) {
	payload := models.NotificationContext{
		EventKind:      input.EventKind,
		SourceEntityID: input.SourceEntityID,
		Metadata:       input.Metadata,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}
