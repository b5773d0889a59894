// Package detectors holds the trigger-side logic that turns project state
// changes into router intakes. Each detector decides the tier, event kind and
// message; the router owns suppression and delivery.
package detectors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/batterybuildsog1/Project-manager/internal/models"
	"github.com/batterybuildsog1/Project-manager/internal/services"
	"github.com/batterybuildsog1/Project-manager/pkg/logger"
)

// EventKindDeadlineUrgent marks a task due soon with an incomplete full kit.
const EventKindDeadlineUrgent = "deadline_urgent"

const deadlineHorizon = 24 * time.Hour

// DeadlineDetector scans for tasks due within the horizon whose full kit is
// still incomplete. The scheduler runs it hourly; the router's dedup window
// keeps repeated scans from re-alerting on the same task.
type DeadlineDetector struct {
	db     *gorm.DB
	router *services.RouterService
	log    *zap.Logger
	now    func() time.Time
}

// DeadlineOption customises the detector.
type DeadlineOption func(*DeadlineDetector)

// WithDeadlineClock overrides the clock, primarily for tests.
func WithDeadlineClock(now func() time.Time) DeadlineOption {
	return func(d *DeadlineDetector) {
		if now != nil {
			d.now = now
		}
	}
}

// NewDeadlineDetector constructs the hourly deadline scanner.
func NewDeadlineDetector(db *gorm.DB, router *services.RouterService, opts ...DeadlineOption) (*DeadlineDetector, error) {
	if db == nil {
		return nil, errors.New("deadline detector: db is required")
	}
	if router == nil {
		return nil, errors.New("deadline detector: router is required")
	}

	d := &DeadlineDetector{
		db:     db,
		router: router,
		log:    logger.WithModule("detector.deadline"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Scan queues one immediate notification per at-risk task and returns how
// many intakes were created (suppressed repeats do not count).
func (d *DeadlineDetector) Scan(ctx context.Context) (int, error) {
	now := d.now().UTC()
	horizon := now.Add(deadlineHorizon)

	var tasks []models.Task
	err := d.db.WithContext(ctx).
		Preload("FullKitItems").
		Where("status <> ? AND due_date IS NOT NULL AND due_date > ? AND due_date <= ?",
			models.TaskStatusCompleted, now, horizon).
		Find(&tasks).Error
	if err != nil {
		return 0, fmt.Errorf("deadline detector: scan tasks: %w", err)
	}

	created := 0
	for _, task := range tasks {
		missing := unsatisfiedItems(task.FullKitItems)
		if len(missing) == 0 {
			continue
		}

		hoursLeft := int(task.DueDate.Sub(now).Hours())
		message := fmt.Sprintf("'%s' due in %dh, waiting on: %s",
			task.Title, hoursLeft, itemSummary(missing))

		res, err := d.router.QueueImmediate(ctx, message, EventKindDeadlineUrgent, task.ID, map[string]any{
			"hours_left":       hoursLeft,
			"incomplete_items": len(missing),
		})
		if err != nil {
			d.log.Warn("deadline intake failed",
				zap.String("task_id", task.ID),
				zap.Error(err),
			)
			continue
		}
		if res.Outcome == services.OutcomeCreated {
			created++
		}
	}

	d.log.Debug("deadline scan finished",
		zap.Int("at_risk", len(tasks)),
		zap.Int("created", created),
	)
	return created, nil
}

func unsatisfiedItems(items []models.FullKitItem) []models.FullKitItem {
	var missing []models.FullKitItem
	for _, item := range items {
		if !item.IsSatisfied {
			missing = append(missing, item)
		}
	}
	return missing
}

// itemSummary lists at most three missing prerequisites.
func itemSummary(items []models.FullKitItem) string {
	names := make([]string, 0, 3)
	for _, item := range items {
		names = append(names, item.Description)
		if len(names) == 3 {
			break
		}
	}
	return strings.Join(names, ", ")
}
