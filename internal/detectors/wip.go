package detectors

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/batterybuildsog1/Project-manager/internal/models"
	"github.com/batterybuildsog1/Project-manager/internal/services"
)

// EventKindWIPWarning marks work-in-progress approaching or hitting its cap.
const EventKindWIPWarning = "wip_warning"

// DefaultWIPLimit caps concurrent in-progress tasks.
const DefaultWIPLimit = 3

// WIPDetector warns when the number of in-progress tasks reaches limit-1 or
// the limit itself. Below that threshold it stays quiet.
type WIPDetector struct {
	db     *gorm.DB
	router *services.RouterService
	limit  int
}

// NewWIPDetector constructs the detector. A non-positive limit falls back to
// the default.
func NewWIPDetector(db *gorm.DB, router *services.RouterService, limit int) (*WIPDetector, error) {
	if db == nil {
		return nil, errors.New("wip detector: db is required")
	}
	if router == nil {
		return nil, errors.New("wip detector: router is required")
	}
	if limit <= 0 {
		limit = DefaultWIPLimit
	}
	return &WIPDetector{db: db, router: router, limit: limit}, nil
}

// Check counts in-progress tasks and queues a batched warning when the count
// is within one of the limit. Returns the intake result, or nil when the
// count is comfortably below the limit.
func (d *WIPDetector) Check(ctx context.Context) (*services.IntakeResult, error) {
	var current int64
	err := d.db.WithContext(ctx).
		Model(&models.Task{}).
		Where("status = ?", models.TaskStatusInProgress).
		Count(&current).Error
	if err != nil {
		return nil, fmt.Errorf("wip detector: count in-progress: %w", err)
	}

	if int(current) < d.limit-1 {
		return nil, nil
	}

	var message string
	if int(current) >= d.limit {
		message = fmt.Sprintf("WIP at %d/%d - AT LIMIT", current, d.limit)
	} else {
		message = fmt.Sprintf("WIP at %d/%d - one slot remaining", current, d.limit)
	}

	return d.router.QueueBatched(ctx, message, EventKindWIPWarning, "", map[string]any{
		"current": current,
		"limit":   d.limit,
	})
}
