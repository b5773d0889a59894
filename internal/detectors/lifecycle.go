package detectors

import (
	"context"
	"errors"
	"fmt"

	"github.com/batterybuildsog1/Project-manager/internal/services"
)

// Event kinds raised by the lifecycle detector.
const (
	EventKindTaskStatus = "task_status"
	EventKindNewBlocker = "new_blocker"
)

// LifecycleDetector translates routine project state changes into batched
// intakes. These never interrupt; they ride the next daily digest.
type LifecycleDetector struct {
	router *services.RouterService
}

// NewLifecycleDetector constructs the detector.
func NewLifecycleDetector(router *services.RouterService) (*LifecycleDetector, error) {
	if router == nil {
		return nil, errors.New("lifecycle detector: router is required")
	}
	return &LifecycleDetector{router: router}, nil
}

// TaskStatusChanged queues a batched notification for a status transition.
func (d *LifecycleDetector) TaskStatusChanged(ctx context.Context, taskID, title, oldStatus, newStatus string) (*services.IntakeResult, error) {
	message := fmt.Sprintf("Task '%s': %s -> %s", title, oldStatus, newStatus)
	return d.router.QueueBatched(ctx, message, EventKindTaskStatus, taskID, map[string]any{
		"old_status": oldStatus,
		"new_status": newStatus,
	})
}

// BlockerCreated queues a batched notification for a newly opened blocker.
func (d *LifecycleDetector) BlockerCreated(ctx context.Context, blockerID, description, waitingOn string) (*services.IntakeResult, error) {
	message := fmt.Sprintf("New blocker: %s", description)
	if waitingOn != "" {
		message = fmt.Sprintf("New blocker: %s (waiting on %s)", description, waitingOn)
	}
	return d.router.QueueBatched(ctx, message, EventKindNewBlocker, blockerID, map[string]any{
		"description": description,
		"waiting_on":  waitingOn,
	})
}
