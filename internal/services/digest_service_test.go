package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/batterybuildsog1/Project-manager/internal/models"
)

func queueBatchedAt(t *testing.T, s *testStack, at time.Time, message, eventKind, sourceEntityID string) {
	t.Helper()
	s.clock.t = at
	res, err := s.router.QueueBatched(context.Background(), message, eventKind, sourceEntityID, nil)
	require.NoError(t, err)
	require.Equal(t, OutcomeCreated, res.Outcome)
}

func TestRunBatchFoldsPendingIntoOneDigest(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	morning := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

	queueBatchedAt(t, s, morning, "Task 1 moved to done", "task_status", "task-1")
	queueBatchedAt(t, s, morning.Add(time.Minute), "Task 2 moved to review", "task_status", "task-2")
	queueBatchedAt(t, s, morning.Add(2*time.Minute), "Task 3 moved to doing", "task_status", "task-3")
	queueBatchedAt(t, s, morning.Add(3*time.Minute), "New blocker on task 4", "new_blocker", "task-4")
	queueBatchedAt(t, s, morning.Add(4*time.Minute), "New blocker on task 5", "new_blocker", "task-5")

	count, err := s.digest.RunBatch(ctx, time.Date(2025, 3, 10, 13, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, 5, count)

	// One send on the batched-tier channel, grouped by event kind.
	require.Len(t, s.telegram.sent, 1)
	digest := s.telegram.sent[0]
	require.Contains(t, digest, digestHeader)
	require.Contains(t, digest, "[Task Status]")
	require.Contains(t, digest, "[New Blocker]")
	require.Contains(t, digest, "  - Task 2 moved to review")
	require.Contains(t, digest, "  - New blocker on task 5")

	// Every constituent is retired.
	pending := true
	rows, err := s.router.List(ctx, ListNotificationsInput{Priority: models.PriorityBatched, Pending: &pending})
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestRunBatchIsIdempotentAcrossRuns(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()

	queueBatchedAt(t, s, time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC), "one update", "task_status", "task-1")

	slot := time.Date(2025, 3, 10, 13, 0, 0, 0, time.UTC)
	count, err := s.digest.RunBatch(ctx, slot)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	// The same fire repeated sends nothing new.
	count, err = s.digest.RunBatch(ctx, slot)
	require.NoError(t, err)
	require.Zero(t, count)
	require.Len(t, s.telegram.sent, 1)
}

func TestRunBatchLeavesItemsPendingOnDeliveryFailure(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()

	queueBatchedAt(t, s, time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC), "held update", "task_status", "task-1")

	slot := time.Date(2025, 3, 10, 13, 0, 0, 0, time.UTC)
	s.telegram.err = errors.New("telegram unreachable")
	count, err := s.digest.RunBatch(ctx, slot)
	require.Error(t, err)
	require.Zero(t, count)

	// The adapter recovers; the next run drains the same item.
	s.telegram.err = nil
	count, err = s.digest.RunBatch(ctx, slot.Add(4*time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Contains(t, s.telegram.sent[0], "held update")
}

func TestRunBatchIgnoresFutureScheduledItems(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()

	// Queued at 14:10, so held for the 17:00 slot.
	queueBatchedAt(t, s, time.Date(2025, 3, 10, 14, 10, 0, 0, time.UTC), "afternoon update", "task_status", "task-1")

	count, err := s.digest.RunBatch(ctx, time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Zero(t, count)
	require.Empty(t, s.telegram.sent)

	count, err = s.digest.RunBatch(ctx, time.Date(2025, 3, 10, 17, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestRunBatchWithNothingPending(t *testing.T) {
	s := newTestStack(t)

	count, err := s.digest.RunBatch(context.Background(), time.Date(2025, 3, 10, 13, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Zero(t, count)
	require.Empty(t, s.telegram.sent)
}

func TestRunWeeklySendsNewestAndRetiresAll(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()

	_, err := s.router.QueueWeekly(ctx, "Week 10 report", nil)
	require.NoError(t, err)
	s.clock.Advance(2 * time.Hour)
	_, err = s.router.QueueWeekly(ctx, "Week 10 report, revised", nil)
	require.NoError(t, err)

	sent, err := s.digest.RunWeekly(ctx, time.Date(2025, 3, 16, 20, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.True(t, sent)

	// Only the later report goes out, and neither row stays pending.
	require.Equal(t, []string{"Week 10 report, revised"}, s.telegram.sent)

	pending := true
	rows, listErr := s.router.List(ctx, ListNotificationsInput{Priority: models.PriorityWeekly, Pending: &pending})
	require.NoError(t, listErr)
	require.Empty(t, rows)

	// A later fire finds nothing to do.
	sent, err = s.digest.RunWeekly(ctx, time.Date(2025, 3, 23, 20, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.False(t, sent)
}

func TestRunWeeklyIgnoresReportBeforeSlot(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()

	// Queued Monday, held for Sunday 20:00.
	_, err := s.router.QueueWeekly(ctx, "Week 10 report", nil)
	require.NoError(t, err)

	sent, err := s.digest.RunWeekly(ctx, time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.False(t, sent)
	require.Empty(t, s.telegram.sent)
}

func TestRunWeeklyLeavesReportPendingOnFailure(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()

	_, err := s.router.QueueWeekly(ctx, "Week 10 report", nil)
	require.NoError(t, err)

	s.telegram.err = errors.New("telegram unreachable")
	sent, err := s.digest.RunWeekly(ctx, time.Date(2025, 3, 16, 20, 0, 0, 0, time.UTC))
	require.Error(t, err)
	require.False(t, sent)

	s.telegram.err = nil
	sent, err = s.digest.RunWeekly(ctx, time.Date(2025, 3, 16, 21, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.True(t, sent)
}

func TestRenderDigestGroupsInFirstSeenOrder(t *testing.T) {
	items := []models.Notification{
		{Message: "a", Context: mustContext(t, "wip_warning", "")},
		{Message: "b", Context: mustContext(t, "task_status", "task-1")},
		{Message: "c", Context: mustContext(t, "wip_warning", "")},
		{Message: "d", Context: nil},
	}

	digest := renderDigest(items)
	require.Equal(t, "=== Daily Update ===\n\n[Wip Warning]\n  - a\n  - c\n\n[Task Status]\n  - b\n\n[Other]\n  - d", digest)
}
