package detectors

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/batterybuildsog1/Project-manager/internal/channels"
	"github.com/batterybuildsog1/Project-manager/internal/database/testutil"
	"github.com/batterybuildsog1/Project-manager/internal/models"
	"github.com/batterybuildsog1/Project-manager/internal/schedule"
	"github.com/batterybuildsog1/Project-manager/internal/services"
)

type fakeAdapter struct {
	name string
	sent []string
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Send(_ context.Context, text string) error {
	f.sent = append(f.sent, text)
	return nil
}

type detectorFixture struct {
	db       *gorm.DB
	router   *services.RouterService
	telegram *fakeAdapter
	now      time.Time
}

func newDetectorFixture(t *testing.T) *detectorFixture {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

	telegram := &fakeAdapter{name: models.ChannelTelegram}
	registry := channels.NewRegistry(nil)
	registry.Register(telegram)
	registry.Register(&fakeAdapter{name: models.ChannelSMS})
	registry.Register(&fakeAdapter{name: models.ChannelLog})

	dedup, err := services.NewDedupService(db, services.DefaultCooldowns(),
		services.WithDedupClock(func() time.Time { return now }))
	require.NoError(t, err)

	plan := schedule.NewPlan(nil, "", "", nil)

	router, err := services.NewRouterService(db, dedup, registry, nil, plan,
		services.WithRouterClock(func() time.Time { return now }))
	require.NoError(t, err)

	return &detectorFixture{db: db, router: router, telegram: telegram, now: now}
}

func (f *detectorFixture) createTask(t *testing.T, title, status string, due *time.Time) models.Task {
	t.Helper()
	task := models.Task{Title: title, Status: status, DueDate: due}
	require.NoError(t, f.db.Create(&task).Error)
	return task
}

func (f *detectorFixture) addKitItem(t *testing.T, taskID, description string, satisfied bool) {
	t.Helper()
	item := models.FullKitItem{TaskID: taskID, Description: description, IsSatisfied: satisfied}
	require.NoError(t, f.db.Create(&item).Error)
}

func TestDeadlineScanAlertsOnIncompleteKit(t *testing.T) {
	f := newDetectorFixture(t)
	ctx := context.Background()

	due := f.now.Add(6 * time.Hour)
	task := f.createTask(t, "Ship quote", models.TaskStatusReady, &due)
	f.addKitItem(t, task.ID, "vendor pricing", false)
	f.addKitItem(t, task.ID, "site photos", true)

	detector, err := NewDeadlineDetector(f.db, f.router,
		WithDeadlineClock(func() time.Time { return f.now }))
	require.NoError(t, err)

	created, err := detector.Scan(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, created)

	require.Len(t, f.telegram.sent, 1)
	require.Contains(t, f.telegram.sent[0], "'Ship quote' due in 6h")
	require.Contains(t, f.telegram.sent[0], "vendor pricing")
	require.NotContains(t, f.telegram.sent[0], "site photos")
}

func TestDeadlineScanSkipsReadyKitsAndFarDeadlines(t *testing.T) {
	f := newDetectorFixture(t)
	ctx := context.Background()

	// Full kit complete: no alert.
	soon := f.now.Add(3 * time.Hour)
	readyTask := f.createTask(t, "Ready task", models.TaskStatusReady, &soon)
	f.addKitItem(t, readyTask.ID, "everything", true)

	// Incomplete but due beyond the 24h horizon.
	far := f.now.Add(48 * time.Hour)
	farTask := f.createTask(t, "Far task", models.TaskStatusReady, &far)
	f.addKitItem(t, farTask.ID, "later thing", false)

	// Completed tasks never alert.
	doneTask := f.createTask(t, "Done task", models.TaskStatusCompleted, &soon)
	f.addKitItem(t, doneTask.ID, "leftover", false)

	detector, err := NewDeadlineDetector(f.db, f.router,
		WithDeadlineClock(func() time.Time { return f.now }))
	require.NoError(t, err)

	created, err := detector.Scan(ctx)
	require.NoError(t, err)
	require.Zero(t, created)
	require.Empty(t, f.telegram.sent)
}

func TestDeadlineScanRepeatIsSuppressed(t *testing.T) {
	f := newDetectorFixture(t)
	ctx := context.Background()

	due := f.now.Add(10 * time.Hour)
	task := f.createTask(t, "At risk", models.TaskStatusInProgress, &due)
	f.addKitItem(t, task.ID, "permit", false)

	detector, err := NewDeadlineDetector(f.db, f.router,
		WithDeadlineClock(func() time.Time { return f.now }))
	require.NoError(t, err)

	created, err := detector.Scan(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, created)

	// The next hourly sweep finds the same task inside the cooldown window.
	created, err = detector.Scan(ctx)
	require.NoError(t, err)
	require.Zero(t, created)
	require.Len(t, f.telegram.sent, 1)
}

func TestMailDetectorResolvesBlockerOnResolutionKeywords(t *testing.T) {
	f := newDetectorFixture(t)
	ctx := context.Background()

	blocker := models.Blocker{
		Description:  "Waiting on vendor quote",
		WaitingOn:    "sales@vendor.example",
		WatchPattern: "quote #1041",
	}
	require.NoError(t, f.db.Create(&blocker).Error)

	detector, err := NewMailDetector(f.db, f.router,
		WithMailClock(func() time.Time { return f.now }))
	require.NoError(t, err)

	created, err := detector.Process(ctx, InboundMessage{
		From:    "Sales <sales@vendor.example>",
		Subject: "Quote #1041",
		Body:    "Here is the completed quote, attached.",
	})
	require.NoError(t, err)
	require.Equal(t, 1, created)

	require.Len(t, f.telegram.sent, 1)
	require.Contains(t, f.telegram.sent[0], "UNBLOCKED: Waiting on vendor quote")

	var reloaded models.Blocker
	require.NoError(t, f.db.First(&reloaded, "id = ?", blocker.ID).Error)
	require.True(t, reloaded.Resolved())
	require.Equal(t, "email_match", reloaded.ResolvedBy)
}

func TestMailDetectorEscalatesOnQuestions(t *testing.T) {
	f := newDetectorFixture(t)
	ctx := context.Background()

	blocker := models.Blocker{
		Description:  "Waiting on structural review",
		WatchPattern: "structural review",
	}
	require.NoError(t, f.db.Create(&blocker).Error)

	detector, err := NewMailDetector(f.db, f.router)
	require.NoError(t, err)

	created, err := detector.Process(ctx, InboundMessage{
		From:    "engineer@firm.example",
		Subject: "Structural review",
		Body:    "We need more detail and have a question about the loads.",
	})
	require.NoError(t, err)
	require.Equal(t, 1, created)

	require.Contains(t, f.telegram.sent[0], "BLOCKER UPDATE: Waiting on structural review")

	// An escalation leaves the blocker open.
	var reloaded models.Blocker
	require.NoError(t, f.db.First(&reloaded, "id = ?", blocker.ID).Error)
	require.False(t, reloaded.Resolved())
}

func TestMailDetectorIgnoresUnmatchedMessages(t *testing.T) {
	f := newDetectorFixture(t)
	ctx := context.Background()

	blocker := models.Blocker{Description: "Waiting on permit", WatchPattern: "permit 77"}
	require.NoError(t, f.db.Create(&blocker).Error)

	detector, err := NewMailDetector(f.db, f.router)
	require.NoError(t, err)

	created, err := detector.Process(ctx, InboundMessage{
		From:    "newsletter@example.com",
		Subject: "Weekly industry news",
		Body:    "Nothing relevant here.",
	})
	require.NoError(t, err)
	require.Zero(t, created)
	require.Empty(t, f.telegram.sent)
}

func TestLifecycleDetectorQueuesBatched(t *testing.T) {
	f := newDetectorFixture(t)
	ctx := context.Background()

	detector, err := NewLifecycleDetector(f.router)
	require.NoError(t, err)

	res, err := detector.TaskStatusChanged(ctx, "task-1", "Pour slab", models.TaskStatusReady, models.TaskStatusInProgress)
	require.NoError(t, err)
	require.Equal(t, services.OutcomeCreated, res.Outcome)
	require.Equal(t, models.PriorityBatched, res.Notification.Priority)
	require.Contains(t, res.Notification.Message, "Pour slab")

	res, err = detector.BlockerCreated(ctx, "blocker-1", "Rebar delivery late", "supplier")
	require.NoError(t, err)
	require.Equal(t, services.OutcomeCreated, res.Outcome)
	require.Contains(t, res.Notification.Message, "(waiting on supplier)")

	// Batched intakes never fan out at intake time.
	require.Empty(t, f.telegram.sent)
}

func TestWIPDetectorThresholds(t *testing.T) {
	f := newDetectorFixture(t)
	ctx := context.Background()

	detector, err := NewWIPDetector(f.db, f.router, 3)
	require.NoError(t, err)

	// One in-progress task: quiet.
	f.createTask(t, "A", models.TaskStatusInProgress, nil)
	res, err := detector.Check(ctx)
	require.NoError(t, err)
	require.Nil(t, res)

	// Two of three: one slot remaining.
	f.createTask(t, "B", models.TaskStatusInProgress, nil)
	res, err = detector.Check(ctx)
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Equal(t, services.OutcomeCreated, res.Outcome)
	require.Contains(t, res.Notification.Message, "WIP at 2/3 - one slot remaining")

	// The same warning inside the cooldown window is suppressed.
	res, err = detector.Check(ctx)
	require.NoError(t, err)
	require.Equal(t, services.OutcomeSuppressed, res.Outcome)
}
