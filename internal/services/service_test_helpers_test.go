package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/batterybuildsog1/Project-manager/internal/audit"
	"github.com/batterybuildsog1/Project-manager/internal/channels"
	"github.com/batterybuildsog1/Project-manager/internal/database/testutil"
	"github.com/batterybuildsog1/Project-manager/internal/models"
	"github.com/batterybuildsog1/Project-manager/internal/schedule"
)

// fakeClock is a settable test clock shared by services under test.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// fakeAdapter records sends and can be forced to fail.
type fakeAdapter struct {
	name string
	sent []string
	err  error
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Send(_ context.Context, text string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, text)
	return nil
}

// testStack bundles everything a router/digest test needs.
type testStack struct {
	db       *gorm.DB
	clock    *fakeClock
	registry *channels.Registry
	telegram *fakeAdapter
	sms      *fakeAdapter
	logSink  *fakeAdapter
	trail    *audit.Trail
	trailLog *observer.ObservedLogs
	router   *RouterService
	digest   *DigestService
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	clock := &fakeClock{t: time.Date(2025, 3, 10, 10, 3, 0, 0, time.UTC)}

	telegram := &fakeAdapter{name: models.ChannelTelegram}
	sms := &fakeAdapter{name: models.ChannelSMS}
	logSink := &fakeAdapter{name: models.ChannelLog}

	registry := channels.NewRegistry(nil)
	registry.Register(telegram)
	registry.Register(sms)
	registry.Register(logSink)

	core, recorded := observer.New(zap.InfoLevel)
	trail := audit.NewTrailWithLogger(zap.New(core))

	dedup, err := NewDedupService(db, DefaultCooldowns(), WithDedupClock(clock.Now))
	require.NoError(t, err)

	plan := schedule.NewPlan([]string{"09:00", "13:00", "17:00"}, "sunday", "20:00", nil)

	router, err := NewRouterService(db, dedup, registry, trail, plan, WithRouterClock(clock.Now))
	require.NoError(t, err)

	digest, err := NewDigestService(db, registry, trail)
	require.NoError(t, err)

	return &testStack{
		db:       db,
		clock:    clock,
		registry: registry,
		telegram: telegram,
		sms:      sms,
		logSink:  logSink,
		trail:    trail,
		trailLog: recorded,
		router:   router,
		digest:   digest,
	}
}

func (s *testStack) notificationCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, s.db.Model(&models.Notification{}).Count(&count).Error)
	return count
}

func mustContext(t *testing.T, eventKind, sourceEntityID string) datatypes.JSON {
	t.Helper()
	data, err := json.Marshal(models.NotificationContext{EventKind: eventKind, SourceEntityID: sourceEntityID})
	require.NoError(t, err)
	return datatypes.JSON(data)
}

func (s *testStack) trailOutcomes() []string {
	var outcomes []string
	for _, entry := range s.trailLog.All() {
		if v, ok := entry.ContextMap()["outcome"].(string); ok {
			outcomes = append(outcomes, v)
		}
	}
	return outcomes
}
