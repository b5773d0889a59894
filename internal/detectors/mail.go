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

// Event kinds raised by the inbound-mail matcher.
const (
	EventKindBlockerResolved   = "blocker_resolved"
	EventKindBlockerEscalation = "blocker_escalation"
)

var (
	resolutionKeywords = []string{"attached", "here is", "completed", "finished", "done", "ready", "sent", "enclosed"}
	escalationKeywords = []string{"need more", "additional", "question", "clarify", "missing", "waiting"}
)

// InboundMessage is one external message handed to the matcher, typically an
// email surfaced by a mailbox poller.
type InboundMessage struct {
	From    string
	Subject string
	Body    string
}

// MailDetector matches inbound messages against open blockers. A matched
// message either resolves the blocker (and closes it) or escalates it; both
// raise an immediate notification.
type MailDetector struct {
	db     *gorm.DB
	router *services.RouterService
	log    *zap.Logger
	now    func() time.Time
}

// MailOption customises the detector.
type MailOption func(*MailDetector)

// WithMailClock overrides the clock, primarily for tests.
func WithMailClock(now func() time.Time) MailOption {
	return func(d *MailDetector) {
		if now != nil {
			d.now = now
		}
	}
}

// NewMailDetector constructs the blocker matcher.
func NewMailDetector(db *gorm.DB, router *services.RouterService, opts ...MailOption) (*MailDetector, error) {
	if db == nil {
		return nil, errors.New("mail detector: db is required")
	}
	if router == nil {
		return nil, errors.New("mail detector: router is required")
	}

	d := &MailDetector{
		db:     db,
		router: router,
		log:    logger.WithModule("detector.mail"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Process matches one message against every open blocker and returns how
// many intakes were created.
func (d *MailDetector) Process(ctx context.Context, msg InboundMessage) (int, error) {
	var open []models.Blocker
	err := d.db.WithContext(ctx).
		Where("resolved_at IS NULL").
		Find(&open).Error
	if err != nil {
		return 0, fmt.Errorf("mail detector: list blockers: %w", err)
	}

	created := 0
	for _, blocker := range open {
		if !matchesBlocker(blocker, msg) {
			continue
		}

		var message, kind string
		if isResolution(msg) {
			message = fmt.Sprintf("UNBLOCKED: %s - Email from %s", blocker.Description, msg.From)
			kind = EventKindBlockerResolved

			if err := d.resolveBlocker(ctx, blocker.ID); err != nil {
				d.log.Warn("auto-resolve failed",
					zap.String("blocker_id", blocker.ID),
					zap.Error(err),
				)
				continue
			}
		} else {
			message = fmt.Sprintf("BLOCKER UPDATE: %s - %s sent update", blocker.Description, msg.From)
			kind = EventKindBlockerEscalation
		}

		res, err := d.router.QueueImmediate(ctx, message, kind, blocker.ID, map[string]any{
			"email_from":    msg.From,
			"email_subject": msg.Subject,
		})
		if err != nil {
			d.log.Warn("blocker intake failed",
				zap.String("blocker_id", blocker.ID),
				zap.Error(err),
			)
			continue
		}
		if res.Outcome == services.OutcomeCreated {
			created++
		}
	}

	return created, nil
}

func (d *MailDetector) resolveBlocker(ctx context.Context, id string) error {
	now := d.now().UTC()
	return d.db.WithContext(ctx).
		Model(&models.Blocker{}).
		Where("id = ?", id).
		Updates(map[string]any{"resolved_at": now, "resolved_by": "email_match"}).Error
}

// matchesBlocker checks the sender against waiting_on and the watch pattern
// against subject and body, all case-insensitively.
func matchesBlocker(blocker models.Blocker, msg InboundMessage) bool {
	waitingOn := strings.ToLower(blocker.WaitingOn)
	pattern := strings.ToLower(blocker.WatchPattern)

	if waitingOn == "" && pattern == "" {
		return false
	}

	if waitingOn != "" && strings.Contains(strings.ToLower(msg.From), waitingOn) {
		return true
	}

	if pattern != "" {
		content := strings.ToLower(msg.Subject + " " + msg.Body)
		if strings.Contains(content, pattern) {
			return true
		}
	}

	return false
}

// isResolution scores resolution keywords against escalation keywords; ties
// count as escalation so an ambiguous message never silently closes a
// blocker.
func isResolution(msg InboundMessage) bool {
	text := strings.ToLower(msg.Subject + " " + msg.Body)

	resolution := 0
	for _, kw := range resolutionKeywords {
		if strings.Contains(text, kw) {
			resolution++
		}
	}

	escalation := 0
	for _, kw := range escalationKeywords {
		if strings.Contains(text, kw) {
			escalation++
		}
	}

	return resolution > escalation
}
