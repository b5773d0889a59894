package main

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/batterybuildsog1/Project-manager/internal/app"
	"github.com/batterybuildsog1/Project-manager/internal/audit"
	"github.com/batterybuildsog1/Project-manager/internal/channels"
	"github.com/batterybuildsog1/Project-manager/internal/detectors"
	"github.com/batterybuildsog1/Project-manager/internal/dispatch"
	"github.com/batterybuildsog1/Project-manager/internal/models"
	"github.com/batterybuildsog1/Project-manager/internal/schedule"
	"github.com/batterybuildsog1/Project-manager/internal/services"
	"github.com/batterybuildsog1/Project-manager/pkg/logger"
)

// application bundles the wired engine components for the server entrypoint.
type application struct {
	trail     *audit.Trail
	registry  *channels.Registry
	plan      schedule.Plan
	router    *services.RouterService
	digest    *services.DigestService
	mail      *detectors.MailDetector
	wip       *detectors.WIPDetector
	scheduler *dispatch.Scheduler
}

// buildApplication assembles channel adapters, services, detectors and the
// scheduler from the loaded configuration.
func buildApplication(cfg *app.Config, db *gorm.DB, trail *audit.Trail) (*application, error) {
	log := logger.WithModule("bootstrap")

	registry, err := buildChannelRegistry(cfg, log)
	if err != nil {
		return nil, err
	}

	plan := schedule.NewPlan(cfg.Notify.BatchTimes, cfg.Notify.WeeklyDay, cfg.Notify.WeeklyTime, log)

	dedup, err := services.NewDedupService(db, cfg.Cooldowns())
	if err != nil {
		return nil, fmt.Errorf("initialise dedup service: %w", err)
	}

	router, err := services.NewRouterService(db, dedup, registry, trail, plan)
	if err != nil {
		return nil, fmt.Errorf("initialise router service: %w", err)
	}

	digest, err := services.NewDigestService(db, registry, trail)
	if err != nil {
		return nil, fmt.Errorf("initialise digest service: %w", err)
	}

	mail, err := detectors.NewMailDetector(db, router)
	if err != nil {
		return nil, fmt.Errorf("initialise mail detector: %w", err)
	}

	deadline, err := detectors.NewDeadlineDetector(db, router)
	if err != nil {
		return nil, fmt.Errorf("initialise deadline detector: %w", err)
	}

	wip, err := detectors.NewWIPDetector(db, router, cfg.Notify.WIPLimit)
	if err != nil {
		return nil, fmt.Errorf("initialise wip detector: %w", err)
	}

	scheduler := dispatch.NewScheduler(digest, deadline, wip, plan,
		dispatch.WithDeadlineSchedule(cfg.Notify.DeadlineSchedule))

	return &application{
		trail:     trail,
		registry:  registry,
		plan:      plan,
		router:    router,
		digest:    digest,
		mail:      mail,
		wip:       wip,
		scheduler: scheduler,
	}, nil
}

// buildChannelRegistry registers every enabled adapter and reroutes tiers
// whose channels are all disabled to the log sink, so a machine without
// Telegram credentials still runs end to end.
func buildChannelRegistry(cfg *app.Config, log *zap.Logger) (*channels.Registry, error) {
	registry := channels.NewRegistry(logger.WithModule("channels"))
	registry.Register(channels.NewLogSink(logger.WithModule("channels.log")))

	available := map[string]bool{models.ChannelLog: true}

	if cfg.Channels.Telegram.Enabled {
		telegram, err := channels.NewTelegram(channels.TelegramConfig{
			Token:  cfg.Channels.Telegram.Token,
			ChatID: cfg.Channels.Telegram.ChatID,
			Silent: cfg.Channels.Telegram.Silent,
		})
		if err != nil {
			return nil, fmt.Errorf("initialise telegram channel: %w", err)
		}
		registry.Register(telegram)
		available[telegram.Name()] = true
	}

	if cfg.Channels.SMS.Enabled {
		sms, err := channels.NewSMS(channels.SMSConfig{
			GatewayURL: cfg.Channels.SMS.GatewayURL,
			From:       cfg.Channels.SMS.From,
			To:         cfg.Channels.SMS.To,
			MaxLength:  cfg.Channels.SMS.MaxLength,
			Timeout:    cfg.Channels.SMS.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("initialise sms channel: %w", err)
		}
		registry.Register(sms)
		available[sms.Name()] = true
	}

	for _, priority := range models.AllPriorities() {
		var usable []string
		for _, name := range registry.TierChannels(priority) {
			if available[name] {
				usable = append(usable, name)
			}
		}
		if len(usable) == 0 {
			log.Warn("no channel available for tier, routing to log sink",
				zap.String("priority", string(priority)))
			usable = []string{models.ChannelLog}
		}
		registry.SetTierChannels(priority, usable)
	}

	return registry, nil
}
