package channels

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/batterybuildsog1/Project-manager/internal/models"
	apperrors "github.com/batterybuildsog1/Project-manager/pkg/errors"
)

// Registry maps channel names to adapters and priority tiers to the ordered
// channel list each tier delivers on.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	tiers    map[models.Priority][]string
	log      *zap.Logger
}

// NewRegistry builds a registry with the default tier-to-channel mapping:
// immediate fans out to telegram and sms, batched and weekly use telegram,
// silent uses the log sink.
func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		adapters: make(map[string]Adapter),
		tiers: map[models.Priority][]string{
			models.PriorityImmediate: {models.ChannelTelegram, models.ChannelSMS},
			models.PriorityBatched:   {models.ChannelTelegram},
			models.PriorityWeekly:    {models.ChannelTelegram},
			models.PrioritySilent:    {models.ChannelLog},
		},
		log: log,
	}
}

// Register adds or replaces the adapter for its channel name.
func (r *Registry) Register(adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[adapter.Name()] = adapter
}

// SetTierChannels overrides the channel list for a tier.
func (r *Registry) SetTierChannels(priority models.Priority, names []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tiers[priority] = append([]string(nil), names...)
}

// TierChannels returns the configured channel names for a tier.
func (r *Registry) TierChannels(priority models.Priority) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.tiers[priority]...)
}

// PrimaryChannel returns the first configured channel for a tier, or the log
// sink when the tier has none.
func (r *Registry) PrimaryChannel(priority models.Priority) string {
	names := r.TierChannels(priority)
	if len(names) == 0 {
		return models.ChannelLog
	}
	return names[0]
}

// Deliver sends the text on every channel configured for the tier. Each
// channel failure is logged and folded into the aggregated return; delivery
// is best-effort fan-out across redundant channels, so callers decide what a
// partial failure means.
func (r *Registry) Deliver(ctx context.Context, priority models.Priority, text string) error {
	var errs error
	for _, name := range r.TierChannels(priority) {
		if err := r.send(ctx, name, text); err != nil {
			r.log.Warn("channel delivery failed",
				zap.String("channel", name),
				zap.String("priority", string(priority)),
				zap.String("payload", text),
				zap.Error(err),
			)
			errs = multierr.Append(errs, fmt.Errorf("channel %s: %w", name, err))
		}
	}
	return errs
}

// DeliverPrimary sends the text on the tier's first channel only. Used by the
// digest processors, which send exactly one message per run.
func (r *Registry) DeliverPrimary(ctx context.Context, priority models.Priority, text string) error {
	return r.send(ctx, r.PrimaryChannel(priority), text)
}

func (r *Registry) send(ctx context.Context, name, text string) error {
	r.mu.RLock()
	adapter, ok := r.adapters[name]
	r.mu.RUnlock()

	if !ok {
		return apperrors.ErrChannelUnknown.WithInternal(fmt.Errorf("channel %q", name))
	}
	return adapter.Send(ctx, text)
}
