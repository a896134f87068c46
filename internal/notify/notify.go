// Package notify turns trigger events into persisted notification records,
// suppressing repeats inside each event type's dedup window.
package notify

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/covergrid/portfolio-cli/internal/config"
	"github.com/covergrid/portfolio-cli/internal/model"
	"github.com/covergrid/portfolio-cli/internal/trend"
)

// NotificationStore is the slice of the store the emitter needs.
type NotificationStore interface {
	NotificationExistsWithinWindow(ctx context.Context, userID string, typ model.NotificationType, dedupKey string, windowDays int) (bool, error)
	AppendNotification(ctx context.Context, event *model.NotificationEvent) error
}

// Emitter writes notifications with per-type dedup windows. Windows are a
// lookup table so new event types can be added without touching Emit.
type Emitter struct {
	store   NotificationStore
	windows map[model.NotificationType]int
}

// NewEmitter builds an Emitter from config. Trend transitions use the short
// window; portfolio-wide gap signals use the long one.
func NewEmitter(store NotificationStore, cfg config.NotifyConfig) *Emitter {
	return &Emitter{
		store: store,
		windows: map[model.NotificationType]int{
			model.NotificationScoreDrop:        cfg.TrendWindowDays,
			model.NotificationRatingDowngrade:  cfg.TrendWindowDays,
			model.NotificationScoreImprovement: cfg.TrendWindowDays,
			model.NotificationHighPremiumGap:   cfg.GapWindowDays,
			model.NotificationLowCoverageGap:   cfg.GapWindowDays,
		},
	}
}

// WindowDays returns the dedup window for a notification type.
func (e *Emitter) WindowDays(typ model.NotificationType) int {
	if days, ok := e.windows[typ]; ok {
		return days
	}
	// Unknown types get the conservative long window.
	return 30
}

// Emit writes the notification for a single trigger unless a matching one
// exists inside the window. Returns true when a record was created.
func (e *Emitter) Emit(ctx context.Context, userID string, trigger trend.Trigger) (bool, error) {
	windowDays := e.WindowDays(trigger.Type)

	exists, err := e.store.NotificationExistsWithinWindow(ctx, userID, trigger.Type, trigger.DedupKey, windowDays)
	if err != nil {
		return false, eris.Wrapf(err, "notify: dedup check for %s", userID)
	}
	if exists {
		zap.L().Debug("notify: suppressed duplicate",
			zap.String("user_id", userID),
			zap.String("type", string(trigger.Type)),
			zap.Int("window_days", windowDays),
		)
		return false, nil
	}

	event := &model.NotificationEvent{
		UserID:     userID,
		Type:       trigger.Type,
		Priority:   trigger.Priority,
		Title:      trigger.Title,
		Message:    trigger.Message,
		TargetLink: trigger.TargetLink,
		DedupKey:   trigger.DedupKey,
		CreatedAt:  time.Now().UTC(),
	}
	if err := e.store.AppendNotification(ctx, event); err != nil {
		return false, eris.Wrapf(err, "notify: append for %s", userID)
	}
	return true, nil
}

// EmitAll emits every trigger for a user and returns the number of
// notifications actually created.
func (e *Emitter) EmitAll(ctx context.Context, userID string, triggers []trend.Trigger) (int, error) {
	created := 0
	for _, trigger := range triggers {
		ok, err := e.Emit(ctx, userID, trigger)
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	return created, nil
}
