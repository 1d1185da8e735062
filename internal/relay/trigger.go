package relay

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"joyrelay/internal/config"
	"joyrelay/internal/domain"
	"joyrelay/internal/mailbox"
	"joyrelay/internal/metrics"
)

// ErrNotDelivered means Telegram did not confirm the notification.
var ErrNotDelivered = errors.New("failed to send")

// Trigger sends the "someone is at the device" notification and arms the
// waiting flag.
type Trigger struct {
	notifier domain.Notifier
	tokenSet bool
	chatID   string
	mailbox  *mailbox.Mailbox
	bus      domain.EventBus
	now      func() time.Time
	logger   *slog.Logger
}

type TriggerConfig struct {
	Notifier domain.Notifier
	TokenSet bool   // whether the notifier has credentials
	ChatID   string // fixed recipient
	Mailbox  *mailbox.Mailbox
	Bus      domain.EventBus // optional
	Now      func() time.Time
	Logger   *slog.Logger
}

func NewTrigger(cfg TriggerConfig) *Trigger {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Trigger{
		notifier: cfg.Notifier,
		tokenSet: cfg.TokenSet,
		chatID:   cfg.ChatID,
		mailbox:  cfg.Mailbox,
		bus:      cfg.Bus,
		now:      cfg.Now,
		logger:   cfg.Logger,
	}
}

// Fire notifies the configured chat. Missing credentials return
// config.ErrNoTelegramToken or config.ErrNoTelegramChatID; a failed delivery
// returns ErrNotDelivered and leaves the waiting flag unchanged.
func (t *Trigger) Fire(ctx context.Context) (time.Time, error) {
	if !t.tokenSet {
		return time.Time{}, config.ErrNoTelegramToken
	}
	if t.chatID == "" {
		return time.Time{}, config.ErrNoTelegramChatID
	}

	if !t.notifier.Notify(ctx, t.chatID, NotifyText) {
		t.logger.Warn("trigger notification not delivered", "chat_id", t.chatID)
		return time.Time{}, ErrNotDelivered
	}

	sentAt := t.now()
	t.mailbox.SetWaiting(true)
	metrics.SetWaiting(true)

	if t.bus != nil {
		t.bus.Emit(domain.Event{
			Type:          domain.EventNotifySent,
			CorrelationID: domain.RequestID(ctx),
			OccurredAt:    sentAt,
			Payload:       domain.NotifyPayload{ChatID: t.chatID, SentAt: sentAt},
		})
	}

	t.logger.Info("trigger notification sent", "chat_id", t.chatID)
	return sentAt, nil
}
