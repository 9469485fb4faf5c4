package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	application "campusvote/contexts/election-administration/election-service/application"
	"campusvote/contexts/election-administration/election-service/domain/entities"
	domainerrors "campusvote/contexts/election-administration/election-service/domain/errors"
	"campusvote/contexts/election-administration/election-service/ports"
	"campusvote/internal/shared/events"

	"github.com/cenkalti/backoff/v4"
)

const defaultNotificationConsumerGroup = "election-service-notification-cg"

// NotificationConsumer delivers requested notifications through the
// Notifier. Delivery failures never reach the operation that queued them.
type NotificationConsumer struct {
	Subscriber    ports.EventSubscriber
	Outbox        ports.NotificationOutbox
	Notifier      ports.Notifier
	Clock         ports.Clock
	ConsumerGroup string
	MaxAttempts   uint64
	// Backoff overrides the retry policy; tests use a zero-delay policy.
	Backoff  func() backoff.BackOff
	Disabled bool
	Logger   *slog.Logger
}

func (c NotificationConsumer) Start(ctx context.Context) error {
	logger := application.ResolveLogger(c.Logger)
	if c.Disabled {
		logger.Info("notification consumer disabled",
			"event", "election_notification_consumer_disabled",
			"module", application.Module,
			"layer", "worker",
		)
		return nil
	}
	group := strings.TrimSpace(c.ConsumerGroup)
	if group == "" {
		group = defaultNotificationConsumerGroup
	}
	return c.Subscriber.Subscribe(ctx, NotificationRequestedTopic, group, c.Handle)
}

func (c NotificationConsumer) Handle(ctx context.Context, event events.Envelope) error {
	logger := application.ResolveLogger(c.Logger)

	var payload NotificationPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("decode notification payload: %w", err)
	}
	if strings.TrimSpace(payload.NotificationID) == "" {
		return fmt.Errorf("notification payload missing notification_id")
	}

	stored, err := c.Outbox.GetNotification(ctx, payload.NotificationID)
	switch {
	case err == nil && (stored.Status == entities.NotificationStatusSent || stored.Status == entities.NotificationStatusFailed):
		logger.Debug("notification already delivered",
			"event", "election_notification_replayed",
			"module", application.Module,
			"layer", "worker",
			"notification_id", payload.NotificationID,
		)
		return nil
	case err != nil && domainerrors.KindOf(err) != domainerrors.KindNotFound:
		return err
	}

	notification := entities.Notification{
		NotificationID: payload.NotificationID,
		Recipient:      payload.Recipient,
		TemplateKind:   payload.TemplateKind,
		TemplateData:   payload.TemplateData,
	}
	attempts := 0
	sendErr := backoff.Retry(func() error {
		attempts++
		return c.Notifier.Send(ctx, notification)
	}, backoff.WithContext(backoff.WithMaxRetries(c.policy(), c.maxRetries()), ctx))

	if sendErr != nil {
		logger.Warn("notification delivery failed",
			"event", "election_notification_delivery_failed",
			"module", application.Module,
			"layer", "worker",
			"notification_id", payload.NotificationID,
			"template_kind", payload.TemplateKind,
			"attempts", attempts,
			"error", sendErr.Error(),
		)
		if err := c.Outbox.MarkNotificationFailed(ctx, payload.NotificationID, sendErr.Error()); err != nil {
			return err
		}
		return nil
	}

	now := time.Now().UTC()
	if c.Clock != nil {
		now = c.Clock.Now().UTC()
	}
	if err := c.Outbox.MarkNotificationSent(ctx, payload.NotificationID, now); err != nil {
		return err
	}
	logger.Info("notification delivered",
		"event", "election_notification_delivered",
		"module", application.Module,
		"layer", "worker",
		"notification_id", payload.NotificationID,
		"template_kind", payload.TemplateKind,
		"attempts", attempts,
	)
	return nil
}

func (c NotificationConsumer) maxRetries() uint64 {
	if c.MaxAttempts <= 1 {
		return 4
	}
	return c.MaxAttempts - 1
}

func (c NotificationConsumer) policy() backoff.BackOff {
	if c.Backoff != nil {
		return c.Backoff()
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxInterval = 5 * time.Second
	policy.MaxElapsedTime = 30 * time.Second
	return policy
}
