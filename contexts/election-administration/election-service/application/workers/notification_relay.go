package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	application "campusvote/contexts/election-administration/election-service/application"
	"campusvote/contexts/election-administration/election-service/domain/entities"
	"campusvote/contexts/election-administration/election-service/ports"
	"campusvote/internal/shared/events"
)

const (
	NotificationRequestedTopic = "election.notification.requested"
	notificationPayloadVersion = 1
)

// NotificationPayload is the bus body of a requested notification.
type NotificationPayload struct {
	NotificationID string            `json:"notification_id"`
	Recipient      string            `json:"recipient"`
	TemplateKind   string            `json:"template_kind"`
	TemplateData   map[string]string `json:"template_data,omitempty"`
}

// NotificationRelay publishes pending outbox notifications to the event bus.
type NotificationRelay struct {
	Outbox        ports.NotificationOutbox
	Publisher     ports.EventPublisher
	Clock         ports.Clock
	BatchSize     int
	SourceService string
	Logger        *slog.Logger
}

func (r NotificationRelay) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}

	pending, err := r.Outbox.ListPendingNotifications(ctx, limit)
	if err != nil {
		logger.Error("notification outbox list failed",
			"event", "election_notification_outbox_list_failed",
			"module", application.Module,
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	now := time.Now().UTC()
	if r.Clock != nil {
		now = r.Clock.Now().UTC()
	}

	for _, row := range pending {
		event, err := r.envelope(row, now)
		if err != nil {
			logger.Error("notification encode failed",
				"event", "election_notification_encode_failed",
				"module", application.Module,
				"layer", "worker",
				"notification_id", row.NotificationID,
				"error", err.Error(),
			)
			return err
		}
		if err := r.Publisher.Publish(ctx, NotificationRequestedTopic, event); err != nil {
			logger.Error("notification publish failed",
				"event", "election_notification_publish_failed",
				"module", application.Module,
				"layer", "worker",
				"notification_id", row.NotificationID,
				"topic", NotificationRequestedTopic,
				"error", err.Error(),
			)
			return err
		}
		if err := r.Outbox.MarkNotificationDispatched(ctx, row.NotificationID); err != nil {
			logger.Error("notification mark dispatched failed",
				"event", "election_notification_mark_dispatched_failed",
				"module", application.Module,
				"layer", "worker",
				"notification_id", row.NotificationID,
				"error", err.Error(),
			)
			return err
		}
	}

	if len(pending) > 0 {
		logger.Info("notification relay cycle completed",
			"event", "election_notification_relay_completed",
			"module", application.Module,
			"layer", "worker",
			"published_count", len(pending),
		)
	}
	return nil
}

func (r NotificationRelay) envelope(row entities.Notification, now time.Time) (events.Envelope, error) {
	payload, err := json.Marshal(NotificationPayload{
		NotificationID: row.NotificationID,
		Recipient:      row.Recipient,
		TemplateKind:   row.TemplateKind,
		TemplateData:   row.TemplateData,
	})
	if err != nil {
		return events.Envelope{}, err
	}
	source := r.SourceService
	if source == "" {
		source = application.Module
	}
	return events.Envelope{
		EventID:        row.NotificationID,
		EventType:      NotificationRequestedTopic,
		SourceService:  source,
		OccurredAtUTC:  now,
		CorrelationID:  row.NotificationID,
		EntityType:     "notification",
		EntityID:       row.NotificationID,
		PayloadVersion: notificationPayloadVersion,
		Payload:        payload,
	}, nil
}
