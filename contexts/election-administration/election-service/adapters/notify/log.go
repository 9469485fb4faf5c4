package notify

import (
	"context"
	"log/slog"

	"campusvote/contexts/election-administration/election-service/domain/entities"
)

// LogNotifier renders notifications into the log instead of sending them.
// Used when no SMTP host is configured.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Send(_ context.Context, notification entities.Notification) error {
	subject, body, err := Render(notification)
	if err != nil {
		return err
	}
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("notification rendered",
		"event", "election_notification_logged",
		"module", "election-administration/election-service",
		"layer", "adapter",
		"notification_id", notification.NotificationID,
		"recipient", notification.Recipient,
		"template_kind", notification.TemplateKind,
		"subject", subject,
		"body", body,
	)
	return nil
}
