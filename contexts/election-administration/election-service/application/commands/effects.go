package commands

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	application "campusvote/contexts/election-administration/election-service/application"
	"campusvote/contexts/election-administration/election-service/domain/entities"
	domainerrors "campusvote/contexts/election-administration/election-service/domain/errors"
	"campusvote/contexts/election-administration/election-service/ports"
)

// Effects carries the best-effort side effects of a committed write: the
// activity log and the notification outbox. Neither can fail the caller.
type Effects struct {
	Activity ports.ActivityLog
	Outbox   ports.NotificationOutbox
	IDGen    ports.IDGenerator
	Logger   *slog.Logger
}

func (e Effects) Record(
	ctx context.Context,
	actorID string,
	action string,
	subjectType string,
	subjectID string,
	detail map[string]string,
	now time.Time,
) {
	if e.Activity == nil {
		return
	}
	logger := application.ResolveLogger(e.Logger)
	entryID, err := e.newID(ctx)
	if err != nil {
		logger.Warn("activity id generation failed",
			"event", "election_activity_id_failed",
			"module", application.Module,
			"layer", "application",
			"action", action,
			"error", err.Error(),
		)
		return
	}
	if err := e.Activity.AppendActivity(ctx, entities.ActivityEntry{
		EntryID:     entryID,
		ActorID:     actorID,
		Action:      action,
		SubjectType: subjectType,
		SubjectID:   subjectID,
		Detail:      detail,
		OccurredAt:  now,
	}); err != nil {
		logger.Warn("activity append failed",
			"event", "election_activity_append_failed",
			"module", application.Module,
			"layer", "application",
			"action", action,
			"subject_id", subjectID,
			"error", err.Error(),
		)
	}
}

// Notify queues a notification for the worker relay. A missing recipient
// address skips the message.
func (e Effects) Notify(ctx context.Context, recipient string, templateKind string, data map[string]string, now time.Time) {
	if e.Outbox == nil || strings.TrimSpace(recipient) == "" {
		return
	}
	logger := application.ResolveLogger(e.Logger)
	notificationID, err := e.newID(ctx)
	if err != nil {
		logger.Warn("notification id generation failed",
			"event", "election_notification_id_failed",
			"module", application.Module,
			"layer", "application",
			"template_kind", templateKind,
			"error", err.Error(),
		)
		return
	}
	if err := e.Outbox.EnqueueNotification(ctx, entities.Notification{
		NotificationID: notificationID,
		Recipient:      strings.TrimSpace(recipient),
		TemplateKind:   templateKind,
		TemplateData:   data,
		Status:         entities.NotificationStatusPending,
		CreatedAt:      now,
	}); err != nil {
		logger.Warn("notification enqueue failed",
			"event", "election_notification_enqueue_failed",
			"module", application.Module,
			"layer", "application",
			"template_kind", templateKind,
			"error", err.Error(),
		)
	}
}

// NotifyIdentity resolves the user's address from the directory before
// queueing.
func (e Effects) NotifyIdentity(
	ctx context.Context,
	identities ports.IdentityDirectory,
	userID string,
	templateKind string,
	data map[string]string,
	now time.Time,
) {
	if identities == nil {
		return
	}
	identity, err := identities.GetIdentity(ctx, userID)
	if err != nil {
		application.ResolveLogger(e.Logger).Warn("notification recipient lookup failed",
			"event", "election_notification_recipient_missing",
			"module", application.Module,
			"layer", "application",
			"user_id", userID,
			"template_kind", templateKind,
			"error", err.Error(),
		)
		return
	}
	e.Notify(ctx, identity.Email, templateKind, data, now)
}

func (e Effects) newID(ctx context.Context) (string, error) {
	if e.IDGen == nil {
		return "", domainerrors.ErrInvalidInput
	}
	return e.IDGen.NewID(ctx)
}

func requireAdmin(actor entities.Actor) error {
	if !actor.IsAdmin() {
		return domainerrors.WithDetails(domainerrors.ErrForbidden, map[string]any{
			"actor_id": actor.UserID,
			"required": string(entities.RoleAdmin),
		})
	}
	return nil
}

func requireActor(actor entities.Actor) error {
	if strings.TrimSpace(actor.UserID) == "" {
		return domainerrors.ErrForbidden
	}
	return nil
}

// validReference accepts the absolute http(s) URLs handed out by blob storage.
func validReference(ref string) bool {
	parsed, err := url.Parse(strings.TrimSpace(ref))
	if err != nil || parsed.Host == "" {
		return false
	}
	return parsed.Scheme == "https" || parsed.Scheme == "http"
}

func nowFrom(clock ports.Clock) time.Time {
	if clock == nil {
		return time.Now().UTC()
	}
	return clock.Now().UTC()
}

func requireWindowOpen(ctx context.Context, phases ports.PhaseRepository, phase entities.Phase, now time.Time) error {
	window, err := phases.GetPhaseWindow(ctx, phase)
	if err != nil {
		if domainerrors.KindOf(err) == domainerrors.KindNotFound {
			return domainerrors.WithDetails(domainerrors.ErrWindowClosed, map[string]any{
				"phase":      string(phase),
				"configured": false,
			})
		}
		return domainerrors.Unavailable(err)
	}
	if !window.IsOpen(now) {
		return domainerrors.WithDetails(domainerrors.ErrWindowClosed, map[string]any{
			"phase":     string(phase),
			"starts_at": window.StartsAt.Format(time.RFC3339),
			"ends_at":   window.EndsAt.Format(time.RFC3339),
		})
	}
	return nil
}
