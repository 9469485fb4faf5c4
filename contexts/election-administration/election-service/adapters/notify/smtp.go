package notify

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
	"time"

	"campusvote/contexts/election-administration/election-service/domain/entities"
)

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// SMTPNotifier delivers notifications as plain-text email. Authentication is
// only attempted when both username and password are set.
type SMTPNotifier struct {
	Config SMTPConfig
	Logger *slog.Logger
}

func (n SMTPNotifier) Send(ctx context.Context, notification entities.Notification) error {
	subject, body, err := Render(notification)
	if err != nil {
		return err
	}
	logger := n.logger()
	addr := net.JoinHostPort(n.Config.Host, n.Config.Port)

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connect smtp %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	client, err := smtp.NewClient(conn, n.Config.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("create smtp client: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Debug("smtp client close failed",
				"event", "election_smtp_close_failed",
				"module", "election-administration/election-service",
				"layer", "adapter",
				"error", err.Error(),
			)
		}
	}()

	if n.Config.Username != "" && n.Config.Password != "" {
		if ok, _ := client.Extension("AUTH"); ok {
			auth := smtp.PlainAuth("", n.Config.Username, n.Config.Password, n.Config.Host)
			if err := client.Auth(auth); err != nil {
				return fmt.Errorf("smtp auth: %w", err)
			}
		}
	}
	if err := client.Mail(n.Config.From); err != nil {
		return fmt.Errorf("smtp sender: %w", err)
	}
	if err := client.Rcpt(notification.Recipient); err != nil {
		return fmt.Errorf("smtp recipient: %w", err)
	}
	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := writer.Write(buildMessage(n.Config.From, notification.Recipient, subject, body)); err != nil {
		_ = writer.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("smtp close data: %w", err)
	}
	if err := client.Quit(); err != nil {
		return fmt.Errorf("smtp quit: %w", err)
	}

	logger.Info("notification email sent",
		"event", "election_notification_email_sent",
		"module", "election-administration/election-service",
		"layer", "adapter",
		"notification_id", notification.NotificationID,
		"template_kind", notification.TemplateKind,
	)
	return nil
}

func (n SMTPNotifier) logger() *slog.Logger {
	if n.Logger == nil {
		return slog.Default()
	}
	return n.Logger
}

func buildMessage(from string, to string, subject string, body string) []byte {
	var message bytes.Buffer
	headers := [][2]string{
		{"From", from},
		{"To", to},
		{"Subject", subject},
		{"Date", time.Now().UTC().Format(time.RFC1123Z)},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/plain; charset=UTF-8"},
	}
	for _, header := range headers {
		message.WriteString(header[0] + ": " + sanitizeHeader(header[1]) + "\r\n")
	}
	message.WriteString("\r\n")
	message.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return message.Bytes()
}

func sanitizeHeader(value string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(value)
}
