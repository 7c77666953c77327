// Package jobs runs background work over Asynq: outbound mail, the nightly
// scratch-file sweep, and the daily deadline scan.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/smtp"

	"github.com/hibiken/asynq"

	"github.com/putriazni/umqei/internal/files"
	"github.com/putriazni/umqei/internal/notify"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for outbound mail.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeFileCleanup sweeps idle scratch files.
	TaskTypeFileCleanup = "files:cleanup"
	// TaskTypeExpiryScan warns about closing assessment windows.
	TaskTypeExpiryScan = "periods:expiry_scan"
)

// SendEmailPayload describes one outbound message.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// NewFileCleanupTask constructs the scratch sweep task; it carries no payload.
func NewFileCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskTypeFileCleanup, nil)
}

// NewExpiryScanTask constructs the deadline scan task; it carries no payload.
func NewExpiryScanTask() *asynq.Task {
	return asynq.NewTask(TaskTypeExpiryScan, nil)
}

// SMTPConfig carries the relay settings for outbound mail.
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	Username string
	Password string
}

func (c SMTPConfig) addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NewSendEmailHandler delivers TaskTypeSendEmail via the SMTP relay. A
// malformed payload is dropped; a relay failure is retried by Asynq.
func NewSendEmailHandler(cfg SMTPConfig, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload SendEmailPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}

		msg := fmt.Sprintf(
			"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
			cfg.From, payload.To, payload.Subject, payload.Body,
		)
		var auth smtp.Auth
		if cfg.Username != "" {
			auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
		}
		if err := smtp.SendMail(cfg.addr(), auth, cfg.From, []string{payload.To}, []byte(msg)); err != nil {
			logger.Error("smtp send",
				slog.String("to", payload.To),
				slog.Any("error", err),
			)
			return err
		}
		logger.Info("mail delivered",
			slog.String("to", payload.To),
			slog.String("subject", payload.Subject),
		)
		return nil
	}
}

// NewFileCleanupHandler processes TaskTypeFileCleanup.
func NewFileCleanupHandler(cleanup *files.Cleanup) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		return cleanup.RemoveIdleFiles(ctx)
	}
}

// NewExpiryScanHandler processes TaskTypeExpiryScan.
func NewExpiryScanHandler(scanner *notify.ExpiryNotifier) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		return scanner.CheckAndNotifyExpiring(ctx)
	}
}
