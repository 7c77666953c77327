package notify

import (
	"context"
	"log/slog"

	"github.com/putriazni/umqei/internal/period"
)

// RecipientSource lists the addresses a broadcast goes to.
type RecipientSource interface {
	ListActiveEmails(ctx context.Context) ([]string, error)
}

// Enqueuer hands one message per recipient to the outbound mail queue.
type Enqueuer interface {
	EnqueueMail(ctx context.Context, to, subject, body string) error
}

// Broadcaster fans a rendered mail out to every active account. Delivery is
// queued, never inline; enqueue failures are logged per recipient so one bad
// address cannot drop the rest of the broadcast.
type Broadcaster struct {
	recipients RecipientSource
	queue      Enqueuer
	logger     *slog.Logger
}

// NewBroadcaster constructs a Broadcaster.
func NewBroadcaster(recipients RecipientSource, queue Enqueuer, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{recipients: recipients, queue: queue, logger: logger}
}

// Send queues mail for every active account.
func (b *Broadcaster) Send(ctx context.Context, mail Mail) {
	emails, err := b.recipients.ListActiveEmails(ctx)
	if err != nil {
		b.logger.Error("list broadcast recipients", slog.Any("error", err))
		return
	}
	queued := 0
	for _, to := range emails {
		if err := b.queue.EnqueueMail(ctx, to, mail.Subject, mail.Body); err != nil {
			b.logger.Error("enqueue mail",
				slog.String("to", to),
				slog.String("subject", mail.Subject),
				slog.Any("error", err),
			)
			continue
		}
		queued++
	}
	b.logger.Info("broadcast queued",
		slog.String("subject", mail.Subject),
		slog.Int("recipients", queued),
	)
}

// SessionCreated implements period.Notifier.
func (b *Broadcaster) SessionCreated(ctx context.Context, p period.Period) {
	b.Send(ctx, SessionCreatedMail(p))
}

// SessionUpdated implements period.Notifier.
func (b *Broadcaster) SessionUpdated(ctx context.Context, p period.Period) {
	b.Send(ctx, SessionUpdatedMail(p))
}
