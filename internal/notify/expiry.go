package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/putriazni/umqei/internal/period"
)

// expiry scan window: a deadline between four and five days out gets exactly
// one daily reminder, because the scan runs once per day at midnight.
const (
	expiryWindowLow  = 4 * 24 * time.Hour
	expiryWindowHigh = 5 * 24 * time.Hour
)

// ExpiryNotifier runs the daily deadline scan against the current session.
type ExpiryNotifier struct {
	periods     *period.Service
	broadcaster *Broadcaster
	logger      *slog.Logger
	now         func() time.Time
}

// NewExpiryNotifier constructs the scanner.
func NewExpiryNotifier(periods *period.Service, broadcaster *Broadcaster, logger *slog.Logger) *ExpiryNotifier {
	return &ExpiryNotifier{
		periods:     periods,
		broadcaster: broadcaster,
		logger:      logger,
		now:         time.Now,
	}
}

// WithNow overrides the clock, for tests.
func (n *ExpiryNotifier) WithNow(now func() time.Time) {
	if now != nil {
		n.now = now
	}
}

func inExpiryWindow(from, deadline time.Time) bool {
	left := deadline.Sub(from)
	return left > expiryWindowLow && left <= expiryWindowHigh
}

// CheckAndNotifyExpiring warns active accounts when the current session's
// self-assessment or assessment deadline falls four to five days out. The
// reference instant is truncated to midnight so the verdict is stable no
// matter what time of day the scan actually runs.
func (n *ExpiryNotifier) CheckAndNotifyExpiring(ctx context.Context) error {
	current, ok, err := n.periods.Current(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	now := n.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	if inExpiryWindow(midnight, current.SelfAuditEndDate) {
		days := int(current.SelfAuditEndDate.Sub(midnight).Hours() / 24)
		n.logger.Info("self-assessment deadline approaching",
			slog.String("session", current.YearSession),
			slog.Int("daysLeft", days),
		)
		n.broadcaster.Send(ctx, SelfAssessmentExpiryMail(current, days))
	}
	if inExpiryWindow(midnight, current.AuditEndDate) {
		days := int(current.AuditEndDate.Sub(midnight).Hours() / 24)
		n.logger.Info("assessment deadline approaching",
			slog.String("session", current.YearSession),
			slog.Int("daysLeft", days),
		)
		n.broadcaster.Send(ctx, AssessmentExpiryMail(current, days))
	}
	return nil
}
