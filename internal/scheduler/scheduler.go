// Package scheduler owns the session rollover state machine: one live timer
// armed at the next period's self-audit start, re-armed after every firing
// and after every period mutation.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/putriazni/umqei/internal/forms"
	"github.com/putriazni/umqei/internal/observability"
	"github.com/putriazni/umqei/internal/period"
)

// Scheduler re-arms a single one-shot timer at the head of the upcoming
// period queue. All mutable timer state lives behind the mutex; arming
// always cancels the previous timer first, so at most one live timer exists
// and stale triggers cannot fire after a resync.
type Scheduler struct {
	periods *period.Service
	cloner  *forms.Cloner
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   Clock

	mu    sync.Mutex
	timer Timer
	next  time.Time
	queue []period.Period
}

// New constructs a Scheduler. clock and metrics may be nil.
func New(periods *period.Service, cloner *forms.Cloner, logger *slog.Logger, metrics *observability.Metrics, clock Clock) *Scheduler {
	if clock == nil {
		clock = NewRealClock()
	}
	return &Scheduler{
		periods: periods,
		cloner:  cloner,
		logger:  logger,
		metrics: metrics,
		clock:   clock,
	}
}

// Resync recomputes the upcoming-period queue and re-arms the timer at the
// head's self-audit start. An empty queue disarms the timer. Called at
// bootstrap and after every period create, update, or delete.
func (s *Scheduler) Resync(ctx context.Context) error {
	queue, err := s.periods.UpcomingQueue(ctx)
	if err != nil {
		// Keep the current schedule; a stale timer re-verifies before
		// acting, so it is safer than no timer at all.
		return err
	}
	s.metrics.ObserveResync()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.queue = queue

	if len(queue) == 0 {
		s.next = time.Time{}
		s.logger.Info("session scheduler idle, no upcoming periods")
		return nil
	}

	s.next = queue[0].SelfAuditStartDate
	delay := s.next.Sub(s.clock.Now())
	if delay < 0 {
		delay = 0
	}
	s.timer = s.clock.AfterFunc(delay, s.onTrigger)
	s.logger.Info("session scheduler armed",
		slog.String("session", queue[0].YearSession),
		slog.Time("trigger", s.next),
	)
	return nil
}

// NextTrigger reports the armed trigger instant, if any.
func (s *Scheduler) NextTrigger() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next, s.timer != nil
}

// Stop disarms the timer, typically during shutdown.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.next = time.Time{}
}

// onTrigger fires at a session boundary. It re-verifies that a session is
// actually starting rather than trusting the timer, clones if so, and
// unconditionally resyncs to pick up the next queue head. Failures are
// logged and never abort the rearm loop.
func (s *Scheduler) onTrigger() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("session trigger panicked", slog.Any("panic", r))
		}
	}()

	ctx := context.Background()

	current, ok, err := s.periods.Current(ctx)
	switch {
	case err != nil:
		s.logger.Error("resolve current period at trigger", slog.Any("error", err))
	case !ok:
		// The queued period was deleted or moved after arming; nothing
		// to clone, but the queue still advances below.
		s.logger.Info("session trigger fired with no current period")
	default:
		s.startSession(ctx, current.YearSession)
	}

	if err := s.Resync(ctx); err != nil {
		s.logger.Error("resync after session trigger", slog.Any("error", err))
	}
}

// startSession snapshots the active forms and runs the clone gate for the
// session that just opened.
func (s *Scheduler) startSession(ctx context.Context, session string) {
	s.logger.Info("session starting", slog.String("session", session))

	rows, err := s.cloner.ExtractClonedForm(ctx, session)
	if err != nil {
		s.logger.Error("snapshot active forms", slog.String("session", session), slog.Any("error", err))
		return
	}
	if err := s.cloner.CheckAndClone(ctx, session, rows, true); err != nil {
		if errors.Is(err, forms.ErrAlreadyRegistered) {
			s.logger.Info("session already cloned", slog.String("session", session))
			return
		}
		s.logger.Error("clone forms for session", slog.String("session", session), slog.Any("error", err))
	}
}

// CheckStartupOngoingSession recovers from a restart that crossed a session
// boundary: if a session is already current, run the clone gate for it. The
// form-period-set check makes this safe to run on every start.
func (s *Scheduler) CheckStartupOngoingSession(ctx context.Context) error {
	current, ok, err := s.periods.Current(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	rows, err := s.cloner.ExtractClonedForm(ctx, current.YearSession)
	if err != nil {
		return err
	}
	if err := s.cloner.CheckAndClone(ctx, current.YearSession, rows, true); err != nil {
		if errors.Is(err, forms.ErrAlreadyRegistered) {
			return nil
		}
		return err
	}
	s.logger.Info("recovered unprocessed session at startup", slog.String("session", current.YearSession))
	return nil
}
