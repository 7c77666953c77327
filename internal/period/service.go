package period

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// Notifier broadcasts period lifecycle announcements. Implementations must
// never block on delivery; failures are logged by the implementation.
type Notifier interface {
	SessionCreated(ctx context.Context, p Period)
	SessionUpdated(ctx context.Context, p Period)
}

// Service orchestrates period CRUD and resolves session windows.
type Service struct {
	repo     Repository
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a Service. notifier may be nil.
func NewService(repo Repository, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// List returns every registered period.
func (s *Service) List(ctx context.Context) ([]Period, error) {
	return s.repo.ListAll(ctx)
}

// Get returns the period for the given year session.
func (s *Service) Get(ctx context.Context, session string) (Period, error) {
	return s.repo.GetBySession(ctx, session)
}

// Create validates and persists a new period, then announces it.
func (s *Service) Create(ctx context.Context, p Period) (Period, error) {
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	existing, err := s.repo.ListAll(ctx)
	if err != nil {
		return Period{}, fmt.Errorf("period: list sessions: %w", err)
	}
	for _, other := range existing {
		if strings.EqualFold(other.YearSession, p.YearSession) {
			return Period{}, ErrDuplicateSession
		}
		if p.Overlaps(other) {
			return Period{}, ErrPeriodOverlap
		}
	}
	if err := s.repo.Insert(ctx, p); err != nil {
		return Period{}, err
	}
	if s.notifier != nil {
		s.notifier.SessionCreated(ctx, p)
	}
	return p, nil
}

// UpdateSession validates and persists changes to an existing period.
func (s *Service) UpdateSession(ctx context.Context, session string, p Period) (Period, error) {
	current, err := s.repo.GetBySession(ctx, session)
	if err != nil {
		return Period{}, err
	}
	p.YearSession = current.YearSession
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	existing, err := s.repo.ListAll(ctx)
	if err != nil {
		return Period{}, fmt.Errorf("period: list sessions: %w", err)
	}
	for _, other := range existing {
		if strings.EqualFold(other.YearSession, session) {
			continue
		}
		if p.Overlaps(other) {
			return Period{}, ErrPeriodOverlap
		}
	}
	if err := s.repo.Update(ctx, session, p); err != nil {
		return Period{}, err
	}
	if s.notifier != nil {
		s.notifier.SessionUpdated(ctx, p)
	}
	return p, nil
}

// Remove deletes the period for the given session.
func (s *Service) Remove(ctx context.Context, session string) (Period, error) {
	existing, err := s.repo.GetBySession(ctx, session)
	if err != nil {
		return Period{}, err
	}
	if err := s.repo.Delete(ctx, session); err != nil {
		return Period{}, err
	}
	return existing, nil
}

// Current resolves the period whose self-audit-to-audit window contains now.
// The second return value is false when no session is in progress, which is
// a normal state between cycles.
func (s *Service) Current(ctx context.Context) (Period, bool, error) {
	periods, err := s.repo.ListAll(ctx)
	if err != nil {
		return Period{}, false, err
	}
	p, ok := currentIn(periods, s.now())
	return p, ok, nil
}

// LatestUpcoming returns the soonest period whose self-audit window has not
// opened yet. Used as a display fallback when no session is current.
func (s *Service) LatestUpcoming(ctx context.Context) (Period, bool, error) {
	periods, err := s.repo.ListAll(ctx)
	if err != nil {
		return Period{}, false, err
	}
	queue := upcomingIn(periods, s.now(), false)
	if len(queue) == 0 {
		return Period{}, false, nil
	}
	return queue[0], true, nil
}

// UpcomingQueue returns all periods whose self-audit start is at or after
// now, soonest first. The head of the queue is the scheduler's next trigger.
func (s *Service) UpcomingQueue(ctx context.Context) ([]Period, error) {
	periods, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return upcomingIn(periods, s.now(), true), nil
}

func currentIn(periods []Period, now time.Time) (Period, bool) {
	var match Period
	found := false
	for _, p := range periods {
		start, end := p.Window()
		if now.Before(start) || now.After(end) {
			continue
		}
		// Overlapping windows are rejected at write time; if legacy data
		// still overlaps, the earliest window wins deterministically.
		if !found || p.SelfAuditStartDate.Before(match.SelfAuditStartDate) {
			match = p
			found = true
		}
	}
	return match, found
}

// upcomingIn filters periods starting at or after now. A period starting at
// exactly now counts as upcoming when inclusive is true, so a session is
// never skipped by a race between a write and a scheduler poll.
func upcomingIn(periods []Period, now time.Time, inclusive bool) []Period {
	var queue []Period
	for _, p := range periods {
		if p.SelfAuditStartDate.After(now) || (inclusive && p.SelfAuditStartDate.Equal(now)) {
			queue = append(queue, p)
		}
	}
	sort.Slice(queue, func(i, j int) bool {
		return queue[i].SelfAuditStartDate.Before(queue[j].SelfAuditStartDate)
	})
	return queue
}
