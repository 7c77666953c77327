package period

import (
	"context"
	"log/slog"
	"testing"
	"time"
)

type fakeRepo struct {
	periods []Period
	inserts []Period
	updates map[string]Period
	deletes []string
}

func (f *fakeRepo) ListAll(ctx context.Context) ([]Period, error) {
	return append([]Period(nil), f.periods...), nil
}

func (f *fakeRepo) GetBySession(ctx context.Context, session string) (Period, error) {
	for _, p := range f.periods {
		if p.YearSession == session {
			return p, nil
		}
	}
	return Period{}, ErrNotFound
}

func (f *fakeRepo) Insert(ctx context.Context, p Period) error {
	f.inserts = append(f.inserts, p)
	f.periods = append(f.periods, p)
	return nil
}

func (f *fakeRepo) Update(ctx context.Context, session string, p Period) error {
	if f.updates == nil {
		f.updates = make(map[string]Period)
	}
	f.updates[session] = p
	return nil
}

func (f *fakeRepo) Delete(ctx context.Context, session string) error {
	f.deletes = append(f.deletes, session)
	return nil
}

func at(value string) time.Time {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		panic(err)
	}
	return t
}

func period(session string, selfStart, auditEnd string) Period {
	return Period{
		YearSession:        session,
		Year:               2025,
		SelfAuditStartDate: at(selfStart),
		SelfAuditEndDate:   at(selfStart),
		AuditStartDate:     at(auditEnd),
		AuditEndDate:       at(auditEnd),
		EnablerWeightage:   60,
		ResultWeightage:    40,
	}
}

func newTestService(repo Repository) *Service {
	return NewService(repo, nil, slog.Default())
}

func TestUpcomingQueueSortedAndExcludesPast(t *testing.T) {
	repo := &fakeRepo{periods: []Period{
		period("B", "2025-03-01 00:00:00", "2025-05-01 00:00:00"),
		period("A", "2025-01-10 00:00:00", "2025-02-01 00:00:00"),
		period("old", "2024-06-01 00:00:00", "2024-09-01 00:00:00"),
	}}
	svc := newTestService(repo)
	svc.WithNow(func() time.Time { return at("2025-01-01 00:00:00") })

	queue, err := svc.UpcomingQueue(context.Background())
	if err != nil {
		t.Fatalf("UpcomingQueue() error = %v", err)
	}
	if len(queue) != 2 {
		t.Fatalf("expected 2 upcoming periods, got %d", len(queue))
	}
	if queue[0].YearSession != "A" || queue[1].YearSession != "B" {
		t.Fatalf("unexpected queue order: %s, %s", queue[0].YearSession, queue[1].YearSession)
	}
}

func TestUpcomingQueueIncludesExactBoundary(t *testing.T) {
	repo := &fakeRepo{periods: []Period{
		period("edge", "2025-01-01 00:00:00", "2025-02-01 00:00:00"),
	}}
	svc := newTestService(repo)
	svc.WithNow(func() time.Time { return at("2025-01-01 00:00:00") })

	queue, err := svc.UpcomingQueue(context.Background())
	if err != nil {
		t.Fatalf("UpcomingQueue() error = %v", err)
	}
	if len(queue) != 1 || queue[0].YearSession != "edge" {
		t.Fatalf("a period starting exactly now must stay in the queue, got %v", queue)
	}
}

func TestCurrentCoversWholeWindowInclusive(t *testing.T) {
	repo := &fakeRepo{periods: []Period{
		period("S", "2025-01-01 00:00:00", "2025-06-01 00:00:00"),
	}}
	svc := newTestService(repo)

	cases := []struct {
		now  string
		want bool
	}{
		{"2024-12-31 23:59:59", false},
		{"2025-01-01 00:00:00", true},
		{"2025-03-15 12:00:00", true},
		{"2025-06-01 00:00:00", true},
		{"2025-06-02 00:00:00", false},
	}
	for _, tc := range cases {
		svc.WithNow(func() time.Time { return at(tc.now) })
		_, ok, err := svc.Current(context.Background())
		if err != nil {
			t.Fatalf("Current() error = %v", err)
		}
		if ok != tc.want {
			t.Errorf("Current() at %s = %v, want %v", tc.now, ok, tc.want)
		}
	}
}

func TestLatestUpcomingIsStrictlyFuture(t *testing.T) {
	repo := &fakeRepo{periods: []Period{
		period("now", "2025-01-01 00:00:00", "2025-02-01 00:00:00"),
		period("next", "2025-03-01 00:00:00", "2025-04-01 00:00:00"),
	}}
	svc := newTestService(repo)
	svc.WithNow(func() time.Time { return at("2025-01-01 00:00:00") })

	p, ok, err := svc.LatestUpcoming(context.Background())
	if err != nil {
		t.Fatalf("LatestUpcoming() error = %v", err)
	}
	if !ok || p.YearSession != "next" {
		t.Fatalf("expected strictly future period, got %v ok=%v", p.YearSession, ok)
	}
}

func TestCreateRejectsDuplicateSessionCaseInsensitive(t *testing.T) {
	repo := &fakeRepo{periods: []Period{
		period("2024/2025", "2024-01-01 00:00:00", "2024-06-01 00:00:00"),
	}}
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), period("2024/2025", "2026-01-01 00:00:00", "2026-06-01 00:00:00"))
	if err != ErrInvalidSession {
		t.Fatalf("slash in session must be rejected, got %v", err)
	}

	dup := period("Session-One", "2026-01-01 00:00:00", "2026-06-01 00:00:00")
	repo.periods = append(repo.periods, dup)
	clash := period("session-one", "2027-01-01 00:00:00", "2027-06-01 00:00:00")
	if _, err := svc.Create(context.Background(), clash); err != ErrDuplicateSession {
		t.Fatalf("expected ErrDuplicateSession, got %v", err)
	}
}

func TestCreateRejectsOverlappingWindow(t *testing.T) {
	repo := &fakeRepo{periods: []Period{
		period("existing", "2025-01-01 00:00:00", "2025-06-01 00:00:00"),
	}}
	svc := newTestService(repo)

	overlapping := period("later", "2025-05-01 00:00:00", "2025-09-01 00:00:00")
	if _, err := svc.Create(context.Background(), overlapping); err != ErrPeriodOverlap {
		t.Fatalf("expected ErrPeriodOverlap, got %v", err)
	}

	disjoint := period("clear", "2025-07-01 00:00:00", "2025-12-01 00:00:00")
	if _, err := svc.Create(context.Background(), disjoint); err != nil {
		t.Fatalf("disjoint window must be accepted, got %v", err)
	}
	if len(repo.inserts) != 1 {
		t.Fatalf("expected exactly one insert, got %d", len(repo.inserts))
	}
}

func TestCreateRejectsBadWeightage(t *testing.T) {
	svc := newTestService(&fakeRepo{})
	p := period("weights", "2025-01-01 00:00:00", "2025-06-01 00:00:00")
	p.EnablerWeightage = 70
	p.ResultWeightage = 40
	if _, err := svc.Create(context.Background(), p); err != ErrInvalidWeightage {
		t.Fatalf("expected ErrInvalidWeightage, got %v", err)
	}
}
