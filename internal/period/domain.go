// Package period owns audit-cycle periods: persistence, validation, and the
// session window resolver that feeds the scheduler.
package period

import (
	"errors"
	"strings"
	"time"
)

// DateLayout is the wire format for period boundary timestamps.
const DateLayout = "2006-01-02 15:04:05"

// Period represents one audit cycle identified by its year session.
type Period struct {
	YearSession        string    `json:"yearSession"`
	Year               int       `json:"year"`
	AuditStartDate     time.Time `json:"auditStartDate"`
	AuditEndDate       time.Time `json:"auditEndDate"`
	SelfAuditStartDate time.Time `json:"selfAuditStartDate"`
	SelfAuditEndDate   time.Time `json:"selfAuditEndDate"`
	EnablerWeightage   int       `json:"enablerWeightage"`
	ResultWeightage    int       `json:"resultWeightage"`
}

var (
	// ErrNotFound indicates the session does not exist.
	ErrNotFound = errors.New("period: session not found")
	// ErrDuplicateSession indicates the year session already exists.
	ErrDuplicateSession = errors.New("period: year session already exists")
	// ErrPeriodOverlap indicates the requested window overlaps an existing period.
	ErrPeriodOverlap = errors.New("period: window overlaps existing period")
	// ErrInvalidSession indicates a malformed year session identifier.
	ErrInvalidSession = errors.New("period: year session contains invalid characters")
	// ErrInvalidWeightage indicates weightages that do not sum to 100.
	ErrInvalidWeightage = errors.New("period: weightages must sum to 100")
)

// Validate checks the invariants a period must satisfy before persistence.
func (p Period) Validate() error {
	if strings.TrimSpace(p.YearSession) == "" {
		return ErrInvalidSession
	}
	if strings.ContainsAny(p.YearSession, "?/") {
		return ErrInvalidSession
	}
	if p.EnablerWeightage+p.ResultWeightage != 100 {
		return ErrInvalidWeightage
	}
	if p.AuditStartDate.IsZero() || p.AuditEndDate.IsZero() ||
		p.SelfAuditStartDate.IsZero() || p.SelfAuditEndDate.IsZero() {
		return errors.New("period: all boundary dates are required")
	}
	return nil
}

// Window returns the inclusive span the resolver treats as "current":
// self-audit start through audit end.
func (p Period) Window() (time.Time, time.Time) {
	return p.SelfAuditStartDate, p.AuditEndDate
}

// Overlaps reports whether the self-audit-to-audit windows of two periods
// intersect.
func (p Period) Overlaps(other Period) bool {
	aStart, aEnd := p.Window()
	bStart, bEnd := other.Window()
	return !aStart.After(bEnd) && !bStart.After(aEnd)
}
