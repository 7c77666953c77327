// Package notify broadcasts session lifecycle mail to every active account
// and runs the daily scan for windows about to close.
package notify

import (
	"fmt"

	"github.com/putriazni/umqei/internal/period"
)

// Mail is a rendered message ready for the outbound queue.
type Mail struct {
	Subject string
	Body    string
}

func window(p period.Period) string {
	return fmt.Sprintf(
		"Self-assessment: %s until %s\nAssessment: %s until %s",
		p.SelfAuditStartDate.Format(period.DateLayout),
		p.SelfAuditEndDate.Format(period.DateLayout),
		p.AuditStartDate.Format(period.DateLayout),
		p.AuditEndDate.Format(period.DateLayout),
	)
}

// SessionCreatedMail announces a newly scheduled audit session.
func SessionCreatedMail(p period.Period) Mail {
	return Mail{
		Subject: fmt.Sprintf("New audit session %s scheduled", p.YearSession),
		Body: fmt.Sprintf(
			"A new audit session %s has been scheduled.\n\n%s\n\nPlease plan your submissions accordingly.",
			p.YearSession, window(p),
		),
	}
}

// SessionUpdatedMail announces a rescheduled audit session.
func SessionUpdatedMail(p period.Period) Mail {
	return Mail{
		Subject: fmt.Sprintf("Audit session %s rescheduled", p.YearSession),
		Body: fmt.Sprintf(
			"The dates for audit session %s have changed.\n\n%s\n\nPlease review the new dates.",
			p.YearSession, window(p),
		),
	}
}

// SelfAssessmentExpiryMail warns that the self-assessment window is closing.
func SelfAssessmentExpiryMail(p period.Period, daysLeft int) Mail {
	return Mail{
		Subject: fmt.Sprintf("Self-assessment for %s closes in %d days", p.YearSession, daysLeft),
		Body: fmt.Sprintf(
			"The self-assessment window for session %s closes on %s.\n\nSubmit any outstanding forms before the deadline.",
			p.YearSession, p.SelfAuditEndDate.Format(period.DateLayout),
		),
	}
}

// AssessmentExpiryMail warns that the assessment window is closing.
func AssessmentExpiryMail(p period.Period, daysLeft int) Mail {
	return Mail{
		Subject: fmt.Sprintf("Assessment for %s closes in %d days", p.YearSession, daysLeft),
		Body: fmt.Sprintf(
			"The assessment window for session %s closes on %s.\n\nComplete any outstanding reviews before the deadline.",
			p.YearSession, p.AuditEndDate.Format(period.DateLayout),
		),
	}
}
