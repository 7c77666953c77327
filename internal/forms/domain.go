// Package forms owns assessment form generations, their content trees, and
// the cloning engine that rolls forms into a new audit session.
package forms

import "errors"

// Form types distinguish the two content shapes.
const (
	// FormTypeEnabler has a criterion / sub-criterion / question tree.
	FormTypeEnabler = 0
	// FormTypeResult has a flat list of result questions.
	FormTypeResult = 1
)

// Form statuses.
const (
	StatusRetired = 0
	StatusActive  = 1
)

// Form is one generation of an assessment instrument. Cloning produces a new
// generation under a fresh FormID and retires the previous one.
type Form struct {
	FormID               int64  `json:"formID"`
	Title                string `json:"title"`
	FormDefinition       string `json:"formDefinition"`
	FormType             int    `json:"formType"`
	FormNumber           int    `json:"formNumber"`
	FormStatus           int    `json:"formStatus"`
	MinScale             int    `json:"minScale"`
	MaxScale             int    `json:"maxScale"`
	Weightage            int    `json:"weightage"`
	Flag                 bool   `json:"flag"`
	NonAcademicWeightage int    `json:"nonAcademicWeightage"`
}

// Criterion is the top level of an enabler form's content tree.
type Criterion struct {
	CriterionID     int64
	Description     string
	CriterionNumber int
	CriterionStatus int
	FormID          int64
}

// SubCriterion nests under a criterion.
type SubCriterion struct {
	SubCriterionID     int64
	Description        string
	SubCriterionNumber int
	SubCriterionStatus int
	CriterionID        int64
}

// Question is a leaf of the enabler tree.
type Question struct {
	QuestionID      int64
	Description     string
	QuestionNumber  int
	QuestionStatus  int
	SubCriterionID  int64
	ExampleEvidence string
}

// ResultQuestion is one entry of a result form's flat list.
type ResultQuestion struct {
	QuestionID           int64
	Title                string
	Description          string
	RefCode              string
	ResultQuestionNumber int
	ResultQuestionStatus int
	FormID               int64
}

// FormPeriodSet marks which form generation was in force during which
// session. It doubles as the idempotency ledger for clone-on-session-start.
type FormPeriodSet struct {
	FormID      int64  `json:"formID"`
	YearSession string `json:"yearSession"`
}

var (
	// ErrNotFound indicates a missing form row.
	ErrNotFound = errors.New("forms: form not found")
	// ErrAlreadyRegistered signals the session was already processed; the
	// clone gate treats it as a no-op, not a failure.
	ErrAlreadyRegistered = errors.New("forms: session already registered in form period set")
)
