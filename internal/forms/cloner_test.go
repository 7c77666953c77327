package forms

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory Repository. WithTx snapshots all tables and
// restores them when fn fails, mimicking a rollback.
type fakeStore struct {
	nextID    int64
	forms     []Form
	criteria  []Criterion
	subs      []SubCriterion
	questions []Question
	results   []ResultQuestion
	periodSet []FormPeriodSet

	failQuestionInsert bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{nextID: 100}
}

func (s *fakeStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *fakeStore) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	snapshot := *s
	snapshot.forms = append([]Form(nil), s.forms...)
	snapshot.criteria = append([]Criterion(nil), s.criteria...)
	snapshot.subs = append([]SubCriterion(nil), s.subs...)
	snapshot.questions = append([]Question(nil), s.questions...)
	snapshot.results = append([]ResultQuestion(nil), s.results...)
	snapshot.periodSet = append([]FormPeriodSet(nil), s.periodSet...)

	if err := fn(ctx, s); err != nil {
		*s = snapshot
		return err
	}
	return nil
}

func (s *fakeStore) ListActiveForms(ctx context.Context) ([]Form, error) {
	var active []Form
	for _, f := range s.forms {
		if f.FormStatus == StatusActive {
			active = append(active, f)
		}
	}
	return active, nil
}

func (s *fakeStore) GetForm(ctx context.Context, id int64) (Form, error) {
	for _, f := range s.forms {
		if f.FormID == id {
			return f, nil
		}
	}
	return Form{}, ErrNotFound
}

func (s *fakeStore) InsertForm(ctx context.Context, f Form) (int64, error) {
	f.FormID = s.id()
	s.forms = append(s.forms, f)
	return f.FormID, nil
}

func (s *fakeStore) DeactivateForm(ctx context.Context, id int64) error {
	for i := range s.forms {
		if s.forms[i].FormID == id {
			s.forms[i].FormStatus = StatusRetired
			return nil
		}
	}
	return ErrNotFound
}

func (s *fakeStore) Criteria(ctx context.Context, formID int64) ([]Criterion, error) {
	var out []Criterion
	for _, c := range s.criteria {
		if c.FormID == formID && c.CriterionStatus == StatusActive {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeStore) SubCriteria(ctx context.Context, criterionID int64) ([]SubCriterion, error) {
	var out []SubCriterion
	for _, sc := range s.subs {
		if sc.CriterionID == criterionID && sc.SubCriterionStatus == StatusActive {
			out = append(out, sc)
		}
	}
	return out, nil
}

func (s *fakeStore) Questions(ctx context.Context, subCriterionID int64) ([]Question, error) {
	var out []Question
	for _, q := range s.questions {
		if q.SubCriterionID == subCriterionID && q.QuestionStatus == StatusActive {
			out = append(out, q)
		}
	}
	return out, nil
}

func (s *fakeStore) ResultQuestions(ctx context.Context, formID int64) ([]ResultQuestion, error) {
	var out []ResultQuestion
	for _, q := range s.results {
		if q.FormID == formID && q.ResultQuestionStatus == StatusActive {
			out = append(out, q)
		}
	}
	return out, nil
}

func (s *fakeStore) InsertCriterion(ctx context.Context, c Criterion) (int64, error) {
	c.CriterionID = s.id()
	s.criteria = append(s.criteria, c)
	return c.CriterionID, nil
}

func (s *fakeStore) InsertSubCriterion(ctx context.Context, sc SubCriterion) (int64, error) {
	sc.SubCriterionID = s.id()
	s.subs = append(s.subs, sc)
	return sc.SubCriterionID, nil
}

func (s *fakeStore) InsertQuestions(ctx context.Context, questions []Question) error {
	if s.failQuestionInsert {
		return errors.New("fake: question insert failed")
	}
	for _, q := range questions {
		q.QuestionID = s.id()
		s.questions = append(s.questions, q)
	}
	return nil
}

func (s *fakeStore) InsertResultQuestions(ctx context.Context, questions []ResultQuestion) error {
	for _, q := range questions {
		q.QuestionID = s.id()
		s.results = append(s.results, q)
	}
	return nil
}

func (s *fakeStore) InsertFormPeriodSetRows(ctx context.Context, rows []FormPeriodSet) error {
	for _, row := range rows {
		for _, existing := range s.periodSet {
			if existing.FormID == row.FormID && existing.YearSession == row.YearSession {
				return ErrAlreadyRegistered
			}
		}
		s.periodSet = append(s.periodSet, row)
	}
	return nil
}

func (s *fakeStore) HasFormPeriodSetRows(ctx context.Context, session string) (bool, error) {
	for _, row := range s.periodSet {
		if row.YearSession == session {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) activeForms() []Form {
	active, _ := s.ListActiveForms(context.Background())
	return active
}

func seedEnablerForm(s *fakeStore) Form {
	form := Form{
		FormID:     1,
		Title:      "Leadership",
		FormType:   FormTypeEnabler,
		FormNumber: 1,
		FormStatus: StatusActive,
		MinScale:   0,
		MaxScale:   6,
		Weightage:  60,
	}
	s.forms = append(s.forms, form)

	s.criteria = append(s.criteria, Criterion{
		CriterionID: 10, Description: "Governance", CriterionNumber: 1,
		CriterionStatus: StatusActive, FormID: form.FormID,
	})
	// Numbers 1, 3, 4: gaps left by prior deactivations.
	s.subs = append(s.subs,
		SubCriterion{SubCriterionID: 21, Description: "Vision", SubCriterionNumber: 1, SubCriterionStatus: StatusActive, CriterionID: 10},
		SubCriterion{SubCriterionID: 22, Description: "Mission", SubCriterionNumber: 3, SubCriterionStatus: StatusActive, CriterionID: 10},
		SubCriterion{SubCriterionID: 23, Description: "Strategy", SubCriterionNumber: 4, SubCriterionStatus: StatusActive, CriterionID: 10},
	)
	s.questions = append(s.questions,
		Question{QuestionID: 31, Description: "Q1", QuestionNumber: 1, QuestionStatus: StatusActive, SubCriterionID: 21},
		Question{QuestionID: 32, Description: "Q2", QuestionNumber: 2, QuestionStatus: StatusActive, SubCriterionID: 22},
		Question{QuestionID: 33, Description: "Q3", QuestionNumber: 1, QuestionStatus: StatusActive, SubCriterionID: 23},
	)
	return form
}

func newTestCloner(s *fakeStore) *Cloner {
	return NewCloner(s, slog.Default(), nil)
}

func TestCheckAndCloneIsIdempotent(t *testing.T) {
	store := newFakeStore()
	store.forms = append(store.forms, Form{
		FormID: 1, Title: "Research Output", FormType: FormTypeResult, FormStatus: StatusActive,
	})
	store.results = append(store.results, ResultQuestion{
		QuestionID: 5, Title: "Publications", ResultQuestionNumber: 1, ResultQuestionStatus: StatusActive, FormID: 1,
	})
	cloner := newTestCloner(store)
	ctx := context.Background()

	rows, err := cloner.ExtractClonedForm(ctx, "2025-2026")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0].FormID, "snapshot must carry the pre-clone form ID")

	require.NoError(t, cloner.CheckAndClone(ctx, "2025-2026", rows, true))

	err = cloner.CheckAndClone(ctx, "2025-2026", rows, true)
	require.ErrorIs(t, err, ErrAlreadyRegistered)

	assert.Len(t, store.periodSet, 1, "second call must not add ledger rows")
	assert.Len(t, store.forms, 2, "second call must not clone again")
}

func TestCloneRenumbersSubCriteriaDensely(t *testing.T) {
	store := newFakeStore()
	seedEnablerForm(store)
	cloner := newTestCloner(store)

	require.NoError(t, cloner.CloneFormAndContent(context.Background()))

	active := store.activeForms()
	require.Len(t, active, 1)
	newForm := active[0]

	criteria, err := store.Criteria(context.Background(), newForm.FormID)
	require.NoError(t, err)
	require.Len(t, criteria, 1)

	subs, err := store.SubCriteria(context.Background(), criteria[0].CriterionID)
	require.NoError(t, err)
	require.Len(t, subs, 3)

	var numbers []int
	var descriptions []string
	for _, sc := range subs {
		numbers = append(numbers, sc.SubCriterionNumber)
		descriptions = append(descriptions, sc.Description)
	}
	assert.Equal(t, []int{1, 2, 3}, numbers, "gaps from deactivations must be closed")
	assert.Equal(t, []string{"Vision", "Mission", "Strategy"}, descriptions)
}

func TestCloneRetiresOriginal(t *testing.T) {
	store := newFakeStore()
	original := seedEnablerForm(store)
	cloner := newTestCloner(store)

	require.NoError(t, cloner.CloneFormAndContent(context.Background()))

	retired, err := store.GetForm(context.Background(), original.FormID)
	require.NoError(t, err)
	assert.Equal(t, StatusRetired, retired.FormStatus)

	active := store.activeForms()
	require.Len(t, active, 1)
	assert.NotEqual(t, original.FormID, active[0].FormID)
	assert.Equal(t, original.Title, active[0].Title)
	assert.Equal(t, original.FormType, active[0].FormType)
	assert.Equal(t, original.MinScale, active[0].MinScale)
	assert.Equal(t, original.MaxScale, active[0].MaxScale)
}

func TestCloneRenumbersResultQuestions(t *testing.T) {
	store := newFakeStore()
	store.forms = append(store.forms, Form{
		FormID: 1, Title: "Results", FormType: FormTypeResult, FormStatus: StatusActive,
	})
	store.results = append(store.results,
		ResultQuestion{QuestionID: 40, Title: "First", ResultQuestionNumber: 2, ResultQuestionStatus: StatusActive, FormID: 1},
		ResultQuestion{QuestionID: 41, Title: "Second", ResultQuestionNumber: 5, ResultQuestionStatus: StatusActive, FormID: 1},
	)
	cloner := newTestCloner(store)

	require.NoError(t, cloner.CloneFormAndContent(context.Background()))

	active := store.activeForms()
	require.Len(t, active, 1)
	cloned, err := store.ResultQuestions(context.Background(), active[0].FormID)
	require.NoError(t, err)
	require.Len(t, cloned, 2)
	assert.Equal(t, 1, cloned[0].ResultQuestionNumber)
	assert.Equal(t, "First", cloned[0].Title)
	assert.Equal(t, 2, cloned[1].ResultQuestionNumber)
	assert.Equal(t, "Second", cloned[1].Title)
}

func TestCloneRollsBackFailedFormAndKeepsOriginalActive(t *testing.T) {
	store := newFakeStore()
	original := seedEnablerForm(store)
	store.failQuestionInsert = true
	cloner := newTestCloner(store)

	// A failed form is logged and skipped, not surfaced as an error.
	require.NoError(t, cloner.CloneFormAndContent(context.Background()))

	current, err := store.GetForm(context.Background(), original.FormID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, current.FormStatus, "original must stay active after rollback")
	assert.Len(t, store.forms, 1, "no half-cloned generation may survive")
}

func TestCloneSkipsRetiredContent(t *testing.T) {
	store := newFakeStore()
	seedEnablerForm(store)
	store.subs = append(store.subs, SubCriterion{
		SubCriterionID: 24, Description: "Retired", SubCriterionNumber: 2,
		SubCriterionStatus: StatusRetired, CriterionID: 10,
	})
	cloner := newTestCloner(store)

	require.NoError(t, cloner.CloneFormAndContent(context.Background()))

	active := store.activeForms()
	require.Len(t, active, 1)
	criteria, err := store.Criteria(context.Background(), active[0].FormID)
	require.NoError(t, err)
	subs, err := store.SubCriteria(context.Background(), criteria[0].CriterionID)
	require.NoError(t, err)
	for _, sc := range subs {
		assert.NotEqual(t, "Retired", sc.Description)
	}
}
