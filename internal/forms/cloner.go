package forms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/putriazni/umqei/internal/observability"
)

// Cloner rolls every active form into a fresh generation when a new audit
// session starts.
type Cloner struct {
	repo    Repository
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewCloner constructs a Cloner. metrics may be nil.
func NewCloner(repo Repository, logger *slog.Logger, metrics *observability.Metrics) *Cloner {
	return &Cloner{repo: repo, logger: logger, metrics: metrics}
}

// CloneFormAndContent deep-copies every active form and its content into a
// new generation and retires the originals. Each form is cloned inside its
// own transaction: a failed form rolls back completely, is logged, and does
// not stop the remaining forms.
func (c *Cloner) CloneFormAndContent(ctx context.Context) error {
	runID := uuid.NewString()
	active, err := c.repo.ListActiveForms(ctx)
	if err != nil {
		return fmt.Errorf("forms: list active forms: %w", err)
	}

	c.logger.Info("cloning form and form content",
		slog.String("run", runID),
		slog.Int("forms", len(active)),
	)

	for _, original := range active {
		err := c.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
			return c.cloneOne(ctx, tx, original)
		})
		if err != nil {
			// The transaction rolled back, so the old generation stays
			// active and operators can rerun cloning for this form.
			c.logger.Error("clone form failed",
				slog.String("run", runID),
				slog.Int64("formID", original.FormID),
				slog.Any("error", err),
			)
			c.metrics.ObserveClone("failure")
			continue
		}
		c.metrics.ObserveClone("success")
	}
	return nil
}

// cloneOne copies a single form and retires the original. Retirement happens
// last so a failure never leaves a session without an active generation.
func (c *Cloner) cloneOne(ctx context.Context, tx Repository, original Form) error {
	next := original
	next.FormID = 0
	next.FormStatus = StatusActive

	newID, err := tx.InsertForm(ctx, next)
	if err != nil {
		return fmt.Errorf("insert form: %w", err)
	}

	switch original.FormType {
	case FormTypeEnabler:
		if err := c.cloneEnablerTree(ctx, tx, original.FormID, newID); err != nil {
			return err
		}
	case FormTypeResult:
		if err := c.cloneResultQuestions(ctx, tx, original.FormID, newID); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown form type %d", original.FormType)
	}

	if err := tx.DeactivateForm(ctx, original.FormID); err != nil {
		return fmt.Errorf("retire form %d: %w", original.FormID, err)
	}
	return nil
}

// cloneEnablerTree copies the active criterion tree under the new form ID.
// Criteria and sub-criteria are renumbered densely from 1 in traversal
// order, closing the gaps left by prior deactivations. Questions are
// collected across the whole tree and batch-inserted once every parent
// sub-criterion has landed.
func (c *Cloner) cloneEnablerTree(ctx context.Context, tx Repository, oldFormID, newFormID int64) error {
	criteria, err := tx.Criteria(ctx, oldFormID)
	if err != nil {
		return fmt.Errorf("read criteria: %w", err)
	}

	var pending []Question
	criterionNumber := 1
	for _, criterion := range criteria {
		newCriterionID, err := tx.InsertCriterion(ctx, Criterion{
			Description:     criterion.Description,
			CriterionNumber: criterionNumber,
			CriterionStatus: criterion.CriterionStatus,
			FormID:          newFormID,
		})
		if err != nil {
			return fmt.Errorf("insert criterion: %w", err)
		}

		subs, err := tx.SubCriteria(ctx, criterion.CriterionID)
		if err != nil {
			return fmt.Errorf("read sub-criteria: %w", err)
		}
		subNumber := 1
		for _, sub := range subs {
			newSubID, err := tx.InsertSubCriterion(ctx, SubCriterion{
				Description:        sub.Description,
				SubCriterionNumber: subNumber,
				SubCriterionStatus: sub.SubCriterionStatus,
				CriterionID:        newCriterionID,
			})
			if err != nil {
				return fmt.Errorf("insert sub-criterion: %w", err)
			}

			questions, err := tx.Questions(ctx, sub.SubCriterionID)
			if err != nil {
				return fmt.Errorf("read questions: %w", err)
			}
			for _, q := range questions {
				pending = append(pending, Question{
					Description:     q.Description,
					QuestionNumber:  q.QuestionNumber,
					QuestionStatus:  q.QuestionStatus,
					SubCriterionID:  newSubID,
					ExampleEvidence: q.ExampleEvidence,
				})
			}
			subNumber++
		}
		criterionNumber++
	}

	if len(pending) > 0 {
		if err := tx.InsertQuestions(ctx, pending); err != nil {
			return fmt.Errorf("insert questions: %w", err)
		}
	}
	return nil
}

// cloneResultQuestions copies the active result questions, renumbered 1..N
// in their original order.
func (c *Cloner) cloneResultQuestions(ctx context.Context, tx Repository, oldFormID, newFormID int64) error {
	results, err := tx.ResultQuestions(ctx, oldFormID)
	if err != nil {
		return fmt.Errorf("read result questions: %w", err)
	}
	if len(results) == 0 {
		return nil
	}

	batch := make([]ResultQuestion, 0, len(results))
	for i, q := range results {
		batch = append(batch, ResultQuestion{
			Title:                q.Title,
			Description:          q.Description,
			RefCode:              q.RefCode,
			ResultQuestionNumber: i + 1,
			ResultQuestionStatus: q.ResultQuestionStatus,
			FormID:               newFormID,
		})
	}
	if err := tx.InsertResultQuestions(ctx, batch); err != nil {
		return fmt.Errorf("insert result questions: %w", err)
	}
	return nil
}

// ExtractClonedForm snapshots the (formID, session) pairs for every active
// form. It must run before cloning: the pairs record which generations were
// in force going into the session, and cloning invalidates those IDs.
func (c *Cloner) ExtractClonedForm(ctx context.Context, session string) ([]FormPeriodSet, error) {
	active, err := c.repo.ListActiveForms(ctx)
	if err != nil {
		return nil, fmt.Errorf("forms: list active forms: %w", err)
	}
	rows := make([]FormPeriodSet, 0, len(active))
	for _, f := range active {
		rows = append(rows, FormPeriodSet{FormID: f.FormID, YearSession: session})
	}
	return rows, nil
}

// CheckAndClone is the idempotency gate for session rollover. If the session
// already has form-period-set rows it returns ErrAlreadyRegistered and does
// nothing; otherwise it optionally clones the active forms, then records the
// snapshot rows. The storage-level unique constraint closes the remaining
// race between the existence check and the insert.
func (c *Cloner) CheckAndClone(ctx context.Context, session string, rows []FormPeriodSet, shouldClone bool) error {
	exists, err := c.repo.HasFormPeriodSetRows(ctx, session)
	if err != nil {
		return fmt.Errorf("forms: check form period set: %w", err)
	}
	if exists {
		return ErrAlreadyRegistered
	}

	if shouldClone {
		if err := c.CloneFormAndContent(ctx); err != nil {
			return err
		}
	}

	if err := c.repo.InsertFormPeriodSetRows(ctx, rows); err != nil {
		if errors.Is(err, ErrAlreadyRegistered) {
			return ErrAlreadyRegistered
		}
		return fmt.Errorf("forms: register form period set: %w", err)
	}
	return nil
}
