package forms

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/putriazni/umqei/internal/platform/db"
)

// Repository is the form snapshot store: form generations, their content
// trees, and the form-period-set ledger.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error

	ListActiveForms(ctx context.Context) ([]Form, error)
	GetForm(ctx context.Context, id int64) (Form, error)
	InsertForm(ctx context.Context, f Form) (int64, error)
	DeactivateForm(ctx context.Context, id int64) error

	Criteria(ctx context.Context, formID int64) ([]Criterion, error)
	SubCriteria(ctx context.Context, criterionID int64) ([]SubCriterion, error)
	Questions(ctx context.Context, subCriterionID int64) ([]Question, error)
	ResultQuestions(ctx context.Context, formID int64) ([]ResultQuestion, error)
	InsertCriterion(ctx context.Context, c Criterion) (int64, error)
	InsertSubCriterion(ctx context.Context, sc SubCriterion) (int64, error)
	InsertQuestions(ctx context.Context, questions []Question) error
	InsertResultQuestions(ctx context.Context, questions []ResultQuestion) error

	InsertFormPeriodSetRows(ctx context.Context, rows []FormPeriodSet) error
	HasFormPeriodSetRows(ctx context.Context, session string) (bool, error)
}

type dbtx interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL-backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const formColumns = `form_id, title, form_definition, form_type, form_number,
	form_status, min_scale, max_scale, weightage, flag, non_academic_weightage`

func scanForm(row pgx.Row) (Form, error) {
	var f Form
	err := row.Scan(
		&f.FormID,
		&f.Title,
		&f.FormDefinition,
		&f.FormType,
		&f.FormNumber,
		&f.FormStatus,
		&f.MinScale,
		&f.MaxScale,
		&f.Weightage,
		&f.Flag,
		&f.NonAcademicWeightage,
	)
	return f, err
}

func (r *repository) ListActiveForms(ctx context.Context) ([]Form, error) {
	rows, err := r.db.Query(ctx, `SELECT `+formColumns+` FROM form WHERE form_status = 1 ORDER BY form_number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var forms []Form
	for rows.Next() {
		f, err := scanForm(rows)
		if err != nil {
			return nil, err
		}
		forms = append(forms, f)
	}
	return forms, rows.Err()
}

func (r *repository) GetForm(ctx context.Context, id int64) (Form, error) {
	row := r.db.QueryRow(ctx, `SELECT `+formColumns+` FROM form WHERE form_id = $1`, id)
	f, err := scanForm(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Form{}, ErrNotFound
		}
		return Form{}, err
	}
	return f, nil
}

func (r *repository) InsertForm(ctx context.Context, f Form) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO form (title, form_definition, form_type, form_number,
			form_status, min_scale, max_scale, weightage, flag, non_academic_weightage)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING form_id`,
		f.Title,
		f.FormDefinition,
		f.FormType,
		f.FormNumber,
		f.FormStatus,
		f.MinScale,
		f.MaxScale,
		f.Weightage,
		f.Flag,
		f.NonAcademicWeightage,
	).Scan(&id)
	return id, err
}

func (r *repository) DeactivateForm(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE form SET form_status = 0 WHERE form_id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Criteria(ctx context.Context, formID int64) ([]Criterion, error) {
	rows, err := r.db.Query(ctx, `
		SELECT criterion_id, description, criterion_number, criterion_status, form_id
		FROM criterion
		WHERE form_id = $1 AND criterion_status = 1
		ORDER BY criterion_number`, formID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var criteria []Criterion
	for rows.Next() {
		var c Criterion
		if err := rows.Scan(&c.CriterionID, &c.Description, &c.CriterionNumber, &c.CriterionStatus, &c.FormID); err != nil {
			return nil, err
		}
		criteria = append(criteria, c)
	}
	return criteria, rows.Err()
}

func (r *repository) SubCriteria(ctx context.Context, criterionID int64) ([]SubCriterion, error) {
	rows, err := r.db.Query(ctx, `
		SELECT sub_criterion_id, description, sub_criterion_number, sub_criterion_status, criterion_id
		FROM sub_criterion
		WHERE criterion_id = $1 AND sub_criterion_status = 1
		ORDER BY sub_criterion_number`, criterionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []SubCriterion
	for rows.Next() {
		var sc SubCriterion
		if err := rows.Scan(&sc.SubCriterionID, &sc.Description, &sc.SubCriterionNumber, &sc.SubCriterionStatus, &sc.CriterionID); err != nil {
			return nil, err
		}
		subs = append(subs, sc)
	}
	return subs, rows.Err()
}

func (r *repository) Questions(ctx context.Context, subCriterionID int64) ([]Question, error) {
	rows, err := r.db.Query(ctx, `
		SELECT question_id, description, question_number, question_status, sub_criterion_id, example_evidence
		FROM question
		WHERE sub_criterion_id = $1 AND question_status = 1
		ORDER BY question_number`, subCriterionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []Question
	for rows.Next() {
		var q Question
		if err := rows.Scan(&q.QuestionID, &q.Description, &q.QuestionNumber, &q.QuestionStatus, &q.SubCriterionID, &q.ExampleEvidence); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func (r *repository) ResultQuestions(ctx context.Context, formID int64) ([]ResultQuestion, error) {
	rows, err := r.db.Query(ctx, `
		SELECT question_id, title, description, ref_code, result_question_number, result_question_status, form_id
		FROM result_question
		WHERE form_id = $1 AND result_question_status = 1
		ORDER BY result_question_number`, formID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []ResultQuestion
	for rows.Next() {
		var q ResultQuestion
		if err := rows.Scan(&q.QuestionID, &q.Title, &q.Description, &q.RefCode, &q.ResultQuestionNumber, &q.ResultQuestionStatus, &q.FormID); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func (r *repository) InsertCriterion(ctx context.Context, c Criterion) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO criterion (description, criterion_number, criterion_status, form_id)
		VALUES ($1, $2, $3, $4)
		RETURNING criterion_id`,
		c.Description, c.CriterionNumber, c.CriterionStatus, c.FormID,
	).Scan(&id)
	return id, err
}

func (r *repository) InsertSubCriterion(ctx context.Context, sc SubCriterion) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO sub_criterion (description, sub_criterion_number, sub_criterion_status, criterion_id)
		VALUES ($1, $2, $3, $4)
		RETURNING sub_criterion_id`,
		sc.Description, sc.SubCriterionNumber, sc.SubCriterionStatus, sc.CriterionID,
	).Scan(&id)
	return id, err
}

func (r *repository) InsertQuestions(ctx context.Context, questions []Question) error {
	for _, q := range questions {
		_, err := r.db.Exec(ctx, `
			INSERT INTO question (description, question_number, question_status, sub_criterion_id, example_evidence)
			VALUES ($1, $2, $3, $4, $5)`,
			q.Description, q.QuestionNumber, q.QuestionStatus, q.SubCriterionID, q.ExampleEvidence,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repository) InsertResultQuestions(ctx context.Context, questions []ResultQuestion) error {
	for _, q := range questions {
		_, err := r.db.Exec(ctx, `
			INSERT INTO result_question (title, description, ref_code, result_question_number, result_question_status, form_id)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			q.Title, q.Description, q.RefCode, q.ResultQuestionNumber, q.ResultQuestionStatus, q.FormID,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// InsertFormPeriodSetRows appends the ledger rows for a session. A unique
// constraint on (form_id, year_session) turns a double registration into
// ErrAlreadyRegistered instead of duplicate rows.
func (r *repository) InsertFormPeriodSetRows(ctx context.Context, rows []FormPeriodSet) error {
	for _, row := range rows {
		_, err := r.db.Exec(ctx, `
			INSERT INTO form_period_set (form_id, year_session)
			VALUES ($1, $2)`,
			row.FormID, row.YearSession,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrAlreadyRegistered
			}
			return err
		}
	}
	return nil
}

func (r *repository) HasFormPeriodSetRows(ctx context.Context, session string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM form_period_set WHERE year_session = $1)`, session,
	).Scan(&exists)
	return exists, err
}
