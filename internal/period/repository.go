package period

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists period rows. The scheduler only ever reads through it;
// the HTTP layer is the sole writer.
type Repository interface {
	ListAll(ctx context.Context) ([]Period, error)
	GetBySession(ctx context.Context, session string) (Period, error)
	Insert(ctx context.Context, p Period) error
	Update(ctx context.Context, session string, p Period) error
	Delete(ctx context.Context, session string) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL-backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const periodColumns = `year_session, year, audit_start_date, audit_end_date,
	self_audit_start_date, self_audit_end_date, enabler_weightage, result_weightage`

func scanPeriod(row pgx.Row) (Period, error) {
	var p Period
	err := row.Scan(
		&p.YearSession,
		&p.Year,
		&p.AuditStartDate,
		&p.AuditEndDate,
		&p.SelfAuditStartDate,
		&p.SelfAuditEndDate,
		&p.EnablerWeightage,
		&p.ResultWeightage,
	)
	return p, err
}

func (r *repository) ListAll(ctx context.Context) ([]Period, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+periodColumns+` FROM period ORDER BY self_audit_start_date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var periods []Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

func (r *repository) GetBySession(ctx context.Context, session string) (Period, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+periodColumns+` FROM period WHERE year_session = $1`, session)
	p, err := scanPeriod(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, ErrNotFound
		}
		return Period{}, err
	}
	return p, nil
}

func (r *repository) Insert(ctx context.Context, p Period) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO period (`+periodColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.YearSession,
		p.Year,
		p.AuditStartDate,
		p.AuditEndDate,
		p.SelfAuditStartDate,
		p.SelfAuditEndDate,
		p.EnablerWeightage,
		p.ResultWeightage,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateSession
		}
		return err
	}
	return nil
}

func (r *repository) Update(ctx context.Context, session string, p Period) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE period SET
			year = $2,
			audit_start_date = $3,
			audit_end_date = $4,
			self_audit_start_date = $5,
			self_audit_end_date = $6,
			enabler_weightage = $7,
			result_weightage = $8
		WHERE year_session = $1`,
		session,
		p.Year,
		p.AuditStartDate,
		p.AuditEndDate,
		p.SelfAuditStartDate,
		p.SelfAuditEndDate,
		p.EnablerWeightage,
		p.ResultWeightage,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, session string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM period WHERE year_session = $1`, session)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
