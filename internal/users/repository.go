package users

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListActiveUsers returns every active account.
func (r *Repository) ListActiveUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, user_email, username, user_status
		FROM users
		WHERE user_status = 1
		ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.UserID, &u.UserEmail, &u.Username, &u.UserStatus); err != nil {
			return nil, err
		}
		accounts = append(accounts, u)
	}
	return accounts, rows.Err()
}

// ListActiveEmails returns the e-mail addresses of every active account,
// the recipient set for session broadcasts.
func (r *Repository) ListActiveEmails(ctx context.Context) ([]string, error) {
	accounts, err := r.ListActiveUsers(ctx)
	if err != nil {
		return nil, err
	}
	emails := make([]string, 0, len(accounts))
	for _, u := range accounts {
		if u.UserEmail != "" {
			emails = append(emails, u.UserEmail)
		}
	}
	return emails, nil
}
