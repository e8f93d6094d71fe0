package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/poiesic/lostfound/storage"
)

// UserRepository implements storage.UserRepository for PostgreSQL.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// AddUser registers an account. Existing accounts are left untouched.
func (r *UserRepository) AddUser(ctx context.Context, userID string) error {
	const query = `INSERT INTO users (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("users: insert %s: %w", userID, err)
	}
	return nil
}

// DeleteUser removes an account.
func (r *UserRepository) DeleteUser(ctx context.Context, userID string) error {
	const query = `DELETE FROM users WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("users: delete %s: %w", userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("users: delete %s: %w", userID, err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Exists reports whether userID belongs to a live account.
func (r *UserRepository) Exists(ctx context.Context, userID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("users: exists %s: %w", userID, err)
	}
	return exists, nil
}
