package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/poiesic/lostfound/core"
	"github.com/poiesic/lostfound/storage"
)

// ThresholdRepository implements storage.ThresholdRepository for PostgreSQL.
type ThresholdRepository struct {
	db *sql.DB
}

// NewThresholdRepository creates a new ThresholdRepository.
func NewThresholdRepository(db *sql.DB) *ThresholdRepository {
	return &ThresholdRepository{db: db}
}

// GetThreshold returns the stored preference of userID.
func (r *ThresholdRepository) GetThreshold(ctx context.Context, userID string) (*core.ThresholdPreference, error) {
	const query = `SELECT user_id, threshold, updated_at FROM thresholds WHERE user_id = $1`

	var pref core.ThresholdPreference
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&pref.UserID, &pref.Threshold, &pref.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("thresholds: get %s: %w", userID, err)
	}
	pref.UpdatedAt = pref.UpdatedAt.UTC()
	return &pref, nil
}

// SetThreshold stores pref, replacing any previous value.
func (r *ThresholdRepository) SetThreshold(ctx context.Context, pref *core.ThresholdPreference) error {
	const query = `
		INSERT INTO thresholds (user_id, threshold, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET threshold = EXCLUDED.threshold, updated_at = EXCLUDED.updated_at`

	pref.UpdatedAt = pref.UpdatedAt.UTC()
	if _, err := r.db.ExecContext(ctx, query, pref.UserID, pref.Threshold, pref.UpdatedAt); err != nil {
		return fmt.Errorf("thresholds: set %s: %w", pref.UserID, err)
	}
	return nil
}

// InitThreshold stores pref unless the user already has a preference, then
// returns the stored one.
func (r *ThresholdRepository) InitThreshold(ctx context.Context, pref *core.ThresholdPreference) (*core.ThresholdPreference, error) {
	const query = `
		INSERT INTO thresholds (user_id, threshold, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO NOTHING`

	pref.UpdatedAt = pref.UpdatedAt.UTC()
	res, err := r.db.ExecContext(ctx, query, pref.UserID, pref.Threshold, pref.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("thresholds: init %s: %w", pref.UserID, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 1 {
		return pref, nil
	}
	return r.GetThreshold(ctx, pref.UserID)
}
