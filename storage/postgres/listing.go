package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/poiesic/lostfound/core"
	"github.com/poiesic/lostfound/storage"
)

const listingColumns = `id, owner_id, kind, category, title, description, location, status, created_at`

// ListingRepository implements storage.ListingRepository for PostgreSQL.
type ListingRepository struct {
	db *sql.DB
}

// NewListingRepository creates a new ListingRepository.
func NewListingRepository(db *sql.DB) *ListingRepository {
	return &ListingRepository{db: db}
}

// Close is a no-op; Repositories owns the database handle.
func (r *ListingRepository) Close() error {
	return nil
}

// AddListings inserts listings in one transaction.
func (r *ListingRepository) AddListings(ctx context.Context, listings ...*core.Listing) ([]*core.Listing, error) {
	const query = `
		INSERT INTO listings (id, owner_id, kind, category, title, description, location, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("listings: begin: %w", err)
	}
	defer tx.Rollback()

	for _, l := range listings {
		l.CreatedAt = l.CreatedAt.UTC()
		_, err := tx.ExecContext(ctx, query,
			l.ID, l.OwnerID, string(l.Kind), l.Category, l.Title,
			l.Description, l.Location, string(l.Status), l.CreatedAt,
		)
		if isUniqueViolation(err) {
			return nil, storage.ErrDuplicateKey
		}
		if err != nil {
			return nil, fmt.Errorf("listings: insert %s: %w", l.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("listings: commit: %w", err)
	}
	return listings, nil
}

// GetListing retrieves a single listing by ID.
func (r *ListingRepository) GetListing(ctx context.Context, id string) (*core.Listing, error) {
	const query = `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`

	l, err := scanListing(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("listings: get %s: %w", id, err)
	}
	return l, nil
}

// UpdateStatus changes the status of a listing.
func (r *ListingRepository) UpdateStatus(ctx context.Context, id string, status core.Status) (*core.Listing, error) {
	const query = `UPDATE listings SET status = $1 WHERE id = $2 RETURNING ` + listingColumns

	l, err := scanListing(r.db.QueryRowContext(ctx, query, string(status), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("listings: update status %s: %w", id, err)
	}
	return l, nil
}

// ActiveListingsExcept returns active listings not owned by ownerID and not of kind.
func (r *ListingRepository) ActiveListingsExcept(ctx context.Context, ownerID string, kind core.Kind) ([]*core.Listing, error) {
	const query = `
		SELECT ` + listingColumns + `
		FROM listings
		WHERE status = 'active' AND owner_id <> $1 AND kind <> $2
		ORDER BY created_at, id`

	return r.query(ctx, "active listings", query, ownerID, string(kind))
}

// ListingsCreatedSince returns listings with created_at >= since, oldest first.
func (r *ListingRepository) ListingsCreatedSince(ctx context.Context, since time.Time) ([]*core.Listing, error) {
	const query = `
		SELECT ` + listingColumns + `
		FROM listings
		WHERE created_at >= $1
		ORDER BY created_at, id`

	return r.query(ctx, "listings since", query, since.UTC())
}

// ListingsByOwner returns every listing owned by ownerID, oldest first.
func (r *ListingRepository) ListingsByOwner(ctx context.Context, ownerID string) ([]*core.Listing, error) {
	const query = `
		SELECT ` + listingColumns + `
		FROM listings
		WHERE owner_id = $1
		ORDER BY created_at, id`

	return r.query(ctx, "listings by owner", query, ownerID)
}

func (r *ListingRepository) query(ctx context.Context, what, query string, args ...any) ([]*core.Listing, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listings: %s: %w", what, err)
	}
	defer rows.Close()

	var results []*core.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("listings: %s: %w", what, err)
		}
		results = append(results, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listings: %s: %w", what, err)
	}
	return results, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (*core.Listing, error) {
	var (
		l      core.Listing
		kind   string
		status string
	)
	err := row.Scan(&l.ID, &l.OwnerID, &kind, &l.Category, &l.Title,
		&l.Description, &l.Location, &status, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	l.Kind = core.Kind(kind)
	l.Status = core.Status(status)
	l.CreatedAt = l.CreatedAt.UTC()
	return &l, nil
}
