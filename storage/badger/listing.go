package badger

import (
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/lostfound/core"
	"github.com/poiesic/lostfound/storage"
)

// ListingRepository implements storage.ListingRepository for BadgerDB.
type ListingRepository struct {
	backend *Backend
}

var _ storage.ListingRepository = (*ListingRepository)(nil)

// NewListingRepository creates a new ListingRepository.
func NewListingRepository(backend *Backend) *ListingRepository {
	return &ListingRepository{
		backend: backend,
	}
}

// Close is a no-op; the backend owns the database handle.
func (r *ListingRepository) Close() error {
	return nil
}

// AddListings stores new listings along with their date and owner indexes.
func (r *ListingRepository) AddListings(ctx context.Context, listings ...*core.Listing) ([]*core.Listing, error) {
	err := r.backend.WithUpdate(func(tx *badger.Txn) error {
		for _, listing := range listings {
			key := makeListingKey(listing.ID)
			existing, err := readListing(tx, key)
			if err != nil {
				return err
			}
			if existing != nil {
				return storage.ErrDuplicateKey
			}

			listing.CreatedAt = listing.CreatedAt.UTC()
			if err := tx.Set(key, storage.MarshalListing(listing)); err != nil {
				return err
			}

			ref := storage.MarshalRef(listing.ID)
			if err := tx.Set(makeListingDateKey(listing.CreatedAt, listing.ID), ref); err != nil {
				return err
			}
			if err := tx.Set(makeListingOwnerKey(listing.OwnerID, listing.ID), ref); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return listings, nil
}

// GetListing retrieves a single listing by ID.
func (r *ListingRepository) GetListing(ctx context.Context, id string) (*core.Listing, error) {
	var result *core.Listing
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readListing(tx, makeListingKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// UpdateStatus changes the status of a listing.
func (r *ListingRepository) UpdateStatus(ctx context.Context, id string, status core.Status) (*core.Listing, error) {
	var result *core.Listing
	err := r.backend.WithUpdate(func(tx *badger.Txn) error {
		key := makeListingKey(id)
		listing, err := readListing(tx, key)
		if err != nil {
			return err
		}
		if listing == nil {
			return storage.ErrNotFound
		}
		listing.Status = status
		result = listing
		return tx.Set(key, storage.MarshalListing(listing))
	})
	return result, err
}

// ActiveListingsExcept returns active listings not owned by ownerID and not of kind.
func (r *ListingRepository) ActiveListingsExcept(ctx context.Context, ownerID string, kind core.Kind) ([]*core.Listing, error) {
	var results []*core.Listing
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return r.scanByDate(ctx, tx, []byte(listingDatePrefix), func(listing *core.Listing) {
			if listing.IsActive() && listing.OwnerID != ownerID && listing.Kind != kind {
				results = append(results, listing)
			}
		})
	}, false)
	return results, err
}

// ListingsCreatedSince returns listings with CreatedAt >= since, oldest first.
func (r *ListingRepository) ListingsCreatedSince(ctx context.Context, since time.Time) ([]*core.Listing, error) {
	var results []*core.Listing
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return r.scanByDate(ctx, tx, makePartialListingDateKey(since), func(listing *core.Listing) {
			results = append(results, listing)
		})
	}, false)
	return results, err
}

// ListingsByOwner returns every listing owned by ownerID, oldest first.
func (r *ListingRepository) ListingsByOwner(ctx context.Context, ownerID string) ([]*core.Listing, error) {
	var results []*core.Listing
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, makePartialListingOwnerKey(ownerID), false, func(_, val []byte) error {
			id, err := storage.UnmarshalRef(val)
			if err != nil {
				return err
			}
			listing, err := readListing(tx, makeListingKey(id))
			if err != nil {
				return err
			}
			if listing != nil {
				results = append(results, listing)
			}
			return nil
		})
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(results, func(a, b *core.Listing) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return results, nil
}

// scanByDate walks the date index from start to the end of the index and
// calls fn with each listing. Context cancellation is checked per entry.
func (r *ListingRepository) scanByDate(ctx context.Context, tx *badger.Txn, start []byte, fn func(*core.Listing)) error {
	iter := tx.NewIterator(badger.DefaultIteratorOptions)
	defer iter.Close()

	prefix := []byte(listingDatePrefix)
	for iter.Seek(start); iter.ValidForPrefix(prefix); iter.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}

		// Read the ID from the index
		var id string
		if err := iter.Item().Value(func(val []byte) error {
			var err error
			id, err = storage.UnmarshalRef(val)
			return err
		}); err != nil {
			return err
		}

		// Look up the full record
		listing, err := readListing(tx, makeListingKey(id))
		if err != nil {
			return err
		}
		if listing != nil {
			fn(listing)
		}
	}
	return nil
}

// readListing reads a listing from the transaction.
// Returns nil, nil if the listing doesn't exist.
func readListing(tx *badger.Txn, key []byte) (*core.Listing, error) {
	var listing *core.Listing
	_, err := getValue(tx, key, func(val []byte) error {
		var unmarshalErr error
		listing, unmarshalErr = storage.UnmarshalListing(val)
		return unmarshalErr
	})
	return listing, err
}
