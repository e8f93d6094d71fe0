package trigger

import (
	"context"
	"time"

	"github.com/poiesic/lostfound/core"
)

// DefaultBatchSize is the default number of listings handled per rescan batch
const DefaultBatchSize = 100

// CreatedSinceSource lists listings by creation time.
type CreatedSinceSource interface {
	ListingsCreatedSince(ctx context.Context, since time.Time) ([]*core.Listing, error)
}

// ListingIterator walks listings created since a point in time, in batches.
type ListingIterator struct {
	source    CreatedSinceSource
	batchSize int
}

// NewListingIterator creates a new listing iterator.
// A batchSize <= 0 selects DefaultBatchSize.
func NewListingIterator(source CreatedSinceSource, batchSize int) *ListingIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &ListingIterator{
		source:    source,
		batchSize: batchSize,
	}
}

// Count returns how many listings were created since since.
func (it *ListingIterator) Count(ctx context.Context, since time.Time) (int, error) {
	listings, err := it.source.ListingsCreatedSince(ctx, since)
	if err != nil {
		return 0, err
	}
	return len(listings), nil
}

// ForEach calls fn with successive batches of listings created since since,
// oldest first. Iteration stops on the first error from fn.
// Context cancellation is checked between batches.
func (it *ListingIterator) ForEach(ctx context.Context, since time.Time, fn func([]*core.Listing) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	listings, err := it.source.ListingsCreatedSince(ctx, since)
	if err != nil {
		return err
	}

	for start := 0; start < len(listings); start += it.batchSize {
		end := min(start+it.batchSize, len(listings))
		if err := fn(listings[start:end]); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}
