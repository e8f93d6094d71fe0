package badger

import (
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/lostfound/core"
	"github.com/poiesic/lostfound/storage"
)

// JobRepository implements storage.JobRepository for BadgerDB.
type JobRepository struct {
	backend *Backend
}

var _ storage.JobRepository = (*JobRepository)(nil)

// NewJobRepository creates a new JobRepository.
func NewJobRepository(backend *Backend) *JobRepository {
	return &JobRepository{backend: backend}
}

// Enqueue records a pending evaluation for listingID.
func (r *JobRepository) Enqueue(ctx context.Context, listingID string) (*core.PendingJob, error) {
	var job *core.PendingJob
	err := r.backend.WithUpdate(func(tx *badger.Txn) error {
		key := makePendingJobKey(listingID)
		var existing *core.PendingJob
		_, err := getValue(tx, key, func(val []byte) error {
			var unmarshalErr error
			existing, unmarshalErr = storage.UnmarshalPendingJob(val)
			return unmarshalErr
		})
		if err != nil {
			return err
		}

		if existing != nil {
			job = existing
			job.Attempts++
		} else {
			job = &core.PendingJob{
				ListingID:  listingID,
				EnqueuedAt: time.Now().UTC(),
				Attempts:   1,
			}
		}
		return tx.Set(key, storage.MarshalPendingJob(job))
	})
	return job, err
}

// Complete removes the pending evaluation for listingID.
func (r *JobRepository) Complete(ctx context.Context, listingID string) error {
	return r.backend.WithUpdate(func(tx *badger.Txn) error {
		return tx.Delete(makePendingJobKey(listingID))
	})
}

// Pending returns every pending evaluation, oldest first.
func (r *JobRepository) Pending(ctx context.Context) ([]*core.PendingJob, error) {
	var jobs []*core.PendingJob
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(pendingJobPrefix), false, func(_, val []byte) error {
			job, err := storage.UnmarshalPendingJob(val)
			if err != nil {
				return err
			}
			jobs = append(jobs, job)
			return nil
		})
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(jobs, func(a, b *core.PendingJob) int {
		return a.EnqueuedAt.Compare(b.EnqueuedAt)
	})
	return jobs, nil
}
