package badger

import "errors"

// Repositories bundles every BadgerDB repository sharing one backend.
type Repositories struct {
	Backend       *Backend
	Listings      *ListingRepository
	Users         *UserRepository
	Notifications *NotificationRepository
	Thresholds    *ThresholdRepository
	Checkpoints   *CheckpointRepository
	Jobs          *JobRepository
}

// NewRepositories creates all repositories over backend.
func NewRepositories(backend *Backend) *Repositories {
	return &Repositories{
		Backend:       backend,
		Listings:      NewListingRepository(backend),
		Users:         NewUserRepository(backend),
		Notifications: NewNotificationRepository(backend),
		Thresholds:    NewThresholdRepository(backend),
		Checkpoints:   NewCheckpointRepository(backend),
		Jobs:          NewJobRepository(backend),
	}
}

// Close releases the repositories, then the backend.
func (r *Repositories) Close() error {
	return errors.Join(r.Listings.Close(), r.Backend.Close())
}
