package badger

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/lostfound/core"
	"github.com/poiesic/lostfound/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	exists, err := repos.Users.Exists(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, repos.Users.AddUser(ctx, "u1"))
	require.NoError(t, repos.Users.AddUser(ctx, "u1"))

	exists, err = repos.Users.Exists(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, repos.Users.DeleteUser(ctx, "u1"))
	assert.ErrorIs(t, repos.Users.DeleteUser(ctx, "u1"), storage.ErrNotFound)

	exists, err = repos.Users.Exists(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestThresholdRepository(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	_, err := repos.Thresholds.GetThreshold(ctx, "u1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, repos.Thresholds.SetThreshold(ctx, &core.ThresholdPreference{UserID: "u1", Threshold: 0.45}))

	pref, err := repos.Thresholds.GetThreshold(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0.45, pref.Threshold)
	assert.False(t, pref.UpdatedAt.IsZero())

	require.NoError(t, repos.Thresholds.SetThreshold(ctx, &core.ThresholdPreference{UserID: "u1", Threshold: 0.9}))
	pref, err = repos.Thresholds.GetThreshold(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0.9, pref.Threshold)
}

func TestInitThreshold(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	stored, err := repos.Thresholds.InitThreshold(ctx, &core.ThresholdPreference{UserID: "u1", Threshold: 0.6})
	require.NoError(t, err)
	assert.Equal(t, 0.6, stored.Threshold)

	require.NoError(t, repos.Thresholds.SetThreshold(ctx, &core.ThresholdPreference{UserID: "u1", Threshold: 0.3}))

	stored, err = repos.Thresholds.InitThreshold(ctx, &core.ThresholdPreference{UserID: "u1", Threshold: 0.6})
	require.NoError(t, err)
	assert.Equal(t, 0.3, stored.Threshold)
}

func TestCheckpointRepository(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	checkpoint, err := repos.Checkpoints.LoadCheckpoint(ctx, "rescan")
	require.NoError(t, err)
	assert.Nil(t, checkpoint)

	watermark := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, repos.Checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{ProcessorType: "rescan", Watermark: watermark}))

	checkpoint, err = repos.Checkpoints.LoadCheckpoint(ctx, "rescan")
	require.NoError(t, err)
	require.NotNil(t, checkpoint)
	assert.True(t, checkpoint.Watermark.Equal(watermark))
	assert.False(t, checkpoint.UpdatedAt.IsZero())
}

func TestJobRepository(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	job, err := repos.Jobs.Enqueue(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, 1, job.Attempts)

	job, err = repos.Jobs.Enqueue(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, 2, job.Attempts)

	_, err = repos.Jobs.Enqueue(ctx, "l2")
	require.NoError(t, err)

	pending, err := repos.Jobs.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "l1", pending[0].ListingID)

	require.NoError(t, repos.Jobs.Complete(ctx, "l1"))
	require.NoError(t, repos.Jobs.Complete(ctx, "never-enqueued"))

	pending, err = repos.Jobs.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "l2", pending[0].ListingID)
}
