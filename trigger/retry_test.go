package trigger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/lostfound/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryWithBackoff(t *testing.T) {
	errTemporary := errors.New("store unavailable")

	tests := []struct {
		name         string
		failures     int
		maxAttempts  int
		wantAttempts int
		wantErr      error
	}{
		{"first try", 0, 3, 1, nil},
		{"eventual success", 2, 5, 3, nil},
		{"all attempts fail", 10, 3, 3, errTemporary},
		{"single attempt", 10, 1, 1, errTemporary},
		{"zero attempts", 0, 0, 0, ErrInvalidMaxAttempts},
		{"negative attempts", 0, -1, 0, ErrInvalidMaxAttempts},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			err := RetryWithBackoff(context.Background(), func() error {
				attempts++
				if attempts <= tt.failures {
					return errTemporary
				}
				return nil
			}, tt.maxAttempts, time.Millisecond)

			assert.Equal(t, tt.wantAttempts, attempts)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestRetryWithBackoff_PermanentStopsRetrying(t *testing.T) {
	attempts := 0
	missing := fmt.Errorf("%w: listing L1", core.ErrNotFound)

	err := RetryWithBackoff(context.Background(), func() error {
		attempts++
		return Permanent(missing)
	}, 5, time.Millisecond)

	assert.Equal(t, 1, attempts)
	assert.Equal(t, missing, err)
	assert.Nil(t, Permanent(nil))
}

func TestRetryWithBackoff_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	err := RetryWithBackoff(ctx, func() error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errors.New("timeout")
	}, 10, time.Millisecond)

	assert.ErrorIs(t, err, context.Canceled)
	assert.LessOrEqual(t, attempts, 2)
}

func TestRetryWithBackoff_ContextTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	attempts := 0
	err := RetryWithBackoff(ctx, func() error {
		attempts++
		time.Sleep(30 * time.Millisecond)
		return errors.New("slow store")
	}, 10, 10*time.Millisecond)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.LessOrEqual(t, attempts, 3)
}

func TestRetryWithBackoff_DelayDoubles(t *testing.T) {
	var delays []time.Duration
	last := time.Now()
	attempts := 0

	err := RetryWithBackoff(context.Background(), func() error {
		attempts++
		if attempts > 1 {
			delays = append(delays, time.Since(last))
		}
		last = time.Now()
		if attempts < 4 {
			return errors.New("store unavailable")
		}
		return nil
	}, 5, 10*time.Millisecond)

	require.NoError(t, err)
	require.Len(t, delays, 3)
	assert.Greater(t, delays[1], delays[0])
	assert.Greater(t, delays[2], delays[1])
}
