package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RhinoSecurityLabs/dsnap/pkg/dsnaperr"
)

func fastPolicy() Policy {
	return Policy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestDoSucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(), "test", func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(), "test", func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return dsnaperr.New(dsnaperr.KindTransient, errors.New("throttled"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDoStopsAfterMaxAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(), "test", func(ctx context.Context) error {
		calls++
		return dsnaperr.New(dsnaperr.KindTransient, errors.New("still throttled"))
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, dsnaperr.IsTransient(err))
}

func TestDoDoesNotRetryNonTransient(t *testing.T) {
	calls := 0
	sentinel := dsnaperr.New(dsnaperr.KindNotFound, errors.New("no such snapshot"))
	err := Do(context.Background(), fastPolicy(), "test", func(ctx context.Context) error {
		calls++
		return sentinel
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, dsnaperr.KindNotFound, dsnaperr.KindOf(err))
}

func TestDoRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, fastPolicy(), "test", func(ctx context.Context) error {
		calls++
		return dsnaperr.New(dsnaperr.KindTransient, errors.New("throttled"))
	})
	require.Error(t, err)
	assert.True(t, dsnaperr.IsCancelled(err) || dsnaperr.IsTransient(err))
}
