package service

import (
	"context"
	"testing"
	"time"

	"inventory-service/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLockerReleasesOnlyWithToken(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	token, ok, err := l.AcquireLock(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.AcquireLock(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.ReleaseLock(ctx, "k", "someone-else"))
	_, ok, _ = l.AcquireLock(ctx, "k", time.Minute)
	assert.False(t, ok)

	require.NoError(t, l.ReleaseLock(ctx, "k", token))
	_, ok, _ = l.AcquireLock(ctx, "k", time.Minute)
	assert.True(t, ok)
}

func TestLocalLockerExpires(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	_, ok, _ := l.AcquireLock(ctx, "k", time.Millisecond)
	require.True(t, ok)
	time.Sleep(5 * time.Millisecond)

	_, ok, _ = l.AcquireLock(ctx, "k", time.Minute)
	assert.True(t, ok)
}

func TestAcquireLocksReleasesPartialSetOnFailure(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	_, ok, _ := l.AcquireLock(ctx, "b", time.Minute)
	require.True(t, ok)

	_, err := acquireLocks(ctx, l, time.Minute, util.GetLogger(), "c", "a", "b")
	assert.ErrorIs(t, err, ErrLockUnavailable)

	// "a" was taken before "b" failed and must have been released again.
	_, ok, _ = l.AcquireLock(ctx, "a", time.Minute)
	assert.True(t, ok)
	_, ok, _ = l.AcquireLock(ctx, "c", time.Minute)
	assert.True(t, ok)
}

func TestAcquireLocksDeduplicatesKeys(t *testing.T) {
	l := NewLocalLocker()

	release, err := acquireLocks(context.Background(), l, time.Minute, util.GetLogger(), "a", "a")
	require.NoError(t, err)
	release()

	_, ok, _ := l.AcquireLock(context.Background(), "a", time.Minute)
	assert.True(t, ok)
}
