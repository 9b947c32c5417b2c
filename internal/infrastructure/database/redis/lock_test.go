package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/opinion-miner/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/opinion-miner/pkg/errors"
)

func TestMutex_TryLockUnlock(t *testing.T) {
	client, mr := newTestClient(t)
	factory := NewLockFactory(client, logging.NewNopLogger())
	ctx := context.Background()

	lock := factory.NewMutex("incoming/review-1.json", WithLockTTL(time.Second))

	ok, err := lock.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("test:lock:incoming/review-1.json"))

	other := factory.NewMutex("incoming/review-1.json")
	ok, err = other.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "a second owner cannot take a held lock")

	err = other.Unlock(ctx)
	assert.True(t, errors.IsCode(err, errors.ErrCodeConflict))

	require.NoError(t, lock.Unlock(ctx))
	assert.False(t, mr.Exists("test:lock:incoming/review-1.json"))
}

func TestMutex_Expiry(t *testing.T) {
	client, mr := newTestClient(t)
	factory := NewLockFactory(client, nil, WithLockTTL(2*time.Second))
	ctx := context.Background()

	lock := factory.NewMutex("doc")
	ok, err := lock.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ttl, err := lock.TTL(ctx)
	require.NoError(t, err)
	assert.True(t, ttl > 0 && ttl <= 2*time.Second)

	extended, err := lock.Extend(ctx, 10*time.Second)
	require.NoError(t, err)
	assert.True(t, extended)

	mr.FastForward(11 * time.Second)

	ok, err = factory.NewMutex("doc").TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "an expired lock can be taken by another owner")

	extended, err = lock.Extend(ctx, time.Second)
	require.NoError(t, err)
	assert.False(t, extended)
}

func TestMutex_WatchdogStopsOnUnlock(t *testing.T) {
	client, _ := newTestClient(t)
	lock := NewLockFactory(client, nil).NewMutex("doc", WithLockTTL(300*time.Millisecond), WithWatchdog(true))
	ctx := context.Background()

	ok, err := lock.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(250 * time.Millisecond)
	require.NoError(t, lock.Unlock(ctx))
}
