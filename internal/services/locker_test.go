package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) (*RedisLocker, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	l := NewRedisLocker(db)
	l.token = func() (string, error) { return "tok", nil }
	return l, mock
}

func TestRedisLocker_AcquireAndRelease(t *testing.T) {
	l, mock := newTestLocker(t)
	key := webhookLockKey("X1")
	mock.ExpectSetNX(key, "tok", 30*time.Second).SetVal(true)
	mock.ExpectEvalSha(releaseScript.Hash(), []string{key}, "tok").SetVal(int64(1))

	release, ok, err := l.Acquire(context.Background(), key, 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	release()

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLocker_Held(t *testing.T) {
	l, mock := newTestLocker(t)
	key := webhookLockKey("X1")
	mock.ExpectSetNX(key, "tok", time.Second).SetVal(false)

	release, ok, err := l.Acquire(context.Background(), key, time.Second)

	require.NoError(t, err)
	assert.False(t, ok)
	assert.NotPanics(t, release)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLocker_RedisDown(t *testing.T) {
	l, mock := newTestLocker(t)
	key := webhookLockKey("X1")
	mock.ExpectSetNX(key, "tok", time.Second).SetErr(errors.New("connection refused"))

	_, ok, err := l.Acquire(context.Background(), key, time.Second)

	assert.Error(t, err)
	assert.False(t, ok)
}

func TestWebhookLockKey(t *testing.T) {
	assert.Equal(t, "webhook:lock:X1", webhookLockKey("X1"))
}
