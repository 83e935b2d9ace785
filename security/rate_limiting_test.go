package security

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_FirstHitSetsWindow(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(db, 2)

	mock.ExpectIncr("ratelimit:verify:user:u1").SetVal(1)
	mock.ExpectExpire("ratelimit:verify:user:u1", time.Minute).SetVal(true)

	ok, err := limiter.Allow(context.Background(), "ratelimit:verify:user:u1")

	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimiter_OverLimit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(db, 2)

	mock.ExpectIncr("k").SetVal(3)

	ok, err := limiter.Allow(context.Background(), "k")

	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimiter_RedisError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(db, 2)

	mock.ExpectIncr("k").SetErr(errors.New("connection refused"))

	ok, err := limiter.Allow(context.Background(), "k")

	assert.Error(t, err)
	assert.False(t, ok)
}

func TestIsSuspiciousUserAgent(t *testing.T) {
	tests := []struct {
		ua       string
		expected bool
	}{
		{"Mozilla/5.0 (X11; Linux x86_64)", false},
		{"Googlebot/2.1", true},
		{"my-scraper/1.0", true},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.ua, func(t *testing.T) {
			assert.Equal(t, tt.expected, isSuspiciousUserAgent(tt.ua))
		})
	}
}
