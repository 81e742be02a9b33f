package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultBucketTTL(t *testing.T) {
	assert.Equal(t, 10*time.Second, defaultBucketTTL(2, 10))
	assert.Equal(t, time.Second, defaultBucketTTL(100, 1))
	assert.Equal(t, time.Second, defaultBucketTTL(0, 10))
}

func TestBucketResultRetryAfter(t *testing.T) {
	denied := bucketResult(false, 0.5, 2, 10)
	assert.False(t, denied.Allowed)
	assert.Equal(t, 0, denied.Remaining)
	assert.Equal(t, 250*time.Millisecond, denied.RetryAfter)

	allowed := bucketResult(true, 3.7, 2, 10)
	assert.True(t, allowed.Allowed)
	assert.Equal(t, 3, allowed.Remaining)
	assert.Equal(t, 10, allowed.Limit)
	assert.Zero(t, allowed.RetryAfter)
}

func TestScriptReplyCasting(t *testing.T) {
	assert.Equal(t, int64(1), castToInt(int64(1)))
	assert.Equal(t, int64(7), castToInt("7"))
	assert.InDelta(t, 2.5, castToFloat("2.5"), 1e-9)
	assert.InDelta(t, 4.0, castToFloat(int64(4)), 1e-9)
	assert.Zero(t, castToFloat(nil))
}

func TestNilLimiterAdmitsEverything(t *testing.T) {
	var limiter *IngestLimiter
	assert.False(t, limiter.Enabled())

	res, err := limiter.Allow(context.Background(), "upload", "acme")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestTokenBucketRequiresClient(t *testing.T) {
	assert.Nil(t, NewTokenBucket(nil))

	var bucket *TokenBucket
	_, err := bucket.Allow(context.Background(), "k", 1, 1)
	assert.Error(t, err)
}
