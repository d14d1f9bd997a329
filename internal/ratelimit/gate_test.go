package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_BurstThenEmpty(t *testing.T) {
	gate := NewGate(1, 3)

	assert.True(t, gate.Allow())
	assert.True(t, gate.Allow())
	assert.True(t, gate.Allow())
	assert.False(t, gate.Allow())
}

func TestGate_AcquireBlocksUntilRefill(t *testing.T) {
	gate := NewGate(100, 1)
	ctx := context.Background()

	require.NoError(t, gate.Acquire(ctx))

	// Bucket is empty; the next acquire has to wait for the refill.
	start := time.Now()
	require.NoError(t, gate.Acquire(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}

func TestGate_AcquireHonorsCancellation(t *testing.T) {
	gate := NewGate(0.01, 1)
	require.True(t, gate.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := gate.Acquire(ctx)
	assert.Error(t, err)
}
