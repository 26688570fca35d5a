package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(3, 2, time.Hour)
	require.Equal(t, CircuitClosed, cb.State())

	for i := 0; i < 3; i++ {
		require.NoError(t, cb.Allow())
		cb.RecordFailure()
	}

	assert.Equal(t, CircuitOpen, cb.State())
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)
}

func TestCircuitBreakerRecovery(t *testing.T) {
	cb := NewCircuitBreaker(1, 2, 10*time.Millisecond)
	cb.RecordFailure()
	require.Equal(t, CircuitOpen, cb.State())

	// After the open timeout, one probe is allowed through
	time.Sleep(15 * time.Millisecond)
	require.NoError(t, cb.Allow())
	assert.Equal(t, CircuitHalfOpen, cb.State())

	// Two successes close the circuit
	cb.RecordSuccess()
	cb.RecordSuccess()
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(1, 2, 10*time.Millisecond)
	cb.RecordFailure()
	time.Sleep(15 * time.Millisecond)
	require.NoError(t, cb.Allow())

	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.State())
}

func TestCircuitStateString(t *testing.T) {
	assert.Equal(t, "CLOSED", CircuitClosed.String())
	assert.Equal(t, "OPEN", CircuitOpen.String())
	assert.Equal(t, "HALF_OPEN", CircuitHalfOpen.String())
	assert.Equal(t, "UNKNOWN", CircuitState(99).String())
}

func TestWithRetryBacksOffOnTransportErrors(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: 10 * time.Millisecond, BackoffMultiplier: 2}

	calls := 0
	err := withRetry(context.Background(), cfg, nil, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryStopsOnStatusError(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 3, InitialBackoff: time.Millisecond, BackoffMultiplier: 2}

	calls := 0
	err := withRetry(context.Background(), cfg, nil, func(ctx context.Context) error {
		calls++
		return &StatusError{Code: 404, Endpoint: "/x"}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, IsStatus(err, 404))
}

func TestWithRetryExhaustionReturnsLastError(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, BackoffMultiplier: 2}

	calls := 0
	err := withRetry(context.Background(), cfg, nil, func(ctx context.Context) error {
		calls++
		return errors.New("still down")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "still down")
}

func TestWithRetryHonorsCancellation(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 5, InitialBackoff: 50 * time.Millisecond, BackoffMultiplier: 2}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	err := withRetry(ctx, cfg, nil, func(ctx context.Context) error {
		calls++
		return errors.New("down")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestWithRetryFeedsCircuitBreaker(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 5, InitialBackoff: time.Millisecond, BackoffMultiplier: 2}
	cb := NewCircuitBreaker(2, 1, time.Hour)

	calls := 0
	err := withRetry(context.Background(), cfg, cb, func(ctx context.Context) error {
		calls++
		return errors.New("down")
	})
	require.Error(t, err)
	// Two failures open the circuit; the next attempt fails fast
	assert.Equal(t, 2, calls)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestWithRetryStatusErrorDoesNotTripBreaker(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 1, InitialBackoff: time.Millisecond, BackoffMultiplier: 2}
	cb := NewCircuitBreaker(1, 1, time.Hour)

	_ = withRetry(context.Background(), cfg, cb, func(ctx context.Context) error {
		return &StatusError{Code: 500, Endpoint: "/x"}
	})
	assert.Equal(t, CircuitClosed, cb.State(), "a reachable server must not open the circuit")
}
