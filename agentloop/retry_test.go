package agentloop

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider classifies errors as transient by identity against a fixed
// sentinel, avoiding any dependency on a real provider adapter.
type fakeProvider struct{ transientErr error }

func (fakeProvider) Name() string                                { return "fake" }
func (fakeProvider) Render(context.Context, Request) (any, error) { return nil, nil }
func (fakeProvider) Submit(context.Context, any) (Response, error) { return Response{}, nil }
func (p fakeProvider) IsTransient(err error) bool                 { return errors.Is(err, p.transientErr) }

func withShortRetryDelays(t *testing.T) {
	t.Helper()
	orig := retryDelays
	retryDelays = []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}
	t.Cleanup(func() { retryDelays = orig })
}

func TestWithTransientRetrySucceedsWithoutRetryOnNilError(t *testing.T) {
	p := fakeProvider{}
	calls := 0
	err := withTransientRetry(context.Background(), p, func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithTransientRetryReturnsImmediatelyOnNonTransientError(t *testing.T) {
	p := fakeProvider{transientErr: errors.New("transient")}
	permanent := errors.New("permanent")
	calls := 0
	err := withTransientRetry(context.Background(), p, func(context.Context) error {
		calls++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestWithTransientRetryRetriesUntilSuccess(t *testing.T) {
	withShortRetryDelays(t)
	transient := errors.New("transient")
	p := fakeProvider{transientErr: transient}

	calls := 0
	err := withTransientRetry(context.Background(), p, func(context.Context) error {
		calls++
		if calls < 3 {
			return transient
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithTransientRetryExhaustsScheduleAndReturnsLastError(t *testing.T) {
	withShortRetryDelays(t)
	transient := errors.New("transient")
	p := fakeProvider{transientErr: transient}

	calls := 0
	err := withTransientRetry(context.Background(), p, func(context.Context) error {
		calls++
		return transient
	})
	assert.ErrorIs(t, err, transient)
	assert.Equal(t, len(retryDelays)+1, calls)
}

func TestWithTransientRetryStopsOnContextCancellation(t *testing.T) {
	orig := retryDelays
	retryDelays = []time.Duration{time.Hour}
	t.Cleanup(func() { retryDelays = orig })

	transient := errors.New("transient")
	p := fakeProvider{transientErr: transient}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	errCh := make(chan error, 1)
	go func() {
		errCh <- withTransientRetry(ctx, p, func(context.Context) error {
			calls++
			return transient
		})
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("withTransientRetry did not observe context cancellation")
	}
	assert.Equal(t, 1, calls)
}
