package reconciler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/retry"
)

type sweeperFunc func(ctx context.Context, strategy retry.Strategy) (int, error)

func (f sweeperFunc) RequeueStuck(ctx context.Context, strategy retry.Strategy) (int, error) {
	return f(ctx, strategy)
}

func TestReconciler_SweepRunsOnSchedule(t *testing.T) {
	var calls int64
	svc := sweeperFunc(func(ctx context.Context, _ retry.Strategy) (int, error) {
		atomic.AddInt64(&calls, 1)
		return 0, nil
	})

	r, err := New(svc, retry.Strategy{}, time.Second, time.Second)
	require.NoError(t, err)

	r.Start()
	defer r.Stop()

	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&calls) >= 1
	}, 3*time.Second, 50*time.Millisecond)
}

func TestReconciler_SweepGetsDeadline(t *testing.T) {
	deadlineSeen := make(chan bool, 1)
	svc := sweeperFunc(func(ctx context.Context, _ retry.Strategy) (int, error) {
		_, ok := ctx.Deadline()
		deadlineSeen <- ok
		return 0, nil
	})

	r, err := New(svc, retry.Strategy{}, time.Minute, time.Second)
	require.NoError(t, err)

	r.sweep()
	assert.True(t, <-deadlineSeen)
}

func TestReconciler_SweepErrorDoesNotPanic(t *testing.T) {
	svc := sweeperFunc(func(ctx context.Context, _ retry.Strategy) (int, error) {
		return 0, errors.New("db unavailable")
	})

	r, err := New(svc, retry.Strategy{}, time.Minute, time.Second)
	require.NoError(t, err)

	assert.NotPanics(t, r.sweep)
}
