package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRunsJobsUntilCancelled(t *testing.T) {
	s := New(time.UTC, zap.NewNop())
	var calls atomic.Int32
	require.NoError(t, s.Add("@every 1s", "count", func(context.Context) { calls.Add(1) }))
	require.NoError(t, s.Add("@every 1s", "boom", func(context.Context) { panic("boom") }))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	assert.Eventually(t, func() bool { return calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestRejectsBadSpec(t *testing.T) {
	s := New(time.UTC, zap.NewNop())
	assert.Error(t, s.Add("every minute", "bad", func(context.Context) {}))
}
