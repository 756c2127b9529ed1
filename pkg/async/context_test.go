package async_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taiso/routes-service/pkg/async"
	"github.com/taiso/routes-service/pkg/logger"
)

func requestContext() context.Context {
	ctx := logger.ContextWithCorrelationID(context.Background(), "corr-123")
	return logger.ContextWithUserID(ctx, "user-42")
}

func TestCaptureContext(t *testing.T) {
	tc := async.CaptureContext(requestContext(), "publish")

	assert.Equal(t, "corr-123", tc.CorrelationID)
	assert.Equal(t, "user-42", tc.UserID)
	assert.Equal(t, "publish", tc.TaskName)
	assert.False(t, tc.StartTime.IsZero())
}

func TestTaskContext_NewContextIsDetached(t *testing.T) {
	parent, cancel := context.WithCancel(requestContext())
	tc := async.CaptureContext(parent, "publish")
	cancel()

	ctx := tc.NewContext()
	assert.NoError(t, ctx.Err())
	assert.Equal(t, "corr-123", logger.CorrelationIDFromContext(ctx))
	assert.Equal(t, "user-42", logger.UserIDFromContext(ctx))
}

func TestTaskContext_NewContextWithTimeout(t *testing.T) {
	tc := async.CaptureContext(requestContext(), "publish")

	ctx, cancel := tc.NewContextWithTimeout(50 * time.Millisecond)
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(50*time.Millisecond), deadline, 40*time.Millisecond)
}

func TestGo_PropagatesContext(t *testing.T) {
	got := make(chan string, 1)

	async.Go(requestContext(), "publish", func(ctx context.Context) {
		got <- logger.CorrelationIDFromContext(ctx)
	})

	select {
	case id := <-got:
		assert.Equal(t, "corr-123", id)
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}
}

func TestGo_RecoversPanic(t *testing.T) {
	ran := make(chan struct{})

	async.Go(context.Background(), "panicky", func(ctx context.Context) {
		close(ran)
		panic("boom")
	})

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}
}

func TestGoWithTimeout_Completes(t *testing.T) {
	var called bool

	finished := async.GoWithTimeout(requestContext(), "publish", time.Second, func(ctx context.Context) {
		called = true
	})

	select {
	case <-finished:
		assert.True(t, called)
	case <-time.After(2 * time.Second):
		t.Fatal("task did not finish")
	}
}

func TestGoWithTimeout_TimesOut(t *testing.T) {
	ctxErr := make(chan error, 1)

	finished := async.GoWithTimeout(context.Background(), "slow", 20*time.Millisecond, func(ctx context.Context) {
		<-ctx.Done()
		ctxErr <- ctx.Err()
	})

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("timeout was not enforced")
	}
	assert.ErrorIs(t, <-ctxErr, context.DeadlineExceeded)
}

func TestGoWithTimeout_RecoversPanic(t *testing.T) {
	finished := async.GoWithTimeout(context.Background(), "panicky", time.Second, func(ctx context.Context) {
		panic("boom")
	})

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("task did not finish")
	}
}
