package async

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/taiso/routes-service/pkg/logger"
	"go.uber.org/zap"
)

// TaskContext holds the request values that follow a task into its goroutine
type TaskContext struct {
	CorrelationID string
	UserID        string
	StartTime     time.Time
	TaskName      string
}

// CaptureContext snapshots the values of ctx that should outlive the request
func CaptureContext(ctx context.Context, taskName string) TaskContext {
	return TaskContext{
		CorrelationID: logger.CorrelationIDFromContext(ctx),
		UserID:        logger.UserIDFromContext(ctx),
		StartTime:     time.Now(),
		TaskName:      taskName,
	}
}

// NewContext creates a detached context carrying the captured values
func (tc TaskContext) NewContext() context.Context {
	ctx := context.Background()
	if tc.CorrelationID != "" {
		ctx = logger.ContextWithCorrelationID(ctx, tc.CorrelationID)
	}
	if tc.UserID != "" {
		ctx = logger.ContextWithUserID(ctx, tc.UserID)
	}
	return ctx
}

// NewContextWithTimeout is NewContext bounded by timeout
func (tc TaskContext) NewContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(tc.NewContext(), timeout)
}

// Go runs fn in a goroutine that keeps the caller's correlation ID and
// survives the caller's cancellation. Panics are recovered and logged.
//
// Usage:
//
//	async.Go(ctx, "publish-route-imported", func(ctx context.Context) {
//	    publisher.Publish(ctx, subject, event)
//	})
func Go(ctx context.Context, taskName string, fn func(ctx context.Context)) {
	tc := CaptureContext(ctx, taskName)

	go func() {
		defer recoverWithLogging(tc)

		newCtx := tc.NewContext()
		fn(newCtx)

		logger.DebugContext(newCtx, "async task completed",
			zap.String("task", tc.TaskName),
			zap.Duration("duration", time.Since(tc.StartTime)),
		)
	}()
}

// GoWithTimeout is Go with a deadline on the context handed to fn.
// The returned channel is closed once fn has returned or timed out.
func GoWithTimeout(ctx context.Context, taskName string, timeout time.Duration, fn func(ctx context.Context)) <-chan struct{} {
	tc := CaptureContext(ctx, taskName)
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		defer recoverWithLogging(tc)

		newCtx, cancel := tc.NewContextWithTimeout(timeout)
		defer cancel()

		done := make(chan struct{})
		go func() {
			defer close(done)
			defer recoverWithLogging(tc)
			fn(newCtx)
		}()

		select {
		case <-done:
			logger.DebugContext(newCtx, "async task completed",
				zap.String("task", tc.TaskName),
				zap.Duration("duration", time.Since(tc.StartTime)),
			)
		case <-newCtx.Done():
			logger.WarnContext(newCtx, "async task timed out",
				zap.String("task", tc.TaskName),
				zap.Duration("timeout", timeout),
			)
		}
	}()

	return finished
}

func recoverWithLogging(tc TaskContext) {
	if r := recover(); r != nil {
		logger.ErrorContext(tc.NewContext(), "async task panicked",
			zap.String("task", tc.TaskName),
			zap.Any("panic", r),
			zap.String("stack", string(debug.Stack())),
		)
	}
}
