package resilience

import (
	"context"
	"fmt"

	"github.com/taiso/routes-service/pkg/common"
	"github.com/taiso/routes-service/pkg/logger"
	"go.uber.org/zap"
)

// FallbackFunc is executed when the breaker is open or overloaded.
type FallbackFunc func(ctx context.Context, err error) (interface{}, error)

// GracefulDegradation answers with a 503 AppError naming the shed dependency,
// so handlers report a degraded service instead of a generic failure.
func GracefulDegradation(service string) FallbackFunc {
	return func(ctx context.Context, err error) (interface{}, error) {
		logger.WarnContext(ctx, "dependency shed by circuit breaker",
			zap.String("service", service),
			zap.Error(err),
		)
		return nil, common.NewServiceUnavailableError(
			fmt.Sprintf("%s is temporarily unavailable", service),
			fmt.Errorf("%w: %s", ErrCircuitOpen, service),
		)
	}
}
