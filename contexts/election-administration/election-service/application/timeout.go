package application

import (
	"context"
	"time"
)

// DefaultCallTimeout bounds a use case when no timeout is configured.
const DefaultCallTimeout = 5 * time.Second

// Bound derives a context that expires after timeout, or DefaultCallTimeout
// when timeout is not positive. An earlier parent deadline still wins.
func Bound(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return context.WithTimeout(ctx, timeout)
}
