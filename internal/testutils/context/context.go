package context

import (
	"context"
	"testing"
	"time"
)

// WithTest derives a context that expires 1 second before the test's own
// deadline, leaving room to clean up resources.
func WithTest(ctx context.Context, t *testing.T) (context.Context, func()) {
	if deadline, ok := t.Deadline(); ok {
		dctx, cancel := context.WithDeadline(ctx, deadline.Add(-time.Second))
		return dctx, cancel
	}
	return ctx, func() {}
}
