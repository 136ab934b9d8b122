// Package clock abstracts time for components that schedule or wait.
package clock

import (
	"context"
	"time"
)

// Clock supplies the current time and context-aware sleeping. Retry backoff
// and request pacing suspend through it so tests can substitute a fake and
// run instantly.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}
