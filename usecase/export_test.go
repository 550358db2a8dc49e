package usecase

import (
	"context"
	"time"
)

// SetWait replaces the scheduler's slot timer.
func SetWait(s *Scheduler, wait func(ctx context.Context, d time.Duration) error) {
	s.wait = wait
}
