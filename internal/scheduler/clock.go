package scheduler

import (
	"context"
	"time"

	"post-purge/internal/models/ports"
)

type realClock struct{}

// NewRealClock возвращает часы на основе системного времени
func NewRealClock() ports.Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
