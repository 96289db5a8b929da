package sim

import (
	"context"
	"fmt"
	"time"
)

// RunRealtime drains the event queue while pacing events against the wall
// clock. speed scales time: 2 runs twice as fast as the configured delays.
// It returns ctx.Err() if the context ends first; pending events stay queued.
func (e *Engine) RunRealtime(ctx context.Context, speed float64) error {
	if speed <= 0 {
		return fmt.Errorf("speed must be positive, got %v", speed)
	}
	for len(e.EventQueue) > 0 {
		wait := time.Duration(float64(e.EventQueue[0].Timestamp()-e.Clock) * float64(time.Microsecond) / speed)
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		e.Step()
	}
	return nil
}
