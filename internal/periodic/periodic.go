// Package periodic drives the timer-plus-task loops used by the pollers,
// comparators, mirror and flush workers.
package periodic

import (
	"context"
	"time"
)

// Run calls task once immediately and then every interval until ctx is
// cancelled. A slow task delays the next tick rather than overlapping it.
// Run always returns nil so it can be handed straight to an errgroup.
func Run(ctx context.Context, interval time.Duration, task func(context.Context)) error {
	if interval <= 0 {
		interval = time.Second
	}

	task(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if ctx.Err() != nil {
				return nil
			}
			task(ctx)
		}
	}
}
