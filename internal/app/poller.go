package app

import (
	"context"
	"log"
	"time"

	"github.com/five82/kdebridge/internal/client"
	"github.com/five82/kdebridge/internal/state"
)

const (
	defaultPollInterval = 2 * time.Second
	maxBackoff          = 30 * time.Second
)

// StartPoller launches a background goroutine that refreshes the store from
// /api/state. Consecutive failures stretch the interval exponentially up to
// maxBackoff. It returns immediately.
func StartPoller(ctx context.Context, store *state.Store, fetcher client.StateFetcher, interval time.Duration) {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	go func() {
		for {
			refresh(ctx, store, fetcher)
			wait := calculateBackoff(store.Snapshot().ConsecutiveFailures, interval)
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}()
}

// calculateBackoff doubles base once per consecutive failure, capped at
// maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	d := base
	for range failures {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

func refresh(ctx context.Context, store *state.Store, fetcher client.StateFetcher) error {
	bridge, err := fetcher.FetchState(ctx)
	if err != nil {
		store.UpdateBridge(nil, err)
		if ctx.Err() == nil {
			log.Printf("state poll failed: %v", err)
		}
		return err
	}
	store.UpdateBridge(bridge, nil)
	return nil
}
