// Package worker runs the expired-token sweeper: token rows whose
// refresh expiry has passed are dead weight (the paired access token
// expired long before) and get deleted in the background.
package worker

import (
	"context"
	"time"

	"todoapi/internal/config"
	"todoapi/internal/store"
	"todoapi/pkg/logger"
)

// Run sweeps expired tokens on the configured interval until ctx is
// done. Start in a goroutine from main.
func Run(ctx context.Context, st store.Store) {
	interval := time.Duration(config.Get().TokenSweepInterval) * time.Second
	logger.Info(ctx, "Token sweeper started", "interval", interval.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep(ctx, st)
		}
	}
}

func sweep(ctx context.Context, st store.Store) {
	n, err := st.DeleteExpiredTokens(ctx, time.Now())
	if err != nil {
		logger.Error(ctx, "Token sweep failed", "error", err)
		return
	}
	if n > 0 {
		logger.Info(ctx, "Expired tokens deleted", "count", n)
	}
}
