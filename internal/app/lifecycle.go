package app

import (
	"context"
	"fmt"

	"busreg.io/stager/internal/pkg/logger"
	"busreg.io/stager/internal/pkg/worker"
)

// Start starts background housekeeping on the background pool.
func (a *Application) Start(context.Context) error {
	if a.Pools == nil || a.Limiter == nil {
		return nil
	}
	if err := a.Pools.SubmitDetached(worker.PoolBackground, a.Limiter.Janitor); err != nil {
		return fmt.Errorf("start rate limiter janitor: %w", err)
	}
	logger.Info("Rate limiter janitor started")
	return nil
}

// Shutdown stops the pools (waiting for in-flight workflows) and closes Redis.
func (a *Application) Shutdown() {
	if a.Pools != nil {
		a.Pools.Shutdown()
	}
	if a.Backend != nil {
		a.Backend.Close()
	}
}
