// Package worker provides goroutine pool management.
//
// Naked goroutines are not used outside cmd/: every workflow invocation and
// every background janitor runs on an ants pool with context propagation.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"busreg.io/stager/internal/pkg/logger"
)

// ErrPoolClosed is returned when submitting to a closed pool.
var ErrPoolClosed = errors.New("worker pool is closed")

// Pool names accepted by SubmitDetached.
const (
	PoolWorkflows  = "workflows"
	PoolBackground = "background"
)

// Task is a context-aware task function.
type Task func(ctx context.Context)

// Pool wraps ants.Pool with context-aware submission.
type Pool struct {
	pool *ants.Pool
	name string
}

// Pools is the worker pool collection.
type Pools struct {
	// Workflows bounds the number of staged-upload workflows (and their poll
	// loops) running at once across all users.
	Workflows *Pool
	// Background runs long-lived housekeeping such as limiter cleanup.
	Background *Pool

	// serviceCtx is the service lifecycle context for detached tasks
	serviceCtx    context.Context
	serviceCancel context.CancelFunc
}

// PoolConfig contains worker pool configuration.
type PoolConfig struct {
	WorkflowPoolSize   int
	BackgroundPoolSize int
}

// DefaultPoolConfig returns default configuration.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		WorkflowPoolSize:   64,
		BackgroundPoolSize: 4,
	}
}

// NewPools creates the worker pool collection.
func NewPools(ctx context.Context, cfg PoolConfig) (*Pools, error) {
	serviceCtx, serviceCancel := context.WithCancel(ctx)

	panicHandler := func(p interface{}) {
		logger.Error("Worker panic recovered",
			zap.Any("panic", p),
			zap.Stack("stack"),
		)
	}

	workflowAnts, err := ants.NewPool(cfg.WorkflowPoolSize,
		ants.WithPanicHandler(panicHandler),
		ants.WithNonblocking(false),
		ants.WithExpiryDuration(time.Minute), // poll loops are long-lived
	)
	if err != nil {
		serviceCancel()
		return nil, fmt.Errorf("create workflow pool: %w", err)
	}

	backgroundAnts, err := ants.NewPool(cfg.BackgroundPoolSize,
		ants.WithPanicHandler(panicHandler),
		ants.WithNonblocking(true),
		ants.WithExpiryDuration(10*time.Second),
	)
	if err != nil {
		workflowAnts.Release()
		serviceCancel()
		return nil, fmt.Errorf("create background pool: %w", err)
	}

	return &Pools{
		Workflows:     &Pool{pool: workflowAnts, name: PoolWorkflows},
		Background:    &Pool{pool: backgroundAnts, name: PoolBackground},
		serviceCtx:    serviceCtx,
		serviceCancel: serviceCancel,
	}, nil
}

// Submit submits a context-aware task.
// The task receives the caller's context and SHOULD check ctx.Done() at blocking points.
// If context is already cancelled, returns ctx.Err() immediately without submitting.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	err := p.pool.Submit(func() {
		// May have been cancelled while queued.
		select {
		case <-ctx.Done():
			logger.Debug("Task skipped: context cancelled",
				zap.String("pool", p.name),
				zap.Error(ctx.Err()),
			)
			return
		default:
		}
		task(ctx)
	})
	if errors.Is(err, ants.ErrPoolClosed) {
		return ErrPoolClosed
	}
	return err
}

// Run submits fn and blocks until it returns or ctx is done.
// When ctx ends first, fn keeps running with the cancelled context and its
// result is discarded.
func (p *Pool) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	done := make(chan error, 1)
	if err := p.Submit(ctx, func(ctx context.Context) {
		done <- fn(ctx)
	}); err != nil {
		return err
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubmitDetached submits a detached background task.
// Detached tasks use the service lifecycle context instead of a request context,
// so they survive request cancellation but still stop on Shutdown.
func (p *Pools) SubmitDetached(poolName string, task Task) error {
	var pool *Pool
	switch poolName {
	case PoolWorkflows:
		pool = p.Workflows
	default:
		pool = p.Background
	}

	return pool.pool.Submit(func() {
		select {
		case <-p.serviceCtx.Done():
			logger.Debug("Detached task skipped: service shutting down",
				zap.String("pool", poolName),
			)
			return
		default:
		}
		task(p.serviceCtx)
	})
}

// Shutdown cancels the service context, then waits for running tasks (max 30s).
func (p *Pools) Shutdown() {
	p.serviceCancel()

	const shutdownTimeout = 30 * time.Second
	if err := p.Workflows.pool.ReleaseTimeout(shutdownTimeout); err != nil {
		logger.Warn("Workflow pool shutdown timeout", zap.Error(err))
	}
	if err := p.Background.pool.ReleaseTimeout(shutdownTimeout); err != nil {
		logger.Warn("Background pool shutdown timeout", zap.Error(err))
	}
}

// Metrics returns pool metrics for observability.
func (p *Pools) Metrics() map[string]interface{} {
	return map[string]interface{}{
		PoolWorkflows: map[string]int{
			"running": p.Workflows.pool.Running(),
			"free":    p.Workflows.pool.Free(),
			"cap":     p.Workflows.pool.Cap(),
		},
		PoolBackground: map[string]int{
			"running": p.Background.pool.Running(),
			"free":    p.Background.pool.Free(),
			"cap":     p.Background.pool.Cap(),
		},
	}
}
