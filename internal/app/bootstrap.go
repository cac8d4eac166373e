// Package app is the composition root of the BFF: config in, router out.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"busreg.io/stager/internal/api/handlers"
	"busreg.io/stager/internal/api/middleware"
	"busreg.io/stager/internal/config"
	"busreg.io/stager/internal/pkg/worker"
	"busreg.io/stager/internal/session"
)

// limiterIdleTTL is how long a client IP keeps its token bucket.
const limiterIdleTTL = 10 * time.Minute

// Application holds composed application dependencies.
type Application struct {
	Config  *config.Config
	Router  *gin.Engine
	Pools   *worker.Pools
	Backend *Backend
	Limiter *middleware.RateLimiter
}

// Bootstrap initializes all dependencies using manual DI.
// The BFF serves many users, so it only accepts the forward auth source.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Application, error) {
	switch cfg.Auth.Source {
	case config.AuthSourceForward, "":
	case config.AuthSourceStatic, config.AuthSourceSecretsManager:
		return nil, fmt.Errorf("auth.source %q shares one credential across users; use %q for the BFF", cfg.Auth.Source, config.AuthSourceForward)
	}

	backend, err := NewBackend(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init backend: %w", err)
	}

	pools, err := worker.NewPools(ctx, worker.PoolConfig{
		WorkflowPoolSize:   cfg.Worker.WorkflowPoolSize,
		BackgroundPoolSize: cfg.Worker.BackgroundPoolSize,
	})
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("init worker pools: %w", err)
	}

	server := handlers.NewServer(handlers.ServerDeps{
		Coordinator: backend.Coordinator,
		Registry:    backend.Registry,
		Pools:       pools,
		Cookie: session.CookieConfig{
			Name:     cfg.Session.Cookie,
			Path:     cfg.Session.Path,
			Secure:   cfg.Session.Secure,
			HttpOnly: cfg.Session.HttpOnly,
		},
		MaxUploadBytes: cfg.Upload.MaxBytes,
		FieldName:      cfg.Upload.FieldName,
	})

	limiter := middleware.NewRateLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst, limiterIdleTTL)

	return &Application{
		Config:  cfg,
		Router:  newRouter(cfg, server, Groups(cfg), limiter),
		Pools:   pools,
		Backend: backend,
		Limiter: limiter,
	}, nil
}
