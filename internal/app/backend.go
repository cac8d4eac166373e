package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"busreg.io/stager/internal/auth"
	"busreg.io/stager/internal/config"
	"busreg.io/stager/internal/pkg/logger"
	"busreg.io/stager/internal/session"
	"busreg.io/stager/internal/stagingapi"
	"busreg.io/stager/internal/usecase"
)

// reportTTL bounds how long a partial-failure report stays pageable.
const reportTTL = time.Hour

// Backend is the staged-upload workflow and the registration lookups wired
// to the registration API. Both the BFF and bsrctl drive it.
type Backend struct {
	Coordinator *usecase.Coordinator
	Registry    *usecase.Registry
	Client      *stagingapi.Client
	Redis       *redis.Client
}

// NewBackend builds the token source, API client, guard and report cache.
// A configured redis.url replaces the process-local guard and cache.
func NewBackend(ctx context.Context, cfg *config.Config) (*Backend, error) {
	tokens, err := NewTokenSource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	client := stagingapi.NewClient(stagingapi.Config{
		BaseURL:        cfg.API.ResolveBaseURL(),
		Tokens:         tokens,
		RequestTimeout: cfg.API.RequestTimeout,
		UploadTimeout:  cfg.Upload.Timeout,
		FieldName:      cfg.Upload.FieldName,
	})

	b := &Backend{Client: client, Registry: usecase.NewRegistry(client)}
	var (
		guard   session.Guard       = session.NewMemoryGuard()
		reports session.ReportCache = session.NewMemoryReportCache(0, reportTTL)
	)
	if cfg.Redis.URL != "" {
		rdb, err := session.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("init redis: %w", err)
		}
		b.Redis = rdb
		guard = session.NewRedisGuard(rdb, cfg.Session.GuardTTL)
		reports = session.NewRedisReportCache(rdb, reportTTL)
		logger.Info("Shared action guard enabled", zap.String("backend", "redis"))
	}

	policy := usecase.DefaultRetryPolicy()
	policy.Interval = cfg.Poll.Interval
	policy.MaxAttempts = cfg.Poll.MaxAttempts
	policy.MaxNotReady = cfg.Poll.MaxNotReady

	b.Coordinator = usecase.NewCoordinator(client, usecase.CoordinatorConfig{
		Policy:  policy,
		Guard:   guard,
		Reports: reports,
	})
	return b, nil
}

// Close releases the Redis connection, if any.
func (b *Backend) Close() {
	if b == nil || b.Redis == nil {
		return
	}
	if err := b.Redis.Close(); err != nil {
		logger.Warn("Close redis failed", zap.Error(err))
	}
}

// NewTokenSource selects the bearer credential for registration API calls.
func NewTokenSource(ctx context.Context, cfg *config.Config) (auth.TokenSource, error) {
	switch cfg.Auth.Source {
	case config.AuthSourceStatic:
		return auth.StaticSource(cfg.Auth.Token), nil
	case config.AuthSourceSecretsManager:
		sm, err := auth.NewSecretsManagerClient(ctx, cfg.AWS.Region, cfg.AWS.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("init secrets manager: %w", err)
		}
		return auth.NewRefreshing(auth.NewSecretsManagerSource(sm, cfg.Auth.SecretName), cfg.Auth.RefreshSkew), nil
	case config.AuthSourceForward, "":
		return auth.ForwardedSource{}, nil
	default:
		return nil, fmt.Errorf("unknown auth source %q", cfg.Auth.Source)
	}
}

// Groups returns the configured identity-provider groups.
func Groups(cfg *config.Config) auth.Groups {
	groups := auth.DefaultGroups
	if cfg.Auth.OperatorGroup != "" {
		groups.Operator = cfg.Auth.OperatorGroup
	}
	if cfg.Auth.ReadOnlyGroup != "" {
		groups.ReadOnly = cfg.Auth.ReadOnlyGroup
	}
	if cfg.Auth.AdminGroup != "" {
		groups.Admin = cfg.Auth.AdminGroup
	}
	return groups
}
