package auth

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"busreg.io/stager/internal/pkg/logger"
)

// opaqueTokenTTL bounds how long a token without an exp claim is reused.
const opaqueTokenTTL = 5 * time.Minute

// Refreshing caches the token of an underlying source and refetches it when
// its exp claim is within Skew of now.
type Refreshing struct {
	src  TokenSource
	skew time.Duration
	now  func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewRefreshing wraps src.
func NewRefreshing(src TokenSource, skew time.Duration) *Refreshing {
	return &Refreshing{src: src, skew: skew, now: time.Now}
}

// Token implements TokenSource.
func (r *Refreshing) Token(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if r.token != "" && now.Add(r.skew).Before(r.expires) {
		return r.token, nil
	}

	token, err := r.src.Token(ctx)
	if err != nil {
		return "", err
	}

	expires := now.Add(opaqueTokenTTL)
	if claims, err := ParseClaims(token); err == nil && !claims.Expiry().IsZero() {
		expires = claims.Expiry()
	}
	r.token, r.expires = token, expires
	logger.Debug("Bearer token refreshed", zap.Time("expires", expires))
	return token, nil
}
