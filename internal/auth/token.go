// Package auth obtains the bearer credential sent to the registration API
// and derives the caller's access type from it.
//
// The identity provider is opaque: a TokenSource only answers "what is the
// current session token". Signatures are verified by the API, not here.
package auth

import (
	"context"
	"strings"

	apperrors "busreg.io/stager/internal/pkg/errors"
)

// TokenSource yields the bearer token for the current caller.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// ErrNoToken is returned when no credential is available for the caller.
var ErrNoToken = apperrors.Unauthorized(apperrors.CodeAuthFailed, apperrors.MsgAuthFailed)

type tokenKey struct{}

// WithToken stores the caller's bearer token in ctx.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext returns the bearer token stored by WithToken.
func TokenFromContext(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(tokenKey{}).(string)
	return t, ok && t != ""
}

// BearerFromHeader extracts the token from an Authorization header value.
func BearerFromHeader(h string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(h), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	t := strings.TrimSpace(parts[1])
	return t, t != ""
}

// StaticSource always returns the same token.
type StaticSource string

// Token implements TokenSource.
func (s StaticSource) Token(context.Context) (string, error) {
	if s == "" {
		return "", ErrNoToken
	}
	return string(s), nil
}

// ForwardedSource relays the token the BFF received on the incoming request.
type ForwardedSource struct{}

// Token implements TokenSource.
func (ForwardedSource) Token(ctx context.Context) (string, error) {
	if t, ok := TokenFromContext(ctx); ok {
		return t, nil
	}
	return "", ErrNoToken
}
