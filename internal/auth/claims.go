package auth

import (
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "busreg.io/stager/internal/pkg/errors"
)

// Claims are the identity-provider claims the portal cares about.
type Claims struct {
	Username string   `json:"cognito:username"`
	Email    string   `json:"email"`
	Groups   []string `json:"cognito:groups"`
	jwt.RegisteredClaims
}

// AccessType is what the caller may do in the portal.
type AccessType string

const (
	AccessNone     AccessType = ""
	AccessReadOnly AccessType = "read-only"
	AccessOperator AccessType = "operator"
	AccessAdmin    AccessType = "admin"
)

// Groups names the identity-provider groups that grant access.
type Groups struct {
	Operator string
	ReadOnly string
	Admin    string
}

// DefaultGroups matches the identity provider's group names.
var DefaultGroups = Groups{Operator: "users-group", ReadOnly: "read-only", Admin: "admin-group"}

// ParseClaims decodes the token without verifying its signature.
func ParseClaims(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parse token claims: %w", err)
	}
	return claims, nil
}

// Expiry returns the exp claim, or the zero time when absent.
func (c *Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Expired reports whether exp is set and not after now.
func (c *Claims) Expired(now time.Time) bool {
	exp := c.Expiry()
	return !exp.IsZero() && !exp.After(now)
}

// Access derives the access type from the caller's groups. Read-only wins
// when the caller is in both groups.
func (c *Claims) Access(g Groups) AccessType {
	switch {
	case g.ReadOnly != "" && slices.Contains(c.Groups, g.ReadOnly):
		return AccessReadOnly
	case g.Operator != "" && slices.Contains(c.Groups, g.Operator):
		return AccessOperator
	default:
		return AccessNone
	}
}

// Authenticate decodes the token and rejects it when expired.
func Authenticate(token string, now time.Time) (*Claims, error) {
	claims, err := ParseClaims(token)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeAuthFailed, apperrors.MsgAuthFailed, http.StatusUnauthorized)
	}
	if claims.Expired(now) {
		return nil, apperrors.Wrap(jwt.ErrTokenExpired, apperrors.CodeTokenExpired, apperrors.MsgSessionExpired, http.StatusUnauthorized)
	}
	return claims, nil
}

// RequireAccess returns ACCESS_DENIED unless the claims grant want.
// An operator satisfies a read-only requirement. Admin access is only granted
// by membership of the admin group and implies nothing else.
func RequireAccess(claims *Claims, g Groups, want AccessType) error {
	have := AccessNone
	if claims != nil {
		have = claims.Access(g)
	}
	switch {
	case want == AccessAdmin:
		if claims != nil && g.Admin != "" && slices.Contains(claims.Groups, g.Admin) {
			return nil
		}
		return apperrors.Forbidden(apperrors.CodeAccessDenied, apperrors.MsgAccessDenied)
	case have == want:
		return nil
	case want == AccessReadOnly && have == AccessOperator:
		return nil
	default:
		return apperrors.Forbidden(apperrors.CodeAccessDenied, apperrors.MsgAccessDenied)
	}
}
