package middleware

import (
	"github.com/gin-gonic/gin"

	"busreg.io/stager/internal/auth"
)

// RequireAccess returns middleware that checks the caller's identity-provider
// group. It must run after Bearer.
func RequireAccess(groups auth.Groups, want auth.AccessType) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := auth.RequireAccess(GetClaims(c), groups, want); err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireOperator allows only members of the operator group.
func RequireOperator(groups auth.Groups) gin.HandlerFunc {
	return RequireAccess(groups, auth.AccessOperator)
}
