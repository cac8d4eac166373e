// Package middleware provides HTTP middleware for the staged-upload BFF.
package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "busreg.io/stager/internal/pkg/errors"
	"busreg.io/stager/internal/pkg/logger"
)

// ErrorHandler is a Gin middleware that provides centralized error handling.
// It captures errors added via c.Error() and returns a consistent JSON response.
// Handlers that already wrote a body (workflow navigations) are left alone.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		log := logger.FromContext(c.Request.Context())

		// Check if it's an AppError with structured info
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			log.Warn("Request error",
				zap.String("code", appErr.Code),
				zap.String("message", appErr.Message),
				zap.Int("status", appErr.HTTPStatus),
				zap.Error(appErr.Err),
			)
			body := gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
			}
			if len(appErr.FieldErrors) > 0 {
				body["field_errors"] = appErr.FieldErrors
			}
			c.JSON(appErr.HTTPStatus, body)
			return
		}

		// Fallback: generic 500 error
		log.Error("Unhandled request error", zap.Error(err))
		internal := apperrors.Internal(apperrors.CodeInternal, apperrors.MsgInternal)
		c.JSON(internal.HTTPStatus, gin.H{
			"code":    internal.Code,
			"message": internal.Message,
		})
	}
}
