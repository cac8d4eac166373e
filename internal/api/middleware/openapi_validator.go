package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"busreg.io/stager/internal/api/contract"
	apperrors "busreg.io/stager/internal/pkg/errors"
	"busreg.io/stager/internal/pkg/logger"
)

// Part types browsers attach to .csv files.
var csvPartTypes = []string{"text/csv", "application/csv", "application/vnd.ms-excel"}

var registerDecoders sync.Once

// MustOpenAPIValidator creates the request validator and panics on setup failure.
func MustOpenAPIValidator(basePath string, maxBodyBytes int64) gin.HandlerFunc {
	mw, err := NewOpenAPIValidator(basePath, maxBodyBytes)
	if err != nil {
		panic(fmt.Sprintf("init openapi validator: %v", err))
	}
	return mw
}

// NewOpenAPIValidator checks requests against the embedded contract.
// Paths the contract does not know pass through. A positive maxBodyBytes
// caps the body before it is read for validation.
func NewOpenAPIValidator(basePath string, maxBodyBytes int64) (gin.HandlerFunc, error) {
	swagger, err := contract.GetSwagger()
	if err != nil {
		return nil, err
	}

	router, err := gorillamux.NewRouter(swagger)
	if err != nil {
		return nil, fmt.Errorf("create openapi router: %w", err)
	}

	registerDecoders.Do(func() {
		for _, ct := range csvPartTypes {
			openapi3filter.RegisterBodyDecoder(ct, openapi3filter.FileBodyDecoder)
		}
	})

	basePath = normalizeBasePath(basePath)
	options := &openapi3filter.Options{
		// Bearer and group checks run before this middleware.
		AuthenticationFunc: func(context.Context, *openapi3filter.AuthenticationInput) error { return nil },
	}

	return func(c *gin.Context) {
		route, pathParams, routeErr := findRouteWithFallback(router, c.Request, basePath)
		if routeErr != nil {
			if isPathNotFoundError(routeErr) {
				c.Next()
				return
			}
			abortWithOpenAPIError(c, apperrors.CodeOpenAPIRouteInvalid, routeErr)
			return
		}

		if maxBodyBytes > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
		}

		err := openapi3filter.ValidateRequest(c.Request.Context(), &openapi3filter.RequestValidationInput{
			Request:    c.Request,
			PathParams: pathParams,
			Route:      route,
			Options:    options,
		})

		var tooLarge *http.MaxBytesError
		switch {
		case err == nil:
			c.Next()
		case errors.As(err, &tooLarge):
			_ = c.Error(apperrors.New(apperrors.CodeUploadFailed, "The file is too large", http.StatusRequestEntityTooLarge))
			c.Abort()
		default:
			logger.FromContext(c.Request.Context()).Debug("Request does not match the API contract",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
			abortWithOpenAPIError(c, apperrors.CodeOpenAPIRequestInvalid, err)
		}
	}, nil
}

func normalizeBasePath(basePath string) string {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" || basePath == "/" {
		return ""
	}
	return "/" + strings.Trim(basePath, "/")
}

func normalizeValidationPath(basePath, path string) string {
	if basePath == "" {
		if path == "" {
			return "/"
		}
		return path
	}
	if path == basePath {
		return "/"
	}
	if strings.HasPrefix(path, basePath+"/") {
		return "/" + strings.TrimPrefix(path, basePath+"/")
	}
	return path
}

// findRouteWithFallback tries the full path first, then the path with
// basePath stripped, since the contract's server URL carries the prefix.
func findRouteWithFallback(router routers.Router, req *http.Request, basePath string) (*routers.Route, map[string]string, error) {
	origPath := req.URL.Path
	origRawPath := req.URL.RawPath
	defer func() {
		req.URL.Path = origPath
		req.URL.RawPath = origRawPath
	}()

	candidates := [][2]string{{origPath, origRawPath}}
	normalizedPath := normalizeValidationPath(basePath, origPath)
	normalizedRawPath := origRawPath
	if origRawPath != "" {
		normalizedRawPath = normalizeValidationPath(basePath, origRawPath)
	}
	if normalizedPath != origPath || normalizedRawPath != origRawPath {
		candidates = append(candidates, [2]string{normalizedPath, normalizedRawPath})
	}

	var lastErr error
	for _, candidate := range candidates {
		req.URL.Path = candidate[0]
		req.URL.RawPath = candidate[1]

		route, pathParams, err := router.FindRoute(req)
		if err == nil {
			return route, pathParams, nil
		}
		if !isPathNotFoundError(err) {
			return nil, nil, err
		}
		lastErr = err
	}
	return nil, nil, lastErr
}

func isPathNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, routers.ErrPathNotFound) {
		return true
	}
	var routeErr *routers.RouteError
	if errors.As(err, &routeErr) && strings.Contains(routeErr.Reason, routers.ErrPathNotFound.Error()) {
		return true
	}
	return strings.Contains(err.Error(), routers.ErrPathNotFound.Error())
}

func abortWithOpenAPIError(c *gin.Context, code string, err error) {
	_ = c.Error(apperrors.Wrap(err, code, err.Error(), http.StatusBadRequest))
	c.Abort()
}
