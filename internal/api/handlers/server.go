// Package handlers implements the BFF endpoints of the staged-upload portal.
//
// Every workflow endpoint answers with a navigation document ({view, state})
// telling the single-page app which view to show next. The stage_id cookie
// is read before the workflow starts and written after it returns.
package handlers

import (
	"busreg.io/stager/internal/pkg/worker"
	"busreg.io/stager/internal/session"
	"busreg.io/stager/internal/usecase"
)

// Server implements the API handlers.
type Server struct {
	coordinator *usecase.Coordinator
	registry    *usecase.Registry
	pools       *worker.Pools
	cookie      session.CookieConfig
	maxBytes    int64
	fieldName   string
}

// ServerDeps holds all dependencies for creating a Server.
type ServerDeps struct {
	Coordinator *usecase.Coordinator
	Registry    *usecase.Registry
	Pools       *worker.Pools
	Cookie      session.CookieConfig
	// MaxUploadBytes bounds the multipart body; 0 leaves it unbounded.
	MaxUploadBytes int64
	// FieldName is the multipart field carrying the CSV; default "file".
	FieldName string
}

// NewServer creates a new Server with all dependencies.
func NewServer(deps ServerDeps) *Server {
	field := deps.FieldName
	if field == "" {
		field = "file"
	}
	return &Server{
		coordinator: deps.Coordinator,
		registry:    deps.Registry,
		pools:       deps.Pools,
		cookie:      deps.Cookie,
		maxBytes:    deps.MaxUploadBytes,
		fieldName:   field,
	}
}
