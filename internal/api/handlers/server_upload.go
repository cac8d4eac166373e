package handlers

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"busreg.io/stager/internal/domain"
	apperrors "busreg.io/stager/internal/pkg/errors"
	"busreg.io/stager/internal/pkg/logger"
	"busreg.io/stager/internal/session"
)

// navigationResponse is a navigation plus, on failure, the error code.
type navigationResponse struct {
	domain.Navigation
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

type workflow func(ctx context.Context, store session.Store) (domain.Navigation, error)

// ListPending handles GET /uploads/pending. A new upload is only offered when
// no batch is waiting.
func (s *Server) ListPending(c *gin.Context) {
	processes, err := s.coordinator.Pending(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"processes":  processes,
		"can_upload": len(processes) == 0,
	})
}

// CreateUpload handles POST /uploads (multipart field "file").
func (s *Server) CreateUpload(c *gin.Context) {
	if s.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBytes)
	}

	var (
		filename string
		body     io.Reader
	)
	fh, err := c.FormFile(s.fieldName)
	var tooLarge *http.MaxBytesError
	switch {
	case err == nil:
		f, err := fh.Open()
		if err != nil {
			_ = c.Error(apperrors.Wrap(err, apperrors.CodeUploadFailed, "Could not read the uploaded file", http.StatusBadRequest))
			return
		}
		defer f.Close()
		filename, body = fh.Filename, f
	case errors.As(err, &tooLarge), errors.Is(err, multipart.ErrMessageTooLarge):
		_ = c.Error(apperrors.New(apperrors.CodeUploadFailed, "The file is too large", http.StatusRequestEntityTooLarge))
		return
	default:
		// Missing field or not multipart: the empty name fails the file check.
		logger.FromContext(c.Request.Context()).Debug("Upload without file", zap.Error(err))
	}

	s.runWorkflow(c, func(ctx context.Context, store session.Store) (domain.Navigation, error) {
		return s.coordinator.Start(ctx, store, filename, body)
	})
}

// GetStaged handles GET /uploads/staged, resuming the held batch.
func (s *Server) GetStaged(c *gin.Context) {
	s.runWorkflow(c, s.coordinator.Resume)
}

// CommitStaged handles POST /uploads/staged/commit.
func (s *Server) CommitStaged(c *gin.Context) {
	s.runWorkflow(c, s.coordinator.Commit)
}

// DiscardStaged handles POST /uploads/staged/discard.
func (s *Server) DiscardStaged(c *gin.Context) {
	s.runWorkflow(c, s.coordinator.Discard)
}

// GetReport handles GET /uploads/report/:id?page=&page_size=.
func (s *Server) GetReport(c *gin.Context) {
	page := queryInt(c, "page", 1)
	size := queryInt(c, "page_size", 25)

	groups, err := s.coordinator.ReportPage(c.Request.Context(), c.Param("id"), page, size)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"report_id": c.Param("id"),
		"groups":    groups,
	})
}

// runWorkflow runs fn on the workflow pool against a buffered copy of the
// stage cookie and waits for it; the request context cancels it.
func (s *Server) runWorkflow(c *gin.Context, fn workflow) {
	ctx := c.Request.Context()
	cookies := session.NewCookieStore(c, s.cookie)
	held, _ := cookies.Load(ctx)
	buf := session.NewBuffered(held)

	type result struct {
		nav domain.Navigation
		err error
	}
	var res result
	err := s.pools.Workflows.Run(ctx, func(ctx context.Context) error {
		nav, err := fn(ctx, buf)
		res = result{nav: nav, err: err}
		return nil
	})
	if err != nil {
		logger.FromContext(ctx).Warn("Workflow abandoned", zap.Error(err))
		_ = c.Error(apperrors.Wrap(err, apperrors.CodeWorkflowRejected, "The request could not be completed, please try again", http.StatusServiceUnavailable))
		return
	}

	if err := buf.Apply(ctx, cookies); err != nil {
		_ = c.Error(err)
		return
	}
	s.respond(c, res.nav, res.err)
}

func (s *Server) respond(c *gin.Context, nav domain.Navigation, err error) {
	if err == nil {
		c.JSON(http.StatusOK, navigationResponse{Navigation: nav})
		return
	}

	appErr, ok := apperrors.IsAppError(err)
	if !ok {
		appErr = apperrors.Wrap(err, apperrors.CodeUpstreamError, err.Error(), http.StatusBadGateway)
	}
	_ = c.Error(err)
	c.JSON(appErr.HTTPStatus, navigationResponse{
		Navigation: nav,
		Code:       appErr.Code,
		Message:    appErr.Message,
	})
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
