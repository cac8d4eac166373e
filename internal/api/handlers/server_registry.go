package handlers

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"busreg.io/stager/internal/domain"
	apperrors "busreg.io/stager/internal/pkg/errors"
)

// SearchRegistrations handles GET /registrations/search.
func (s *Server) SearchRegistrations(c *gin.Context) {
	q := domain.SearchQuery{
		LicenceNumber:      c.Query("licence_number"),
		RegistrationNumber: c.Query("registration_number"),
		OperatorName:       c.Query("operator_name"),
		RouteNumber:        c.Query("route_number"),
		LatestOnly:         queryBool(c, "latest_only", true),
		StrictMode:         queryBool(c, "strict_mode", false),
		ActiveOnly:         queryBool(c, "active_only", false),
		Limit:              queryInt(c, "limit", domain.DefaultSearchLimit),
		Page:               queryInt(c, "page", 1),
	}

	page, err := s.registry.Search(c.Request.Context(), q)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetRegistrationStatus handles GET /registrations/status.
func (s *Server) GetRegistrationStatus(c *gin.Context) {
	licences, err := s.registry.Status(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"licences": licences})
}

// ExportRegistrations handles GET /registrations/export as a CSV download.
func (s *Server) ExportRegistrations(c *gin.Context) {
	table, err := s.registry.Export(c.Request.Context(), queryBool(c, "latest_only", false), queryBool(c, "active_only", false))
	if err != nil {
		_ = c.Error(err)
		return
	}

	var buf bytes.Buffer
	if err := table.WriteCSV(&buf); err != nil {
		_ = c.Error(apperrors.Wrap(err, apperrors.CodeInternal, apperrors.MsgInternal, http.StatusInternalServerError))
		return
	}
	c.Header("Content-Disposition", `attachment; filename="all-records.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// queryBool accepts true/false and the API's Yes/No spelling.
func queryBool(c *gin.Context, key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(c.Query(key))) {
	case "yes":
		return true
	case "no":
		return false
	}
	v, err := strconv.ParseBool(c.Query(key))
	if err != nil {
		return def
	}
	return v
}
