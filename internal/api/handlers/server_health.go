package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetLiveness handles GET /health/live.
func (s *Server) GetLiveness(c *gin.Context) {
	body := gin.H{"status": "ok"}
	if s.pools != nil {
		body["workers"] = s.pools.Metrics()
	}
	c.JSON(http.StatusOK, body)
}
