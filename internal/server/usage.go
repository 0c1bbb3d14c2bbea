package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListUsageLogs pages through request logs. Non-admins only see rows made
// with their own credentials.
func (s *Server) ListUsageLogs(c *gin.Context) {
	caller, ok := callerSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	page, err := bindPagination(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	logs, err := s.usagesvc.List(c.Request.Context(), caller, page)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, logs)
}

func (s *Server) GetUsageLog(c *gin.Context) {
	caller, ok := callerSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	id, err := pathSnowflakeID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	log, err := s.usagesvc.Get(c.Request.Context(), caller, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, log)
}
