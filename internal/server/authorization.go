package server

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// RequireRole gates a route on the caller's role-based permissions. Machine
// callers are checked as a plain user of their owner.
func (s *Server) RequireRole(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.authorizeAction(c, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func (s *Server) authorizeAction(c *gin.Context, object string, action string) error {
	caller, ok := callerSession(c)
	if !ok {
		return ErrUnauthorized
	}
	if s.authzSvc == nil {
		return ErrForbidden
	}
	return s.authzSvc.Authorize(c.Request.Context(), caller, strings.TrimSpace(object), strings.TrimSpace(action))
}
