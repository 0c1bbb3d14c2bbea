package server

import (
	"net/http"

	auditdomain "github.com/derrickmugabwa/kenya-food-database-api/internal/audit/domain"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/observability/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ListAuditLogs is the admin view of credential changes, newest first.
func (s *Server) ListAuditLogs(c *gin.Context) {
	var req auditdomain.ListAuditLogRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, newValidationError("query", "invalid_query", "invalid query parameters"))
		return
	}

	logs, err := s.auditSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, logs)
}

// recordAudit writes an audit entry for a change that already succeeded. A
// failed write is logged and never fails the request.
// The actor is the caller attached by the auth middleware.
func (s *Server) recordAudit(c *gin.Context, action, targetType, targetID string, metadata map[string]any) {
	s.recordAuditAs(c, "", "", action, targetType, targetID, metadata)
}

func (s *Server) recordAuditAs(c *gin.Context, actorType, actorID, action, targetType, targetID string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	ctx := c.Request.Context()
	var actor, target *string
	if actorID != "" {
		actor = &actorID
	}
	if targetID != "" {
		target = &targetID
	}
	if err := s.auditSvc.AuditLog(ctx, actorType, actor, action, targetType, target, metadata); err != nil {
		logger.WithContext(ctx, s.log).Warn("audit log write failed",
			zap.String("action", action),
			zap.Error(err),
		)
	}
}
