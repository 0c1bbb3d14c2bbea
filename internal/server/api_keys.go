package server

import (
	"net/http"

	apikeydomain "github.com/derrickmugabwa/kenya-food-database-api/internal/apikey/domain"
	auditdomain "github.com/derrickmugabwa/kenya-food-database-api/internal/audit/domain"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/principal"
	"github.com/gin-gonic/gin"
)

func (s *Server) ListAPIKeys(c *gin.Context) {
	caller, ok := principal.SessionFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	page, err := bindPagination(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	all, err := parseOptionalBool(c.Query("all"))
	if err != nil {
		AbortWithError(c, newValidationError("all", "invalid_bool", "all must be true or false"))
		return
	}

	keys, err := s.apiKeySvc.List(c.Request.Context(), caller, apikeydomain.ListRequest{Pagination: page, All: all})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, keys)
}

func (s *Server) GetAPIKey(c *gin.Context) {
	caller, ok := principal.SessionFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	id, err := pathSnowflakeID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	key, err := s.apiKeySvc.Get(c.Request.Context(), caller, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, key)
}

// CreateAPIKey returns the plaintext key. It cannot be retrieved again.
func (s *Server) CreateAPIKey(c *gin.Context) {
	caller, ok := principal.SessionFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req apikeydomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.apiKeySvc.Create(c.Request.Context(), caller, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.recordAudit(c, auditdomain.ActionAPIKeyCreated, auditdomain.TargetAPIKey, resp.ID.String(), map[string]any{
		"name":      resp.Name,
		"keyPrefix": resp.KeyPrefix,
		"tier":      resp.Tier,
		"rateLimit": resp.RateLimit,
	})

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) UpdateAPIKey(c *gin.Context) {
	caller, ok := principal.SessionFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	id, err := pathSnowflakeID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req apikeydomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	key, err := s.apiKeySvc.Update(c.Request.Context(), caller, id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.recordAudit(c, auditdomain.ActionAPIKeyUpdated, auditdomain.TargetAPIKey, key.ID.String(), nil)

	c.JSON(http.StatusOK, key)
}

func (s *Server) RotateAPIKey(c *gin.Context) {
	caller, ok := principal.SessionFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	id, err := pathSnowflakeID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.apiKeySvc.Rotate(c.Request.Context(), caller, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.recordAudit(c, auditdomain.ActionAPIKeyRotated, auditdomain.TargetAPIKey, resp.ID.String(), map[string]any{
		"keyPrefix": resp.KeyPrefix,
	})

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, resp)
}

func (s *Server) RevokeAPIKey(c *gin.Context) {
	caller, ok := principal.SessionFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	id, err := pathSnowflakeID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.apiKeySvc.Revoke(c.Request.Context(), caller, id); err != nil {
		AbortWithError(c, err)
		return
	}
	s.recordAudit(c, auditdomain.ActionAPIKeyRevoked, auditdomain.TargetAPIKey, id.String(), nil)

	c.Status(http.StatusNoContent)
}
