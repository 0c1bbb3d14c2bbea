package server

import (
	"net/http"
	"strings"

	auditdomain "github.com/derrickmugabwa/kenya-food-database-api/internal/audit/domain"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/oauth2provider"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/principal"
	"github.com/gin-gonic/gin"
)

type revokeTokenRequest struct {
	Token string `json:"token" form:"token"`
}

// CreateOAuthClient registers a client for the caller. The secret is only
// returned in this response.
func (s *Server) CreateOAuthClient(c *gin.Context) {
	caller, ok := principal.SessionFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req oauth2provider.CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.oauthsvc.CreateClient(c.Request.Context(), caller.UserID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if result.Client != nil {
		s.recordAudit(c, auditdomain.ActionOAuthClientCreated, auditdomain.TargetOAuthClient, result.Client.ID.String(), map[string]any{
			"clientId": result.Client.ClientID,
			"name":     result.Client.Name,
		})
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusCreated, result)
}

func (s *Server) ListOAuthClients(c *gin.Context) {
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

	clients, err := s.oauthsvc.ListClients(c.Request.Context(), &caller.UserID, page)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, clients)
}

// ListAllOAuthClients is the admin view across every user.
func (s *Server) ListAllOAuthClients(c *gin.Context) {
	page, err := bindPagination(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	clients, err := s.oauthsvc.ListClients(c.Request.Context(), nil, page)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, clients)
}

func (s *Server) GetOAuthClient(c *gin.Context) {
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

	client, err := s.oauthsvc.GetClient(c.Request.Context(), caller, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, client)
}

func (s *Server) UpdateOAuthClient(c *gin.Context) {
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

	var req oauth2provider.UpdateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	client, err := s.oauthsvc.UpdateClient(c.Request.Context(), caller, id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.recordAudit(c, auditdomain.ActionOAuthClientUpdated, auditdomain.TargetOAuthClient, client.ID.String(), map[string]any{
		"clientId": client.ClientID,
	})

	c.JSON(http.StatusOK, client)
}

func (s *Server) DeleteOAuthClient(c *gin.Context) {
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

	if err := s.oauthsvc.DeleteClient(c.Request.Context(), caller, id); err != nil {
		AbortWithError(c, err)
		return
	}
	s.recordAudit(c, auditdomain.ActionOAuthClientDeleted, auditdomain.TargetOAuthClient, id.String(), nil)

	c.Status(http.StatusNoContent)
}

// RevokeOAuthToken accepts the token in a JSON or form body.
func (s *Server) RevokeOAuthToken(c *gin.Context) {
	caller, ok := principal.SessionFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req revokeTokenRequest
	if err := c.ShouldBind(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	token := strings.TrimSpace(req.Token)
	if token == "" {
		AbortWithError(c, newValidationError("token", "required", "token is required"))
		return
	}

	if err := s.oauthsvc.RevokeToken(c.Request.Context(), caller, token); err != nil {
		AbortWithError(c, err)
		return
	}
	s.recordAudit(c, auditdomain.ActionOAuthTokenRevoked, auditdomain.TargetOAuthToken, "", map[string]any{
		"token": token,
	})

	c.JSON(http.StatusOK, gin.H{"revoked": true})
}
