package oauth2provider

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"
)

// Handler serves the client-credentials token endpoint.
type Handler struct {
	svc *Service
	log *zap.Logger
}

func NewHandler(svc *Service, log *zap.Logger) *Handler {
	return &Handler{
		svc: svc,
		log: log.Named("auth.oauth2.handler"),
	}
}

func RegisterRoutes(r *gin.Engine, h *Handler) {
	r.POST("/v1/oauth/token", h.Token)
}

// Token accepts JSON or form bodies. Client credentials may also arrive via
// HTTP Basic, which must agree with any client_id in the body.
func (h *Handler) Token(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindWith(&req, bindingFor(c)); err != nil {
		writeOAuthError(c, http.StatusBadRequest, "invalid_request", "Malformed token request")
		return
	}

	basicID, basicSecret := parseBasicAuth(c)
	if basicID != "" {
		if req.ClientID != "" && req.ClientID != basicID {
			writeOAuthError(c, http.StatusUnauthorized, "invalid_client", "Invalid client credentials")
			return
		}
		req.ClientID = basicID
		req.ClientSecret = basicSecret
	}

	resp, err := h.svc.IssueToken(c.Request.Context(), req)
	if err != nil {
		status, code, description := mapTokenError(err)
		if status >= http.StatusInternalServerError {
			h.log.Error("oauth token issue failed",
				zap.String("request_id", requestID(c)),
				zap.String("client_id", req.ClientID),
				zap.Error(err),
			)
		}
		writeOAuthError(c, status, code, description)
		return
	}

	h.log.Info("oauth2 token issued",
		zap.String("request_id", requestID(c)),
		zap.String("client_id", req.ClientID),
	)

	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(http.StatusOK, resp)
}

func bindingFor(c *gin.Context) binding.Binding {
	if strings.HasPrefix(c.ContentType(), binding.MIMEJSON) {
		return binding.JSON
	}
	return binding.Form
}

func parseBasicAuth(c *gin.Context) (string, string) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" {
		return "", ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Basic") {
		return "", ""
	}
	decoded, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", ""
	}
	creds := strings.SplitN(string(decoded), ":", 2)
	if len(creds) != 2 {
		return "", ""
	}
	return creds[0], creds[1]
}

func writeOAuthError(c *gin.Context, status int, code, description string) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	body := gin.H{"error": code}
	if description != "" {
		body["error_description"] = description
	}
	c.AbortWithStatusJSON(status, body)
}

func mapTokenError(err error) (int, string, string) {
	switch {
	case errors.Is(err, ErrUnsupportedGrantType):
		return http.StatusBadRequest, "unsupported_grant_type", "Only client_credentials grant type is supported"
	case errors.Is(err, ErrInvalidClient):
		return http.StatusUnauthorized, "invalid_client", "Invalid client credentials"
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request", ""
	default:
		return http.StatusInternalServerError, "server_error", ""
	}
}

func requestID(c *gin.Context) string {
	if v := strings.TrimSpace(c.GetHeader("X-Request-Id")); v != "" {
		return v
	}
	if v := strings.TrimSpace(c.GetString("request_id")); v != "" {
		return v
	}
	return ""
}
