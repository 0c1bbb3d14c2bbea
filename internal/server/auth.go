package server

import (
	"net/http"
	"strings"

	auditdomain "github.com/derrickmugabwa/kenya-food-database-api/internal/audit/domain"
	authdomain "github.com/derrickmugabwa/kenya-food-database-api/internal/auth/domain"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/principal"
	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (s *Server) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		AbortWithError(c, newValidationError("email", "required", "email is required"))
		return
	}

	user, err := s.authsvc.CreateUser(c.Request.Context(), authdomain.CreateUserRequest{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	userID := user.ID.String()
	s.recordAuditAs(c, string(auditdomain.ActorTypeUser), userID, auditdomain.ActionUserRegistered, auditdomain.TargetUser, userID, nil)

	c.JSON(http.StatusCreated, user)
}

func (s *Server) Login(c *gin.Context) {
	var req authdomain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.authsvc.Login(c.Request.Context(), req)
	if err != nil {
		s.obsMetrics.RecordAuthAttempt(c.Request.Context(), "email_login", authResultFailure)
		AbortWithError(c, err)
		return
	}
	s.obsMetrics.RecordAuthAttempt(c.Request.Context(), "email_login", authResultSuccess)

	c.JSON(http.StatusOK, result)
}

func (s *Server) Me(c *gin.Context) {
	sess, ok := principal.SessionFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	user, err := s.authsvc.GetUser(c.Request.Context(), sess.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// UpdateAPIAccess moves a user between API tiers. Credentials created later
// inherit the new tier; existing ones keep theirs.
func (s *Server) UpdateAPIAccess(c *gin.Context) {
	userID, err := pathSnowflakeID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req authdomain.UpdateAPIAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	user, err := s.authsvc.UpdateAPIAccess(c.Request.Context(), userID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.recordAudit(c, auditdomain.ActionUserAPIAccessUpdate, auditdomain.TargetUser, user.ID.String(), map[string]any{
		"apiTier":      user.APITier,
		"apiRateLimit": user.APIRateLimit,
	})

	c.JSON(http.StatusOK, user)
}
