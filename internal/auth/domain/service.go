package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*User, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	GetUser(ctx context.Context, id snowflake.ID) (*User, error)
	UpdateAPIAccess(ctx context.Context, id snowflake.ID, req UpdateAPIAccessRequest) (*User, error)
}

type CreateUserRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	// Role is ignored by the public registration endpoint.
	Role string `json:"-"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResult struct {
	Token        string    `json:"token"`
	TokenExpires time.Time `json:"tokenExpires"`
	User         *User     `json:"user"`
}

type UpdateAPIAccessRequest struct {
	APITier      *string `json:"apiTier"`
	APIRateLimit *int    `json:"apiRateLimit"`
}
