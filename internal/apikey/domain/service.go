package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/principal"
	"github.com/derrickmugabwa/kenya-food-database-api/pkg/db/pagination"
)

type Service interface {
	List(ctx context.Context, caller principal.Session, req ListRequest) (pagination.Page[Response], error)
	Get(ctx context.Context, caller principal.Session, id snowflake.ID) (*Response, error)
	Create(ctx context.Context, caller principal.Session, req CreateRequest) (*SecretResponse, error)
	Update(ctx context.Context, caller principal.Session, id snowflake.ID, req UpdateRequest) (*Response, error)
	Rotate(ctx context.Context, caller principal.Session, id snowflake.ID) (*SecretResponse, error)
	Revoke(ctx context.Context, caller principal.Session, id snowflake.ID) error
	ExpireStale(ctx context.Context) (int64, error)
}

// Verifier resolves a presented plaintext key to its stored record.
type Verifier interface {
	Verify(ctx context.Context, candidate string) (*APIKey, error)
}

type ListRequest struct {
	pagination.Pagination
	All bool `form:"all"`
}

type CreateRequest struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Tier        string     `json:"tier"`
	RateLimit   int        `json:"rateLimit"`
	ExpiresAt   *time.Time `json:"expiresAt"`
}

type UpdateRequest struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	ExpiresAt   *time.Time `json:"expiresAt"`
}

type Response struct {
	ID          snowflake.ID `json:"id"`
	UserID      snowflake.ID `json:"userId"`
	Name        string       `json:"name"`
	KeyPrefix   string       `json:"keyPrefix"`
	Description string       `json:"description,omitempty"`
	Status      string       `json:"status"`
	Tier        string       `json:"tier"`
	RateLimit   int          `json:"rateLimit"`
	ExpiresAt   *time.Time   `json:"expiresAt"`
	LastUsedAt  *time.Time   `json:"lastUsedAt"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// SecretResponse carries the plaintext key. It is returned once, at creation
// or rotation.
type SecretResponse struct {
	Response
	Key string `json:"key"`
}

var (
	ErrInvalidFormat = errors.New("invalid_api_key_format")
	ErrInvalidName   = errors.New("invalid_name")
	ErrInvalidTier   = errors.New("invalid_tier")
	ErrInvalidLimit  = errors.New("invalid_rate_limit")
	ErrNotFound      = errors.New("not_found")
)
