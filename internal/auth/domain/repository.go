package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// APIAccessChange carries the optional tier and allowance updates for a user.
// Nil fields are left as they are.
type APIAccessChange struct {
	Tier      *string
	RateLimit *int
}

func (c APIAccessChange) Empty() bool {
	return c.Tier == nil && c.RateLimit == nil
}

// Repository stores user accounts. Lookups that miss return ErrUserNotFound.
type Repository interface {
	Create(ctx context.Context, user *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id snowflake.ID) (*User, error)
	SetPasswordHash(ctx context.Context, id snowflake.ID, hash string) error
	SetAPIAccess(ctx context.Context, id snowflake.ID, change APIAccessChange) error
}
