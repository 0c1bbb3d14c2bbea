// Package domain contains core types for the auth service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// API tiers a user may be placed on. Credentials created by the user inherit it.
const (
	TierFree       = "free"
	TierBasic      = "basic"
	TierPremium    = "premium"
	TierEnterprise = "enterprise"
)

func ValidTier(tier string) bool {
	switch tier {
	case TierFree, TierBasic, TierPremium, TierEnterprise:
		return true
	default:
		return false
	}
}

// User represents a system user account.
type User struct {
	ID           snowflake.ID      `gorm:"primaryKey" json:"id"`
	Email        string            `gorm:"column:email;type:text;not null;uniqueIndex" json:"email"`
	PasswordHash string            `gorm:"column:password_hash;type:text;not null" json:"-"`
	FirstName    string            `gorm:"column:first_name;type:text" json:"firstName,omitempty"`
	LastName     string            `gorm:"column:last_name;type:text" json:"lastName,omitempty"`
	Role         string            `gorm:"column:role;type:text;not null;default:user" json:"role"`
	APITier      string            `gorm:"column:api_tier;type:text;not null;default:free" json:"apiTier"`
	APIRateLimit int               `gorm:"column:api_rate_limit;not null;default:1000" json:"apiRateLimit"`
	Metadata     datatypes.JSONMap `gorm:"column:metadata;type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	CreatedAt    time.Time         `gorm:"not null" json:"createdAt"`
	UpdatedAt    time.Time         `gorm:"not null" json:"updatedAt"`
	DeletedAt    gorm.DeletedAt    `gorm:"index" json:"-"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }
