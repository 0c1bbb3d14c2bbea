package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

const (
	StatusActive  = "active"
	StatusRevoked = "revoked"
	StatusExpired = "expired"
)

const (
	TierFree    = "free"
	TierPremium = "premium"
)

// APIKey stores a hashed API credential owned by a user. The plaintext is
// never persisted.
type APIKey struct {
	ID             snowflake.ID   `gorm:"primaryKey"`
	UserID         snowflake.ID   `gorm:"column:user_id;not null;index"`
	Name           string         `gorm:"column:name;type:varchar(100);not null"`
	KeyHash        string         `gorm:"column:key_hash;type:text;not null;uniqueIndex"`
	KeyFingerprint *string        `gorm:"column:key_fingerprint;type:varchar(64);uniqueIndex"`
	KeyPrefix      string         `gorm:"column:key_prefix;type:varchar(32);not null"`
	Description    string         `gorm:"column:description;type:text"`
	Status         string         `gorm:"column:status;type:varchar(16);not null;default:active;index"`
	Tier           string         `gorm:"column:tier;type:varchar(16);not null;default:free"`
	RateLimit      int            `gorm:"column:rate_limit;not null;default:1000"`
	ExpiresAt      *time.Time     `gorm:"column:expires_at"`
	LastUsedAt     *time.Time     `gorm:"column:last_used_at"`
	CreatedAt      time.Time      `gorm:"column:created_at;not null"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;not null"`
	DeletedAt      gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

// TableName sets the database table name.
func (APIKey) TableName() string { return "api_keys" }

// Usable reports whether the key authenticates requests at now.
func (k *APIKey) Usable(now time.Time) bool {
	if k == nil || k.Status != StatusActive {
		return false
	}
	return k.ExpiresAt == nil || now.Before(*k.ExpiresAt)
}

func ValidTier(tier string) bool {
	return tier == TierFree || tier == TierPremium
}
