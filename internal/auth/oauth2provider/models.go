package oauth2provider

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

const GrantTypeClientCredentials = "client_credentials"

// Client is a registered machine caller. Tier and rate limit are copied from
// the owning user when the client is created.
type Client struct {
	ID               snowflake.ID   `gorm:"primaryKey" json:"id"`
	ClientID         string         `gorm:"column:client_id;type:varchar(255);not null;uniqueIndex" json:"clientId"`
	ClientSecretHash string         `gorm:"column:client_secret_hash;type:text;not null" json:"-"`
	Name             string         `gorm:"column:name;type:text;not null" json:"name"`
	Description      string         `gorm:"column:description;type:text" json:"description,omitempty"`
	UserID           snowflake.ID   `gorm:"column:user_id;not null;index" json:"userId"`
	Scopes           []string       `gorm:"column:scopes;type:jsonb;serializer:json" json:"scopes"`
	GrantTypes       []string       `gorm:"column:grant_types;type:jsonb;serializer:json" json:"grantTypes"`
	Tier             string         `gorm:"column:tier;type:varchar(32);not null;default:free" json:"tier"`
	RateLimit        int            `gorm:"column:rate_limit;not null;default:1000" json:"rateLimit"`
	Status           string         `gorm:"column:status;type:varchar(16);not null;default:active;index" json:"status"`
	ExpiresAt        *time.Time     `gorm:"column:expires_at" json:"expiresAt,omitempty"`
	CreatedAt        time.Time      `gorm:"column:created_at;not null" json:"createdAt"`
	UpdatedAt        time.Time      `gorm:"column:updated_at;not null" json:"updatedAt"`
	DeletedAt        gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

func (Client) TableName() string { return "oauth_clients" }

// Active reports whether the client may still obtain tokens at now.
func (c *Client) Active(now time.Time) bool {
	if c == nil || c.Status != StatusActive {
		return false
	}
	return c.ExpiresAt == nil || now.Before(*c.ExpiresAt)
}

// Token records an issued access token. Only Revoked ever changes after insert.
type Token struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	AccessToken string       `gorm:"column:access_token;type:varchar(1000);not null;uniqueIndex" json:"-"`
	ClientID    string       `gorm:"column:client_id;type:varchar(255);not null;index" json:"clientId"`
	Scopes      []string     `gorm:"column:scopes;type:jsonb;serializer:json" json:"scopes"`
	ExpiresAt   time.Time    `gorm:"column:expires_at;not null;index" json:"expiresAt"`
	Revoked     bool         `gorm:"column:revoked;not null;default:false" json:"revoked"`
	CreatedAt   time.Time    `gorm:"column:created_at;not null" json:"createdAt"`
}

func (Token) TableName() string { return "oauth_tokens" }

// Valid reports whether the token row still authorizes requests at now.
func (t *Token) Valid(now time.Time) bool {
	return t != nil && !t.Revoked && now.Before(t.ExpiresAt)
}
