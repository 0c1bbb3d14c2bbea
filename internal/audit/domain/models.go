package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ActorType string

const (
	ActorTypeSession ActorType = "session"
	ActorTypeUser    ActorType = "user"
	ActorTypeSystem  ActorType = "system"
)

// Credential lifecycle actions.
const (
	ActionUserRegistered      = "user.registered"
	ActionUserAPIAccessUpdate = "user.api_access_updated"
	ActionAPIKeyCreated       = "api_key.created"
	ActionAPIKeyUpdated       = "api_key.updated"
	ActionAPIKeyRotated       = "api_key.rotated"
	ActionAPIKeyRevoked       = "api_key.revoked"
	ActionOAuthClientCreated  = "oauth_client.created"
	ActionOAuthClientUpdated  = "oauth_client.updated"
	ActionOAuthClientDeleted  = "oauth_client.deleted"
	ActionOAuthTokenRevoked   = "oauth_token.revoked"
)

const (
	TargetUser        = "user"
	TargetAPIKey      = "api_key"
	TargetOAuthClient = "oauth_client"
	TargetOAuthToken  = "oauth_token"
)

type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	ActorType  string            `gorm:"column:actor_type;type:varchar(16);not null" json:"actorType"`
	ActorID    *string           `gorm:"column:actor_id;type:varchar(64)" json:"actorId,omitempty"`
	Action     string            `gorm:"column:action;type:varchar(64);not null;index" json:"action"`
	TargetType string            `gorm:"column:target_type;type:varchar(32);not null" json:"targetType"`
	TargetID   *string           `gorm:"column:target_id;type:varchar(64)" json:"targetId,omitempty"`
	Metadata   datatypes.JSONMap `gorm:"column:metadata" json:"metadata,omitempty"`
	IPAddress  *string           `gorm:"column:ip_address;type:varchar(45)" json:"ipAddress,omitempty"`
	UserAgent  *string           `gorm:"column:user_agent;type:varchar(500)" json:"userAgent,omitempty"`
	CreatedAt  time.Time         `gorm:"column:created_at;not null;index" json:"createdAt"`
}

// TableName sets the database table name.
func (AuditLog) TableName() string { return "audit_logs" }
