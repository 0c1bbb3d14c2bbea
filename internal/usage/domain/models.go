// Package domain contains the append-only request usage log.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/principal"
)

// UsageLog records one authenticated request. Rows are never updated.
type UsageLog struct {
	ID             snowflake.ID  `gorm:"primaryKey" json:"id"`
	PrincipalType  string        `gorm:"column:principal_type;type:varchar(16);index:ix_usage_logs_principal,priority:1" json:"principalType"`
	PrincipalID    *snowflake.ID `gorm:"column:principal_id;index:ix_usage_logs_principal,priority:2" json:"principalId,omitempty"`
	Endpoint       string        `gorm:"column:endpoint;type:varchar(500);not null" json:"endpoint"`
	Method         string        `gorm:"column:method;type:varchar(10);not null" json:"method"`
	IPAddress      *string       `gorm:"column:ip_address;type:varchar(45)" json:"ipAddress"`
	UserAgent      *string       `gorm:"column:user_agent;type:varchar(500)" json:"userAgent"`
	StatusCode     int           `gorm:"column:status_code;not null" json:"statusCode"`
	ResponseTimeMs *int          `gorm:"column:response_time;" json:"responseTime"`
	CreatedAt      time.Time     `gorm:"column:created_at;not null;index:ix_usage_logs_principal,priority:3" json:"createdAt"`
}

// TableName sets the database table name.
func (UsageLog) TableName() string { return "usage_logs" }

// Kind returns the principal discriminant. Rows written before the column
// existed only ever referenced API keys.
func (u UsageLog) Kind() principal.Type {
	if u.PrincipalType == "" {
		return principal.TypeAPIKey
	}
	return principal.Type(u.PrincipalType)
}
