package domain

import (
	"context"
	"errors"
	"time"

	"github.com/derrickmugabwa/kenya-food-database-api/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListAuditLogRequest struct {
	pagination.Pagination
	Action     string     `form:"action"`
	TargetType string     `form:"targetType"`
	TargetID   string     `form:"targetId"`
	ActorType  string     `form:"actorType"`
	ActorID    string     `form:"actorId"`
	StartAt    *time.Time `form:"startAt" time_format:"2006-01-02T15:04:05Z07:00"`
	EndAt      *time.Time `form:"endAt" time_format:"2006-01-02T15:04:05Z07:00"`
}

type ListFilter struct {
	Action     string
	TargetType string
	TargetID   string
	ActorType  string
	ActorID    string
	StartAt    *time.Time
	EndAt      *time.Time
	Limit      int
	Offset     int
}

type Service interface {
	// AuditLog records one credential change. The actor defaults to the one
	// attached to ctx by the auth middleware.
	AuditLog(ctx context.Context, actorType string, actorID *string, action string, targetType string, targetID *string, metadata map[string]any) error
	List(ctx context.Context, req ListAuditLogRequest) (pagination.Page[AuditLog], error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	// List returns up to filter.Limit+1 rows, newest first.
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]AuditLog, error)
}

var (
	ErrInvalidTimeRange = errors.New("invalid_time_range")
	ErrInvalidAction    = errors.New("invalid_action")
)
