package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/principal"
	"github.com/derrickmugabwa/kenya-food-database-api/pkg/db/pagination"
	"gorm.io/gorm"
)

// Event describes a completed authenticated request handed to the tracker.
type Event struct {
	Principal    principal.Principal
	Endpoint     string
	Method       string
	IPAddress    string
	UserAgent    string
	StatusCode   int
	ResponseTime time.Duration
}

type Response struct {
	UsageLog
	PrincipalType principal.Type `json:"principalType"`
}

type Service interface {
	List(ctx context.Context, caller principal.Session, page pagination.Pagination) (pagination.Page[Response], error)
	Get(ctx context.Context, caller principal.Session, id snowflake.ID) (*Response, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, log *UsageLog) error
	// List returns up to page.Limit+1 rows. A non-nil owner restricts rows to
	// credentials belonging to that user.
	List(ctx context.Context, db *gorm.DB, owner *snowflake.ID, page pagination.Pagination) ([]UsageLog, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID, owner *snowflake.ID) (*UsageLog, error)
}

var ErrNotFound = errors.New("not_found")
