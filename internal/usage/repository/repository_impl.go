package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/principal"
	usagedomain "github.com/derrickmugabwa/kenya-food-database-api/internal/usage/domain"
	"github.com/derrickmugabwa/kenya-food-database-api/pkg/db/pagination"
	"gorm.io/gorm"
)

const selectColumns = `id, principal_type, principal_id, endpoint, method, ip_address, user_agent, status_code, response_time, created_at`

// ownerFilter matches rows produced by the user's OAuth clients or API keys.
// Rows without a discriminant predate OAuth and always reference API keys.
const ownerFilter = `(
	(principal_type = ? AND principal_id IN (SELECT id FROM oauth_clients WHERE user_id = ?))
	OR ((principal_type = ? OR principal_type IS NULL OR principal_type = '') AND principal_id IN (SELECT id FROM api_keys WHERE user_id = ?))
)`

type repo struct{}

func Provide() usagedomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, log *usagedomain.UsageLog) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO usage_logs (id, principal_type, principal_id, endpoint, method, ip_address, user_agent, status_code, response_time, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID,
		log.PrincipalType,
		log.PrincipalID,
		log.Endpoint,
		log.Method,
		log.IPAddress,
		log.UserAgent,
		log.StatusCode,
		log.ResponseTimeMs,
		log.CreatedAt,
	).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, owner *snowflake.ID, page pagination.Pagination) ([]usagedomain.UsageLog, error) {
	page = page.Normalize()

	query := `SELECT ` + selectColumns + ` FROM usage_logs`
	args := []any{}
	if owner != nil {
		query += ` WHERE ` + ownerFilter
		args = append(args, ownerArgs(*owner)...)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, page.Limit+1, page.Offset())

	var rows []usagedomain.UsageLog
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID, owner *snowflake.ID) (*usagedomain.UsageLog, error) {
	query := `SELECT ` + selectColumns + ` FROM usage_logs WHERE id = ?`
	args := []any{id}
	if owner != nil {
		query += ` AND ` + ownerFilter
		args = append(args, ownerArgs(*owner)...)
	}

	var row usagedomain.UsageLog
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

func ownerArgs(owner snowflake.ID) []any {
	return []any{principal.TypeOAuthClient, owner, principal.TypeAPIKey, owner}
}
