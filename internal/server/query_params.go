package server

import (
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/derrickmugabwa/kenya-food-database-api/pkg/db/pagination"
	"github.com/gin-gonic/gin"
)

// pathSnowflakeID parses a snowflake path parameter. Malformed ids read as
// not found so ids cannot be enumerated.
func pathSnowflakeID(c *gin.Context, name string) (snowflake.ID, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(c.Param(name)))
	if err != nil || parsed <= 0 {
		return 0, ErrNotFound
	}
	return parsed, nil
}

func pathInt64(c *gin.Context, name string) (int64, error) {
	parsed, err := strconv.ParseInt(strings.TrimSpace(c.Param(name)), 10, 64)
	if err != nil || parsed <= 0 {
		return 0, ErrNotFound
	}
	return parsed, nil
}

// bindPagination reads page and limit. Out-of-range values are clamped
// rather than rejected.
func bindPagination(c *gin.Context) (pagination.Pagination, error) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		return pagination.Pagination{}, newValidationError("page", "invalid_pagination", "page and limit must be integers")
	}
	return page.Normalize(), nil
}

func parseOptionalBool(value string) (bool, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return false, nil
	}
	return strconv.ParseBool(trimmed)
}
