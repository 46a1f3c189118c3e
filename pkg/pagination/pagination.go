package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"eduadvise-backend/pkg/constants"
)

// Params holds limit/offset pagination extracted from query parameters
type Params struct {
	Limit  int
	Offset int
}

// FromQuery parses limit/offset from the request query, clamping to sane bounds
func FromQuery(c *gin.Context) Params {
	limit := parseIntQuery(c, "limit", constants.DefaultPageSize)
	offset := parseIntQuery(c, "offset", 0)

	if limit <= 0 {
		limit = constants.DefaultPageSize
	}
	if limit > constants.MaxPageSize {
		limit = constants.MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	return Params{Limit: limit, Offset: offset}
}

func parseIntQuery(c *gin.Context, key string, defaultValue int) int {
	raw := c.Query(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return value
}
