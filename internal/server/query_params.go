package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

const dateOnlyLayout = "2006-01-02"

// pathID parses the :id path segment as a snowflake id; an unparsable id
// aborts the request.
func pathID(c *gin.Context, name string) (snowflake.ID, bool) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(c.Param(name)))
	if err != nil || parsed == 0 {
		AbortWithError(c, newValidationError(name, "invalid_id", "invalid id"))
		return 0, false
	}
	return parsed, true
}

func parseBoolQuery(c *gin.Context, name string) (bool, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return false, true
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		AbortWithError(c, newValidationError(name, "invalid_"+name, "invalid "+name))
		return false, false
	}
	return parsed, true
}

func parseDate(value string) (time.Time, error) {
	if parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(value)); err == nil {
		return parsed, nil
	}
	return time.Parse(dateOnlyLayout, strings.TrimSpace(value))
}
