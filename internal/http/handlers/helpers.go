package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/smartinventory-backend/internal/http/response"
)

func paramUUID(c *gin.Context, name, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, code, err)
		return uuid.Nil, false
	}
	return id, true
}

func queryLimit(c *gin.Context, def int) int {
	if v := strings.TrimSpace(c.Query("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return min(n, 1000)
		}
	}
	return def
}

func queryDate(c *gin.Context, name string) (civil.Date, bool) {
	d, err := civil.ParseDate(strings.TrimSpace(c.Query(name)))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_"+name, err)
		return civil.Date{}, false
	}
	return d, true
}
