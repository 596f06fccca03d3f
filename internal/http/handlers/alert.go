package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/smartinventory-backend/internal/data/repos"
	"github.com/yungbote/smartinventory-backend/internal/http/response"
	"github.com/yungbote/smartinventory-backend/internal/services"
)

type AlertHandler struct {
	engine services.AlertEngine
}

func NewAlertHandler(engine services.AlertEngine) *AlertHandler {
	return &AlertHandler{engine: engine}
}

// GET /api/alerts?store_id=&sku_id=&alert_type=&acknowledged=&limit=
func (h *AlertHandler) List(c *gin.Context) {
	f := repos.AlertFilter{
		StoreID:   strings.TrimSpace(c.Query("store_id")),
		SKU:       strings.TrimSpace(c.Query("sku_id")),
		AlertType: strings.TrimSpace(c.Query("alert_type")),
		Limit:     queryLimit(c, 100),
	}
	if v := strings.TrimSpace(c.Query("acknowledged")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_acknowledged", err)
			return
		}
		f.Acknowledged = &b
	}
	alerts, err := h.engine.List(c.Request.Context(), f)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"alerts": alerts})
}

type ackReq struct {
	Actor string `json:"actor"`
}

// POST /api/alerts/:id/acknowledge
func (h *AlertHandler) Acknowledge(c *gin.Context) {
	id, ok := paramUUID(c, "id", "invalid_alert_id")
	if !ok {
		return
	}
	var req ackReq
	_ = c.ShouldBindJSON(&req)
	res, err := h.engine.Acknowledge(c.Request.Context(), id, strings.TrimSpace(req.Actor))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, res)
}
