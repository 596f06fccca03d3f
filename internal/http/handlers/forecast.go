package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/smartinventory-backend/internal/http/response"
	"github.com/yungbote/smartinventory-backend/internal/pkg/logger"
	"github.com/yungbote/smartinventory-backend/internal/services"
)

type ForecastHandler struct {
	log       *logger.Logger
	predictor services.PredictionService
	batches   services.BatchService
}

func NewForecastHandler(log *logger.Logger, predictor services.PredictionService, batches services.BatchService) *ForecastHandler {
	return &ForecastHandler{
		log:       log.With("handler", "ForecastHandler"),
		predictor: predictor,
		batches:   batches,
	}
}

// GET /api/forecast/predict?store_id=&sku_id=&date=YYYY-MM-DD
func (h *ForecastHandler) Predict(c *gin.Context) {
	storeID := strings.TrimSpace(c.Query("store_id"))
	sku := strings.TrimSpace(c.Query("sku_id"))
	if storeID == "" || sku == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", errMissing("store_id and sku_id"))
		return
	}
	date, ok := queryDate(c, "date")
	if !ok {
		return
	}
	res, err := h.predictor.PredictSingle(c.Request.Context(), storeID, sku, date)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	if res == nil {
		response.RespondError(c, http.StatusNotFound, "not_available", errNotAvailable(storeID, sku))
		return
	}
	response.RespondOK(c, res)
}

// POST /api/forecast/batch
func (h *ForecastHandler) SubmitBatch(c *gin.Context) {
	var req services.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	job, err := h.batches.Submit(c.Request.Context(), req)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondAccepted(c, gin.H{"job_id": job.ID, "task_id": job.TaskID, "status": job.Status})
}

// GET /api/forecast/batch?limit=
func (h *ForecastHandler) ListBatches(c *gin.Context) {
	jobs, err := h.batches.List(c.Request.Context(), queryLimit(c, 50))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"batch_jobs": jobs})
}

// GET /api/forecast/batch/:id
func (h *ForecastHandler) GetBatch(c *gin.Context) {
	id, ok := paramUUID(c, "id", "invalid_batch_id")
	if !ok {
		return
	}
	job, err := h.batches.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"batch_job": job, "percentage": job.Percentage()})
}

// POST /api/forecast/batch/:id/cancel
func (h *ForecastHandler) CancelBatch(c *gin.Context) {
	id, ok := paramUUID(c, "id", "invalid_batch_id")
	if !ok {
		return
	}
	job, err := h.batches.Cancel(c.Request.Context(), id)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	h.log.Info("Batch cancel requested", "batch_job_id", id, "status", job.Status)
	response.RespondOK(c, gin.H{"batch_job": job, "percentage": job.Percentage()})
}
