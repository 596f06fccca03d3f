package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/smartinventory-backend/internal/artifacts"
	jobstatus "github.com/yungbote/smartinventory-backend/internal/domain/jobs"
	"github.com/yungbote/smartinventory-backend/internal/http/response"
	"github.com/yungbote/smartinventory-backend/internal/pkg/dbctx"
	"github.com/yungbote/smartinventory-backend/internal/pkg/logger"
	"github.com/yungbote/smartinventory-backend/internal/services"
)

type ModelHandler struct {
	log      *logger.Logger
	registry services.ModelRegistry
	jobs     services.JobService
	health   services.ModelHealthService
}

func NewModelHandler(log *logger.Logger, registry services.ModelRegistry, jobs services.JobService, health services.ModelHealthService) *ModelHandler {
	return &ModelHandler{
		log:      log.With("handler", "ModelHandler"),
		registry: registry,
		jobs:     jobs,
		health:   health,
	}
}

type trainReq struct {
	services.TrainRequest
	RequestedBy string `json:"requested_by,omitempty"`
}

// POST /api/models/train
//
// An empty body trains on all data with the configured defaults.
func (h *ModelHandler) Train(c *gin.Context) {
	var req trainReq
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if req.From != nil && req.To != nil && req.To.Before(*req.From) {
		response.RespondError(c, http.StatusBadRequest, "validation_error", errors.New("data_date_from is after data_date_to"))
		return
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		if err := artifacts.ValidateName(name); err != nil {
			response.RespondError(c, http.StatusBadRequest, "validation_error", err)
			return
		}
	}
	payload, err := toPayload(req.TrainRequest)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	requestedBy := strings.TrimSpace(req.RequestedBy)
	if requestedBy == "" {
		requestedBy = "api"
	}
	job, err := h.jobs.Enqueue(dbctx.Context{Ctx: c.Request.Context()}, jobstatus.TypeModelTrain, "", nil, requestedBy, payload)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondAccepted(c, gin.H{"task_id": job.ID, "status": job.Status})
}

// GET /api/models?limit=
func (h *ModelHandler) List(c *gin.Context) {
	models, err := h.registry.List(c.Request.Context(), queryLimit(c, 50))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"models": models})
}

// POST /api/models/:id/activate
func (h *ModelHandler) Activate(c *gin.Context) {
	id, ok := paramUUID(c, "id", "invalid_model_id")
	if !ok {
		return
	}
	m, err := h.registry.Activate(c.Request.Context(), id)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"model": m})
}

// POST /api/models/health
func (h *ModelHandler) Health(c *gin.Context) {
	rep, err := h.health.Check(c.Request.Context())
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, rep)
}

func toPayload(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
