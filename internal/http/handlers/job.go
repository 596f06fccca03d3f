package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/smartinventory-backend/internal/http/response"
	"github.com/yungbote/smartinventory-backend/internal/pkg/dbctx"
	"github.com/yungbote/smartinventory-backend/internal/services"
)

type JobHandler struct {
	jobs services.JobService
}

func NewJobHandler(jobs services.JobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// GET /api/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, ok := paramUUID(c, "id", "invalid_job_id")
	if !ok {
		return
	}
	job, err := h.jobs.GetByID(dbctx.Context{Ctx: c.Request.Context()}, jobID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

// POST /api/jobs/:id/cancel
func (h *JobHandler) CancelJob(c *gin.Context) {
	jobID, ok := paramUUID(c, "id", "invalid_job_id")
	if !ok {
		return
	}
	job, err := h.jobs.Cancel(dbctx.Context{Ctx: c.Request.Context()}, jobID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

// POST /api/jobs/:id/restart
func (h *JobHandler) RestartJob(c *gin.Context) {
	jobID, ok := paramUUID(c, "id", "invalid_job_id")
	if !ok {
		return
	}
	job, err := h.jobs.Restart(dbctx.Context{Ctx: c.Request.Context()}, jobID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}
