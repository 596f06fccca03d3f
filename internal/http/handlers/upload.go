package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	jobstatus "github.com/yungbote/smartinventory-backend/internal/domain/jobs"
	"github.com/yungbote/smartinventory-backend/internal/http/response"
	"github.com/yungbote/smartinventory-backend/internal/pkg/dbctx"
	"github.com/yungbote/smartinventory-backend/internal/pkg/logger"
	"github.com/yungbote/smartinventory-backend/internal/services"
)

type UploadHandler struct {
	log      *logger.Logger
	importer services.SalesImportService
	jobs     services.JobService
	maxBytes int64
}

func NewUploadHandler(log *logger.Logger, importer services.SalesImportService, jobs services.JobService, maxBytes int64) *UploadHandler {
	if maxBytes <= 0 {
		maxBytes = 100 << 20
	}
	return &UploadHandler{
		log:      log.With("handler", "UploadHandler"),
		importer: importer,
		jobs:     jobs,
		maxBytes: maxBytes,
	}
}

// POST /api/uploads (multipart: file, created_by)
func (h *UploadHandler) Create(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)
	fh, err := c.FormFile("file")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_file", err)
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_file", err)
		return
	}
	defer f.Close()

	ctx := c.Request.Context()
	createdBy := strings.TrimSpace(c.PostForm("created_by"))
	up, err := h.importer.CreateUpload(ctx, fh.Filename, f, createdBy)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	uploadID := up.ID
	job, err := h.jobs.Enqueue(dbctx.Context{Ctx: ctx}, jobstatus.TypeSalesImport, services.EntityDataUpload, &uploadID, createdBy, map[string]any{
		"upload_id": uploadID.String(),
	})
	if err != nil {
		response.RespondErr(c, fmt.Errorf("queue import: %w", err))
		return
	}
	if err := h.importer.AttachTask(ctx, uploadID, job.ID); err != nil {
		h.log.Warn("Attach import task failed", "upload_id", uploadID, "job_id", job.ID, "error", err)
	}
	response.RespondAccepted(c, gin.H{"upload_id": uploadID, "task_id": job.ID})
}

// GET /api/uploads/:id
func (h *UploadHandler) Get(c *gin.Context) {
	id, ok := paramUUID(c, "id", "invalid_upload_id")
	if !ok {
		return
	}
	st, err := h.importer.Status(c.Request.Context(), id)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, st)
}
