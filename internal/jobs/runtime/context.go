package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/smartinventory-backend/internal/data/repos"
	types "github.com/yungbote/smartinventory-backend/internal/domain"
	jobstatus "github.com/yungbote/smartinventory-backend/internal/domain/jobs"
	"github.com/yungbote/smartinventory-backend/internal/pkg/ctxutil"
	"github.com/yungbote/smartinventory-backend/internal/pkg/dbctx"
	"github.com/yungbote/smartinventory-backend/internal/pkg/logger"
)

/*
Context is the execution handle for one claimed job run.
Pipelines never touch job_run directly; progress, heartbeat and the terminal
transitions all go through this object so a canceled run is never overwritten.
*/
type Context struct {
	Ctx     context.Context
	DB      *gorm.DB
	Job     *types.JobRun
	Repo    repos.JobRunRepo
	Log     *logger.Logger
	payload map[string]any
}

// NewContext decodes the payload eagerly. A malformed payload decodes to an
// empty map; handlers validate their required fields.
func NewContext(ctx context.Context, db *gorm.DB, job *types.JobRun, repo repos.JobRunRepo, baseLog *logger.Logger) *Context {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	c := &Context{
		Ctx:  ctxutil.Default(ctx),
		DB:   db,
		Job:  job,
		Repo: repo,
	}
	_ = c.decodePayload()
	c.applyTraceData()
	if job != nil {
		baseLog = baseLog.With("job_id", job.ID, "job_type", job.JobType)
	}
	if rid := ctxutil.RequestID(c.Ctx); rid != "" {
		baseLog = baseLog.With("request_id", rid)
	}
	c.Log = baseLog
	return c
}

func (c *Context) decodePayload() error {
	if c.Job == nil {
		return nil
	}
	if len(c.Job.Payload) == 0 {
		c.payload = map[string]any{}
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(c.Job.Payload, &m); err != nil || m == nil {
		c.payload = map[string]any{}
		return err
	}
	c.payload = m
	return nil
}

func (c *Context) applyTraceData() {
	traceID := c.PayloadString("trace_id")
	reqID := c.PayloadString("request_id")
	if traceID == "" && reqID == "" {
		return
	}
	c.Ctx = ctxutil.WithTraceData(c.Ctx, &ctxutil.TraceData{TraceID: traceID, RequestID: reqID})
}

// Payload never returns nil.
func (c *Context) Payload() map[string]any {
	if c.payload == nil {
		c.payload = map[string]any{}
	}
	return c.payload
}

func (c *Context) PayloadUUID(key string) (uuid.UUID, bool) {
	v, ok := c.Payload()[key]
	if !ok || v == nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(fmt.Sprint(v))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

func (c *Context) PayloadString(key string) string {
	v, ok := c.Payload()[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// DecodePayload re-reads the raw payload into a typed struct.
func (c *Context) DecodePayload(out any) error {
	if c.Job == nil || len(c.Job.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(c.Job.Payload, out)
}

func (c *Context) dbc() dbctx.Context {
	return dbctx.Context{Ctx: c.Ctx}
}

func (c *Context) jobID() uuid.UUID {
	if c == nil || c.Job == nil {
		return uuid.Nil
	}
	return c.Job.ID
}

// Update writes raw fields unless the run was canceled.
func (c *Context) Update(updates map[string]any) error {
	if c.jobID() == uuid.Nil || c.Repo == nil {
		return nil
	}
	_, err := c.Repo.UpdateFieldsUnlessStatus(c.dbc(), c.Job.ID, []string{jobstatus.StatusCanceled}, updates)
	return err
}

// Heartbeat keeps a long chunk loop from being reclaimed as stale.
func (c *Context) Heartbeat() {
	if c.jobID() == uuid.Nil || c.Repo == nil {
		return
	}
	if err := c.Repo.Heartbeat(c.dbc(), c.Job.ID); err != nil {
		c.Log.Warn("Heartbeat failed", "error", err)
	}
}

// Canceled reports whether the job_run row was canceled out from under the handler.
func (c *Context) Canceled() bool {
	if c.jobID() == uuid.Nil || c.Repo == nil {
		return false
	}
	row, err := c.Repo.GetByID(c.dbc(), c.Job.ID)
	if err != nil || row == nil {
		return false
	}
	return row.Status == jobstatus.StatusCanceled
}

// Progress persists a non-terminal update and refreshes the heartbeat.
func (c *Context) Progress(stage string, pct int, msg string) {
	if c == nil {
		return
	}
	now := time.Now().UTC()
	if c.Repo != nil && c.jobID() != uuid.Nil {
		ok, err := c.Repo.UpdateFieldsUnlessStatus(c.dbc(), c.Job.ID, []string{jobstatus.StatusCanceled}, map[string]interface{}{
			"stage":        stage,
			"progress":     pct,
			"message":      msg,
			"heartbeat_at": now,
			"updated_at":   now,
		})
		if err != nil {
			c.Log.Warn("Progress update failed", "stage", stage, "error", err)
			return
		}
		if !ok {
			return
		}
	}
	if c.Job != nil {
		c.Job.Stage = stage
		c.Job.Progress = pct
		c.Job.Message = msg
		c.Job.HeartbeatAt = &now
		c.Job.UpdatedAt = now
	}
}

// Fail is terminal. Failed runs are never reclaimed by the worker.
func (c *Context) Fail(stage string, err error) {
	if c == nil {
		return
	}
	now := time.Now().UTC()
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	if c.Repo != nil && c.jobID() != uuid.Nil {
		ok, uErr := c.Repo.UpdateFieldsUnlessStatus(c.dbc(), c.Job.ID, []string{jobstatus.StatusCanceled}, map[string]interface{}{
			"status":        jobstatus.StatusFailed,
			"stage":         stage,
			"message":       "",
			"error":         msg,
			"last_error_at": now,
			"locked_at":     nil,
			"updated_at":    now,
		})
		if uErr != nil {
			c.Log.Error("Fail update failed", "stage", stage, "error", uErr)
			return
		}
		if !ok {
			return
		}
	}
	c.Log.Warn("Job failed", "stage", stage, "error", msg)
	if c.Job != nil {
		c.Job.Status = jobstatus.StatusFailed
		c.Job.Stage = stage
		c.Job.Message = ""
		c.Job.Error = msg
		c.Job.LastErrorAt = &now
		c.Job.LockedAt = nil
		c.Job.UpdatedAt = now
	}
}

// Succeed stores result as JSON and marks the run succeeded at 100%.
func (c *Context) Succeed(finalStage string, result any) {
	if c == nil {
		return
	}
	now := time.Now().UTC()
	res := datatypes.JSON([]byte(`{}`))
	if result != nil {
		if b, err := json.Marshal(result); err == nil {
			res = datatypes.JSON(b)
		}
	}
	if c.Repo != nil && c.jobID() != uuid.Nil {
		ok, err := c.Repo.UpdateFieldsUnlessStatus(c.dbc(), c.Job.ID, []string{jobstatus.StatusCanceled}, map[string]interface{}{
			"status":       jobstatus.StatusSucceeded,
			"stage":        finalStage,
			"progress":     100,
			"message":      "",
			"error":        "",
			"result":       res,
			"locked_at":    nil,
			"heartbeat_at": now,
			"updated_at":   now,
		})
		if err != nil {
			c.Log.Error("Succeed update failed", "error", err)
			return
		}
		if !ok {
			return
		}
	}
	if c.Job != nil {
		c.Job.Status = jobstatus.StatusSucceeded
		c.Job.Stage = finalStage
		c.Job.Progress = 100
		c.Job.Message = ""
		c.Job.Error = ""
		c.Job.Result = res
		c.Job.LockedAt = nil
		c.Job.HeartbeatAt = &now
		c.Job.UpdatedAt = now
	}
}
