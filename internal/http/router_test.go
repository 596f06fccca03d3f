package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/smartinventory-backend/internal/data/repos"
	"github.com/yungbote/smartinventory-backend/internal/data/repos/testutil"
	jobstatus "github.com/yungbote/smartinventory-backend/internal/domain/jobs"
	httpH "github.com/yungbote/smartinventory-backend/internal/http/handlers"
	"github.com/yungbote/smartinventory-backend/internal/pkg/dbctx"
	"github.com/yungbote/smartinventory-backend/internal/services"
)

type testAPI struct {
	engine *gin.Engine
	db     *gorm.DB
	rs     *repos.Set
	jobs   services.JobService
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.DB(t)
	log := testutil.Logger(t)
	rs := repos.NewSet(db, log)

	registry := services.NewModelRegistry(db, log, rs.Models, nil, nil, nil, services.ModelRegistryOptions{})
	predictor := services.NewPredictionService(db, log, registry, rs.Observations, nil, nil, services.PredictionServiceOptions{})
	jobs := services.NewJobService(db, log, rs.JobRuns, rs.BatchJobs)
	batches := services.NewBatchService(db, log, rs.BatchJobs, rs.Models, jobs)
	engine := services.NewAlertEngine(db, log, rs.Models, rs.Predictions, rs.Observations, rs.Alerts, nil, nil, services.AlertThresholds{})
	health := services.NewModelHealthService(db, log, rs.Models, rs.Predictions, jobs, services.HealthOptions{})
	importer := services.NewSalesImportService(db, log, rs, nil, t.TempDir())

	r := NewRouter(RouterConfig{
		Log:             log,
		ForecastHandler: httpH.NewForecastHandler(log, predictor, batches),
		ModelHandler:    httpH.NewModelHandler(log, registry, jobs, health),
		UploadHandler:   httpH.NewUploadHandler(log, importer, jobs, 0),
		AlertHandler:    httpH.NewAlertHandler(engine),
		JobHandler:      httpH.NewJobHandler(jobs),
		HealthHandler:   httpH.NewHealthHandler(nil),
	})
	return &testAPI{engine: r, db: db, rs: rs, jobs: jobs}
}

func (a *testAPI) do(t *testing.T, method, path string, body []byte, contentType string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	a.engine.ServeHTTP(rec, req)
	out := map[string]any{}
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestRouterErrorMapping(t *testing.T) {
	a := newTestAPI(t)

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"predict without model", http.MethodGet, "/api/forecast/predict?store_id=S1&sku_id=P1&date=2024-05-01", "", http.StatusNotFound, "not_available"},
		{"predict bad date", http.MethodGet, "/api/forecast/predict?store_id=S1&sku_id=P1&date=05/01/2024", "", http.StatusBadRequest, "invalid_date"},
		{"predict missing store", http.MethodGet, "/api/forecast/predict?sku_id=P1&date=2024-05-01", "", http.StatusBadRequest, "invalid_request"},
		{"batch without model", http.MethodPost, "/api/forecast/batch", `{"date_from":"2024-05-01","date_to":"2024-05-03"}`, http.StatusConflict, "no_active_model"},
		{"batch inverted range", http.MethodPost, "/api/forecast/batch", `{"date_from":"2024-05-03","date_to":"2024-05-01"}`, http.StatusBadRequest, "validation_error"},
		{"batch unknown", http.MethodGet, "/api/forecast/batch/6f1c1f55-3b7e-4d0a-9f38-2f1f8f0e2a11", "", http.StatusNotFound, "not_found"},
		{"job bad id", http.MethodGet, "/api/jobs/nope", "", http.StatusBadRequest, "invalid_job_id"},
		{"job unknown", http.MethodGet, "/api/jobs/6f1c1f55-3b7e-4d0a-9f38-2f1f8f0e2a11", "", http.StatusNotFound, "not_found"},
		{"ack unknown", http.MethodPost, "/api/alerts/6f1c1f55-3b7e-4d0a-9f38-2f1f8f0e2a11/acknowledge", `{"actor":"ops"}`, http.StatusNotFound, "not_found"},
		{"alerts bad flag", http.MethodGet, "/api/alerts?acknowledged=maybe", "", http.StatusBadRequest, "invalid_acknowledged"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, body := a.do(t, tc.method, tc.path, []byte(tc.body), "application/json")
			if rec.Code != tc.status || errorCode(body) != tc.code {
				t.Fatalf("got %d %q, want %d %q (body=%s)", rec.Code, errorCode(body), tc.status, tc.code, rec.Body.String())
			}
		})
	}
}

func TestRouterHealthcheckAndAlerts(t *testing.T) {
	a := newTestAPI(t)

	rec, _ := a.do(t, http.MethodGet, "/healthcheck", nil, "")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthcheck: %d %q", rec.Code, rec.Body.String())
	}
	rec, body := a.do(t, http.MethodGet, "/api/alerts?acknowledged=false", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("alerts: %d %s", rec.Code, rec.Body.String())
	}
	if alerts, _ := body["alerts"].([]any); len(alerts) != 0 {
		t.Fatalf("expected empty alert list, got %v", body["alerts"])
	}
	rec, body = a.do(t, http.MethodPost, "/api/models/health", nil, "")
	if rec.Code != http.StatusOK || body["status"] != services.HealthNoModel {
		t.Fatalf("model health: %d %v", rec.Code, body)
	}
}

func TestRouterTrainQueuesJob(t *testing.T) {
	a := newTestAPI(t)

	rec, body := a.do(t, http.MethodPost, "/api/models/train", []byte(`{"model_name":"weekly","algorithm":"ridge","requested_by":"ops"}`), "application/json")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("train: %d %s", rec.Code, rec.Body.String())
	}
	id, _ := body["task_id"].(string)
	rec, body = a.do(t, http.MethodGet, "/api/jobs/"+id, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get job: %d %s", rec.Code, rec.Body.String())
	}
	job, _ := body["job"].(map[string]any)
	if job["job_type"] != jobstatus.TypeModelTrain || job["status"] != jobstatus.StatusQueued {
		t.Fatalf("unexpected job %v", job)
	}

	rec, body = a.do(t, http.MethodPost, "/api/models/train", []byte(`{"data_date_from":"2024-05-03","data_date_to":"2024-05-01"}`), "application/json")
	if rec.Code != http.StatusBadRequest || errorCode(body) != "validation_error" {
		t.Fatalf("inverted train range: %d %s", rec.Code, rec.Body.String())
	}

	rec, body = a.do(t, http.MethodPost, "/api/models/train", []byte(`{"model_name":"../../etc/demand"}`), "application/json")
	if rec.Code != http.StatusBadRequest || errorCode(body) != "validation_error" {
		t.Fatalf("path-like model name: %d %s", rec.Code, rec.Body.String())
	}
}

func TestRouterUploadQueuesImport(t *testing.T) {
	a := newTestAPI(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "sales.csv")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	_, _ = fw.Write([]byte("date,store_id,sku_id,sales,price,on_hand,promotions_flag\n2024-05-01,S1,P1,3,2.5,10,0\n"))
	_ = mw.WriteField("created_by", "ops")
	_ = mw.Close()

	rec, body := a.do(t, http.MethodPost, "/api/uploads", buf.Bytes(), mw.FormDataContentType())
	if rec.Code != http.StatusAccepted {
		t.Fatalf("upload: %d %s", rec.Code, rec.Body.String())
	}
	uploadID, _ := body["upload_id"].(string)
	taskID, _ := body["task_id"].(string)

	rec, body = a.do(t, http.MethodGet, "/api/uploads/"+uploadID, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status: %d %s", rec.Code, rec.Body.String())
	}
	up, _ := body["upload"].(map[string]any)
	if up["task_id"] != taskID {
		t.Fatalf("upload should reference its import job, got %v want %s", up["task_id"], taskID)
	}

	run, err := a.jobs.GetByID(dbctx.Context{Ctx: context.Background()}, mustParse(t, taskID))
	if err != nil || run.JobType != jobstatus.TypeSalesImport {
		t.Fatalf("queued import: %+v err=%v", run, err)
	}
}
