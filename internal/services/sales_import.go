package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/yungbote/smartinventory-backend/internal/data/repos"
	types "github.com/yungbote/smartinventory-backend/internal/domain"
	"github.com/yungbote/smartinventory-backend/internal/domain/sales"
	"github.com/yungbote/smartinventory-backend/internal/observability"
	"github.com/yungbote/smartinventory-backend/internal/pkg/civildate"
	"github.com/yungbote/smartinventory-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/smartinventory-backend/internal/pkg/errors"
	"github.com/yungbote/smartinventory-backend/internal/pkg/logger"
)

var RequiredImportColumns = []string{"date", "store_id", "sku_id", "sales", "price", "on_hand", "promotions_flag"}

const (
	importChunkSize     = 1000
	statusErrorPreview  = 10
	errTypeMissingValue = "missing_value"
	errTypeInvalidDate  = "invalid_date"
	errTypeInvalidNum   = "invalid_number"
	errTypeOutOfRange   = "out_of_range"
	errTypeInvalidBool  = "invalid_bool"

	maxOnHand = math.MaxInt32
)

type ImportSummary struct {
	UploadID  uuid.UUID `json:"upload_id"`
	Total     int       `json:"total_records"`
	Processed int       `json:"processed_records"`
	Errors    int       `json:"error_records"`
	Backfill  int64     `json:"actuals_backfilled"`
}

type UploadStatus struct {
	Upload           *types.DataUpload            `json:"upload"`
	ValidationErrors []*types.DataValidationError `json:"validation_errors"`
	HasMoreErrors    bool                         `json:"has_more_errors"`
}

type SalesImportService interface {
	// CreateUpload copies r under the upload directory and records a pending upload.
	CreateUpload(ctx context.Context, filename string, r io.Reader, createdBy string) (*types.DataUpload, error)
	// Process imports a recorded upload. progress may be nil.
	Process(ctx context.Context, uploadID uuid.UUID, progress func(done, total int)) (*ImportSummary, error)
	Status(ctx context.Context, uploadID uuid.UUID) (*UploadStatus, error)
	// AttachTask links the job_run processing the upload.
	AttachTask(ctx context.Context, uploadID, taskID uuid.UUID) error
}

type salesImportService struct {
	db        *gorm.DB
	log       *logger.Logger
	stores    repos.StoreRepo
	products  repos.ProductRepo
	obs       repos.ObservationRepo
	uploads   repos.DataUploadRepo
	verrs     repos.ValidationErrorRepo
	preds     repos.PredictionRepo
	metrics   *observability.Metrics
	uploadDir string
}

func NewSalesImportService(
	db *gorm.DB,
	baseLog *logger.Logger,
	rs *repos.Set,
	metrics *observability.Metrics,
	uploadDir string,
) SalesImportService {
	if strings.TrimSpace(uploadDir) == "" {
		uploadDir = filepath.Join("data", "uploads")
	}
	return &salesImportService{
		db:        db,
		log:       baseLog.With("service", "SalesImportService"),
		stores:    rs.Stores,
		products:  rs.Products,
		obs:       rs.Observations,
		uploads:   rs.Uploads,
		verrs:     rs.ValidationErrors,
		preds:     rs.Predictions,
		metrics:   metrics,
		uploadDir: uploadDir,
	}
}

func (s *salesImportService) CreateUpload(ctx context.Context, filename string, r io.Reader, createdBy string) (*types.DataUpload, error) {
	base := filepath.Base(strings.TrimSpace(filename))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return nil, apperrors.Validation("file name is required")
	}
	if !strings.EqualFold(filepath.Ext(base), ".csv") {
		return nil, apperrors.Validation("only .csv uploads are supported, got %q", base)
	}
	id := uuid.New()
	dir := filepath.Join(s.uploadDir, id.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	path := filepath.Join(dir, base)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write upload file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close upload file: %w", err)
	}
	row := &types.DataUpload{
		ID:               id,
		OriginalFilename: base,
		FilePath:         path,
		Status:           sales.UploadPending,
		CreatedBy:        strings.TrimSpace(createdBy),
	}
	if err := s.uploads.Create(dbctx.Context{Ctx: ctx}, row); err != nil {
		return nil, fmt.Errorf("record upload: %w", err)
	}
	return row, nil
}

func (s *salesImportService) AttachTask(ctx context.Context, uploadID, taskID uuid.UUID) error {
	return s.uploads.UpdateFields(dbctx.Context{Ctx: ctx}, uploadID, map[string]interface{}{"task_id": taskID})
}

func (s *salesImportService) Status(ctx context.Context, uploadID uuid.UUID) (*UploadStatus, error) {
	dbc := dbctx.Context{Ctx: ctx}
	up, err := s.uploads.GetByID(dbc, uploadID)
	if err != nil {
		return nil, err
	}
	if up == nil {
		return nil, fmt.Errorf("upload %s: %w", uploadID, apperrors.ErrNotFound)
	}
	errs, err := s.verrs.ListByUpload(dbc, uploadID, statusErrorPreview)
	if err != nil {
		return nil, err
	}
	n, err := s.verrs.CountByUpload(dbc, uploadID)
	if err != nil {
		return nil, err
	}
	return &UploadStatus{Upload: up, ValidationErrors: errs, HasMoreErrors: n > int64(len(errs))}, nil
}

func (s *salesImportService) Process(ctx context.Context, uploadID uuid.UUID, progress func(done, total int)) (*ImportSummary, error) {
	dbc := dbctx.Context{Ctx: ctx}
	up, err := s.uploads.GetByID(dbc, uploadID)
	if err != nil {
		return nil, err
	}
	if up == nil {
		return nil, fmt.Errorf("upload %s: %w", uploadID, apperrors.ErrNotFound)
	}
	if up.Status == sales.UploadCompleted {
		return &ImportSummary{UploadID: up.ID, Total: up.TotalRecords, Processed: up.ProcessedRecords, Errors: up.ErrorRecords}, nil
	}
	fail := func(err error) (*ImportSummary, error) {
		if uErr := s.uploads.UpdateFields(dbc, up.ID, map[string]interface{}{
			"status":    sales.UploadFailed,
			"error_log": err.Error(),
		}); uErr != nil {
			s.log.Error("Upload status update failed", "upload_id", up.ID, "error", uErr)
		}
		return nil, err
	}

	f, err := os.Open(up.FilePath)
	if err != nil {
		return fail(fmt.Errorf("open upload file: %w", err))
	}
	defer f.Close()
	records, header, err := readCSV(f)
	if err != nil {
		return fail(err)
	}
	// A retried job restarts the file; reset counters so they add up again.
	if err := s.verrs.DeleteByUpload(dbc, up.ID); err != nil {
		return nil, err
	}
	if err := s.uploads.UpdateFields(dbc, up.ID, map[string]interface{}{
		"status":            sales.UploadProcessing,
		"total_records":     len(records),
		"processed_records": 0,
		"error_records":     0,
		"error_log":         "",
	}); err != nil {
		return nil, err
	}

	sum := &ImportSummary{UploadID: up.ID, Total: len(records)}
	var minDate, maxDate *civil.Date
	for start := 0; start < len(records); start += importChunkSize {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		end := min(start+importChunkSize, len(records))
		rows, verrs := parseChunk(up.ID, header, records[start:end], start)
		for _, o := range rows {
			d := o.Day()
			if minDate == nil || d.Before(*minDate) {
				minDate = &d
			}
			if maxDate == nil || d.After(*maxDate) {
				maxDate = &d
			}
		}
		if err := s.writeChunk(ctx, rows, verrs); err != nil {
			return fail(fmt.Errorf("rows %d-%d: %w", start+1, end, err))
		}
		if err := s.uploads.AddCounts(dbc, up.ID, len(rows), len(verrs)); err != nil {
			return fail(err)
		}
		sum.Processed += len(rows)
		sum.Errors += len(verrs)
		s.metrics.AddImportRows("ok", len(rows))
		s.metrics.AddImportRows("invalid", len(verrs))
		if progress != nil {
			progress(end, len(records))
		}
	}

	if minDate != nil && maxDate != nil {
		n, err := s.preds.BackfillActuals(dbc, *minDate, *maxDate)
		if err != nil {
			s.log.Warn("Actual demand backfill failed", "upload_id", up.ID, "error", err)
		}
		sum.Backfill = n
	}
	if err := s.uploads.UpdateFields(dbc, up.ID, map[string]interface{}{"status": sales.UploadCompleted}); err != nil {
		return nil, err
	}
	s.log.Info("Upload processed", "upload_id", up.ID, "total", sum.Total, "processed", sum.Processed, "errors", sum.Errors)
	return sum, nil
}

func (s *salesImportService) writeChunk(ctx context.Context, rows []*types.Observation, verrs []*types.DataValidationError) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		storeCodes := make([]string, 0, len(rows))
		skus := make([]string, 0, len(rows))
		for _, o := range rows {
			storeCodes = append(storeCodes, o.StoreID)
			skus = append(skus, o.SKU)
		}
		if _, err := s.stores.EnsureCodes(dbc, storeCodes); err != nil {
			return fmt.Errorf("ensure stores: %w", err)
		}
		if _, err := s.products.EnsureCodes(dbc, skus); err != nil {
			return fmt.Errorf("ensure products: %w", err)
		}
		if _, err := s.obs.Upsert(dbc, rows); err != nil {
			return fmt.Errorf("upsert observations: %w", err)
		}
		return s.verrs.Create(dbc, verrs)
	})
}

// readCSV returns the data records and a column-name -> index map. A header
// missing any required column is an error.
func readCSV(r io.Reader) ([][]string, map[string]int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	head, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, apperrors.Validation("file is empty")
		}
		return nil, nil, apperrors.Validation("read header: %v", err)
	}
	header := make(map[string]int, len(head))
	for i, h := range head {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		header[h] = i
	}
	var missing []string
	for _, c := range RequiredImportColumns {
		if _, ok := header[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, nil, apperrors.Validation("missing required columns: %s", strings.Join(missing, ", "))
	}
	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, apperrors.Validation("malformed csv: %v", err)
	}
	return records, header, nil
}

// parseChunk converts records into observations. offset is the index of the
// first record within the file; row numbers are 1-based over data rows.
func parseChunk(uploadID uuid.UUID, header map[string]int, records [][]string, offset int) ([]*types.Observation, []*types.DataValidationError) {
	rows := make([]*types.Observation, 0, len(records))
	var verrs []*types.DataValidationError
	for i, rec := range records {
		rowNum := offset + i + 1
		o, verr := parseRecord(header, rec)
		if verr != nil {
			verr.UploadID = uploadID
			verr.RowNumber = rowNum
			verr.RawValue = strings.Join(rec, ",")
			verrs = append(verrs, verr)
			continue
		}
		o.UploadID = &uploadID
		rows = append(rows, o)
	}
	return rows, verrs
}

func parseRecord(header map[string]int, rec []string) (*types.Observation, *types.DataValidationError) {
	field := func(name string) string {
		i := header[name]
		if i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
	bad := func(col, typ, format string, args ...any) *types.DataValidationError {
		return &types.DataValidationError{ColumnName: col, ErrorType: typ, ErrorMessage: fmt.Sprintf(format, args...)}
	}
	for _, c := range []string{"date", "store_id", "sku_id", "price"} {
		if field(c) == "" {
			return nil, bad(c, errTypeMissingValue, "%s is required", c)
		}
	}

	day, err := parseImportDate(field("date"))
	if err != nil {
		return nil, bad("date", errTypeInvalidDate, "%v", err)
	}
	salesVal := decimal.Zero
	if raw := field("sales"); raw != "" {
		if salesVal, err = decimal.NewFromString(raw); err != nil {
			return nil, bad("sales", errTypeInvalidNum, "sales %q is not a number", raw)
		}
		if salesVal.IsNegative() {
			return nil, bad("sales", errTypeOutOfRange, "sales must be >= 0, got %s", raw)
		}
	}
	price, err := decimal.NewFromString(field("price"))
	if err != nil {
		return nil, bad("price", errTypeInvalidNum, "price %q is not a number", field("price"))
	}
	// Stored with two decimals, so a price that rounds to zero is not positive.
	price = price.Round(2)
	if !price.IsPositive() {
		return nil, bad("price", errTypeOutOfRange, "price must be >= 0.01, got %s", field("price"))
	}
	onHand := 0
	if raw := field("on_hand"); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
			return nil, bad("on_hand", errTypeInvalidNum, "on_hand %q is not an integer", raw)
		}
		if f < 0 || f > maxOnHand {
			return nil, bad("on_hand", errTypeOutOfRange, "on_hand must be between 0 and %d, got %s", maxOnHand, raw)
		}
		onHand = int(f)
	}
	promo, ok := parseImportBool(field("promotions_flag"))
	if !ok {
		return nil, bad("promotions_flag", errTypeInvalidBool, "promotions_flag %q is not a boolean", field("promotions_flag"))
	}
	return &types.Observation{
		StoreID:       field("store_id"),
		SKU:           field("sku_id"),
		Date:          civildate.ToTime(day),
		Sales:         salesVal.Round(2),
		Price:         price,
		OnHand:        onHand,
		PromotionFlag: promo,
	}, nil
}

func parseImportDate(raw string) (civil.Date, error) {
	if d, err := civildate.Parse(raw); err == nil {
		return d, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006/01/02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return civil.DateOf(t), nil
		}
	}
	return civil.Date{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", raw)
}

func parseImportBool(raw string) (bool, bool) {
	switch strings.ToLower(raw) {
	case "", "0", "false", "f", "no", "n", "0.0":
		return false, true
	case "1", "true", "t", "yes", "y", "1.0":
		return true, true
	}
	return false, false
}
