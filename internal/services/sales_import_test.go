package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/yungbote/smartinventory-backend/internal/data/repos"
	"github.com/yungbote/smartinventory-backend/internal/data/repos/testutil"
	"github.com/yungbote/smartinventory-backend/internal/domain/sales"
	"github.com/yungbote/smartinventory-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/smartinventory-backend/internal/pkg/errors"
)

const importCSV = `date,store_id,sku_id,sales,price,on_hand,promotions_flag
2024-01-01,S1,P1,10,2.50,40,0
2024-01-02,S1,P1,12,2.50,30,1
2024-01-03,S1,P1,-1,2.50,30,0
2024-01-04,S1,P1,5,0,30,0
bad-date,S2,P2,5,1,3,0
2024-01-05,,P1,5,1,3,0
2024-01-01,S2,P2,3,1.25,8,true
`

func TestSalesImportProcessesValidRowsAndRecordsErrors(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()
	rs := repos.NewSet(db, log)
	svc := NewSalesImportService(db, log, rs, nil, t.TempDir())

	modelID := testutil.SeedModel(t, db, "demand", 1, true).ID
	seedPrediction(t, rs, modelID, "S1", "P1", civil.Date{Year: 2024, Month: time.January, Day: 2}, 11)

	up, err := svc.CreateUpload(ctx, "sales.csv", strings.NewReader(importCSV), "analyst")
	if err != nil {
		t.Fatalf("CreateUpload: %v", err)
	}
	if up.Status != sales.UploadPending {
		t.Fatalf("expected pending upload, got %s", up.Status)
	}

	var lastDone, lastTotal int
	sum, err := svc.Process(ctx, up.ID, func(done, total int) { lastDone, lastTotal = done, total })
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if sum.Total != 7 || sum.Processed != 3 || sum.Errors != 4 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	if sum.Backfill != 1 {
		t.Fatalf("expected one prediction backfilled, got %d", sum.Backfill)
	}
	if lastDone != 7 || lastTotal != 7 {
		t.Fatalf("progress should end at 7/7, got %d/%d", lastDone, lastTotal)
	}

	st, err := svc.Status(ctx, up.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Upload.Status != sales.UploadCompleted || st.Upload.ProcessedRecords != 3 || st.Upload.ErrorRecords != 4 {
		t.Fatalf("unexpected upload row %+v", st.Upload)
	}
	if len(st.ValidationErrors) != 4 || st.HasMoreErrors {
		t.Fatalf("expected 4 validation errors without more, got %d more=%v", len(st.ValidationErrors), st.HasMoreErrors)
	}
	wantTypes := []string{errTypeOutOfRange, errTypeOutOfRange, errTypeInvalidDate, errTypeMissingValue}
	for i, ve := range st.ValidationErrors {
		if ve.RowNumber != i+3 || ve.ErrorType != wantTypes[i] {
			t.Fatalf("validation error %d: row=%d type=%s", i, ve.RowNumber, ve.ErrorType)
		}
	}

	dbc := dbctx.Context{Ctx: ctx}
	stores, err := rs.Stores.ListActive(dbc, nil)
	if err != nil || len(stores) != 2 {
		t.Fatalf("expected stores auto-created, got %d err=%v", len(stores), err)
	}
	latest, err := rs.Observations.Latest(dbc, "S1", "P1")
	if err != nil || latest == nil || latest.OnHand != 30 || !latest.PromotionFlag {
		t.Fatalf("unexpected latest observation %+v err=%v", latest, err)
	}
	pred, err := rs.Predictions.Get(dbc, modelID, "S1", "P1", civil.Date{Year: 2024, Month: time.January, Day: 2})
	if err != nil || pred == nil || pred.ActualDemand == nil || *pred.ActualDemand != 12 {
		t.Fatalf("actual demand not backfilled: %+v err=%v", pred, err)
	}

	// Reprocessing a completed upload is a no-op.
	again, err := svc.Process(ctx, up.ID, nil)
	if err != nil || again.Processed != 3 {
		t.Fatalf("Process #2: %+v err=%v", again, err)
	}
	if n, _ := rs.Observations.Count(dbc); n != 3 {
		t.Fatalf("expected 3 observations, got %d", n)
	}
}

func TestSalesImportMissingColumnFailsUpload(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()
	rs := repos.NewSet(db, log)
	svc := NewSalesImportService(db, log, rs, nil, t.TempDir())

	up, err := svc.CreateUpload(ctx, "partial.csv", strings.NewReader("date,store_id,sku_id,sales\n2024-01-01,S1,P1,3\n"), "")
	if err != nil {
		t.Fatalf("CreateUpload: %v", err)
	}
	if _, err := svc.Process(ctx, up.ID, nil); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	st, err := svc.Status(ctx, up.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Upload.Status != sales.UploadFailed || !strings.Contains(st.Upload.ErrorLog, "on_hand") {
		t.Fatalf("expected failed upload naming the missing column, got %s %q", st.Upload.Status, st.Upload.ErrorLog)
	}

	if _, err := svc.CreateUpload(ctx, "sales.xlsx", strings.NewReader(""), ""); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("non-csv upload: expected validation error, got %v", err)
	}
	if _, err := svc.Status(ctx, uuid.New()); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("unknown upload: expected ErrNotFound, got %v", err)
	}
}

func TestParseRecordBoundsPriceAndOnHand(t *testing.T) {
	header := map[string]int{}
	for i, c := range RequiredImportColumns {
		header[c] = i
	}
	row := func(price, onHand string) []string {
		return []string{"2024-01-01", "S1", "P1", "3", price, onHand, "0"}
	}

	cases := []struct {
		name, price, onHand string
		col, typ            string
	}{
		{name: "rounds to zero", price: "0.004", onHand: "1", col: "price", typ: errTypeOutOfRange},
		{name: "negative price", price: "-1", onHand: "1", col: "price", typ: errTypeOutOfRange},
		{name: "huge stock", price: "1", onHand: "1e20", col: "on_hand", typ: errTypeOutOfRange},
		{name: "just over int32", price: "1", onHand: "2147483648", col: "on_hand", typ: errTypeOutOfRange},
		{name: "fractional stock", price: "1", onHand: "2.5", col: "on_hand", typ: errTypeInvalidNum},
		{name: "nan stock", price: "1", onHand: "NaN", col: "on_hand", typ: errTypeInvalidNum},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o, verr := parseRecord(header, row(tc.price, tc.onHand))
			if o != nil || verr == nil {
				t.Fatalf("expected rejection, got %+v", o)
			}
			if verr.ColumnName != tc.col || verr.ErrorType != tc.typ {
				t.Fatalf("got %s/%s, want %s/%s", verr.ColumnName, verr.ErrorType, tc.col, tc.typ)
			}
		})
	}

	o, verr := parseRecord(header, row("0.005", "2147483647"))
	if verr != nil {
		t.Fatalf("unexpected rejection: %+v", verr)
	}
	if o.Price.String() != "0.01" || o.OnHand != maxOnHand {
		t.Fatalf("unexpected observation price=%s on_hand=%d", o.Price, o.OnHand)
	}
}
