package sales

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/yungbote/smartinventory-backend/internal/data/repos/testutil"
	types "github.com/yungbote/smartinventory-backend/internal/domain"
	"github.com/yungbote/smartinventory-backend/internal/pkg/civildate"
	"github.com/yungbote/smartinventory-backend/internal/pkg/dbctx"
)

func obs(store, sku string, day civil.Date, sales float64, onHand int) *types.Observation {
	return &types.Observation{
		StoreID: store,
		SKU:     sku,
		Date:    civildate.ToTime(day),
		Sales:   decimal.NewFromFloat(sales),
		Price:   decimal.NewFromFloat(1.5),
		OnHand:  onHand,
	}
}

func TestObservationUpsert(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewObservationRepo(db, testutil.Logger(t))

	d1 := civil.Date{Year: 2024, Month: time.May, Day: 1}
	d2 := d1.AddDays(1)

	n, err := repo.Upsert(dbc, []*types.Observation{
		obs("S1", "P1", d1, 5, 20),
		obs("S1", "P1", d2, 6, 19),
		obs("S1", "P1", d2, 7, 18), // same key in one batch: last wins
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if n != 2 {
		t.Fatalf("Upsert: expected 2 rows after dedupe, got %d", n)
	}

	if _, err := repo.Upsert(dbc, []*types.Observation{obs("S1", "P1", d1, 9, 11)}); err != nil {
		t.Fatalf("Upsert overwrite: %v", err)
	}

	if cnt, _ := repo.Count(dbc); cnt != 2 {
		t.Fatalf("Count: expected 2, got %d", cnt)
	}

	window, err := repo.ListWindow(dbc, "S1", "P1", d1, d2)
	if err != nil {
		t.Fatalf("ListWindow: %v", err)
	}
	if len(window) != 2 {
		t.Fatalf("ListWindow: expected 2, got %d", len(window))
	}
	if window[0].SalesFloat() != 9 || window[0].OnHand != 11 {
		t.Fatalf("overwrite not applied: sales=%v on_hand=%d", window[0].SalesFloat(), window[0].OnHand)
	}
	if window[1].SalesFloat() != 7 {
		t.Fatalf("in-batch duplicate: expected last value 7, got %v", window[1].SalesFloat())
	}

	latest, err := repo.Latest(dbc, "S1", "P1")
	if err != nil || latest == nil || latest.Day() != d2 {
		t.Fatalf("Latest: got %v err=%v", latest, err)
	}
	if missing, _ := repo.Latest(dbc, "S9", "P1"); missing != nil {
		t.Fatalf("Latest unknown series: expected nil")
	}

	from := d2
	rows, err := repo.ListRange(dbc, &from, nil)
	if err != nil || len(rows) != 1 {
		t.Fatalf("ListRange: len=%d err=%v", len(rows), err)
	}
}

func TestUploadCountsAndValidationErrors(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	uploads := NewDataUploadRepo(db, testutil.Logger(t))
	verrs := NewValidationErrorRepo(db, testutil.Logger(t))

	up := &types.DataUpload{OriginalFilename: "sales.csv", FilePath: "/tmp/sales.csv", Status: "pending"}
	if err := uploads.Create(dbc, up); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := uploads.AddCounts(dbc, up.ID, 1000, 3); err != nil {
		t.Fatalf("AddCounts: %v", err)
	}
	if err := uploads.AddCounts(dbc, up.ID, 20, 1); err != nil {
		t.Fatalf("AddCounts: %v", err)
	}
	got, err := uploads.GetByID(dbc, up.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.ProcessedRecords != 1020 || got.ErrorRecords != 4 {
		t.Fatalf("counts: processed=%d errors=%d", got.ProcessedRecords, got.ErrorRecords)
	}

	var rows []*types.DataValidationError
	for i := 15; i >= 1; i-- {
		rows = append(rows, &types.DataValidationError{
			UploadID:     up.ID,
			RowNumber:    i,
			ColumnName:   "sales",
			ErrorType:    "invalid_number",
			ErrorMessage: "not a number",
		})
	}
	if err := verrs.Create(dbc, rows); err != nil {
		t.Fatalf("Create validation errors: %v", err)
	}
	if n, _ := verrs.CountByUpload(dbc, up.ID); n != 15 {
		t.Fatalf("CountByUpload: expected 15, got %d", n)
	}
	first, err := verrs.ListByUpload(dbc, up.ID, 0)
	if err != nil {
		t.Fatalf("ListByUpload: %v", err)
	}
	if len(first) != 10 || first[0].RowNumber != 1 {
		t.Fatalf("ListByUpload: expected first 10 ordered by row, got len=%d", len(first))
	}
}
