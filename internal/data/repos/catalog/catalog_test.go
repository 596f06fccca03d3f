package catalog

import (
	"context"
	"testing"

	"github.com/yungbote/smartinventory-backend/internal/data/repos/testutil"
	"github.com/yungbote/smartinventory-backend/internal/pkg/dbctx"
)

func TestEnsureCodesIsIdempotent(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	stores := NewStoreRepo(db, testutil.Logger(t))
	products := NewProductRepo(db, testutil.Logger(t))

	if n, err := stores.EnsureCodes(dbc, []string{"S2", " S1 ", "S2", ""}); err != nil || n != 2 {
		t.Fatalf("EnsureCodes: n=%d err=%v", n, err)
	}
	if n, err := stores.EnsureCodes(dbc, []string{"S1", "S3"}); err != nil || n != 1 {
		t.Fatalf("EnsureCodes second pass: n=%d err=%v", n, err)
	}
	s1, err := stores.GetByCode(dbc, "S1")
	if err != nil || s1 == nil || s1.Name != "Store S1" || !s1.IsActive {
		t.Fatalf("GetByCode: got %+v err=%v", s1, err)
	}

	if err := stores.SetActive(dbc, "S2", false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	active, err := stores.ListActive(dbc, nil)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != 2 || active[0].StoreCode != "S1" || active[1].StoreCode != "S3" {
		t.Fatalf("ListActive: unexpected %v", active)
	}
	narrowed, _ := stores.ListActive(dbc, []string{"S3", "S2"})
	if len(narrowed) != 1 || narrowed[0].StoreCode != "S3" {
		t.Fatalf("ListActive narrowed: unexpected %v", narrowed)
	}

	if n, err := products.EnsureCodes(dbc, []string{"P1"}); err != nil || n != 1 {
		t.Fatalf("product EnsureCodes: n=%d err=%v", n, err)
	}
	p, err := products.GetBySKU(dbc, "P1")
	if err != nil || p == nil || p.Name != "Product P1" {
		t.Fatalf("GetBySKU: got %+v err=%v", p, err)
	}
	if missing, _ := products.GetBySKU(dbc, "nope"); missing != nil {
		t.Fatalf("GetBySKU unknown: expected nil")
	}
}
