package catalog

import (
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/smartinventory-backend/internal/domain"
	"github.com/yungbote/smartinventory-backend/internal/pkg/dbctx"
	"github.com/yungbote/smartinventory-backend/internal/pkg/logger"
)

type ProductRepo interface {
	EnsureCodes(dbc dbctx.Context, skus []string) (int, error)
	Create(dbc dbctx.Context, rows []*types.Product) ([]*types.Product, error)
	GetBySKU(dbc dbctx.Context, sku string) (*types.Product, error)
	ListActive(dbc dbctx.Context, skus []string) ([]*types.Product, error)
	SetActive(dbc dbctx.Context, sku string, active bool) error
}

type productRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProductRepo(db *gorm.DB, baseLog *logger.Logger) ProductRepo {
	return &productRepo{db: db, log: baseLog.With("repo", "ProductRepo")}
}

func (r *productRepo) EnsureCodes(dbc dbctx.Context, skus []string) (int, error) {
	skus = cleanCodes(skus)
	if len(skus) == 0 {
		return 0, nil
	}
	rows := make([]*types.Product, 0, len(skus))
	for _, s := range skus {
		rows = append(rows, &types.Product{SKU: s, Name: "Product " + s, IsActive: true})
	}
	res := dbc.DB(r.db).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "sku_id"}}, DoNothing: true}).
		Create(&rows)
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

func (r *productRepo) Create(dbc dbctx.Context, rows []*types.Product) ([]*types.Product, error) {
	if len(rows) == 0 {
		return []*types.Product{}, nil
	}
	if err := dbc.DB(r.db).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *productRepo) GetBySKU(dbc dbctx.Context, sku string) (*types.Product, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return nil, nil
	}
	var out types.Product
	if err := dbc.DB(r.db).Where("sku_id = ?", sku).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if out.SKU == "" {
		return nil, nil
	}
	return &out, nil
}

func (r *productRepo) ListActive(dbc dbctx.Context, skus []string) ([]*types.Product, error) {
	var out []*types.Product
	q := dbc.DB(r.db).Where("is_active = ?", true)
	if skus = cleanCodes(skus); len(skus) > 0 {
		q = q.Where("sku_id IN ?", skus)
	}
	if err := q.Order("sku_id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *productRepo) SetActive(dbc dbctx.Context, sku string, active bool) error {
	return dbc.DB(r.db).Model(&types.Product{}).Where("sku_id = ?", sku).Update("is_active", active).Error
}
