package catalog

import (
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/smartinventory-backend/internal/domain"
	"github.com/yungbote/smartinventory-backend/internal/pkg/dbctx"
	"github.com/yungbote/smartinventory-backend/internal/pkg/logger"
)

type StoreRepo interface {
	// EnsureCodes creates an active store for every unseen code and leaves existing rows untouched.
	EnsureCodes(dbc dbctx.Context, codes []string) (int, error)
	Create(dbc dbctx.Context, rows []*types.Store) ([]*types.Store, error)
	GetByCode(dbc dbctx.Context, code string) (*types.Store, error)
	// ListActive returns active stores ordered by code, narrowed to codes when non-empty.
	ListActive(dbc dbctx.Context, codes []string) ([]*types.Store, error)
	SetActive(dbc dbctx.Context, code string, active bool) error
}

type storeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStoreRepo(db *gorm.DB, baseLog *logger.Logger) StoreRepo {
	return &storeRepo{db: db, log: baseLog.With("repo", "StoreRepo")}
}

func (r *storeRepo) EnsureCodes(dbc dbctx.Context, codes []string) (int, error) {
	codes = cleanCodes(codes)
	if len(codes) == 0 {
		return 0, nil
	}
	rows := make([]*types.Store, 0, len(codes))
	for _, c := range codes {
		rows = append(rows, &types.Store{StoreCode: c, Name: "Store " + c, IsActive: true})
	}
	res := dbc.DB(r.db).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "store_id"}}, DoNothing: true}).
		Create(&rows)
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

func (r *storeRepo) Create(dbc dbctx.Context, rows []*types.Store) ([]*types.Store, error) {
	if len(rows) == 0 {
		return []*types.Store{}, nil
	}
	if err := dbc.DB(r.db).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *storeRepo) GetByCode(dbc dbctx.Context, code string) (*types.Store, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}
	var out types.Store
	if err := dbc.DB(r.db).Where("store_id = ?", code).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if out.StoreCode == "" {
		return nil, nil
	}
	return &out, nil
}

func (r *storeRepo) ListActive(dbc dbctx.Context, codes []string) ([]*types.Store, error) {
	var out []*types.Store
	q := dbc.DB(r.db).Where("is_active = ?", true)
	if codes = cleanCodes(codes); len(codes) > 0 {
		q = q.Where("store_id IN ?", codes)
	}
	if err := q.Order("store_id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *storeRepo) SetActive(dbc dbctx.Context, code string, active bool) error {
	return dbc.DB(r.db).Model(&types.Store{}).Where("store_id = ?", code).Update("is_active", active).Error
}

// cleanCodes trims, drops blanks and dedupes while keeping first-seen order.
func cleanCodes(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, c := range in {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
