package sales_import

import (
	"gorm.io/gorm"

	"github.com/yungbote/smartinventory-backend/internal/pkg/logger"
	"github.com/yungbote/smartinventory-backend/internal/services"
)

type Pipeline struct {
	db       *gorm.DB
	log      *logger.Logger
	importer services.SalesImportService
}

func New(db *gorm.DB, baseLog *logger.Logger, importer services.SalesImportService) *Pipeline {
	return &Pipeline{
		db:       db,
		log:      baseLog.With("job", "sales_import"),
		importer: importer,
	}
}

func (p *Pipeline) Type() string { return "sales_import" }
