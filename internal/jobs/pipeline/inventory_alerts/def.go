package inventory_alerts

import (
	"gorm.io/gorm"

	"github.com/yungbote/smartinventory-backend/internal/pkg/logger"
	"github.com/yungbote/smartinventory-backend/internal/services"
)

type Pipeline struct {
	db     *gorm.DB
	log    *logger.Logger
	engine services.AlertEngine
}

func New(db *gorm.DB, baseLog *logger.Logger, engine services.AlertEngine) *Pipeline {
	return &Pipeline{
		db:     db,
		log:    baseLog.With("job", "inventory_alerts"),
		engine: engine,
	}
}

func (p *Pipeline) Type() string { return "inventory_alerts" }
