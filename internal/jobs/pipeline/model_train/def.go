package model_train

import (
	"gorm.io/gorm"

	"github.com/yungbote/smartinventory-backend/internal/pkg/logger"
	"github.com/yungbote/smartinventory-backend/internal/services"
)

type Pipeline struct {
	db      *gorm.DB
	log     *logger.Logger
	trainer services.TrainingService
}

func New(db *gorm.DB, baseLog *logger.Logger, trainer services.TrainingService) *Pipeline {
	return &Pipeline{
		db:      db,
		log:     baseLog.With("job", "model_train"),
		trainer: trainer,
	}
}

func (p *Pipeline) Type() string { return "model_train" }
