package batch_predict

import (
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/smartinventory-backend/internal/data/repos"
	"github.com/yungbote/smartinventory-backend/internal/observability"
	"github.com/yungbote/smartinventory-backend/internal/pkg/logger"
	"github.com/yungbote/smartinventory-backend/internal/services"
)

type Options struct {
	ChunkSize   int
	Parallelism int
	ItemTimeout time.Duration
}

type Pipeline struct {
	db        *gorm.DB
	log       *logger.Logger
	batches   repos.BatchJobRepo
	stores    repos.StoreRepo
	products  repos.ProductRepo
	preds     repos.PredictionRepo
	registry  services.ModelRegistry
	predictor services.PredictionService
	jobs      services.JobService
	metrics   *observability.Metrics
	opts      Options
}

func New(
	db *gorm.DB,
	baseLog *logger.Logger,
	rs *repos.Set,
	registry services.ModelRegistry,
	predictor services.PredictionService,
	jobs services.JobService,
	metrics *observability.Metrics,
	opts Options,
) *Pipeline {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 100
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 4
	}
	if opts.ItemTimeout <= 0 {
		opts.ItemTimeout = 10 * time.Second
	}
	return &Pipeline{
		db:        db,
		log:       baseLog.With("job", "batch_predict"),
		batches:   rs.BatchJobs,
		stores:    rs.Stores,
		products:  rs.Products,
		preds:     rs.Predictions,
		registry:  registry,
		predictor: predictor,
		jobs:      jobs,
		metrics:   metrics,
		opts:      opts,
	}
}

func (p *Pipeline) Type() string { return "batch_predict" }
