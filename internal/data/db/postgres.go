package db

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/smartinventory-backend/internal/pkg/logger"
	"github.com/yungbote/smartinventory-backend/internal/platform/envutil"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

// DSN builds the connection string from POSTGRES_* variables.
func DSN() string {
	if dsn := envutil.String("DATABASE_URL", ""); dsn != "" {
		return dsn
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		envutil.String("POSTGRES_USER", "postgres"),
		envutil.String("POSTGRES_PASSWORD", ""),
		envutil.String("POSTGRES_HOST", "localhost"),
		envutil.String("POSTGRES_PORT", "5432"),
		envutil.String("POSTGRES_NAME", "smartinventory"),
		envutil.String("POSTGRES_SSLMODE", "disable"),
	)
}

func NewPostgresService(logg *logger.Logger) (*PostgresService, error) {
	serviceLog := logg.With("service", "PostgresService")

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(DSN()), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(envutil.Int("POSTGRES_MAX_OPEN_CONNS", 20))
	sqlDB.SetMaxIdleConns(envutil.Int("POSTGRES_MAX_IDLE_CONNS", 5))
	sqlDB.SetConnMaxLifetime(envutil.Duration("POSTGRES_CONN_MAX_LIFETIME", 30*time.Minute))

	serviceLog.Info("Connected to postgres",
		"host", envutil.String("POSTGRES_HOST", "localhost"),
		"database", envutil.String("POSTGRES_NAME", "smartinventory"),
	)
	return &PostgresService{db: db, log: serviceLog}, nil
}

func (s *PostgresService) DB() *gorm.DB { return s.db }

func (s *PostgresService) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
