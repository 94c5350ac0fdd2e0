package database

import (
	"context"
	"fmt"
	"time"

	gormpg "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	appconfig "stockflow/config"
	"stockflow/internal/models"
	"stockflow/logger"
)

// AggregateModel is one row of stock_aggregations.
type AggregateModel struct {
	Symbol          string    `gorm:"primaryKey;size:32"`
	Exchange        string    `gorm:"primaryKey;size:32"`
	RecordCount     int64     `gorm:"not null"`
	FirstDate       time.Time `gorm:"type:date"`
	LastDate        time.Time `gorm:"type:date"`
	DataSpanDays    int64
	AvgPrice        float64
	PriceVolatility *float64
	AvgVolume       float64
	MaxVolume       int64
	MinVolume       int64
	AvgDailyReturn  *float64
	PriceRangeRatio *float64
	RunID           string `gorm:"size:64;index"`
}

func (AggregateModel) TableName() string { return "stock_aggregations" }

// ClusterModel is one row of stock_clusters.
type ClusterModel struct {
	Symbol             string `gorm:"primaryKey;size:32"`
	Exchange           string `gorm:"primaryKey;size:32"`
	AvgDailyReturn     float64
	PriceVolatility    float64
	AvgVolume          float64
	Cluster            int    `gorm:"index"`
	ClusterDescription string `gorm:"size:64"`
	RunID              string `gorm:"size:64;index"`
}

func (ClusterModel) TableName() string { return "stock_clusters" }

// Repository exports summary tables to Postgres for BI tools.
type Repository struct {
	db        *gorm.DB
	batchSize int
	log       *logger.Log
}

// Open connects to Postgres and migrates the export tables. It returns
// nil, nil when the export is disabled.
func Open(ctx context.Context, cfg appconfig.DatabaseConfig) (*Repository, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	db, err := gorm.Open(gormpg.Open(cfg.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get underlying sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := db.WithContext(ctx).AutoMigrate(&AggregateModel{}, &ClusterModel{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate export tables: %w", err)
	}

	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 500
	}
	return &Repository{db: db, batchSize: batch, log: logger.GetLogger()}, nil
}

// ReplaceAggregates swaps the contents of stock_aggregations for aggs in one
// transaction.
func (r *Repository) ReplaceAggregates(ctx context.Context, runID string, aggs []models.Aggregate) error {
	rows := make([]AggregateModel, len(aggs))
	for i, a := range aggs {
		rows[i] = NewAggregateModel(a, runID)
	}
	return replaceAll(ctx, r, &AggregateModel{}, rows)
}

// ReplaceClusters swaps the contents of stock_clusters for clusters in one
// transaction.
func (r *Repository) ReplaceClusters(ctx context.Context, runID string, clusters []models.ClusterAssignment) error {
	rows := make([]ClusterModel, len(clusters))
	for i, c := range clusters {
		rows[i] = NewClusterModel(c, runID)
	}
	return replaceAll(ctx, r, &ClusterModel{}, rows)
}

func replaceAll[T any](ctx context.Context, r *Repository, model *T, rows []T) error {
	start := time.Now()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, r.batchSize).Error
	})
	table := tableName(model)
	if err != nil {
		return fmt.Errorf("replace %s: %w", table, err)
	}
	logger.LogPerformanceEntry(r.log.WithComponent("database"), "database", "replace_"+table, time.Since(start), logger.Fields{"rows": len(rows)})
	return nil
}

func tableName(model any) string {
	if t, ok := model.(interface{ TableName() string }); ok {
		return t.TableName()
	}
	return fmt.Sprintf("%T", model)
}

// Close closes the connection pool.
func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func NewAggregateModel(a models.Aggregate, runID string) AggregateModel {
	return AggregateModel{
		Symbol:          a.Symbol,
		Exchange:        a.Exchange,
		RecordCount:     a.RecordCount,
		FirstDate:       a.FirstDate,
		LastDate:        a.LastDate,
		DataSpanDays:    a.DataSpanDays,
		AvgPrice:        a.AvgPrice,
		PriceVolatility: a.PriceVolatility,
		AvgVolume:       a.AvgVolume,
		MaxVolume:       a.MaxVolume,
		MinVolume:       a.MinVolume,
		AvgDailyReturn:  a.AvgDailyReturn,
		PriceRangeRatio: a.PriceRangeRatio,
		RunID:           runID,
	}
}

func NewClusterModel(c models.ClusterAssignment, runID string) ClusterModel {
	return ClusterModel{
		Symbol:             c.Symbol,
		Exchange:           c.Exchange,
		AvgDailyReturn:     c.AvgDailyReturn,
		PriceVolatility:    c.PriceVolatility,
		AvgVolume:          c.AvgVolume,
		Cluster:            c.ClusterID,
		ClusterDescription: c.Description,
		RunID:              runID,
	}
}
