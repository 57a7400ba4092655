// Package sqlite persists figure records with gorm over SQLite.
package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"choromap/internal/figure"
	"choromap/internal/store/model"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// FigureStore wraps the figures table.
type FigureStore struct {
	db *gorm.DB
}

// NewFigureStore opens the figure database at path and migrates the schema.
func NewFigureStore(path string) (*FigureStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("figure store path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&model.FigureModel{}); err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		// SQLite + WAL: keep connections low so HTTP reads do not fight
		// render writes over locks.
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
	return &FigureStore{db: db}, nil
}

// NewFigureStoreFromDB reuses an externally opened gorm handle (tests).
func NewFigureStoreFromDB(db *gorm.DB) (*FigureStore, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db cannot be nil")
	}
	if err := db.AutoMigrate(&model.FigureModel{}); err != nil {
		return nil, err
	}
	return &FigureStore{db: db}, nil
}

// Close closes the underlying connection.
func (s *FigureStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Insert stores a new record together with its rendered HTML.
func (s *FigureStore) Insert(ctx context.Context, rec figure.Record, html []byte) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("figure store not initialized")
	}
	m, err := recordToModel(rec)
	if err != nil {
		return err
	}
	m.HTML = html
	return s.db.WithContext(ctx).Create(&m).Error
}

// Update rewrites the mutable fields of an existing record.
func (s *FigureStore) Update(ctx context.Context, rec figure.Record) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("figure store not initialized")
	}
	res := s.db.WithContext(ctx).Model(&model.FigureModel{}).
		Where("id = ?", rec.ID).
		Updates(map[string]interface{}{
			"status":     rec.Status,
			"error":      rec.Error,
			"png_path":   rec.PNGPath,
			"updated_at": time.Now().Unix(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Get loads one record by id.
func (s *FigureStore) Get(ctx context.Context, id string) (figure.Record, error) {
	if s == nil || s.db == nil {
		return figure.Record{}, fmt.Errorf("figure store not initialized")
	}
	var m model.FigureModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return figure.Record{}, err
	}
	return modelToRecord(m)
}

// HTML loads the rendered document for one record.
func (s *FigureStore) HTML(ctx context.Context, id string) ([]byte, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("figure store not initialized")
	}
	var m model.FigureModel
	if err := s.db.WithContext(ctx).Select("id", "html").Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return m.HTML, nil
}

// ListQuery filters and pages the figure list.
type ListQuery struct {
	Status string
	Limit  int
	Offset int
}

// List returns records newest first plus the total count for paging.
func (s *FigureStore) List(ctx context.Context, q ListQuery) ([]figure.Record, int64, error) {
	if s == nil || s.db == nil {
		return nil, 0, fmt.Errorf("figure store not initialized")
	}
	if q.Limit <= 0 {
		q.Limit = 50
	}
	if q.Limit > 500 {
		q.Limit = 500
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	tx := s.db.WithContext(ctx).Model(&model.FigureModel{})
	if status := strings.TrimSpace(q.Status); status != "" {
		tx = tx.Where("status = ?", status)
	}
	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var models []model.FigureModel
	if err := tx.Omit("html").Order("created_at DESC").Limit(q.Limit).Offset(q.Offset).Find(&models).Error; err != nil {
		return nil, 0, err
	}
	records := make([]figure.Record, 0, len(models))
	for _, m := range models {
		rec, err := modelToRecord(m)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	return records, total, nil
}

func recordToModel(rec figure.Record) (model.FigureModel, error) {
	specJSON, err := rec.Spec.EncodeJSON()
	if err != nil {
		return model.FigureModel{}, err
	}
	now := time.Now().Unix()
	created := rec.CreatedAt
	if created == 0 {
		created = now
	}
	return model.FigureModel{
		ID:                rec.ID,
		SpecJSON:          datatypes.JSON(specJSON),
		Status:            rec.Status,
		Error:             rec.Error,
		GeometrySource:    rec.Spec.GeometrySource,
		DataSource:        rec.Spec.DataSource,
		Title:             rec.Spec.Title,
		MatchedRegions:    rec.MatchedRegions,
		UnmatchedFeatures: rec.UnmatchedFeatures,
		UnmatchedRows:     rec.UnmatchedRows,
		PNGPath:           rec.PNGPath,
		CreatedAtUnix:     created,
		UpdatedAtUnix:     now,
	}, nil
}

func modelToRecord(m model.FigureModel) (figure.Record, error) {
	rec := figure.Record{
		ID:                m.ID,
		Status:            m.Status,
		Error:             m.Error,
		MatchedRegions:    m.MatchedRegions,
		UnmatchedFeatures: m.UnmatchedFeatures,
		UnmatchedRows:     m.UnmatchedRows,
		HTMLSize:          len(m.HTML),
		PNGPath:           m.PNGPath,
		CreatedAt:         m.CreatedAtUnix,
		UpdatedAt:         m.UpdatedAtUnix,
	}
	if len(m.SpecJSON) > 0 {
		var spec figure.Spec
		if err := json.Unmarshal(m.SpecJSON, &spec); err != nil {
			return figure.Record{}, fmt.Errorf("figure %s has corrupt spec json: %w", m.ID, err)
		}
		rec.Spec = spec
	}
	return rec, nil
}
