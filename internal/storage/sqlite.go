package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// KVEntry is the gorm model behind SQLiteStorage.
type KVEntry struct {
	Key       string `gorm:"primaryKey"`
	Value     string `gorm:"not null"`
	UpdatedAt time.Time
}

func (KVEntry) TableName() string { return "kv_store" }

type SQLiteStorage struct {
	db *gorm.DB
}

// NewSQLiteStorage migrates kv_store on db and wraps it.
func NewSQLiteStorage(db *gorm.DB) (*SQLiteStorage, error) {
	if err := db.AutoMigrate(&KVEntry{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

func (s *SQLiteStorage) Get(ctx context.Context, key string) (string, error) {
	var e KVEntry
	if err := s.db.WithContext(ctx).Where(map[string]interface{}{"key": key}).First(&e).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrorNotFound
		}
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return e.Value, nil
}

func (s *SQLiteStorage) Set(ctx context.Context, key, value string) error {
	e := KVEntry{Key: key, Value: value, UpdatedAt: time.Now()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&e).Error
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
