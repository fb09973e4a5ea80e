package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"media-vault/model"
)

// MySQLDatabase MySQL database implementation
type MySQLDatabase struct {
	db *gorm.DB
}

// MySQLConfig MySQL configuration
type MySQLConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// NewMySQLDatabase create MySQL database instance
func NewMySQLDatabase(config interface{}) (Database, error) {
	cfg, ok := config.(*MySQLConfig)
	if !ok {
		return nil, fmt.Errorf("invalid MySQL config type")
	}

	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect MySQL: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	// Set connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&model.FinalizedFile{}); err != nil {
		return nil, fmt.Errorf("failed to migrate MySQL schema: %w", err)
	}

	return NewMySQLDatabaseWithDB(db), nil
}

// NewMySQLDatabaseWithDB wraps an opened gorm handle
func NewMySQLDatabaseWithDB(db *gorm.DB) *MySQLDatabase {
	return &MySQLDatabase{db: db}
}

// FinalizedFile operations

func (m *MySQLDatabase) CreateFinalizedFile(ctx context.Context, file *model.FinalizedFile) error {
	err := m.db.WithContext(ctx).Create(file).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, file.Path)
	}
	return err
}

func (m *MySQLDatabase) GetFinalizedFileByID(ctx context.Context, id string) (*model.FinalizedFile, error) {
	var file model.FinalizedFile
	err := m.db.WithContext(ctx).Where("id = ?", id).First(&file).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &file, nil
}

func (m *MySQLDatabase) UpdateVideoDuration(ctx context.Context, id string, duration float64) error {
	result := m.db.WithContext(ctx).Model(&model.FinalizedFile{}).
		Where("id = ?", id).
		Update("video_duration", duration)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MySQLDatabase) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetGormDB get GORM database instance
func (m *MySQLDatabase) GetGormDB() *gorm.DB {
	return m.db
}
