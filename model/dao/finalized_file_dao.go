package dao

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"media-vault/database"
	"media-vault/model"
)

// Cache JSON cache used for read-through lookups
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}) error
	Delete(ctx context.Context, key string) error
}

// FinalizedFileDAO finalized file data access object
type FinalizedFileDAO struct {
	db     database.Database
	cache  Cache
	logger zerolog.Logger
}

// NewFinalizedFileDAO create finalized file DAO instance. cache may be nil.
func NewFinalizedFileDAO(db database.Database, cache Cache, logger zerolog.Logger) *FinalizedFileDAO {
	return &FinalizedFileDAO{db: db, cache: cache, logger: logger}
}

func fileCacheKey(id string) string {
	return fmt.Sprintf("finalized_file:%s", id)
}

// Create create finalized file record
func (dao *FinalizedFileDAO) Create(ctx context.Context, file *model.FinalizedFile) error {
	return dao.db.CreateFinalizedFile(ctx, file)
}

// GetByID get file by id, nil when absent
func (dao *FinalizedFileDAO) GetByID(ctx context.Context, id string) (*model.FinalizedFile, error) {
	if dao.cache != nil {
		var cached model.FinalizedFile
		err := dao.cache.Get(ctx, fileCacheKey(id), &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, redis.Nil) {
			dao.logger.Warn().Err(err).Str("file_id", id).Msg("Cache read failed")
		}
	}

	file, err := dao.db.GetFinalizedFileByID(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if dao.cache != nil {
		_ = dao.cache.Set(ctx, fileCacheKey(id), file)
	}
	return file, nil
}

// UpdateVideoDuration records the probed duration and drops the cached copy
func (dao *FinalizedFileDAO) UpdateVideoDuration(ctx context.Context, id string, duration float64) error {
	if err := dao.db.UpdateVideoDuration(ctx, id, duration); err != nil {
		return err
	}
	if dao.cache != nil {
		_ = dao.cache.Delete(ctx, fileCacheKey(id))
	}
	return nil
}
