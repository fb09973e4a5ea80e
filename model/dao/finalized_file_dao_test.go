package dao

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/cockroachdb/pebble/vfs"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-vault/database"
	"media-vault/model"
)

type memCache struct {
	items map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{items: map[string][]byte{}}
}

func (c *memCache) Get(_ context.Context, key string, dest interface{}) error {
	data, ok := c.items[key]
	if !ok {
		return redis.Nil
	}
	return json.Unmarshal(data, dest)
}

func (c *memCache) Set(_ context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.items[key] = data
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	delete(c.items, key)
	return nil
}

func TestFinalizedFileDAOReadThrough(t *testing.T) {
	db, err := database.NewPebbleDatabase(&database.PebbleConfig{DataDir: "/db", FS: vfs.NewMem()})
	require.NoError(t, err)
	defer db.Close()

	cache := newMemCache()
	fileDAO := NewFinalizedFileDAO(db, cache, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, fileDAO.Create(ctx, &model.FinalizedFile{ID: "f-1", Path: "uploads/a-1.mp4", FileType: model.FileTypeVideo}))

	file, err := fileDAO.GetByID(ctx, "f-1")
	require.NoError(t, err)
	require.NotNil(t, file)
	assert.Contains(t, cache.items, fileCacheKey("f-1"))

	require.NoError(t, fileDAO.UpdateVideoDuration(ctx, "f-1", 3.2))
	assert.NotContains(t, cache.items, fileCacheKey("f-1"))

	file, err = fileDAO.GetByID(ctx, "f-1")
	require.NoError(t, err)
	require.NotNil(t, file.VideoDuration)
	assert.InDelta(t, 3.2, *file.VideoDuration, 1e-9)

	missing, err := fileDAO.GetByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
