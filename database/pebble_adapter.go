package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"media-vault/model"
)

// PebbleDatabase PebbleDB database implementation with multiple collections
type PebbleDatabase struct {
	collections map[string]*pebble.DB // Map of collection name to PebbleDB instance

	writeMu sync.Mutex // serializes uniqueness checks on create
}

// PebbleConfig PebbleDB configuration
type PebbleConfig struct {
	DataDir string
	FS      vfs.FS // optional, defaults to the OS filesystem
}

// Collection names and their key-value formats
const (
	collectionFinalizedFile     = "finalized_file"      // key: {id}, value: JSON(FinalizedFile)
	collectionFinalizedFilePath = "finalized_file_path" // key: {path}, value: {id}
)

// NewPebbleDatabase create PebbleDB database instance with multiple collections
func NewPebbleDatabase(config interface{}) (Database, error) {
	cfg, ok := config.(*PebbleConfig)
	if !ok {
		return nil, fmt.Errorf("invalid PebbleDB config type")
	}

	if cfg.FS == nil {
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory %s: %w", cfg.DataDir, err)
		}
	}

	collectionNames := []string{
		collectionFinalizedFile,
		collectionFinalizedFilePath,
	}

	pdb := &PebbleDatabase{collections: make(map[string]*pebble.DB, len(collectionNames))}
	for _, name := range collectionNames {
		opts := &pebble.Options{}
		if cfg.FS != nil {
			opts.FS = cfg.FS
		}
		db, err := pebble.Open(filepath.Join(cfg.DataDir, name), opts)
		if err != nil {
			pdb.Close()
			return nil, fmt.Errorf("failed to open collection %s: %w", name, err)
		}
		pdb.collections[name] = db
	}

	return pdb, nil
}

func (p *PebbleDatabase) get(collection, key string) ([]byte, error) {
	value, closer, err := p.collections[collection].Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// CreateFinalizedFile writes the path index before the record. An index entry
// whose record is missing was left by an interrupted create and is reclaimed.
func (p *PebbleDatabase) CreateFinalizedFile(ctx context.Context, file *model.FinalizedFile) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	ownerID, err := p.get(collectionFinalizedFilePath, file.Path)
	switch {
	case err == nil:
		if _, err := p.get(collectionFinalizedFile, string(ownerID)); err == nil {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, file.Path)
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
	case !errors.Is(err, ErrNotFound):
		return err
	}

	now := time.Now()
	if file.CreatedAt.IsZero() {
		file.CreatedAt = now
	}
	file.UpdatedAt = now

	data, err := json.Marshal(file)
	if err != nil {
		return fmt.Errorf("failed to marshal file: %w", err)
	}

	paths := p.collections[collectionFinalizedFilePath]
	if err := paths.Set([]byte(file.Path), []byte(file.ID), pebble.Sync); err != nil {
		return err
	}
	if err := p.collections[collectionFinalizedFile].Set([]byte(file.ID), data, pebble.Sync); err != nil {
		if delErr := paths.Delete([]byte(file.Path), pebble.Sync); delErr != nil {
			return errors.Join(err, fmt.Errorf("rollback path index: %w", delErr))
		}
		return err
	}
	return nil
}

func (p *PebbleDatabase) GetFinalizedFileByID(ctx context.Context, id string) (*model.FinalizedFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := p.get(collectionFinalizedFile, id)
	if err != nil {
		return nil, err
	}
	var file model.FinalizedFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal file: %w", err)
	}
	return &file, nil
}

func (p *PebbleDatabase) UpdateVideoDuration(ctx context.Context, id string, duration float64) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	file, err := p.GetFinalizedFileByID(ctx, id)
	if err != nil {
		return err
	}
	file.VideoDuration = &duration
	file.UpdatedAt = time.Now()

	data, err := json.Marshal(file)
	if err != nil {
		return fmt.Errorf("failed to marshal file: %w", err)
	}
	return p.collections[collectionFinalizedFile].Set([]byte(id), data, pebble.Sync)
}

func (p *PebbleDatabase) Close() error {
	var errs []error
	for name, db := range p.collections {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
