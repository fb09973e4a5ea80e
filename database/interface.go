package database

import (
	"context"

	"media-vault/model"
)

// Database interface for different database implementations
type Database interface {
	// FinalizedFile operations
	CreateFinalizedFile(ctx context.Context, file *model.FinalizedFile) error
	GetFinalizedFileByID(ctx context.Context, id string) (*model.FinalizedFile, error)
	UpdateVideoDuration(ctx context.Context, id string, duration float64) error

	// General operations
	Close() error
}

// DBType database type
type DBType string

const (
	DBTypeMySQL  DBType = "mysql"
	DBTypePebble DBType = "pebble"
	DBTypeMongo  DBType = "mongo"
)

// Global database instance
var DB Database

// currentDBType stores the current database type
var currentDBType DBType

// InitDatabase initialize database with specified type
func InitDatabase(dbType DBType, config interface{}) error {
	var err error

	switch dbType {
	case DBTypeMySQL:
		DB, err = NewMySQLDatabase(config)
		currentDBType = DBTypeMySQL
	case DBTypePebble:
		DB, err = NewPebbleDatabase(config)
		currentDBType = DBTypePebble
	case DBTypeMongo:
		DB, err = NewMongoDatabase(config)
		currentDBType = DBTypeMongo
	default:
		return ErrUnsupportedDBType
	}

	return err
}

// GetDBType get current database type
func GetDBType() DBType {
	return currentDBType
}
