package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"media-vault/model"
)

const mongoCollectionFinalizedFiles = "finalized_files"

// MongoDatabase MongoDB database implementation
type MongoDatabase struct {
	client *mongo.Client
	files  *mongo.Collection
}

// MongoConfig MongoDB configuration
type MongoConfig struct {
	URI      string
	Database string
}

// NewMongoDatabase create MongoDB database instance
func NewMongoDatabase(config interface{}) (Database, error) {
	cfg, ok := config.(*MongoConfig)
	if !ok {
		return nil, fmt.Errorf("invalid MongoDB config type")
	}

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect MongoDB: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	files := client.Database(cfg.Database).Collection(mongoCollectionFinalizedFiles)
	_, err = files.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "path", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create MongoDB index: %w", err)
	}

	return &MongoDatabase{client: client, files: files}, nil
}

func (m *MongoDatabase) CreateFinalizedFile(ctx context.Context, file *model.FinalizedFile) error {
	now := time.Now()
	if file.CreatedAt.IsZero() {
		file.CreatedAt = now
	}
	file.UpdatedAt = now

	_, err := m.files.InsertOne(ctx, file)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, file.Path)
	}
	return err
}

func (m *MongoDatabase) GetFinalizedFileByID(ctx context.Context, id string) (*model.FinalizedFile, error) {
	var file model.FinalizedFile
	err := m.files.FindOne(ctx, bson.M{"_id": id}).Decode(&file)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &file, nil
}

func (m *MongoDatabase) UpdateVideoDuration(ctx context.Context, id string, duration float64) error {
	result, err := m.files.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"video_duration": duration, "updated_at": time.Now()}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoDatabase) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
