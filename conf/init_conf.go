package conf

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config application configuration structure
type Config struct {
	Port string // Uploader service port

	// Database configuration
	Database DatabaseConfig

	// Storage configuration
	Storage StorageConfig

	// Redis configuration
	Redis RedisConfig

	// Media probe configuration
	Probe ProbeConfig

	// Completion events configuration
	Events EventsConfig

	// Logging configuration
	Log LogConfig

	SwaggerBaseUrl string // Swagger API base URL (e.g., "example.com:7290")
}

// DatabaseConfig database configuration
type DatabaseConfig struct {
	Type          string // Database type: mysql, pebble, mongo
	Dsn           string // MySQL DSN
	MaxOpenConns  int    // MySQL max open connections
	MaxIdleConns  int    // MySQL max idle connections
	DataDir       string // PebbleDB data directory
	MongoUri      string // MongoDB connection URI
	MongoDatabase string // MongoDB database name
}

// StorageConfig storage configuration
type StorageConfig struct {
	Type          string // s3, oss, local
	PresignExpiry int    // Signed URL expiry in seconds
	PublicBaseUrl string // Public URL prefix for finalized objects (optional)
	S3            S3StorageConfig
	OSS           OSSStorageConfig
	Local         LocalStorageConfig
}

// S3StorageConfig S3 compatible storage configuration (AWS, R2, MinIO)
type S3StorageConfig struct {
	Region         string
	Endpoint       string // Optional custom endpoint
	AccessKey      string
	SecretKey      string
	Bucket         string
	ForcePathStyle bool // Required for MinIO
}

// OSSStorageConfig OSS storage configuration
type OSSStorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
}

// LocalStorageConfig local storage configuration
type LocalStorageConfig struct {
	BasePath      string
	BaseUrl       string // External URL of this service, used to build signed part URLs
	SigningSecret string // HMAC secret for signed part URLs
	SessionTtl    int    // Seconds an open session lives before the sweeper aborts it
	SweepInterval int    // Seconds between sweeps
}

// RedisConfig redis configuration
type RedisConfig struct {
	Enabled  bool   // Enable Redis cache
	Host     string // Redis host
	Port     int    // Redis port
	Password string // Redis password (optional)
	DB       int    // Redis database number
	CacheTTL int    // Cache TTL in seconds (default: 300)
}

// ProbeConfig media probe configuration
type ProbeConfig struct {
	Enabled     bool
	FfprobePath string
	Timeout     int // Seconds per probe
	Workers     int
	QueueSize   int
}

// EventsConfig completion events configuration
type EventsConfig struct {
	Enabled    bool
	ZmqAddress string // e.g. tcp://*:5563
}

// LogConfig logging configuration
type LogConfig struct {
	Level  string
	Pretty bool
}

// Cfg global configuration instance
var Cfg *Config

// InitConfig initialize configuration
func InitConfig() error {
	v := viper.New()
	v.SetConfigFile(GetYaml())
	v.SetEnvPrefix("MEDIA_VAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("Fatal error config file: %s", err)
	}

	Cfg = Load(v)
	return nil
}

// Load builds a Config from an already populated viper instance and applies defaults
func Load(v *viper.Viper) *Config {
	cfg := &Config{
		Port: v.GetString("port"),

		Database: DatabaseConfig{
			Type:          v.GetString("database.type"),
			Dsn:           v.GetString("database.dsn"),
			MaxOpenConns:  v.GetInt("database.max_open_conns"),
			MaxIdleConns:  v.GetInt("database.max_idle_conns"),
			DataDir:       v.GetString("database.data_dir"),
			MongoUri:      v.GetString("database.mongo_uri"),
			MongoDatabase: v.GetString("database.mongo_database"),
		},

		Storage: StorageConfig{
			Type:          v.GetString("storage.type"),
			PresignExpiry: v.GetInt("storage.presign_expiry"),
			PublicBaseUrl: v.GetString("storage.public_base_url"),
			S3: S3StorageConfig{
				Region:         v.GetString("storage.s3.region"),
				Endpoint:       v.GetString("storage.s3.endpoint"),
				AccessKey:      v.GetString("storage.s3.access_key"),
				SecretKey:      v.GetString("storage.s3.secret_key"),
				Bucket:         v.GetString("storage.s3.bucket"),
				ForcePathStyle: v.GetBool("storage.s3.force_path_style"),
			},
			OSS: OSSStorageConfig{
				Endpoint:  v.GetString("storage.oss.endpoint"),
				AccessKey: v.GetString("storage.oss.access_key"),
				SecretKey: v.GetString("storage.oss.secret_key"),
				Bucket:    v.GetString("storage.oss.bucket"),
			},
			Local: LocalStorageConfig{
				BasePath:      v.GetString("storage.local.base_path"),
				BaseUrl:       v.GetString("storage.local.base_url"),
				SigningSecret: v.GetString("storage.local.signing_secret"),
				SessionTtl:    v.GetInt("storage.local.session_ttl"),
				SweepInterval: v.GetInt("storage.local.sweep_interval"),
			},
		},

		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			CacheTTL: v.GetInt("redis.cache_ttl"),
		},

		Probe: ProbeConfig{
			Enabled:     v.GetBool("probe.enabled"),
			FfprobePath: v.GetString("probe.ffprobe_path"),
			Timeout:     v.GetInt("probe.timeout"),
			Workers:     v.GetInt("probe.workers"),
			QueueSize:   v.GetInt("probe.queue_size"),
		},

		Events: EventsConfig{
			Enabled:    v.GetBool("events.enabled"),
			ZmqAddress: v.GetString("events.zmq_address"),
		},

		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Pretty: v.GetBool("log.pretty"),
		},

		SwaggerBaseUrl: v.GetString("swagger_base_url"),
	}

	// Set default values
	if cfg.Port == "" {
		cfg.Port = "7290"
	}
	if cfg.Database.Type == "" {
		cfg.Database.Type = "mysql"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 100
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 10
	}
	if cfg.Database.DataDir == "" {
		cfg.Database.DataDir = "./data/db"
	}
	if cfg.Database.MongoDatabase == "" {
		cfg.Database.MongoDatabase = "media_vault"
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "s3"
	}
	if cfg.Storage.PresignExpiry <= 0 {
		cfg.Storage.PresignExpiry = 3600
	}
	cfg.Storage.PublicBaseUrl = strings.TrimSuffix(cfg.Storage.PublicBaseUrl, "/")
	if cfg.Storage.Local.BasePath == "" {
		cfg.Storage.Local.BasePath = "./data/files"
	}
	if cfg.Storage.Local.BaseUrl == "" {
		cfg.Storage.Local.BaseUrl = "http://localhost:" + cfg.Port
	}
	cfg.Storage.Local.BaseUrl = strings.TrimSuffix(cfg.Storage.Local.BaseUrl, "/")
	if cfg.Storage.Local.SessionTtl <= 0 {
		cfg.Storage.Local.SessionTtl = 24 * 3600
	}
	if cfg.Storage.Local.SweepInterval <= 0 {
		cfg.Storage.Local.SweepInterval = 600
	}
	if cfg.Redis.CacheTTL == 0 {
		cfg.Redis.CacheTTL = 300
	}
	if cfg.Probe.FfprobePath == "" {
		cfg.Probe.FfprobePath = "ffprobe"
	}
	if cfg.Probe.Timeout <= 0 {
		cfg.Probe.Timeout = 30
	}
	if cfg.Probe.Workers <= 0 {
		cfg.Probe.Workers = 2
	}
	if cfg.Probe.QueueSize <= 0 {
		cfg.Probe.QueueSize = 64
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.SwaggerBaseUrl == "" {
		cfg.SwaggerBaseUrl = "localhost:" + cfg.Port
	}

	return cfg
}
