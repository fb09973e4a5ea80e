package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"media-vault/common"
	"media-vault/conf"
	"media-vault/controller"
	"media-vault/database"
	"media-vault/model/dao"
	"media-vault/service/event_service"
	"media-vault/service/media_service"
	"media-vault/service/upload_service"
	"media-vault/storage"
)

var ENV string

func init() {
	flag.StringVar(&ENV, "env", "loc", "Environment: loc/dev/prod/example")
}

// @title           Media Vault Uploader API
// @version         1.0
// @description     Direct-to-storage multipart uploads: session init, part url signing, completion and abort

// @host      localhost:7290
// @BasePath  /

// @schemes https http

type app struct {
	srv       *http.Server
	probes    *upload_service.ProbeProcessor
	publisher *event_service.Publisher
	cleanup   *upload_service.CleanupProcessor
	logger    zerolog.Logger
}

func main() {
	a := initAll()

	// Start HTTP API service (in goroutine)
	go a.startServer()

	// Wait for shutdown signal
	waitForShutdown()

	a.logger.Info().Msg("Shutting down uploader service...")
	a.shutdown()
	a.logger.Info().Msg("Server exited")
}

// initAll initialize all components
func initAll() *app {
	flag.Parse()

	bootLogger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	// .env overrides are optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		bootLogger.Warn().Err(err).Msg("Failed to load .env")
	}

	conf.SystemEnvironmentEnum = conf.ParseEnvironment(ENV)
	if err := conf.InitConfig(); err != nil {
		bootLogger.Fatal().Err(err).Msg("Failed to initialize config")
	}
	cfg := conf.Cfg

	logger := common.NewLogger(cfg.Log, os.Stderr)
	logger.Info().
		Str("env", string(conf.SystemEnvironmentEnum)).
		Str("port", cfg.Port).
		Str("storage", cfg.Storage.Type).
		Str("database", cfg.Database.Type).
		Msg("Configuration loaded")

	if err := initDatabase(cfg.Database); err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Redis is optional; a failed connection disables the cache
	var cache dao.Cache
	if err := database.InitRedis(cfg.Redis, logger); err == nil && database.RedisClient != nil {
		cache = database.NewRedisCache(database.RedisClient, time.Duration(cfg.Redis.CacheTTL)*time.Second, logger)
	}

	gateway, err := storage.NewGateway(cfg.Storage, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create storage gateway")
	}
	if initializer, ok := gateway.(storage.Initializer); ok {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := initializer.Init(ctx)
		cancel()
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize storage client")
		}
	}
	logger.Info().Str("type", cfg.Storage.Type).Str("bucket", gateway.Bucket()).Msg("Storage gateway ready")

	files := dao.NewFinalizedFileDAO(database.DB, cache, logger)

	a := &app{logger: logger}
	opts := []upload_service.Option{
		upload_service.WithPresignExpiry(time.Duration(cfg.Storage.PresignExpiry) * time.Second),
		upload_service.WithLogger(logger),
	}

	if cfg.Probe.Enabled {
		a.probes = upload_service.NewProbeProcessor(gateway, media_service.NewFFProbe(cfg.Probe.FfprobePath), files,
			upload_service.ProbeProcessorConfig{
				Workers:   cfg.Probe.Workers,
				QueueSize: cfg.Probe.QueueSize,
				Timeout:   time.Duration(cfg.Probe.Timeout) * time.Second,
			}, logger)
		opts = append(opts, upload_service.WithProbeScheduler(a.probes))
	}

	if cfg.Events.Enabled {
		sender, err := event_service.NewZMQSender(context.Background(), cfg.Events.ZmqAddress)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to start event publisher")
		}
		a.publisher = event_service.NewPublisher(sender, 0, logger)
		opts = append(opts, upload_service.WithNotifier(a.publisher))
		if a.probes != nil {
			a.probes.SetNotifier(a.publisher)
		}
		logger.Info().Str("addr", sender.Addr()).Msg("Event publisher bound")
	}

	if a.probes != nil {
		a.probes.Start()
	}

	// Filesystem sessions have no provider lifecycle rules
	if local, ok := gateway.(*storage.LocalGateway); ok {
		a.cleanup = upload_service.NewCleanupProcessor(local,
			time.Duration(cfg.Storage.Local.SweepInterval)*time.Second,
			time.Duration(cfg.Storage.Local.SessionTtl)*time.Second,
			logger)
		a.cleanup.Start()
	}

	coordinator := upload_service.NewCoordinator(gateway, files, opts...)

	router := controller.SetupUploaderRouter(controller.RouterOptions{
		Coordinator:    coordinator,
		Files:          files,
		Gateway:        gateway,
		DownloadExpiry: time.Duration(cfg.Storage.PresignExpiry) * time.Second,
		SwaggerHost:    cfg.SwaggerBaseUrl,
		Logger:         logger,
	})

	a.srv = &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}
	return a
}

// initDatabase initialize database based on configuration
func initDatabase(cfg conf.DatabaseConfig) error {
	switch database.DBType(cfg.Type) {
	case database.DBTypePebble:
		return database.InitDatabase(database.DBTypePebble, &database.PebbleConfig{
			DataDir: cfg.DataDir,
		})
	case database.DBTypeMongo:
		return database.InitDatabase(database.DBTypeMongo, &database.MongoConfig{
			URI:      cfg.MongoUri,
			Database: cfg.MongoDatabase,
		})
	default:
		return database.InitDatabase(database.DBTypeMySQL, &database.MySQLConfig{
			DSN:          cfg.Dsn,
			MaxOpenConns: cfg.MaxOpenConns,
			MaxIdleConns: cfg.MaxIdleConns,
		})
	}
}

// startServer start HTTP server
func (a *app) startServer() {
	a.logger.Info().Str("addr", a.srv.Addr).Msg("Uploader API service starting")
	if err := a.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		a.logger.Fatal().Err(err).Msg("Failed to start server")
	}
}

// waitForShutdown wait for shutdown signal
func waitForShutdown() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
}

// shutdown drains HTTP first so no new probes or events are produced
func (a *app) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.srv.Shutdown(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("Server forced to shutdown")
	}
	if a.cleanup != nil {
		a.cleanup.Stop()
	}
	if a.probes != nil {
		a.probes.Stop(ctx)
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to close event publisher")
		}
	}
	if database.DB != nil {
		if err := database.DB.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to close database")
		}
	}
	if err := database.CloseRedis(); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to close Redis")
	}
}
