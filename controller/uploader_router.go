package controller

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"media-vault/controller/handler"
	"media-vault/controller/middleware"
	"media-vault/controller/respond"
	uploaderDocs "media-vault/docs/uploader"
	"media-vault/storage"
)

// RouterOptions dependencies of the uploader router
type RouterOptions struct {
	Coordinator    handler.UploadCoordinator
	Files          handler.FileReader
	Gateway        storage.Gateway
	DownloadExpiry time.Duration
	SwaggerHost    string
	Logger         zerolog.Logger
}

// SetupUploaderRouter setup uploader service router
func SetupUploaderRouter(opts RouterOptions) *gin.Engine {
	if opts.SwaggerHost != "" {
		uploaderDocs.SwaggerInfouploader.Host = opts.SwaggerHost
	}

	r := gin.New()
	r.Use(gin.Recovery())

	// Browsers upload parts cross-origin and must read the ETag header
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Content-Length", "Accept", "Authorization", middleware.HeaderUserId},
		ExposeHeaders:    []string{"Content-Length", "Content-Type", "ETag"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.Use(respond.TimingMiddleware(opts.Logger))

	multipartHandler := handler.NewMultipartHandler(opts.Coordinator)
	fileHandler := handler.NewFileHandler(opts.Files, opts.Gateway, opts.DownloadExpiry)

	s3 := r.Group("/s3", middleware.RequirePrincipal())
	{
		// Multipart lifecycle
		s3.POST("/init-upload", multipartHandler.InitUpload)
		s3.POST("/presign-url", multipartHandler.PresignUrl)
		s3.POST("/complete-upload", multipartHandler.CompleteUpload)
		s3.POST("/abort-upload", multipartHandler.AbortUpload)

		// Finalized files
		s3.GET("/files/:fileId", fileHandler.GetFile)
		s3.GET("/files/:fileId/download-url", fileHandler.GetDownloadURL)
	}

	// Signed part uploads and object reads for the filesystem gateway
	if local, ok := opts.Gateway.(*storage.LocalGateway); ok {
		localHandler := handler.NewLocalStorageHandler(local)
		r.PUT("/local/parts/:uploadId/:partNumber", localHandler.UploadPart)
		r.GET("/local/objects/*key", localHandler.GetObject)
	}

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "uploader",
			"bucket":  opts.Gateway.Bucket(),
		})
	})

	// Swagger documentation
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler,
		ginSwagger.InstanceName("uploader")))

	return r
}
