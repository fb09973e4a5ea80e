package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"media-vault/conf"
)

// Gateway object storage gateway used by the upload coordinator.
// Implementations hold no per-session state; every call is request/response.
type Gateway interface {
	Bucket() string

	// Multipart session lifecycle
	CreateMultipartUpload(ctx context.Context, in *CreateUploadInput) (*UploadSession, error)
	PresignUploadPart(ctx context.Context, key, uploadId string, partNumber int, expiry time.Duration) (string, error)
	CompleteMultipartUpload(ctx context.Context, key, uploadId string, parts []PartInfo) error
	AbortMultipartUpload(ctx context.Context, key, uploadId string) error

	// Plain object access
	PresignGetObject(ctx context.Context, key string, expiry time.Duration) (string, error)
	PutObject(ctx context.Context, key string, body io.Reader, contentType string) error
	GetObject(ctx context.Context, key string) (io.ReadCloser, error)
	PublicURL(key string) string
}

// Initializer is implemented by gateways whose provider client is built lazily.
// Init forces construction; it is safe to call from several goroutines.
type Initializer interface {
	Init(ctx context.Context) error
}

// CreateUploadInput parameters for opening a multipart session
type CreateUploadInput struct {
	Key         string
	ContentType string
	Metadata    map[string]string // recorded on the session, not enforced by the provider
}

// UploadSession provider-issued multipart session handle
type UploadSession struct {
	UploadId string `json:"uploadId"`
	Key      string `json:"key"`
	Bucket   string `json:"bucket"`
}

// PartInfo part receipt for multipart upload
type PartInfo struct {
	PartNumber int    `json:"partNumber"`
	ETag       string `json:"etag"`
}

var (
	ErrNotFound        = errors.New("file not found")
	ErrConfiguration   = errors.New("invalid storage configuration")
	ErrUnsupportedType = errors.New("unsupported storage type")
	ErrNoSuchUpload    = errors.New("multipart upload does not exist or is no longer open")
	ErrInvalidParts    = errors.New("invalid multipart part list")
	ErrAccessDenied    = errors.New("access denied")
	ErrBucketNotFound  = errors.New("bucket not found")
	ErrInvalidKey      = errors.New("invalid object key")
	ErrBadSignature    = errors.New("signature mismatch")
	ErrURLExpired      = errors.New("signed url expired")
	ErrTimeout         = errors.New("storage operation timed out")
	ErrCanceled        = errors.New("storage operation canceled")
)

// NewGateway create gateway instance by configuration
func NewGateway(cfg conf.StorageConfig, logger zerolog.Logger) (Gateway, error) {
	switch cfg.Type {
	case "s3":
		return NewS3Gateway(S3Config{
			Region:         cfg.S3.Region,
			Endpoint:       cfg.S3.Endpoint,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			Bucket:         cfg.S3.Bucket,
			ForcePathStyle: cfg.S3.ForcePathStyle,
			PublicBaseURL:  cfg.PublicBaseUrl,
		}, WithLogger(logger))
	case "oss":
		return NewOSSGateway(OSSConfig{
			Endpoint:      cfg.OSS.Endpoint,
			AccessKey:     cfg.OSS.AccessKey,
			SecretKey:     cfg.OSS.SecretKey,
			Bucket:        cfg.OSS.Bucket,
			PublicBaseURL: cfg.PublicBaseUrl,
		})
	case "local":
		return NewLocalGateway(LocalConfig{
			BasePath:      cfg.Local.BasePath,
			BaseURL:       cfg.Local.BaseUrl,
			SigningSecret: cfg.Local.SigningSecret,
			PublicBaseURL: cfg.PublicBaseUrl,
		})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, cfg.Type)
	}
}

// joinURL appends an object key to a base URL, escaping each path segment
func joinURL(base, key string) string {
	segments := strings.Split(strings.TrimPrefix(key, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.Join(segments, "/")
}

// contextError maps context failures to storage sentinels
func contextError(err error, operation string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", operation, ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w: %w", operation, ErrCanceled, err)
	}
	return nil
}
