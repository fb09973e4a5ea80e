package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
)

// OSSBucket subset of *oss.Bucket used by the gateway
type OSSBucket interface {
	InitiateMultipartUpload(objectKey string, options ...oss.Option) (oss.InitiateMultipartUploadResult, error)
	ListUploadedParts(imur oss.InitiateMultipartUploadResult, options ...oss.Option) (oss.ListUploadedPartsResult, error)
	CompleteMultipartUpload(imur oss.InitiateMultipartUploadResult, parts []oss.UploadPart, options ...oss.Option) (oss.CompleteMultipartUploadResult, error)
	AbortMultipartUpload(imur oss.InitiateMultipartUploadResult, options ...oss.Option) error
	SignURL(objectKey string, method oss.HTTPMethod, expiredInSec int64, options ...oss.Option) (string, error)
	PutObject(objectKey string, reader io.Reader, options ...oss.Option) error
	GetObject(objectKey string, options ...oss.Option) (io.ReadCloser, error)
}

// OSSConfig Alibaba Cloud OSS settings
type OSSConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	PublicBaseURL string
}

// OSSGateway multipart gateway backed by Alibaba Cloud OSS
type OSSGateway struct {
	cfg OSSConfig

	once    sync.Once
	initErr error
	bucket  OSSBucket
	build   func() (OSSBucket, error)
}

// NewOSSGateway validates configuration and returns a gateway whose client is built lazily
func NewOSSGateway(cfg OSSConfig) (*OSSGateway, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: oss requires endpoint, access_key, secret_key and bucket", ErrConfiguration)
	}
	cfg.PublicBaseURL = strings.TrimSuffix(cfg.PublicBaseURL, "/")
	g := &OSSGateway{cfg: cfg}
	g.build = g.openBucket
	return g, nil
}

// NewOSSGatewayWithBucket wraps an existing bucket handle
func NewOSSGatewayWithBucket(cfg OSSConfig, bucket OSSBucket) *OSSGateway {
	g := &OSSGateway{cfg: cfg, bucket: bucket}
	g.once.Do(func() {})
	return g
}

// Init builds the OSS client and bucket handle once
func (g *OSSGateway) Init(ctx context.Context) error {
	g.once.Do(func() {
		g.bucket, g.initErr = g.build()
	})
	return g.initErr
}

func (g *OSSGateway) openBucket() (OSSBucket, error) {
	client, err := oss.New(g.cfg.Endpoint, g.cfg.AccessKey, g.cfg.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create oss client: %w", ErrConfiguration, err)
	}
	bucket, err := client.Bucket(g.cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get bucket: %w", ErrConfiguration, err)
	}
	return bucket, nil
}

func (g *OSSGateway) Bucket() string {
	return g.cfg.Bucket
}

func (g *OSSGateway) imur(key, uploadId string) oss.InitiateMultipartUploadResult {
	return oss.InitiateMultipartUploadResult{
		Bucket:   g.cfg.Bucket,
		Key:      key,
		UploadID: uploadId,
	}
}

func (g *OSSGateway) CreateMultipartUpload(ctx context.Context, in *CreateUploadInput) (*UploadSession, error) {
	if err := g.Init(ctx); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, contextError(err, "initiate multipart upload")
	}

	options := make([]oss.Option, 0, len(in.Metadata)+1)
	if in.ContentType != "" {
		options = append(options, oss.ContentType(in.ContentType))
	}
	for k, v := range in.Metadata {
		options = append(options, oss.Meta(k, v))
	}

	result, err := g.bucket.InitiateMultipartUpload(in.Key, options...)
	if err != nil {
		return nil, classifyOSSError(err, "initiate multipart upload")
	}
	return &UploadSession{UploadId: result.UploadID, Key: in.Key, Bucket: g.cfg.Bucket}, nil
}

func (g *OSSGateway) PresignUploadPart(ctx context.Context, key, uploadId string, partNumber int, expiry time.Duration) (string, error) {
	if err := g.Init(ctx); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", contextError(err, "sign upload part")
	}

	if _, err := g.bucket.ListUploadedParts(g.imur(key, uploadId)); err != nil {
		return "", classifyOSSError(err, "list uploaded parts")
	}

	signed, err := g.bucket.SignURL(key, oss.HTTPPut, int64(expiry/time.Second),
		oss.AddParam("uploadId", uploadId),
		oss.AddParam("partNumber", fmt.Sprintf("%d", partNumber)),
	)
	if err != nil {
		return "", classifyOSSError(err, "sign upload part")
	}
	return signed, nil
}

func (g *OSSGateway) CompleteMultipartUpload(ctx context.Context, key, uploadId string, parts []PartInfo) error {
	if err := g.Init(ctx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return contextError(err, "complete multipart upload")
	}

	ossParts := make([]oss.UploadPart, 0, len(parts))
	for _, p := range parts {
		ossParts = append(ossParts, oss.UploadPart{PartNumber: p.PartNumber, ETag: p.ETag})
	}

	if _, err := g.bucket.CompleteMultipartUpload(g.imur(key, uploadId), ossParts); err != nil {
		return classifyOSSError(err, "complete multipart upload")
	}
	return nil
}

func (g *OSSGateway) AbortMultipartUpload(ctx context.Context, key, uploadId string) error {
	if err := g.Init(ctx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return contextError(err, "abort multipart upload")
	}

	if err := g.bucket.AbortMultipartUpload(g.imur(key, uploadId)); err != nil {
		return classifyOSSError(err, "abort multipart upload")
	}
	return nil
}

func (g *OSSGateway) PresignGetObject(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if err := g.Init(ctx); err != nil {
		return "", err
	}
	signed, err := g.bucket.SignURL(key, oss.HTTPGet, int64(expiry/time.Second))
	if err != nil {
		return "", classifyOSSError(err, "sign get object")
	}
	return signed, nil
}

func (g *OSSGateway) PutObject(ctx context.Context, key string, body io.Reader, contentType string) error {
	if err := g.Init(ctx); err != nil {
		return err
	}
	var options []oss.Option
	if contentType != "" {
		options = append(options, oss.ContentType(contentType))
	}
	if err := g.bucket.PutObject(key, body, options...); err != nil {
		return classifyOSSError(err, "put object")
	}
	return nil
}

func (g *OSSGateway) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := g.Init(ctx); err != nil {
		return nil, err
	}
	body, err := g.bucket.GetObject(key)
	if err != nil {
		return nil, classifyOSSError(err, "get object")
	}
	return body, nil
}

// PublicURL returns the public base URL joined with the key, or the
// virtual-hosted bucket URL on the configured endpoint
func (g *OSSGateway) PublicURL(key string) string {
	if g.cfg.PublicBaseURL != "" {
		return joinURL(g.cfg.PublicBaseURL, key)
	}
	host := strings.TrimPrefix(strings.TrimPrefix(g.cfg.Endpoint, "https://"), "http://")
	return joinURL(fmt.Sprintf("https://%s.%s", g.cfg.Bucket, strings.TrimSuffix(host, "/")), key)
}

func classifyOSSError(err error, operation string) error {
	var svcErr oss.ServiceError
	if errors.As(err, &svcErr) {
		switch svcErr.Code {
		case "NoSuchUpload":
			return fmt.Errorf("%s: %w: %w", operation, ErrNoSuchUpload, err)
		case "InvalidPart", "InvalidPartOrder", "EntityTooSmall", "MalformedXML":
			return fmt.Errorf("%s: %w: %w", operation, ErrInvalidParts, err)
		case "NoSuchKey":
			return fmt.Errorf("%s: %w: %w", operation, ErrNotFound, err)
		case "NoSuchBucket":
			return fmt.Errorf("%s: %w: %w", operation, ErrBucketNotFound, err)
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return fmt.Errorf("%s: %w: %w", operation, ErrAccessDenied, err)
		}
		if svcErr.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%s: %w: %w", operation, ErrNotFound, err)
		}
	}
	return fmt.Errorf("%s: %w", operation, err)
}
