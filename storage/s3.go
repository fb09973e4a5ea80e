package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"
)

// S3API subset of the S3 client used by the gateway
type S3API interface {
	CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	ListParts(ctx context.Context, params *s3.ListPartsInput, optFns ...func(*s3.Options)) (*s3.ListPartsOutput, error)
	CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Presigner subset of s3.PresignClient used by the gateway
type S3Presigner interface {
	PresignUploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Config S3 compatible provider settings (AWS, R2, MinIO)
type S3Config struct {
	Region         string
	Endpoint       string
	AccessKey      string
	SecretKey      string
	Bucket         string
	ForcePathStyle bool
	PublicBaseURL  string
}

// S3Gateway multipart gateway backed by an S3 compatible provider.
// The provider client is constructed once, on first use or on Init.
type S3Gateway struct {
	cfg    S3Config
	logger zerolog.Logger

	once      sync.Once
	initErr   error
	client    S3API
	presigner S3Presigner
	build     func(ctx context.Context) (S3API, S3Presigner, error)
}

// S3Option configures an S3Gateway
type S3Option func(*S3Gateway)

// WithLogger sets the gateway logger
func WithLogger(logger zerolog.Logger) S3Option {
	return func(g *S3Gateway) { g.logger = logger }
}

// WithS3Client injects a prebuilt client and presigner, skipping lazy construction
func WithS3Client(client S3API, presigner S3Presigner) S3Option {
	return func(g *S3Gateway) {
		g.client = client
		g.presigner = presigner
		g.once.Do(func() {})
	}
}

// NewS3Gateway validates configuration and returns a gateway whose client is built lazily
func NewS3Gateway(cfg S3Config, opts ...S3Option) (*S3Gateway, error) {
	var missing []string
	if cfg.Region == "" {
		missing = append(missing, "region")
	}
	if cfg.AccessKey == "" {
		missing = append(missing, "access_key")
	}
	if cfg.SecretKey == "" {
		missing = append(missing, "secret_key")
	}
	if cfg.Bucket == "" {
		missing = append(missing, "bucket")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: s3 missing %s", ErrConfiguration, strings.Join(missing, ", "))
	}
	cfg.PublicBaseURL = strings.TrimSuffix(cfg.PublicBaseURL, "/")

	g := &S3Gateway{cfg: cfg, logger: zerolog.Nop()}
	g.build = g.buildClient
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Init builds the provider client. Later calls return the first result.
func (g *S3Gateway) Init(ctx context.Context) error {
	g.once.Do(func() {
		client, presigner, err := g.build(ctx)
		if err != nil {
			g.initErr = err
			g.logger.Error().Err(err).Str("bucket", g.cfg.Bucket).Msg("Failed to initialize S3 client")
			return
		}
		g.client = client
		g.presigner = presigner
		g.logger.Info().
			Str("bucket", g.cfg.Bucket).
			Str("region", g.cfg.Region).
			Str("endpoint", g.cfg.Endpoint).
			Msg("S3 client initialized")
	})
	return g.initErr
}

func (g *S3Gateway) buildClient(ctx context.Context) (S3API, S3Presigner, error) {
	creds := credentials.NewStaticCredentialsProvider(g.cfg.AccessKey, g.cfg.SecretKey, "")
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(g.cfg.Region),
		config.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to load AWS config: %w", ErrConfiguration, err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if g.cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(g.cfg.Endpoint)
		}
		o.UsePathStyle = g.cfg.ForcePathStyle
	})
	return client, s3.NewPresignClient(client), nil
}

// partNumber32 narrows a part number for the SDK, refusing values that would wrap
func partNumber32(n int) (int32, error) {
	if n < 1 || n > math.MaxInt32 {
		return 0, fmt.Errorf("%w: part number %d out of range", ErrInvalidParts, n)
	}
	return int32(n), nil
}

// Bucket returns the configured bucket name
func (g *S3Gateway) Bucket() string {
	return g.cfg.Bucket
}

// CreateMultipartUpload opens a multipart session
func (g *S3Gateway) CreateMultipartUpload(ctx context.Context, in *CreateUploadInput) (*UploadSession, error) {
	if err := g.Init(ctx); err != nil {
		return nil, err
	}

	input := &s3.CreateMultipartUploadInput{
		Bucket:   aws.String(g.cfg.Bucket),
		Key:      aws.String(in.Key),
		Metadata: in.Metadata,
	}
	if in.ContentType != "" {
		input.ContentType = aws.String(in.ContentType)
	}

	out, err := g.client.CreateMultipartUpload(ctx, input)
	if err != nil {
		return nil, classifyS3Error(err, "create multipart upload")
	}
	if out.UploadId == nil || *out.UploadId == "" {
		return nil, errors.New("create multipart upload: provider returned empty upload id")
	}

	return &UploadSession{
		UploadId: *out.UploadId,
		Key:      in.Key,
		Bucket:   g.cfg.Bucket,
	}, nil
}

// PresignUploadPart signs a PUT for one part. Presigning is offline, so the
// session is checked with ListParts first to reject closed sessions.
func (g *S3Gateway) PresignUploadPart(ctx context.Context, key, uploadId string, partNumber int, expiry time.Duration) (string, error) {
	number, err := partNumber32(partNumber)
	if err != nil {
		return "", fmt.Errorf("presign upload part: %w", err)
	}
	if err := g.Init(ctx); err != nil {
		return "", err
	}

	_, err = g.client.ListParts(ctx, &s3.ListPartsInput{
		Bucket:   aws.String(g.cfg.Bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadId),
		MaxParts: aws.Int32(1),
	})
	if err != nil {
		return "", classifyS3Error(err, "list parts")
	}

	req, err := g.presigner.PresignUploadPart(ctx, &s3.UploadPartInput{
		Bucket:     aws.String(g.cfg.Bucket),
		Key:        aws.String(key),
		UploadId:   aws.String(uploadId),
		PartNumber: aws.Int32(number),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", classifyS3Error(err, "presign upload part")
	}
	return req.URL, nil
}

// CompleteMultipartUpload finalizes the session with parts in the given order
func (g *S3Gateway) CompleteMultipartUpload(ctx context.Context, key, uploadId string, parts []PartInfo) error {
	if err := g.Init(ctx); err != nil {
		return err
	}

	completed := make([]types.CompletedPart, len(parts))
	for i, part := range parts {
		number, err := partNumber32(part.PartNumber)
		if err != nil {
			return fmt.Errorf("complete multipart upload: %w", err)
		}
		completed[i] = types.CompletedPart{
			ETag:       aws.String(part.ETag),
			PartNumber: aws.Int32(number),
		}
	}

	_, err := g.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(g.cfg.Bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadId),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: completed,
		},
	})
	if err != nil {
		return classifyS3Error(err, "complete multipart upload")
	}
	return nil
}

// AbortMultipartUpload discards the session and its parts
func (g *S3Gateway) AbortMultipartUpload(ctx context.Context, key, uploadId string) error {
	if err := g.Init(ctx); err != nil {
		return err
	}

	_, err := g.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(g.cfg.Bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadId),
	})
	if err != nil {
		return classifyS3Error(err, "abort multipart upload")
	}
	return nil
}

// PresignGetObject signs a GET for a finalized object
func (g *S3Gateway) PresignGetObject(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if err := g.Init(ctx); err != nil {
		return "", err
	}

	req, err := g.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.cfg.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", classifyS3Error(err, "presign get object")
	}
	return req.URL, nil
}

// PutObject uploads a whole object in one request
func (g *S3Gateway) PutObject(ctx context.Context, key string, body io.Reader, contentType string) error {
	if err := g.Init(ctx); err != nil {
		return err
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(g.cfg.Bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := g.client.PutObject(ctx, input); err != nil {
		return classifyS3Error(err, "put object")
	}
	return nil
}

// GetObject streams an object; the caller closes the reader
func (g *S3Gateway) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := g.Init(ctx); err != nil {
		return nil, err
	}

	out, err := g.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, classifyS3Error(err, "get object")
	}
	return out.Body, nil
}

// PublicURL returns the public base URL joined with the key, or the provider's
// canonical object URL when no public base is configured
func (g *S3Gateway) PublicURL(key string) string {
	if g.cfg.PublicBaseURL != "" {
		return joinURL(g.cfg.PublicBaseURL, key)
	}
	if g.cfg.Endpoint != "" {
		return joinURL(strings.TrimSuffix(g.cfg.Endpoint, "/")+"/"+g.cfg.Bucket, key)
	}
	return joinURL(fmt.Sprintf("https://%s.s3.%s.amazonaws.com", g.cfg.Bucket, g.cfg.Region), key)
}

// classifyS3Error maps provider errors to storage sentinels, keeping the cause
func classifyS3Error(err error, operation string) error {
	if err == nil {
		return nil
	}
	if ctxErr := contextError(err, operation); ctxErr != nil {
		return ctxErr
	}

	var noSuchUpload *types.NoSuchUpload
	if errors.As(err, &noSuchUpload) {
		return fmt.Errorf("%s: %w: %w", operation, ErrNoSuchUpload, err)
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return fmt.Errorf("%s: %w: %w", operation, ErrNotFound, err)
	}
	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &noSuchBucket) {
		return fmt.Errorf("%s: %w: %w", operation, ErrBucketNotFound, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchUpload":
			return fmt.Errorf("%s: %w: %w", operation, ErrNoSuchUpload, err)
		case "InvalidPart", "InvalidPartOrder", "EntityTooSmall", "MalformedXML":
			return fmt.Errorf("%s: %w: %w", operation, ErrInvalidParts, err)
		case "NoSuchKey", "NotFound":
			return fmt.Errorf("%s: %w: %w", operation, ErrNotFound, err)
		case "NoSuchBucket":
			return fmt.Errorf("%s: %w: %w", operation, ErrBucketNotFound, err)
		case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return fmt.Errorf("%s: %w: %w", operation, ErrAccessDenied, err)
		}
	}

	return fmt.Errorf("%s: %w", operation, err)
}
