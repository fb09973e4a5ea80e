package upload_service

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"media-vault/model"
	"media-vault/storage"
)

const (
	DefaultPresignExpiry = time.Hour
	defaultContentType   = "application/octet-stream"

	metaOwner    = "owner"
	metaFolderId = "folder-id"
)

// FileStore persistence for finalized files
type FileStore interface {
	Create(ctx context.Context, file *model.FinalizedFile) error
}

// ProbeScheduler accepts duration probe jobs without blocking.
// Enqueue reports whether the job was accepted.
type ProbeScheduler interface {
	Enqueue(job ProbeJob) bool
}

// Notifier receives lifecycle events. Implementations must not block.
type Notifier interface {
	UploadCompleted(ctx context.Context, file *model.FinalizedFile)
	DurationProbed(ctx context.Context, fileID string, seconds float64)
}

// Coordinator drives the multipart lifecycle against a storage gateway.
// It holds no per-session state; every call is independent.
type Coordinator struct {
	gateway       storage.Gateway
	store         FileStore
	probes        ProbeScheduler
	notifier      Notifier
	presignExpiry time.Duration
	clock         *keyClock
	newID         func() string
	logger        zerolog.Logger
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithPresignExpiry sets the signed part URL lifetime
func WithPresignExpiry(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.presignExpiry = d
		}
	}
}

// WithProbeScheduler enables duration probing for completed videos
func WithProbeScheduler(p ProbeScheduler) Option {
	return func(c *Coordinator) { c.probes = p }
}

// WithNotifier publishes lifecycle events
func WithNotifier(n Notifier) Option {
	return func(c *Coordinator) { c.notifier = n }
}

// WithLogger sets the coordinator logger
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// WithClock overrides the time source used for key stamps
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.clock.now = now }
}

// NewCoordinator create coordinator instance
func NewCoordinator(gateway storage.Gateway, store FileStore, opts ...Option) *Coordinator {
	c := &Coordinator{
		gateway:       gateway,
		store:         store,
		presignExpiry: DefaultPresignExpiry,
		clock:         &keyClock{now: time.Now},
		newID:         uuid.NewString,
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// InitRequest parameters for opening a session
type InitRequest struct {
	FileName    string
	ContentType string
	Directory   string
	Owner       string
	FolderId    *string
}

// InitResponse client-visible session handle
type InitResponse struct {
	UploadId string `json:"uploadId"`
	Key      string `json:"key"`
	Bucket   string `json:"bucket"`
}

// PartURLResponse signed part URL
type PartURLResponse struct {
	PresignedUrl string `json:"presignedUrl"`
	ExpiresIn    int    `json:"expiresIn"` // seconds
}

// CompleteRequest parameters for finalizing a session
type CompleteRequest struct {
	UploadId    string
	Key         string
	Parts       []storage.PartInfo
	FileName    string
	ContentType string
	FileSize    int64
	Owner       string
	FolderId    *string
}

// CompleteResponse summary of the finalized file
type CompleteResponse struct {
	FileId   string `json:"fileId"`
	FileName string `json:"fileName"`
	FileUrl  string `json:"fileUrl"`
	Key      string `json:"key"`
}

// Init opens a provider session under a freshly stamped key
func (c *Coordinator) Init(ctx context.Context, req *InitRequest) (*InitResponse, error) {
	const op = "init upload"

	name, err := cleanFileName(req.FileName)
	if err != nil {
		return nil, newError(op, "", "", ErrSessionInit, err)
	}
	if req.Owner == "" {
		return nil, newError(op, "", "", ErrSessionInit, fmt.Errorf("%w: owner is required", ErrInvalidArgument))
	}

	key := buildKey(cleanDirectory(req.Directory), name, c.clock.next())

	metadata := map[string]string{metaOwner: req.Owner}
	if req.FolderId != nil && *req.FolderId != "" {
		metadata[metaFolderId] = *req.FolderId
	}

	session, err := c.gateway.CreateMultipartUpload(ctx, &storage.CreateUploadInput{
		Key:         key,
		ContentType: resolveContentType(req.ContentType, name),
		Metadata:    metadata,
	})
	if err != nil {
		c.logger.Error().Err(err).Str("op", op).Str("key", key).Msg("Failed to create multipart session")
		return nil, newError(op, "", key, ErrSessionInit, err)
	}

	c.logger.Info().
		Str("op", op).
		Str("upload_id", session.UploadId).
		Str("key", session.Key).
		Str("owner", req.Owner).
		Msg("Multipart session opened")

	return &InitResponse{UploadId: session.UploadId, Key: session.Key, Bucket: session.Bucket}, nil
}

// IssuePartURL signs a PUT URL for one part of an open session
func (c *Coordinator) IssuePartURL(ctx context.Context, uploadId, key string, partNumber int) (*PartURLResponse, error) {
	const op = "issue part url"

	if uploadId == "" || key == "" {
		return nil, newError(op, uploadId, key, ErrPartURL, fmt.Errorf("%w: uploadId and key are required", ErrInvalidArgument))
	}
	if partNumber <= 0 {
		return nil, newError(op, uploadId, key, ErrPartURL, fmt.Errorf("%w: part number must be positive, got %d", ErrInvalidArgument, partNumber))
	}

	signed, err := c.gateway.PresignUploadPart(ctx, key, uploadId, partNumber, c.presignExpiry)
	if err != nil {
		c.logger.Warn().Err(err).Str("op", op).Str("upload_id", uploadId).Str("key", key).Int("part_number", partNumber).Msg("Failed to sign part url")
		return nil, newError(op, uploadId, key, ErrPartURL, err)
	}

	return &PartURLResponse{
		PresignedUrl: signed,
		ExpiresIn:    int(c.presignExpiry / time.Second),
	}, nil
}

// Complete assembles the object and records it. The record is written only
// after the provider confirms assembly.
func (c *Coordinator) Complete(ctx context.Context, req *CompleteRequest) (*CompleteResponse, error) {
	const op = "complete upload"

	if req.UploadId == "" || req.Key == "" {
		return nil, newError(op, req.UploadId, req.Key, ErrComplete, fmt.Errorf("%w: uploadId and key are required", ErrInvalidArgument))
	}
	if len(req.Parts) == 0 {
		return nil, newError(op, req.UploadId, req.Key, ErrComplete, fmt.Errorf("%w: at least one part is required", ErrInvalidArgument))
	}

	parts := sortedParts(req.Parts)

	if err := c.gateway.CompleteMultipartUpload(ctx, req.Key, req.UploadId, parts); err != nil {
		kind := ErrComplete
		if errors.Is(err, storage.ErrInvalidParts) {
			kind = ErrCompleteValidation
		}
		c.logger.Error().Err(err).Str("op", op).Str("upload_id", req.UploadId).Str("key", req.Key).Int("parts", len(parts)).Msg("Provider rejected completion")
		return nil, newError(op, req.UploadId, req.Key, kind, err)
	}

	fileName, err := cleanFileName(req.FileName)
	if err != nil {
		fileName = path.Base(req.Key)
	}
	contentType := resolveContentType(req.ContentType, fileName)

	file := &model.FinalizedFile{
		ID:       c.newID(),
		Name:     fileName,
		Path:     req.Key,
		Url:      c.gateway.PublicURL(req.Key),
		Size:     req.FileSize,
		MimeType: contentType,
		FileType: coarseType(contentType),
		UserId:   req.Owner,
		FolderId: req.FolderId,
		IsActive: true,
	}

	if err := c.store.Create(ctx, file); err != nil {
		// the object is assembled but unrecorded; the caller sees a failed completion
		c.logger.Error().Err(err).Str("op", op).Str("upload_id", req.UploadId).Str("key", req.Key).Msg("Failed to record finalized file")
		return nil, newError(op, req.UploadId, req.Key, ErrComplete, fmt.Errorf("record finalized file: %w", err))
	}

	c.logger.Info().
		Str("op", op).
		Str("upload_id", req.UploadId).
		Str("key", req.Key).
		Str("file_id", file.ID).
		Int("parts", len(parts)).
		Int64("size", file.Size).
		Msg("Multipart upload completed")

	if file.IsVideo() && c.probes != nil {
		if !c.probes.Enqueue(ProbeJob{FileID: file.ID, Key: file.Path}) {
			c.logger.Warn().Str("file_id", file.ID).Str("key", file.Path).Msg("Probe queue full, duration left unset")
		}
	}
	if c.notifier != nil {
		c.notifier.UploadCompleted(ctx, file)
	}

	return &CompleteResponse{
		FileId:   file.ID,
		FileName: file.Name,
		FileUrl:  file.Url,
		Key:      file.Path,
	}, nil
}

// Abort cancels a session. It never touches finalized records.
func (c *Coordinator) Abort(ctx context.Context, uploadId, key string) error {
	const op = "abort upload"

	if uploadId == "" || key == "" {
		return newError(op, uploadId, key, ErrAbort, fmt.Errorf("%w: uploadId and key are required", ErrInvalidArgument))
	}

	if err := c.gateway.AbortMultipartUpload(ctx, key, uploadId); err != nil {
		c.logger.Warn().Err(err).Str("op", op).Str("upload_id", uploadId).Str("key", key).Msg("Failed to abort multipart session")
		return newError(op, uploadId, key, ErrAbort, err)
	}

	c.logger.Info().Str("op", op).Str("upload_id", uploadId).Str("key", key).Msg("Multipart session aborted")
	return nil
}

// sortedParts returns a copy ordered by ascending part number. Duplicates
// are kept so the provider can reject them.
func sortedParts(parts []storage.PartInfo) []storage.PartInfo {
	out := make([]storage.PartInfo, len(parts))
	copy(out, parts)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PartNumber < out[j].PartNumber
	})
	return out
}

func resolveContentType(contentType, fileName string) string {
	if ct := strings.TrimSpace(contentType); ct != "" {
		return ct
	}
	if ct := mime.TypeByExtension(path.Ext(fileName)); ct != "" {
		return ct
	}
	return defaultContentType
}

// coarseType top-level MIME category: "video/mp4" -> video
func coarseType(contentType string) model.FileType {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = contentType
	}
	top, _, _ := strings.Cut(strings.ToLower(mediaType), "/")
	if top == "" {
		return model.FileTypeApplication
	}
	return model.FileType(top)
}
