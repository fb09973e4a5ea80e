// Package uploadclient drives a multipart upload against the uploader
// service: init, sign and PUT each part, complete, abort on failure.
package uploadclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/imroc/req"
	"github.com/rs/zerolog"
)

const (
	DefaultChunkSize   = 5 * 1024 * 1024
	DefaultParallelism = 1
	DefaultMaxRetries  = 3
)

var ErrMissingETag = errors.New("part upload response carried no ETag")

// APIError a non-2xx answer from the uploader or the storage provider
type APIError struct {
	Status   int
	Kind     string `json:"error"`
	Message  string `json:"message"`
	Terminal bool   `json:"terminal"`
}

func (e *APIError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("status %d %s: %s", e.Status, e.Kind, e.Message)
}

// retryable session-ending and malformed-request errors are not retried.
// 403 is retried since every attempt signs a fresh url.
func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Terminal {
			return false
		}
		switch apiErr.Status {
		case http.StatusForbidden, http.StatusRequestTimeout, http.StatusTooManyRequests:
			return true
		}
		return apiErr.Status >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// Config client settings
type Config struct {
	BaseURL      string
	UserId       string
	ChunkSize    int64
	Parallelism  int
	MaxRetries   int
	RetryBackoff time.Duration
	HTTPClient   *http.Client
	Logger       zerolog.Logger
}

// Client reusable upload driver
type Client struct {
	baseURL     string
	userId      string
	chunkSize   int64
	parallelism int
	maxRetries  int
	backoff     time.Duration
	http        *req.Req
	logger      zerolog.Logger
}

// New create client instance
func New(cfg Config) *Client {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = DefaultParallelism
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}

	r := req.New()
	if cfg.HTTPClient != nil {
		r.SetClient(cfg.HTTPClient)
	}

	return &Client{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		userId:      cfg.UserId,
		chunkSize:   cfg.ChunkSize,
		parallelism: cfg.Parallelism,
		maxRetries:  cfg.MaxRetries,
		backoff:     cfg.RetryBackoff,
		http:        r,
		logger:      cfg.Logger,
	}
}

// UploadInput one file to upload
type UploadInput struct {
	FileName    string
	ContentType string
	Directory   string
	FolderId    *string
	Body        io.ReaderAt
	Size        int64
	// OnProgress receives the byte count of each stored part
	OnProgress func(n int64)
}

// Result finalized file summary
type Result struct {
	FileId   string `json:"fileId"`
	FileName string `json:"fileName"`
	FileUrl  string `json:"fileUrl"`
	Key      string `json:"key"`
}

type session struct {
	UploadId string `json:"uploadId"`
	Key      string `json:"key"`
	Bucket   string `json:"bucket"`
}

type signedPart struct {
	PresignedUrl string `json:"presignedUrl"`
	ExpiresIn    int    `json:"expiresIn"`
}

// Part receipt as reported on completion
type Part struct {
	ETag       string `json:"ETag"`
	PartNumber int    `json:"PartNumber"`
}

// PartCount number of parts a file of size splits into; an empty file is one empty part
func PartCount(size, chunkSize int64) int {
	if size <= 0 {
		return 1
	}
	return int((size + chunkSize - 1) / chunkSize)
}

// Upload runs the whole lifecycle. Any part that fails after retries aborts
// the session.
func (c *Client) Upload(ctx context.Context, in UploadInput) (*Result, error) {
	var s session
	if err := c.postJSON(ctx, "/s3/init-upload", map[string]interface{}{
		"fileName":    in.FileName,
		"contentType": in.ContentType,
		"directory":   in.Directory,
		"folderId":    in.FolderId,
	}, &s); err != nil {
		return nil, fmt.Errorf("init upload: %w", err)
	}
	log := c.logger.With().Str("upload_id", s.UploadId).Str("key", s.Key).Logger()
	log.Debug().Msg("Session opened")

	parts, err := c.uploadParts(ctx, s, in)
	if err != nil {
		log.Warn().Err(err).Msg("Part upload failed, aborting session")
		c.abort(s)
		return nil, err
	}

	var res Result
	if err := c.postJSON(ctx, "/s3/complete-upload", map[string]interface{}{
		"uploadId":    s.UploadId,
		"key":         s.Key,
		"parts":       parts,
		"fileName":    in.FileName,
		"contentType": in.ContentType,
		"fileSize":    in.Size,
		"folderId":    in.FolderId,
	}, &res); err != nil {
		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.Terminal {
			c.abort(s)
		}
		return nil, fmt.Errorf("complete upload: %w", err)
	}
	log.Info().Str("file_id", res.FileId).Int("parts", len(parts)).Msg("Upload completed")
	return &res, nil
}

func (c *Client) uploadParts(ctx context.Context, s session, in UploadInput) ([]Part, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	count := PartCount(in.Size, c.chunkSize)
	numbers := make(chan int)
	var (
		mu       sync.Mutex
		parts    = make([]Part, 0, count)
		firstErr error
		wg       sync.WaitGroup
	)

	workers := c.parallelism
	if workers > count {
		workers = count
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := range numbers {
				part, err := c.uploadPartWithRetry(ctx, s, in, n)
				mu.Lock()
				if err != nil {
					if firstErr == nil {
						firstErr = fmt.Errorf("part %d: %w", n, err)
						cancel()
					}
				} else {
					parts = append(parts, part)
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for n := 1; n <= count; n++ {
		select {
		case numbers <- n:
		case <-ctx.Done():
			break feed
		}
	}
	close(numbers)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].PartNumber < parts[j].PartNumber })
	return parts, nil
}

func (c *Client) uploadPartWithRetry(ctx context.Context, s session, in UploadInput, n int) (Part, error) {
	offset := int64(n-1) * c.chunkSize
	length := c.chunkSize
	if offset+length > in.Size {
		length = in.Size - offset
	}
	if length < 0 {
		length = 0
	}

	var err error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.backoff * time.Duration(attempt)):
			case <-ctx.Done():
				return Part{}, ctx.Err()
			}
		}

		var etag string
		etag, err = c.uploadPart(ctx, s, n, io.NewSectionReader(in.Body, offset, length))
		if err == nil {
			if in.OnProgress != nil {
				in.OnProgress(length)
			}
			return Part{ETag: etag, PartNumber: n}, nil
		}
		if !retryable(err) {
			return Part{}, err
		}
		c.logger.Debug().Err(err).Int("part_number", n).Int("attempt", attempt+1).Msg("Retrying part")
	}
	return Part{}, err
}

// uploadPart signs a fresh url per attempt so retries never reuse an expired one
func (c *Client) uploadPart(ctx context.Context, s session, n int, body *io.SectionReader) (string, error) {
	var signed signedPart
	if err := c.postJSON(ctx, "/s3/presign-url", map[string]interface{}{
		"uploadId":   s.UploadId,
		"key":        s.Key,
		"partNumber": n,
	}, &signed); err != nil {
		return "", err
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("read part: %w", err)
	}

	resp, err := c.http.Put(signed.PresignedUrl, data, ctx)
	if err != nil {
		return "", err
	}
	res := resp.Response()
	if res.StatusCode/100 != 2 {
		return "", decodeError(resp)
	}
	etag := res.Header.Get("ETag")
	if etag == "" {
		return "", ErrMissingETag
	}
	return etag, nil
}

func (c *Client) abort(s session) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.postJSON(ctx, "/s3/abort-upload", map[string]string{
		"uploadId": s.UploadId,
		"key":      s.Key,
	}, nil); err != nil {
		c.logger.Warn().Err(err).Str("upload_id", s.UploadId).Msg("Failed to abort session")
	}
}

func (c *Client) postJSON(ctx context.Context, path string, body, out interface{}) error {
	resp, err := c.http.Post(c.baseURL+path, req.Header{"X-User-Id": c.userId}, req.BodyJSON(body), ctx)
	if err != nil {
		return err
	}
	if resp.Response().StatusCode/100 != 2 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	return resp.ToJSON(out)
}

func decodeError(resp *req.Resp) error {
	apiErr := &APIError{Status: resp.Response().StatusCode}
	if err := resp.ToJSON(apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(resp.String())
	}
	// storage rejected the session itself
	if apiErr.Status == http.StatusNotFound && apiErr.Kind == "NoSuchUpload" {
		apiErr.Terminal = true
	}
	return apiErr
}
