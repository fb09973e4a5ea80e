package storage

import (
	"context"
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	localSessionRoot  = ".multipart"
	localSessionFile  = "session.json"
	localClaimSuffix  = ".claimed"
	localPartsRoute   = "/local/parts"
	localObjectsRoute = "/local/objects"
)

// LocalConfig filesystem gateway settings
type LocalConfig struct {
	BasePath      string
	BaseURL       string // external URL of the uploader service
	SigningSecret string
	PublicBaseURL string
}

// LocalGateway multipart gateway on the local filesystem. Sessions live in
// <base>/.multipart/<uploadId>/ until completed or aborted.
type LocalGateway struct {
	basePath      string
	baseURL       string
	publicBaseURL string
	secret        []byte
	now           func() time.Time
}

type localSession struct {
	Key         string            `json:"key"`
	ContentType string            `json:"contentType"`
	Metadata    map[string]string `json:"metadata"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// NewLocalGateway create local gateway instance
func NewLocalGateway(cfg LocalConfig) (*LocalGateway, error) {
	if cfg.BasePath == "" {
		cfg.BasePath = "./data/files"
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: local storage requires base_url", ErrConfiguration)
	}
	if cfg.SigningSecret == "" {
		return nil, fmt.Errorf("%w: local storage requires signing_secret", ErrConfiguration)
	}

	if err := os.MkdirAll(filepath.Join(cfg.BasePath, localSessionRoot), 0755); err != nil {
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	publicBase := strings.TrimSuffix(cfg.PublicBaseURL, "/")
	if publicBase == "" {
		publicBase = baseURL + localObjectsRoute
	}

	return &LocalGateway{
		basePath:      cfg.BasePath,
		baseURL:       baseURL,
		publicBaseURL: publicBase,
		secret:        []byte(cfg.SigningSecret),
		now:           time.Now,
	}, nil
}

func (g *LocalGateway) Bucket() string {
	return "local"
}

func (g *LocalGateway) sessionDir(uploadId string) string {
	return filepath.Join(g.basePath, localSessionRoot, uploadId)
}

func (g *LocalGateway) objectPath(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if key == "" || clean == "/" || strings.HasPrefix(clean, "/"+localSessionRoot) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(g.basePath, clean), nil
}

func partFileName(partNumber int) string {
	return fmt.Sprintf("part-%05d", partNumber)
}

func (g *LocalGateway) loadSession(dir string) (*localSession, error) {
	data, err := os.ReadFile(filepath.Join(dir, localSessionFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSuchUpload
		}
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	var s localSession
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &s, nil
}

// openSession loads a session and checks it belongs to key
func (g *LocalGateway) openSession(key, uploadId string) (*localSession, error) {
	if _, err := uuid.Parse(uploadId); err != nil {
		return nil, ErrNoSuchUpload
	}
	s, err := g.loadSession(g.sessionDir(uploadId))
	if err != nil {
		return nil, err
	}
	if s.Key != key {
		return nil, ErrNoSuchUpload
	}
	return s, nil
}

// claim moves the session out of the open set. Exactly one caller wins.
func (g *LocalGateway) claim(uploadId string) (string, error) {
	if _, err := uuid.Parse(uploadId); err != nil {
		return "", ErrNoSuchUpload
	}
	dir := g.sessionDir(uploadId)
	claimed := dir + localClaimSuffix
	if err := os.Rename(dir, claimed); err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoSuchUpload
		}
		return "", fmt.Errorf("failed to claim session: %w", err)
	}
	return claimed, nil
}

func (g *LocalGateway) CreateMultipartUpload(ctx context.Context, in *CreateUploadInput) (*UploadSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, contextError(err, "create multipart upload")
	}
	if _, err := g.objectPath(in.Key); err != nil {
		return nil, err
	}

	uploadId := uuid.NewString()
	dir := g.sessionDir(uploadId)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	data, err := json.Marshal(localSession{
		Key:         in.Key,
		ContentType: in.ContentType,
		Metadata:    in.Metadata,
		CreatedAt:   g.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, localSessionFile), data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write session: %w", err)
	}

	return &UploadSession{UploadId: uploadId, Key: in.Key, Bucket: g.Bucket()}, nil
}

func (g *LocalGateway) PresignUploadPart(ctx context.Context, key, uploadId string, partNumber int, expiry time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", contextError(err, "presign upload part")
	}
	if _, err := g.openSession(key, uploadId); err != nil {
		return "", fmt.Errorf("presign upload part: %w", err)
	}

	expires := g.now().Add(expiry).Unix()
	q := url.Values{}
	q.Set("key", key)
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("signature", g.sign(uploadId, partNumber, key, expires))
	return fmt.Sprintf("%s%s/%s/%d?%s", g.baseURL, localPartsRoute, uploadId, partNumber, q.Encode()), nil
}

func (g *LocalGateway) sign(uploadId string, partNumber int, key string, expires int64) string {
	mac := hmac.New(sha256.New, g.secret)
	fmt.Fprintf(mac, "PUT\n%s\n%d\n%s\n%d", uploadId, partNumber, key, expires)
	return hex.EncodeToString(mac.Sum(nil))
}

// PartUpload a signed part PUT as received by the HTTP layer
type PartUpload struct {
	UploadId   string
	PartNumber int
	Key        string
	Expires    int64
	Signature  string
}

// AcceptPart verifies a signed part URL and stores the body. Returns the
// quoted hex MD5 ETag, matching what S3 reports for a part.
func (g *LocalGateway) AcceptPart(ctx context.Context, p PartUpload, body io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", contextError(err, "upload part")
	}
	expected := g.sign(p.UploadId, p.PartNumber, p.Key, p.Expires)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(p.Signature)) != 1 {
		return "", ErrBadSignature
	}
	if g.now().Unix() > p.Expires {
		return "", ErrURLExpired
	}
	if p.PartNumber < 1 {
		return "", fmt.Errorf("%w: part number %d", ErrInvalidParts, p.PartNumber)
	}
	if _, err := g.openSession(p.Key, p.UploadId); err != nil {
		return "", err
	}

	dir := g.sessionDir(p.UploadId)
	tmp, err := os.CreateTemp(dir, "incoming-*")
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoSuchUpload
		}
		return "", fmt.Errorf("failed to create part file: %w", err)
	}
	defer os.Remove(tmp.Name())

	hash := md5.New()
	if _, err := io.Copy(io.MultiWriter(tmp, hash), body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write part: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write part: %w", err)
	}

	etag := hex.EncodeToString(hash.Sum(nil))
	partPath := filepath.Join(dir, partFileName(p.PartNumber))
	if err := os.WriteFile(partPath+".etag", []byte(etag), 0644); err != nil {
		return "", fmt.Errorf("failed to write part etag: %w", err)
	}
	if err := os.Rename(tmp.Name(), partPath); err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoSuchUpload
		}
		return "", fmt.Errorf("failed to store part: %w", err)
	}
	return strconv.Quote(etag), nil
}

func (g *LocalGateway) CompleteMultipartUpload(ctx context.Context, key, uploadId string, parts []PartInfo) error {
	if err := ctx.Err(); err != nil {
		return contextError(err, "complete multipart upload")
	}
	if _, err := g.openSession(key, uploadId); err != nil {
		return fmt.Errorf("complete multipart upload: %w", err)
	}
	target, err := g.objectPath(key)
	if err != nil {
		return err
	}

	claimed, err := g.claim(uploadId)
	if err != nil {
		return fmt.Errorf("complete multipart upload: %w", err)
	}

	if err := g.validateParts(claimed, parts); err != nil {
		// a rejected part list leaves the session open
		if renameErr := os.Rename(claimed, g.sessionDir(uploadId)); renameErr != nil {
			return errors.Join(err, renameErr)
		}
		return fmt.Errorf("complete multipart upload: %w", err)
	}

	if err := assembleParts(claimed, target, parts); err != nil {
		_ = os.Rename(claimed, g.sessionDir(uploadId))
		return fmt.Errorf("complete multipart upload: %w", err)
	}
	return os.RemoveAll(claimed)
}

func (g *LocalGateway) validateParts(dir string, parts []PartInfo) error {
	if len(parts) == 0 {
		return fmt.Errorf("%w: empty part list", ErrInvalidParts)
	}
	for i, p := range parts {
		if i > 0 && p.PartNumber <= parts[i-1].PartNumber {
			return fmt.Errorf("%w: part %d out of order", ErrInvalidParts, p.PartNumber)
		}
		stored, err := os.ReadFile(filepath.Join(dir, partFileName(p.PartNumber)+".etag"))
		if err != nil {
			return fmt.Errorf("%w: part %d not uploaded", ErrInvalidParts, p.PartNumber)
		}
		if strings.Trim(p.ETag, `"`) != string(stored) {
			return fmt.Errorf("%w: part %d etag mismatch", ErrInvalidParts, p.PartNumber)
		}
	}
	return nil
}

func assembleParts(dir, target string, parts []PartInfo) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	out, err := os.CreateTemp(filepath.Dir(target), ".assemble-*")
	if err != nil {
		return fmt.Errorf("failed to create object: %w", err)
	}
	defer os.Remove(out.Name())

	for _, p := range parts {
		in, err := os.Open(filepath.Join(dir, partFileName(p.PartNumber)))
		if err != nil {
			out.Close()
			return fmt.Errorf("failed to open part %d: %w", p.PartNumber, err)
		}
		_, err = io.Copy(out, in)
		in.Close()
		if err != nil {
			out.Close()
			return fmt.Errorf("failed to copy part %d: %w", p.PartNumber, err)
		}
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to write object: %w", err)
	}
	return os.Rename(out.Name(), target)
}

func (g *LocalGateway) AbortMultipartUpload(ctx context.Context, key, uploadId string) error {
	if err := ctx.Err(); err != nil {
		return contextError(err, "abort multipart upload")
	}
	if _, err := g.openSession(key, uploadId); err != nil {
		return fmt.Errorf("abort multipart upload: %w", err)
	}
	claimed, err := g.claim(uploadId)
	if err != nil {
		return fmt.Errorf("abort multipart upload: %w", err)
	}
	return os.RemoveAll(claimed)
}

// ExpireSessions aborts open sessions created before cutoff and returns how
// many were removed. Sessions claimed by an in-flight complete or abort are
// left alone.
func (g *LocalGateway) ExpireSessions(ctx context.Context, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(filepath.Join(g.basePath, localSessionRoot))
	if err != nil {
		return 0, fmt.Errorf("failed to list sessions: %w", err)
	}

	expired := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return expired, contextError(err, "expire sessions")
		}
		if !entry.IsDir() || strings.HasSuffix(entry.Name(), localClaimSuffix) {
			continue
		}
		if _, err := uuid.Parse(entry.Name()); err != nil {
			continue
		}
		s, err := g.loadSession(g.sessionDir(entry.Name()))
		if err != nil || !s.CreatedAt.Before(cutoff) {
			continue
		}
		claimed, err := g.claim(entry.Name())
		if err != nil {
			continue
		}
		if err := os.RemoveAll(claimed); err != nil {
			return expired, fmt.Errorf("failed to remove session %s: %w", entry.Name(), err)
		}
		expired++
	}
	return expired, nil
}

// PresignGetObject local objects are served without signing
func (g *LocalGateway) PresignGetObject(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if _, err := g.objectPath(key); err != nil {
		return "", err
	}
	return g.PublicURL(key), nil
}

func (g *LocalGateway) PutObject(ctx context.Context, key string, body io.Reader, contentType string) error {
	target, err := g.objectPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	return f.Close()
}

func (g *LocalGateway) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	target, err := g.objectPath(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return f, nil
}

// ObjectPath resolves a key to its file on disk
func (g *LocalGateway) ObjectPath(key string) (string, error) {
	return g.objectPath(key)
}

func (g *LocalGateway) PublicURL(key string) string {
	return joinURL(g.publicBaseURL, key)
}
