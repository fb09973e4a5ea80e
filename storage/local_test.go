package storage

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocalGateway(t *testing.T) *LocalGateway {
	t.Helper()
	g, err := NewLocalGateway(LocalConfig{
		BasePath:      t.TempDir(),
		BaseURL:       "http://uploader.test",
		SigningSecret: "secret",
	})
	require.NoError(t, err)
	return g
}

// parsePartURL turns a signed part URL back into the upload the handler would see
func parsePartURL(t *testing.T, raw string) PartUpload {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	segments := strings.Split(strings.TrimPrefix(u.Path, localPartsRoute+"/"), "/")
	require.Len(t, segments, 2)
	partNumber, err := strconv.Atoi(segments[1])
	require.NoError(t, err)
	expires, err := strconv.ParseInt(u.Query().Get("expires"), 10, 64)
	require.NoError(t, err)
	return PartUpload{
		UploadId:   segments[0],
		PartNumber: partNumber,
		Key:        u.Query().Get("key"),
		Expires:    expires,
		Signature:  u.Query().Get("signature"),
	}
}

func uploadPart(t *testing.T, g *LocalGateway, key, uploadId string, partNumber int, data string) PartInfo {
	t.Helper()
	signed, err := g.PresignUploadPart(context.Background(), key, uploadId, partNumber, time.Hour)
	require.NoError(t, err)
	etag, err := g.AcceptPart(context.Background(), parsePartURL(t, signed), strings.NewReader(data))
	require.NoError(t, err)
	return PartInfo{PartNumber: partNumber, ETag: etag}
}

func TestLocalMultipartRoundTrip(t *testing.T) {
	g := newTestLocalGateway(t)
	ctx := context.Background()

	session, err := g.CreateMultipartUpload(ctx, &CreateUploadInput{Key: "uploads/a-1.txt", ContentType: "text/plain"})
	require.NoError(t, err)
	assert.Equal(t, "local", session.Bucket)

	p1 := uploadPart(t, g, session.Key, session.UploadId, 1, "hello ")
	p2 := uploadPart(t, g, session.Key, session.UploadId, 2, "world")
	assert.Equal(t, `"5d41402abc4b2a76b9719d911017c592"`, uploadPart(t, g, session.Key, session.UploadId, 3, "hello").ETag)

	err = g.CompleteMultipartUpload(ctx, session.Key, session.UploadId, []PartInfo{p1, p2})
	require.NoError(t, err)

	rc, err := g.GetObject(ctx, session.Key)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	_, err = os.Stat(g.sessionDir(session.UploadId))
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, "http://uploader.test/local/objects/uploads/a-1.txt", g.PublicURL(session.Key))
}

func TestLocalClosedSessionRejectsEverything(t *testing.T) {
	g := newTestLocalGateway(t)
	ctx := context.Background()

	session, err := g.CreateMultipartUpload(ctx, &CreateUploadInput{Key: "uploads/b.bin"})
	require.NoError(t, err)
	part := uploadPart(t, g, session.Key, session.UploadId, 1, "x")
	require.NoError(t, g.CompleteMultipartUpload(ctx, session.Key, session.UploadId, []PartInfo{part}))

	_, err = g.PresignUploadPart(ctx, session.Key, session.UploadId, 2, time.Hour)
	assert.ErrorIs(t, err, ErrNoSuchUpload)
	assert.ErrorIs(t, g.CompleteMultipartUpload(ctx, session.Key, session.UploadId, []PartInfo{part}), ErrNoSuchUpload)
	assert.ErrorIs(t, g.AbortMultipartUpload(ctx, session.Key, session.UploadId), ErrNoSuchUpload)
}

func TestLocalInvalidPartListKeepsSessionOpen(t *testing.T) {
	g := newTestLocalGateway(t)
	ctx := context.Background()

	session, err := g.CreateMultipartUpload(ctx, &CreateUploadInput{Key: "uploads/c.bin"})
	require.NoError(t, err)
	p1 := uploadPart(t, g, session.Key, session.UploadId, 1, "one")

	err = g.CompleteMultipartUpload(ctx, session.Key, session.UploadId, []PartInfo{{PartNumber: 1, ETag: `"deadbeef"`}})
	assert.ErrorIs(t, err, ErrInvalidParts)

	err = g.CompleteMultipartUpload(ctx, session.Key, session.UploadId, []PartInfo{p1, p1})
	assert.ErrorIs(t, err, ErrInvalidParts)

	assert.NoError(t, g.CompleteMultipartUpload(ctx, session.Key, session.UploadId, []PartInfo{p1}))
}

func TestLocalAbortDiscardsParts(t *testing.T) {
	g := newTestLocalGateway(t)
	ctx := context.Background()

	session, err := g.CreateMultipartUpload(ctx, &CreateUploadInput{Key: "uploads/d.bin"})
	require.NoError(t, err)
	part := uploadPart(t, g, session.Key, session.UploadId, 1, "x")

	require.NoError(t, g.AbortMultipartUpload(ctx, session.Key, session.UploadId))
	assert.ErrorIs(t, g.CompleteMultipartUpload(ctx, session.Key, session.UploadId, []PartInfo{part}), ErrNoSuchUpload)

	_, err = g.GetObject(ctx, session.Key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalAcceptPartSignature(t *testing.T) {
	g := newTestLocalGateway(t)
	ctx := context.Background()

	session, err := g.CreateMultipartUpload(ctx, &CreateUploadInput{Key: "uploads/e.bin"})
	require.NoError(t, err)
	signed, err := g.PresignUploadPart(ctx, session.Key, session.UploadId, 1, time.Minute)
	require.NoError(t, err)

	tampered := parsePartURL(t, signed)
	tampered.PartNumber = 2
	_, err = g.AcceptPart(ctx, tampered, strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrBadSignature)

	g.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = g.AcceptPart(ctx, parsePartURL(t, signed), strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrURLExpired)
}

func TestLocalRejectsEscapingKeys(t *testing.T) {
	g := newTestLocalGateway(t)

	_, err := g.CreateMultipartUpload(context.Background(), &CreateUploadInput{Key: ".multipart/x"})
	assert.ErrorIs(t, err, ErrInvalidKey)

	p, err := g.ObjectPath("../../etc/passwd")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p, filepath.Clean(g.basePath)))
}

func TestNewLocalGatewayRequiresSecret(t *testing.T) {
	_, err := NewLocalGateway(LocalConfig{BasePath: t.TempDir(), BaseURL: "http://x"})
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestLocalExpireSessions(t *testing.T) {
	g := newTestLocalGateway(t)
	ctx := context.Background()

	start := time.Now()
	g.now = func() time.Time { return start.Add(-2 * time.Hour) }
	stale, err := g.CreateMultipartUpload(ctx, &CreateUploadInput{Key: "uploads/stale.bin"})
	require.NoError(t, err)

	g.now = time.Now
	fresh, err := g.CreateMultipartUpload(ctx, &CreateUploadInput{Key: "uploads/fresh.bin"})
	require.NoError(t, err)

	n, err := g.ExpireSessions(ctx, start.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = g.PresignUploadPart(ctx, stale.Key, stale.UploadId, 1, time.Minute)
	assert.ErrorIs(t, err, ErrNoSuchUpload)
	_, err = g.PresignUploadPart(ctx, fresh.Key, fresh.UploadId, 1, time.Minute)
	assert.NoError(t, err)
}

func TestLocalPutObjectRoundTrip(t *testing.T) {
	ctx := context.Background()
	g := newTestLocalGateway(t)

	require.NoError(t, g.PutObject(ctx, "uploads/nested/a-1.txt", strings.NewReader("hello"), "text/plain"))
	require.NoError(t, g.PutObject(ctx, "uploads/nested/a-1.txt", strings.NewReader("hello again"), "text/plain"))

	rc, err := g.GetObject(ctx, "uploads/nested/a-1.txt")
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello again", string(got))

	_, err = g.GetObject(ctx, "uploads/missing.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}
