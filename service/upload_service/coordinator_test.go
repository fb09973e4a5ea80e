package upload_service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"media-vault/model"
	"media-vault/storage"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Bucket() string { return "public" }

func (m *mockGateway) CreateMultipartUpload(ctx context.Context, in *storage.CreateUploadInput) (*storage.UploadSession, error) {
	args := m.Called(in)
	if fn, ok := args.Get(0).(func(*storage.CreateUploadInput) *storage.UploadSession); ok {
		return fn(in), args.Error(1)
	}
	s, _ := args.Get(0).(*storage.UploadSession)
	return s, args.Error(1)
}

func (m *mockGateway) PresignUploadPart(ctx context.Context, key, uploadId string, partNumber int, expiry time.Duration) (string, error) {
	args := m.Called(key, uploadId, partNumber, expiry)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) CompleteMultipartUpload(ctx context.Context, key, uploadId string, parts []storage.PartInfo) error {
	return m.Called(key, uploadId, parts).Error(0)
}

func (m *mockGateway) AbortMultipartUpload(ctx context.Context, key, uploadId string) error {
	return m.Called(key, uploadId).Error(0)
}

func (m *mockGateway) PresignGetObject(ctx context.Context, key string, expiry time.Duration) (string, error) {
	args := m.Called(key, expiry)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) PutObject(ctx context.Context, key string, body io.Reader, contentType string) error {
	return m.Called(key, contentType).Error(0)
}

func (m *mockGateway) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(key)
	rc, _ := args.Get(0).(io.ReadCloser)
	return rc, args.Error(1)
}

func (m *mockGateway) PublicURL(key string) string {
	return "https://cdn.test/" + key
}

// memStore in-memory FileStore and DurationStore
type memStore struct {
	mu    sync.Mutex
	files map[string]*model.FinalizedFile
	err   error
}

func newMemStore() *memStore {
	return &memStore{files: map[string]*model.FinalizedFile{}}
}

func (s *memStore) Create(_ context.Context, file *model.FinalizedFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	cp := *file
	s.files[file.ID] = &cp
	return nil
}

func (s *memStore) UpdateVideoDuration(_ context.Context, id string, seconds float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[id]
	if !ok {
		return errors.New("not found")
	}
	f.VideoDuration = &seconds
	return nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

func (s *memStore) get(id string) *model.FinalizedFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[id]
	if !ok {
		return nil
	}
	cp := *f
	return &cp
}

type recordingScheduler struct {
	jobs []ProbeJob
}

func (r *recordingScheduler) Enqueue(job ProbeJob) bool {
	r.jobs = append(r.jobs, job)
	return true
}

func newLocalGateway(t *testing.T) *storage.LocalGateway {
	t.Helper()
	g, err := storage.NewLocalGateway(storage.LocalConfig{
		BasePath:      t.TempDir(),
		BaseURL:       "http://uploader.test",
		SigningSecret: "secret",
	})
	require.NoError(t, err)
	return g
}

// putPart plays the client: PUT the bytes to the signed URL, capture the ETag
func putPart(t *testing.T, g *storage.LocalGateway, signed, data string) string {
	t.Helper()
	u, err := url.Parse(signed)
	require.NoError(t, err)
	segments := strings.Split(strings.TrimPrefix(u.Path, "/local/parts/"), "/")
	require.Len(t, segments, 2)
	partNumber, err := strconv.Atoi(segments[1])
	require.NoError(t, err)
	expires, err := strconv.ParseInt(u.Query().Get("expires"), 10, 64)
	require.NoError(t, err)

	etag, err := g.AcceptPart(context.Background(), storage.PartUpload{
		UploadId:   segments[0],
		PartNumber: partNumber,
		Key:        u.Query().Get("key"),
		Expires:    expires,
		Signature:  u.Query().Get("signature"),
	}, strings.NewReader(data))
	require.NoError(t, err)
	return etag
}

func TestCompleteSortsPartsAscending(t *testing.T) {
	gw := &mockGateway{}
	store := newMemStore()
	c := NewCoordinator(gw, store)

	gw.On("CompleteMultipartUpload", "uploads/a-1.bin", "up-1", []storage.PartInfo{
		{PartNumber: 1, ETag: `"x"`},
		{PartNumber: 2, ETag: `"y"`},
	}).Return(nil)

	parts := []storage.PartInfo{{PartNumber: 2, ETag: `"y"`}, {PartNumber: 1, ETag: `"x"`}}
	res, err := c.Complete(context.Background(), &CompleteRequest{
		UploadId:    "up-1",
		Key:         "uploads/a-1.bin",
		Parts:       parts,
		FileName:    "a.bin",
		ContentType: "application/octet-stream",
		FileSize:    10,
		Owner:       "u1",
	})
	require.NoError(t, err)
	gw.AssertExpectations(t)

	assert.Equal(t, 2, parts[0].PartNumber, "caller slice is not reordered")
	assert.Equal(t, "https://cdn.test/uploads/a-1.bin", res.FileUrl)
	assert.Equal(t, "a.bin", res.FileName)
	assert.Equal(t, 1, store.count())
}

func TestCompleteRequiresParts(t *testing.T) {
	gw := &mockGateway{}
	store := newMemStore()
	c := NewCoordinator(gw, store)

	_, err := c.Complete(context.Background(), &CompleteRequest{UploadId: "up-1", Key: "k", Owner: "u1"})
	require.ErrorIs(t, err, ErrComplete)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, "CompleteError", KindName(err))
	assert.Equal(t, 0, store.count())
	gw.AssertNotCalled(t, "CompleteMultipartUpload", mock.Anything, mock.Anything, mock.Anything)
}

func TestCompleteProviderRejection(t *testing.T) {
	gw := &mockGateway{}
	store := newMemStore()
	c := NewCoordinator(gw, store)

	gw.On("CompleteMultipartUpload", "k", "bad", mock.Anything).
		Return(fmt.Errorf("complete: %w", storage.ErrInvalidParts)).Once()
	gw.On("CompleteMultipartUpload", "k", "gone", mock.Anything).
		Return(fmt.Errorf("complete: %w", storage.ErrNoSuchUpload)).Once()

	parts := []storage.PartInfo{{PartNumber: 1, ETag: "a"}, {PartNumber: 1, ETag: "a"}}

	_, err := c.Complete(context.Background(), &CompleteRequest{UploadId: "bad", Key: "k", Parts: parts, Owner: "u1"})
	assert.ErrorIs(t, err, ErrComplete)
	assert.ErrorIs(t, err, ErrCompleteValidation)
	assert.ErrorIs(t, err, storage.ErrInvalidParts)
	assert.Equal(t, "CompleteValidationError", KindName(err))

	_, err = c.Complete(context.Background(), &CompleteRequest{UploadId: "gone", Key: "k", Parts: parts, Owner: "u1"})
	assert.ErrorIs(t, err, ErrComplete)
	assert.NotErrorIs(t, err, ErrCompleteValidation)
	assert.True(t, IsTerminal(err))

	assert.Equal(t, 0, store.count())
	gw.AssertNotCalled(t, "AbortMultipartUpload", mock.Anything, mock.Anything)
}

func TestCompleteStoreFailure(t *testing.T) {
	gw := &mockGateway{}
	store := newMemStore()
	store.err = errors.New("db down")
	c := NewCoordinator(gw, store)

	gw.On("CompleteMultipartUpload", "k", "up", mock.Anything).Return(nil)

	_, err := c.Complete(context.Background(), &CompleteRequest{
		UploadId: "up", Key: "k", Parts: []storage.PartInfo{{PartNumber: 1, ETag: "a"}}, Owner: "u1",
	})
	assert.ErrorIs(t, err, ErrComplete)
	assert.Contains(t, err.Error(), "db down")
}

func TestInitFailureIsNotRetried(t *testing.T) {
	gw := &mockGateway{}
	c := NewCoordinator(gw, newMemStore())

	gw.On("CreateMultipartUpload", mock.Anything).Return(nil, fmt.Errorf("create: %w", storage.ErrAccessDenied))

	_, err := c.Init(context.Background(), &InitRequest{FileName: "a.txt", ContentType: "text/plain", Owner: "u1"})
	assert.ErrorIs(t, err, ErrSessionInit)
	assert.ErrorIs(t, err, storage.ErrAccessDenied)
	assert.Equal(t, "SessionInitError", KindName(err))
	gw.AssertNumberOfCalls(t, "CreateMultipartUpload", 1)
}

func TestInitRecordsOwnerMetadata(t *testing.T) {
	gw := &mockGateway{}
	c := NewCoordinator(gw, newMemStore(), WithClock(func() time.Time { return time.Unix(0, 7) }))
	folder := "folder-9"

	gw.On("CreateMultipartUpload", mock.MatchedBy(func(in *storage.CreateUploadInput) bool {
		return in.Key == "uploads/report-7.pdf" &&
			in.ContentType == "application/pdf" &&
			in.Metadata["owner"] == "u1" &&
			in.Metadata["folder-id"] == "folder-9"
	})).Return(&storage.UploadSession{UploadId: "up-1", Key: "uploads/report-7.pdf", Bucket: "public"}, nil)

	res, err := c.Init(context.Background(), &InitRequest{FileName: "report.pdf", ContentType: "application/pdf", Owner: "u1", FolderId: &folder})
	require.NoError(t, err)
	assert.Equal(t, &InitResponse{UploadId: "up-1", Key: "uploads/report-7.pdf", Bucket: "public"}, res)
}

func TestInitRejectsBadArguments(t *testing.T) {
	c := NewCoordinator(&mockGateway{}, newMemStore())

	_, err := c.Init(context.Background(), &InitRequest{FileName: "", Owner: "u1"})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = c.Init(context.Background(), &InitRequest{FileName: "a.txt"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, "SessionInitError", KindName(err))
}

func TestIssuePartURLRejectsNonPositive(t *testing.T) {
	gw := &mockGateway{}
	c := NewCoordinator(gw, newMemStore())

	for _, n := range []int{0, -1} {
		_, err := c.IssuePartURL(context.Background(), "up", "k", n)
		assert.ErrorIs(t, err, ErrPartURL)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	}
	gw.AssertNotCalled(t, "PresignUploadPart", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestIssuePartURLUsesConfiguredExpiry(t *testing.T) {
	gw := &mockGateway{}
	c := NewCoordinator(gw, newMemStore(), WithPresignExpiry(15*time.Minute))

	gw.On("PresignUploadPart", "k", "up", 10001, 15*time.Minute).Return("https://signed", nil)

	res, err := c.IssuePartURL(context.Background(), "up", "k", 10001)
	require.NoError(t, err)
	assert.Equal(t, 900, res.ExpiresIn)
	assert.Equal(t, "https://signed", res.PresignedUrl)
}

func TestClipScenario(t *testing.T) {
	gw := newLocalGateway(t)
	store := newMemStore()
	probes := &recordingScheduler{}
	c := NewCoordinator(gw, store, WithProbeScheduler(probes))
	ctx := context.Background()

	session, err := c.Init(ctx, &InitRequest{FileName: "clip.mp4", ContentType: "video/mp4", Directory: "uploads/videos", Owner: "u1"})
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^uploads/videos/clip-\d+\.mp4$`), session.Key)

	part, err := c.IssuePartURL(ctx, session.UploadId, session.Key, 1)
	require.NoError(t, err)
	assert.NotEmpty(t, part.PresignedUrl)
	assert.Equal(t, 3600, part.ExpiresIn)

	etag := putPart(t, gw, part.PresignedUrl, "frame-data")

	res, err := c.Complete(ctx, &CompleteRequest{
		UploadId:    session.UploadId,
		Key:         session.Key,
		Parts:       []storage.PartInfo{{PartNumber: 1, ETag: etag}},
		FileName:    "clip.mp4",
		ContentType: "video/mp4",
		FileSize:    1048576,
		Owner:       "u1",
	})
	require.NoError(t, err)
	assert.Equal(t, session.Key, res.Key)

	file := store.get(res.FileId)
	require.NotNil(t, file)
	assert.Equal(t, model.FileTypeVideo, file.FileType)
	assert.Equal(t, int64(1048576), file.Size)
	assert.Equal(t, "u1", file.UserId)
	assert.True(t, file.IsActive)
	assert.Equal(t, []ProbeJob{{FileID: res.FileId, Key: session.Key}}, probes.jobs)
}

func TestTerminalSessionRejections(t *testing.T) {
	gw := newLocalGateway(t)
	store := newMemStore()
	c := NewCoordinator(gw, store)
	ctx := context.Background()

	session, err := c.Init(ctx, &InitRequest{FileName: "notes.txt", ContentType: "text/plain", Owner: "u1"})
	require.NoError(t, err)
	part, err := c.IssuePartURL(ctx, session.UploadId, session.Key, 1)
	require.NoError(t, err)
	etag := putPart(t, gw, part.PresignedUrl, "hello")

	complete := &CompleteRequest{
		UploadId: session.UploadId,
		Key:      session.Key,
		Parts:    []storage.PartInfo{{PartNumber: 1, ETag: etag}},
		FileName: "notes.txt",
		Owner:    "u1",
	}
	_, err = c.Complete(ctx, complete)
	require.NoError(t, err)
	require.Equal(t, 1, store.count())

	_, err = c.IssuePartURL(ctx, session.UploadId, session.Key, 2)
	assert.ErrorIs(t, err, ErrPartURL)
	assert.True(t, IsTerminal(err))

	_, err = c.Complete(ctx, complete)
	assert.ErrorIs(t, err, ErrComplete)
	assert.Equal(t, 1, store.count(), "no second record")

	err = c.Abort(ctx, session.UploadId, session.Key)
	assert.ErrorIs(t, err, ErrAbort)
	assert.True(t, IsTerminal(err))
	assert.Equal(t, 1, store.count(), "abort does not roll back the record")

	rc, err := gw.GetObject(ctx, session.Key)
	require.NoError(t, err)
	rc.Close()
}

func TestAbortedSessionRejectsCompletion(t *testing.T) {
	gw := newLocalGateway(t)
	store := newMemStore()
	c := NewCoordinator(gw, store)
	ctx := context.Background()

	session, err := c.Init(ctx, &InitRequest{FileName: "a.bin", Owner: "u1"})
	require.NoError(t, err)
	part, err := c.IssuePartURL(ctx, session.UploadId, session.Key, 1)
	require.NoError(t, err)
	etag := putPart(t, gw, part.PresignedUrl, "x")

	require.NoError(t, c.Abort(ctx, session.UploadId, session.Key))

	_, err = c.Complete(ctx, &CompleteRequest{
		UploadId: session.UploadId, Key: session.Key, Parts: []storage.PartInfo{{PartNumber: 1, ETag: etag}}, Owner: "u1",
	})
	assert.ErrorIs(t, err, ErrComplete)
	assert.True(t, IsTerminal(err))
	assert.Equal(t, 0, store.count())

	assert.ErrorIs(t, c.Abort(ctx, session.UploadId, session.Key), ErrAbort)
}

func TestConcurrentInitKeysAreDistinct(t *testing.T) {
	gw := &mockGateway{}
	gw.On("CreateMultipartUpload", mock.Anything).Return(func(in *storage.CreateUploadInput) *storage.UploadSession {
		return &storage.UploadSession{UploadId: in.Key, Key: in.Key}
	}, nil)

	frozen := time.Unix(1700000000, 0)
	c := NewCoordinator(gw, newMemStore(), WithClock(func() time.Time { return frozen }))

	const n = 64
	keys := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := c.Init(context.Background(), &InitRequest{FileName: "same.png", ContentType: "image/png", Owner: "u1"})
			if assert.NoError(t, err) {
				keys[i] = res.Key
			}
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, k := range keys {
		assert.False(t, seen[k], "duplicate key %s", k)
		seen[k] = true
	}
}
