package upload_service

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"media-vault/model"
	"media-vault/storage"
)

type proberFunc func(ctx context.Context, r io.Reader) (float64, error)

func (f proberFunc) Duration(ctx context.Context, r io.Reader) (float64, error) {
	return f(ctx, r)
}

type recordingNotifier struct {
	mu        sync.Mutex
	completed []string
	durations map[string]float64
}

func (n *recordingNotifier) UploadCompleted(_ context.Context, file *model.FinalizedFile) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed = append(n.completed, file.ID)
}

func (n *recordingNotifier) DurationProbed(_ context.Context, fileID string, seconds float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.durations == nil {
		n.durations = map[string]float64{}
	}
	n.durations[fileID] = seconds
}

func completeVideo(t *testing.T, prober Prober, timeout time.Duration) (*memStore, *CompleteResponse, *recordingNotifier) {
	t.Helper()
	gw := &mockGateway{}
	gw.On("CompleteMultipartUpload", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	gw.On("GetObject", mock.Anything).Return(io.NopCloser(strings.NewReader("video-bytes")), nil)

	store := newMemStore()
	notifier := &recordingNotifier{}
	processor := NewProbeProcessor(gw, prober, store, ProbeProcessorConfig{Workers: 1, QueueSize: 4, Timeout: timeout}, zerolog.Nop())
	processor.SetNotifier(notifier)
	processor.Start()

	c := NewCoordinator(gw, store, WithProbeScheduler(processor), WithNotifier(notifier))
	res, err := c.Complete(context.Background(), &CompleteRequest{
		UploadId:    "up",
		Key:         "uploads/videos/clip-1.mp4",
		Parts:       []storage.PartInfo{{PartNumber: 1, ETag: "a"}},
		FileName:    "clip.mp4",
		ContentType: "video/mp4",
		FileSize:    1048576,
		Owner:       "u1",
	})
	require.NoError(t, err, "probe outcome never fails completion")

	// Stop drains the queue, so the job has run once it returns
	processor.Stop(context.Background())
	return store, res, notifier
}

func TestProbeBackfillsDuration(t *testing.T) {
	prober := proberFunc(func(ctx context.Context, r io.Reader) (float64, error) {
		data, err := io.ReadAll(r)
		if err != nil {
			return 0, err
		}
		if string(data) != "video-bytes" {
			return 0, errors.New("unexpected stream")
		}
		return 12.5, nil
	})

	store, res, notifier := completeVideo(t, prober, time.Second)

	file := store.get(res.FileId)
	require.NotNil(t, file)
	require.NotNil(t, file.VideoDuration)
	assert.InDelta(t, 12.5, *file.VideoDuration, 1e-9)
	assert.Equal(t, []string{res.FileId}, notifier.completed)
	assert.InDelta(t, 12.5, notifier.durations[res.FileId], 1e-9)
}

func TestProbeFailureIsSwallowed(t *testing.T) {
	prober := proberFunc(func(ctx context.Context, r io.Reader) (float64, error) {
		return 0, errors.New("not a media file")
	})

	store, res, notifier := completeVideo(t, prober, time.Second)

	file := store.get(res.FileId)
	require.NotNil(t, file)
	assert.Nil(t, file.VideoDuration)
	assert.Empty(t, notifier.durations)
}

func TestProbeTimeoutIsSwallowed(t *testing.T) {
	prober := proberFunc(func(ctx context.Context, r io.Reader) (float64, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})

	start := time.Now()
	store, res, _ := completeVideo(t, prober, 20*time.Millisecond)
	assert.Less(t, time.Since(start), 5*time.Second)

	file := store.get(res.FileId)
	require.NotNil(t, file)
	assert.Nil(t, file.VideoDuration)
}

func TestNonVideoIsNotProbed(t *testing.T) {
	gw := &mockGateway{}
	gw.On("CompleteMultipartUpload", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	probes := &recordingScheduler{}
	c := NewCoordinator(gw, newMemStore(), WithProbeScheduler(probes))

	_, err := c.Complete(context.Background(), &CompleteRequest{
		UploadId:    "up",
		Key:         "uploads/photo-1.png",
		Parts:       []storage.PartInfo{{PartNumber: 1, ETag: "a"}},
		FileName:    "photo.png",
		ContentType: "image/png",
		Owner:       "u1",
	})
	require.NoError(t, err)
	assert.Empty(t, probes.jobs)
}

func TestEnqueueAfterStop(t *testing.T) {
	processor := NewProbeProcessor(&mockGateway{}, proberFunc(nil), newMemStore(), ProbeProcessorConfig{QueueSize: 1}, zerolog.Nop())
	processor.Start()
	processor.Stop(context.Background())
	processor.Stop(context.Background())

	assert.False(t, processor.Enqueue(ProbeJob{FileID: "x"}))
}

func TestEnqueueFullQueueDrops(t *testing.T) {
	processor := NewProbeProcessor(&mockGateway{}, proberFunc(nil), newMemStore(), ProbeProcessorConfig{QueueSize: 1}, zerolog.Nop())

	// workers not started, so the queue fills
	assert.True(t, processor.Enqueue(ProbeJob{FileID: "a"}))
	assert.False(t, processor.Enqueue(ProbeJob{FileID: "b"}))
}
