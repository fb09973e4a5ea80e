package upload_service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ProbeJob a finalized video awaiting duration back-fill
type ProbeJob struct {
	FileID string
	Key    string
}

// Prober reads a media stream and returns its duration in seconds
type Prober interface {
	Duration(ctx context.Context, r io.Reader) (float64, error)
}

// ObjectReader fetches assembled objects
type ObjectReader interface {
	GetObject(ctx context.Context, key string) (io.ReadCloser, error)
}

// DurationStore back-fills probed durations
type DurationStore interface {
	UpdateVideoDuration(ctx context.Context, id string, seconds float64) error
}

// ProbeProcessor bounded worker pool probing completed videos.
// Failures are logged and never reach the client.
type ProbeProcessor struct {
	objects  ObjectReader
	prober   Prober
	store    DurationStore
	notifier Notifier
	logger   zerolog.Logger

	workers int
	timeout time.Duration
	jobs    chan ProbeJob

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

// ProbeProcessorConfig worker pool sizing
type ProbeProcessorConfig struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

// NewProbeProcessor create probe processor instance
func NewProbeProcessor(objects ObjectReader, prober Prober, store DurationStore, cfg ProbeProcessorConfig, logger zerolog.Logger) *ProbeProcessor {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ProbeProcessor{
		objects: objects,
		prober:  prober,
		store:   store,
		logger:  logger,
		workers: cfg.Workers,
		timeout: cfg.Timeout,
		jobs:    make(chan ProbeJob, cfg.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// SetNotifier publishes duration events after a successful back-fill
func (pp *ProbeProcessor) SetNotifier(n Notifier) {
	pp.notifier = n
}

// Start launches the workers
func (pp *ProbeProcessor) Start() {
	pp.logger.Info().Int("workers", pp.workers).Dur("timeout", pp.timeout).Msg("Probe processor started")
	for i := 0; i < pp.workers; i++ {
		pp.wg.Add(1)
		go pp.run()
	}
}

// Stop closes the queue and waits for queued jobs to drain. When ctx ends
// first, in-flight probes are canceled.
func (pp *ProbeProcessor) Stop(ctx context.Context) {
	pp.mu.Lock()
	if pp.stopped {
		pp.mu.Unlock()
		return
	}
	pp.stopped = true
	close(pp.jobs)
	pp.mu.Unlock()

	pp.logger.Info().Msg("Stopping probe processor...")
	done := make(chan struct{})
	go func() {
		pp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		pp.logger.Warn().Msg("Probe drain interrupted, canceling in-flight probes")
		pp.cancel()
		<-done
	}
	pp.cancel()
	pp.logger.Info().Msg("Probe processor stopped")
}

// Enqueue schedules a job; returns false when the queue is full or stopped
func (pp *ProbeProcessor) Enqueue(job ProbeJob) bool {
	pp.mu.RLock()
	defer pp.mu.RUnlock()
	if pp.stopped {
		return false
	}
	select {
	case pp.jobs <- job:
		return true
	default:
		return false
	}
}

func (pp *ProbeProcessor) run() {
	defer pp.wg.Done()
	for job := range pp.jobs {
		if err := pp.process(job); err != nil {
			pp.logger.Warn().Err(err).Str("file_id", job.FileID).Str("key", job.Key).Msg("Duration probe skipped")
		}
	}
}

func (pp *ProbeProcessor) process(job ProbeJob) error {
	const op = "probe duration"

	ctx, cancel := context.WithTimeout(pp.ctx, pp.timeout)
	defer cancel()

	body, err := pp.objects.GetObject(ctx, job.Key)
	if err != nil {
		return newError(op, "", job.Key, ErrProbe, fmt.Errorf("fetch object: %w", err))
	}
	defer body.Close()

	seconds, err := pp.prober.Duration(ctx, body)
	if err != nil {
		return newError(op, "", job.Key, ErrProbe, err)
	}

	if err := pp.store.UpdateVideoDuration(ctx, job.FileID, seconds); err != nil {
		return newError(op, "", job.Key, ErrProbe, fmt.Errorf("store duration: %w", err))
	}

	pp.logger.Info().Str("file_id", job.FileID).Float64("duration", seconds).Msg("Video duration recorded")
	if pp.notifier != nil {
		pp.notifier.DurationProbed(ctx, job.FileID, seconds)
	}
	return nil
}
