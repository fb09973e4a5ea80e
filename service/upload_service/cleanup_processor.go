package upload_service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// SessionExpirer aborts open sessions older than a cutoff
type SessionExpirer interface {
	ExpireSessions(ctx context.Context, cutoff time.Time) (int, error)
}

// CleanupProcessor periodically aborts abandoned multipart sessions on
// gateways that have no provider-side lifecycle rules
type CleanupProcessor struct {
	expirer  SessionExpirer
	interval time.Duration
	ttl      time.Duration
	logger   zerolog.Logger
	now      func() time.Time

	started  atomic.Bool
	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewCleanupProcessor create cleanup processor instance
func NewCleanupProcessor(expirer SessionExpirer, interval, ttl time.Duration, logger zerolog.Logger) *CleanupProcessor {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CleanupProcessor{
		expirer:  expirer,
		interval: interval,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop
func (cp *CleanupProcessor) Start() {
	if !cp.started.CompareAndSwap(false, true) {
		return
	}
	cp.logger.Info().Dur("interval", cp.interval).Dur("ttl", cp.ttl).Msg("Cleanup processor started")
	go cp.run()
}

// Stop ends the sweep loop and waits for a running sweep to finish
func (cp *CleanupProcessor) Stop() {
	cp.stopOnce.Do(func() {
		close(cp.stopChan)
		if cp.started.Load() {
			<-cp.done
		}
		cp.logger.Info().Msg("Cleanup processor stopped")
	})
}

func (cp *CleanupProcessor) run() {
	defer close(cp.done)

	ticker := time.NewTicker(cp.interval)
	defer ticker.Stop()

	cp.sweep()

	for {
		select {
		case <-cp.stopChan:
			return
		case <-ticker.C:
			cp.sweep()
		}
	}
}

func (cp *CleanupProcessor) sweep() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-cp.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	cutoff := cp.now().Add(-cp.ttl)
	n, err := cp.expirer.ExpireSessions(ctx, cutoff)
	if err != nil {
		cp.logger.Warn().Err(err).Int("expired", n).Msg("Failed to sweep expired sessions")
		return
	}
	if n > 0 {
		cp.logger.Info().Int("expired", n).Time("cutoff", cutoff).Msg("Aborted expired multipart sessions")
	}
}
