package progress

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Scheduler refreshes every wave on a fixed interval.
type Scheduler struct {
	svc      *Service
	interval time.Duration
	log      *zap.Logger
	Stop     chan struct{}
	stopped  chan struct{}

	mu      sync.Mutex
	started bool
	closed  bool
}

func NewScheduler(svc *Service, interval time.Duration, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		svc:      svc,
		interval: interval,
		log:      log.Named("scheduler"),
		Stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Start launches the loop. It is a no-op after the first call or after Close.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.closed {
		return
	}
	s.started = true
	go func() {
		defer close(s.stopped)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.Stop:
				return
			case <-ticker.C:
				s.processOnce()
			}
		}
	}()
}

// Close stops the loop and waits for an in-flight pass to finish. It is safe
// to call without Start and more than once.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	started := s.started
	s.mu.Unlock()

	close(s.Stop)
	if started {
		<-s.stopped
	}
}

func (s *Scheduler) processOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()
	results, err := s.svc.RefreshEverything(ctx)
	if err != nil {
		s.log.Warn("scheduled refresh skipped", zap.Error(err))
		return
	}
	degraded := 0
	for _, r := range results {
		if r.Source != SourceStore {
			degraded++
		}
	}
	s.log.Info("scheduled refresh", zap.Int("waves", len(results)), zap.Int("degraded", degraded))
}
