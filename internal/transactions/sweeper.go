package transactions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper periodically expires stale purchase requests. It is the only
// background task in the engine and only ever moves REQUESTED to EXPIRED.
type Sweeper struct {
	cron        *cron.Cron
	coordinator *Coordinator
	interval    time.Duration
	logger      *zap.Logger
	mu          sync.Mutex
	running     bool
}

// NewSweeper creates an expiry sweeper over the coordinator.
func NewSweeper(coordinator *Coordinator, interval time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		cron:        cron.New(),
		coordinator: coordinator,
		interval:    interval,
		logger:      logger,
	}
}

// Start schedules the sweep.
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("sweeper already running")
	}

	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, s.sweep); err != nil {
		return fmt.Errorf("failed to schedule expiry sweep: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("expiry sweeper started",
		zap.Duration("interval", s.interval),
		zap.Duration("ttl", s.coordinator.TTL()))
	return nil
}

// Stop halts the sweep and waits for an in-flight run to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info("expiry sweeper stopped")
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	swept, err := s.coordinator.SweepExpired(ctx)
	if err != nil {
		s.logger.Error("expiry sweep failed", zap.Error(err))
		return
	}
	if swept > 0 {
		s.logger.Info("expired stale purchase requests", zap.Int("count", swept))
	}
}
