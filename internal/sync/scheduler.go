package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nhle/ghnotify/internal/github"
	"github.com/nhle/ghnotify/internal/logging"
	"github.com/nhle/ghnotify/internal/model"
)

// Scheduler triggers a sync at a fixed interval, independent of any
// foreground caller. A foreground Sync and a scheduled one contend on the
// engine's own single-sync gate, never on each other.
type Scheduler struct {
	engine *Engine
	log    zerolog.Logger

	mu       gosync.Mutex
	interval time.Duration
	ticker   *time.Ticker
	stopCh   chan struct{}
	running  bool
}

// NewScheduler creates a stopped scheduler. Non-positive intervals fall
// back to the default.
func NewScheduler(engine *Engine, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = model.DefaultRefreshInterval
	}
	return &Scheduler{
		engine:   engine,
		interval: interval,
		log:      logging.Component("scheduler"),
	}
}

// Start arms the repeating trigger. Calling Start on a running scheduler
// is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.ticker = time.NewTicker(s.interval)
	s.stopCh = make(chan struct{})

	go s.loop(s.ticker, s.stopCh)
}

// Stop disarms the trigger. Idempotent; an in-flight sync is not
// interrupted, only future ticks are cancelled.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	close(s.stopCh)
	s.running = false
}

// SetInterval swaps the tick period. The old timer is replaced in one
// step, so reconfiguration never fires overlapping or drifting ticks.
func (s *Scheduler) SetInterval(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("invalid refresh interval %v", interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.interval = interval
	if s.running {
		s.ticker.Reset(interval)
	}
	return nil
}

// Interval returns the current tick period.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

func (s *Scheduler) loop(ticker *time.Ticker, stop chan struct{}) {
	for {
		select {
		case <-stop:
			ticker.Stop()
			return
		case <-ticker.C:
			s.fire()
		}
	}
}

func (s *Scheduler) fire() {
	if _, err := s.engine.Sync(context.Background()); err != nil {
		if github.IsAuthError(err) {
			s.log.Error().Err(err).Msg("sync failed: re-authentication required")
			return
		}
		// Recoverable: the next tick is the retry.
		s.log.Warn().Err(err).Msg("scheduled sync failed")
	}
}
