package session

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mmynk/splitlive/internal/metrics"
)

// Sweep deletes every expired session and returns how many went away.
// Expired sessions are already invisible; sweeping only reclaims storage.
func (m *Manager) Sweep(ctx context.Context) (int64, error) {
	n, err := m.store.DeleteExpired(ctx, m.now().Unix())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.SessionsExpired.Add(float64(n))
		m.logger.Info("expired sessions swept", "count", n)
	}
	return n, nil
}

// Sweeper runs Sweep on a cron schedule.
type Sweeper struct {
	m    *Manager
	cron *cron.Cron
}

// NewSweeper parses schedule (standard cron or "@every 10m") and prepares
// the job; call Start to run it.
func NewSweeper(m *Manager, schedule string) (*Sweeper, error) {
	s := &Sweeper{m: m, cron: cron.New()}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start runs the scheduler in the background.
func (s *Sweeper) Start() {
	s.cron.Start()
	s.m.logger.Info("expiry sweeper started")
}

// Stop stops scheduling; the returned context is done when a running sweep finishes.
func (s *Sweeper) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Sweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := s.m.Sweep(ctx); err != nil {
		s.m.logger.Error("expiry sweep failed", "error", err)
	}
}
