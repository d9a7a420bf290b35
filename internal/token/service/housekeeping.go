package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/tollgate/internal/token/cache"
	"github.com/aussiebroadwan/tollgate/pkg/clock"
)

// HousekeepingService periodically sweeps expired entries out of cache
// drivers that keep them around (sqlite). Drivers with native expiry need no
// sweeping and should not get a HousekeepingService at all.
type HousekeepingService struct {
	Purger   cache.Purger
	Logger   *slog.Logger
	Interval time.Duration
	Clock    clock.Clock

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a housekeeping service. A non-positive
// interval defaults to 1 hour.
func NewHousekeepingService(purger cache.Purger, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = time.Hour
	}

	return &HousekeepingService{
		Purger:   purger,
		Logger:   logger,
		Interval: interval,
		Clock:    clock.Real(),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the worker. It sweeps once immediately and then every
// Interval until Stop.
func (s *HousekeepingService) Start() {
	ticker := s.Clock.NewTicker(s.Interval)
	go s.run(ticker)
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop shuts the worker down, waiting for an in-progress sweep to finish.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run(ticker *clock.Ticker) {
	defer close(s.doneCh)
	defer ticker.Stop()

	s.sweep()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

func (s *HousekeepingService) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.Interval)
	defer cancel()

	n, err := s.Purger.PurgeExpired(ctx)
	if err != nil {
		s.Logger.Error("failed to purge expired cache entries", "error", err)
		return
	}
	s.Logger.Debug("purged expired cache entries", "deleted", n)
}
