package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/acctly/internal/auth/store"
)

// HousekeepingService periodically cleans up expired database records
// so pending codes and verification rows do not outlive their use.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration
	Clock    Clock

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a new housekeeping service with the given interval.
// If interval is 0 or negative, defaults to 1 hour.
func NewHousekeepingService(store store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Store:    store,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker that periodically runs cleanup.
// Call Stop() to shut it down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop shuts down the background worker and waits for an in-progress
// cleanup to finish.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Cleanup(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup runs one pass. Each deletion is independent; a failure in one
// does not stop the other.
func (s *HousekeepingService) Cleanup(ctx context.Context) {
	now := s.Clock.now()

	codes, err := s.Store.Factors().ClearExpiredPendingCodes(ctx, now)
	if err != nil {
		s.Logger.Error("failed to clear expired login codes", "error", err)
	}

	verifications, err := s.Store.EmailVerifications().DeleteExpiredEmailVerifications(ctx, now)
	if err != nil {
		s.Logger.Error("failed to delete expired email verifications", "error", err)
	}

	s.Logger.Info("housekeeping cleanup completed",
		"login_codes", codes,
		"email_verifications", verifications,
	)
}
