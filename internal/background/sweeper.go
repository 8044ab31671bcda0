// Package background runs the periodic lifecycle sweeps: flipping overdue
// pending registrations and invitations to expired, purging old terminal
// rows, and evicting stale revocations. Expiry is lazy on the request path;
// the sweeper keeps stored state from drifting when nobody reads a row.
package background

import (
	"context"
	"log/slog"
	"time"
)

// RegistrationSweeps defines the registration maintenance operations
type RegistrationSweeps interface {
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
	PurgeTerminal(ctx context.Context, cutoff time.Time) (int64, error)
}

// InvitationSweeps defines the invitation maintenance operations
type InvitationSweeps interface {
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

// RevocationSweeps evicts revocations for tokens past their own expiry
type RevocationSweeps interface {
	Evict(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper periodically runs the lifecycle maintenance tasks
type Sweeper struct {
	registrations RegistrationSweeps
	invitations   InvitationSweeps
	revocations   RevocationSweeps
	logger        *slog.Logger
	interval      time.Duration
	retention     time.Duration
	stopCh        chan struct{}
}

func NewSweeper(
	registrations RegistrationSweeps,
	invitations InvitationSweeps,
	revocations RevocationSweeps,
	logger *slog.Logger,
	interval time.Duration,
	retention time.Duration,
) *Sweeper {
	return &Sweeper{
		registrations: registrations,
		invitations:   invitations,
		revocations:   revocations,
		logger:        logger,
		interval:      interval,
		retention:     retention,
		stopCh:        make(chan struct{}),
	}
}

// Start begins the periodic sweep loop. It runs once immediately, then on
// every tick until Stop is called or the context is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runSweep(ctx)

	for {
		select {
		case <-ticker.C:
			s.runSweep(ctx)
		case <-s.stopCh:
			s.logger.Info("sweeper stopped")
			return
		case <-ctx.Done():
			s.logger.Info("sweeper context cancelled")
			return
		}
	}
}

func (s *Sweeper) runSweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	now := time.Now().UTC()

	if expired, err := s.registrations.SweepExpired(sweepCtx, now); err != nil {
		s.logger.Error("registration expiry sweep failed", slog.Any("error", err))
	} else if expired > 0 {
		s.logger.Info("registrations expired", slog.Int64("rows", expired))
	}

	if purged, err := s.registrations.PurgeTerminal(sweepCtx, now.Add(-s.retention)); err != nil {
		s.logger.Error("registration purge failed", slog.Any("error", err))
	} else if purged > 0 {
		s.logger.Info("terminal registrations purged", slog.Int64("rows", purged))
	}

	if expired, err := s.invitations.SweepExpired(sweepCtx, now); err != nil {
		s.logger.Error("invitation expiry sweep failed", slog.Any("error", err))
	} else if expired > 0 {
		s.logger.Info("invitations expired", slog.Int64("rows", expired))
	}

	if evicted, err := s.revocations.Evict(sweepCtx, now); err != nil {
		s.logger.Error("revocation eviction failed", slog.Any("error", err))
	} else if evicted > 0 {
		s.logger.Info("stale revocations evicted", slog.Int64("rows", evicted))
	}
}

// Stop signals the sweeper to stop
func (s *Sweeper) Stop() {
	close(s.stopCh)
}
