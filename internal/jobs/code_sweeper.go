package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/db/repositories"
)

const (
	defaultSweepInterval  = time.Hour
	defaultSweepRetention = 24 * time.Hour
)

// CodeSweeper deletes expired linking codes once they age past the retention
// window. Burned codes with no link survive regardless of age so the
// reconciliation report stays complete.
type CodeSweeper struct {
	codeRepo  *repositories.LinkingCodeRepository
	interval  time.Duration
	retention time.Duration
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// NewCodeSweeper creates a sweeper. Non-positive durations fall back to the
// defaults.
func NewCodeSweeper(codeRepo *repositories.LinkingCodeRepository, interval, retention time.Duration) *CodeSweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if retention <= 0 {
		retention = defaultSweepRetention
	}
	return &CodeSweeper{
		codeRepo:  codeRepo,
		interval:  interval,
		retention: retention,
		stopCh:    make(chan struct{}),
	}
}

// Start launches the sweep loop in its own goroutine.
func (s *CodeSweeper) Start(ctx context.Context) {
	slog.Info("starting code sweeper", "interval", s.interval, "retention", s.retention)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runSweep(ctx)

		for {
			select {
			case <-ticker.C:
				s.runSweep(ctx)
			case <-s.stopCh:
				slog.Info("code sweeper stopped")
				return
			case <-ctx.Done():
				slog.Info("code sweeper context cancelled")
				return
			}
		}
	}()
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (s *CodeSweeper) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

// runSweep deletes codes whose expiry is older than the retention cutoff.
// Expired-but-recent codes survive so support can still look them up.
func (s *CodeSweeper) runSweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.retention)
	deleted, err := s.codeRepo.DeleteExpiredBefore(ctx, cutoff)
	if err != nil {
		slog.Error("sweeper: expired-code delete failed", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("swept expired linking codes", "deleted", deleted, "cutoff", cutoff)
	}
}
