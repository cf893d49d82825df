// Package jobs contains background workers that run on a schedule.
// The link reconciler surfaces consumed linking codes that never produced an
// account link; the code sweeper garbage-collects expired codes.
// Jobs are designed to be idempotent: re-running after a crash produces the
// same result as a clean run.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/db/models"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/db/repositories"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/telemetry"
)

const (
	defaultReconcileInterval = 5 * time.Minute

	// reconcileBatchSize caps how many unnoted codes a single pass audits.
	// Anything beyond the cap is picked up on the next tick.
	reconcileBatchSize = 100
)

// LinkReconciler periodically scans for burned codes: codes that were
// consumed but whose chat has no active link, the inconsistency left behind
// when the link write fails after the consume succeeded. Each one gets a
// single audit entry, and the backlog count is exported as a gauge.
type LinkReconciler struct {
	codeRepo  *repositories.LinkingCodeRepository
	auditRepo *repositories.AuditRepository
	interval  time.Duration
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// NewLinkReconciler creates a reconciler. Non-positive intervals fall back
// to the default.
func NewLinkReconciler(codeRepo *repositories.LinkingCodeRepository, auditRepo *repositories.AuditRepository, interval time.Duration) *LinkReconciler {
	if interval <= 0 {
		interval = defaultReconcileInterval
	}
	return &LinkReconciler{
		codeRepo:  codeRepo,
		auditRepo: auditRepo,
		interval:  interval,
		stopCh:    make(chan struct{}),
	}
}

// Start launches the reconciliation loop in its own goroutine. The first
// pass runs immediately so a restart does not delay detection by a full
// interval.
func (r *LinkReconciler) Start(ctx context.Context) {
	slog.Info("starting link reconciler", "interval", r.interval)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		r.runPass(ctx)

		for {
			select {
			case <-ticker.C:
				r.runPass(ctx)
			case <-r.stopCh:
				slog.Info("link reconciler stopped")
				return
			case <-ctx.Done():
				slog.Info("link reconciler context cancelled")
				return
			}
		}
	}()
}

// Stop halts the loop and waits for an in-flight pass to finish.
func (r *LinkReconciler) Stop() {
	close(r.stopCh)
	r.wg.Wait()
}

// runPass notes every burned code that lacks an audit entry, then refreshes
// the backlog gauge from a full count.
func (r *LinkReconciler) runPass(ctx context.Context) {
	codes, err := r.codeRepo.FindBurnedWithoutLink(ctx, false, reconcileBatchSize)
	if err != nil {
		slog.Error("reconciler: burned-code scan failed", "error", err)
		return
	}

	for _, lc := range codes {
		r.noteCode(ctx, lc)
	}

	total, err := r.codeRepo.CountBurnedWithoutLink(ctx)
	if err != nil {
		slog.Error("reconciler: burned-code count failed", "error", err)
		return
	}
	telemetry.LinkingBurnedUnlinkedCodes.Set(float64(total))
}

// noteCode writes the once-only audit entry for a burned code. The request
// path may have noted the code between our scan and this write, so re-check
// before inserting.
func (r *LinkReconciler) noteCode(ctx context.Context, lc *models.LinkingCode) {
	noted, err := r.auditRepo.HasAction(ctx, models.AuditActionBurnedUnlinked, lc.Code)
	if err != nil {
		slog.Error("reconciler: audit lookup failed", "code", lc.Code, "error", err)
		return
	}
	if noted {
		return
	}

	chatID := ""
	if lc.UsedByExternalID != nil {
		chatID = *lc.UsedByExternalID
	}
	slog.Error("code consumed but no link exists",
		"code", lc.Code,
		"owner_user_id", lc.OwnerUserID,
		"external_chat_id", chatID)

	resourceType := "linking_code"
	entry := &models.AuditLog{
		UserID:       &lc.OwnerUserID,
		Action:       models.AuditActionBurnedUnlinked,
		ResourceType: &resourceType,
		ResourceID:   &lc.Code,
		Metadata:     map[string]interface{}{"external_chat_id": chatID, "detected_by": "reconciler"},
	}
	if err := r.auditRepo.CreateAuditLog(ctx, entry); err != nil {
		slog.Error("reconciler: audit write failed", "code", lc.Code, "error", err)
	}
}
