// Package services implements the workflows that coordinate across
// repositories and external systems. The linking service owns the full
// lifecycle of a linking code (issue, validate, consume-and-link, resolve,
// disconnect, repair); the receipt ingestor drives a photo from download
// through archive, model parse, and persistence. Handlers stay thin: every
// decision that spans more than one table or collaborator lives here.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/cache"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/db/models"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/db/repositories"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/linking"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/telemetry"
)

const (
	// DefaultCodeTTL applies when linking.code_ttl is unset. Codes are
	// valid up to and including the expiry instant.
	DefaultCodeTTL = 10 * time.Minute

	// issueMaxAttempts bounds regeneration on code collisions. The code
	// space is large enough that a second collision in a row is noise.
	issueMaxAttempts = 3

	// storageRetryDelay is the pause before the single automatic retry of
	// an idempotent store operation.
	storageRetryDelay = 200 * time.Millisecond
)

// LinkingService owns the account-linking workflow. All coordination between
// the web and bot processes happens through the store's conditional writes;
// this type holds no cross-request state.
type LinkingService struct {
	codeRepo  *repositories.LinkingCodeRepository
	linkRepo  *repositories.AccountLinkRepository
	auditRepo *repositories.AuditRepository
	linkCache *cache.LinkCache // nil when Redis is disabled
	codeTTL   time.Duration
}

// NewLinkingService creates the linking service. linkCache may be nil; all
// reads then go straight to the store.
func NewLinkingService(
	codeRepo *repositories.LinkingCodeRepository,
	linkRepo *repositories.AccountLinkRepository,
	auditRepo *repositories.AuditRepository,
	linkCache *cache.LinkCache,
	codeTTL time.Duration,
) *LinkingService {
	if codeTTL <= 0 {
		codeTTL = DefaultCodeTTL
	}
	return &LinkingService{
		codeRepo:  codeRepo,
		linkRepo:  linkRepo,
		auditRepo: auditRepo,
		linkCache: linkCache,
		codeTTL:   codeTTL,
	}
}

// withStorageRetry runs an idempotent store operation, retrying exactly once
// after a short delay. Constraint conflicts are deterministic and returned as
// is. The consume conditional write never goes through here: retrying a write
// whose first attempt may have committed could consume a second submission of
// the same code.
func withStorageRetry(ctx context.Context, op func() error) error {
	err := op()
	if err == nil ||
		errors.Is(err, repositories.ErrDuplicateCode) ||
		errors.Is(err, repositories.ErrActiveLinkExists) {
		return err
	}
	select {
	case <-ctx.Done():
		return err
	case <-time.After(storageRetryDelay):
	}
	return op()
}

// IssueCode creates a fresh single-use code for the web user. The absolute
// expiry is fixed here, at creation, so clock differences between processes
// cannot stretch a code's lifetime.
func (s *LinkingService) IssueCode(ctx context.Context, ownerUserID string) (*models.LinkingCode, error) {
	var lastErr error
	for attempt := 0; attempt < issueMaxAttempts; attempt++ {
		code, err := linking.GenerateCode()
		if err != nil {
			return nil, fmt.Errorf("failed to generate code: %w", err)
		}

		now := time.Now()
		lc := &models.LinkingCode{
			Code:        code,
			OwnerUserID: ownerUserID,
			CreatedAt:   now,
			ExpiresAt:   now.Add(s.codeTTL),
		}

		err = withStorageRetry(ctx, func() error { return s.codeRepo.Create(ctx, lc) })
		if errors.Is(err, repositories.ErrDuplicateCode) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", linking.ErrStorageUnavailable, err)
		}

		telemetry.LinkingCodesIssuedTotal.Inc()
		s.audit(ctx, &ownerUserID, models.AuditActionCodeIssued, "linking_code", lc.Code,
			map[string]interface{}{"expires_at": lc.ExpiresAt})
		return lc, nil
	}
	return nil, fmt.Errorf("failed to issue code after %d attempts: %w", issueMaxAttempts, lastErr)
}

// ValidateCode classifies a submitted code without mutating anything. It is
// safe to call any number of times; the admin validation endpoint and the
// consume path share this logic so the two can never disagree.
func (s *LinkingService) ValidateCode(ctx context.Context, rawCode string) (*models.LinkingCode, error) {
	normalized := linking.Normalize(rawCode)
	if !linking.ValidFormat(normalized) {
		// Malformed input never reaches the store.
		telemetry.LinkingCodeValidationsTotal.WithLabelValues(linking.ReasonMalformed).Inc()
		return nil, linking.ErrMalformed
	}

	var lc *models.LinkingCode
	err := withStorageRetry(ctx, func() error {
		var e error
		lc, e = s.codeRepo.GetByCode(ctx, normalized)
		return e
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", linking.ErrStorageUnavailable, err)
	}
	if lc == nil {
		telemetry.LinkingCodeValidationsTotal.WithLabelValues(linking.ReasonNotFound).Inc()
		return nil, linking.ErrNotFound
	}

	// A code that is both used and expired reports already-used: the user
	// needs to know the code went somewhere, not that it timed out.
	if lc.Used {
		telemetry.LinkingCodeValidationsTotal.WithLabelValues(linking.ReasonAlreadyUsed).Inc()
		return nil, linking.ErrAlreadyUsed
	}
	if lc.ExpiredAt(time.Now()) {
		telemetry.LinkingCodeValidationsTotal.WithLabelValues(linking.ReasonExpired).Inc()
		return nil, linking.ErrExpired
	}

	telemetry.LinkingCodeValidationsTotal.WithLabelValues("ok").Inc()
	return lc, nil
}

// ConsumeAndLink burns a valid code and creates (or refreshes) the link
// between its owner and the submitting chat. The code flips to used before
// the link is written; if the second write fails the code stays burned and
// reconciliation picks up the gap. The consume itself is a single
// conditional write and is never retried.
func (s *LinkingService) ConsumeAndLink(ctx context.Context, rawCode, externalChatID string, displayName *string) (*models.AccountLink, error) {
	lc, err := s.ValidateCode(ctx, rawCode)
	if err != nil {
		return nil, err
	}

	// Conflict checks before burning the code. These are a courtesy, not
	// the gate: the partial unique indexes re-check under write.
	chatLink, err := s.activeByChat(ctx, externalChatID)
	if err != nil {
		return nil, err
	}
	if chatLink != nil && chatLink.WebUserID != lc.OwnerUserID {
		return nil, linking.ErrAlreadyLinkedElsewhere
	}
	if chatLink == nil {
		ownerLink, err := s.activeByUser(ctx, lc.OwnerUserID)
		if err != nil {
			return nil, err
		}
		if ownerLink != nil && ownerLink.ExternalChatID != externalChatID {
			return nil, linking.ErrAlreadyLinkedElsewhere
		}
	}

	now := time.Now()
	won, err := s.codeRepo.Consume(ctx, lc.Code, externalChatID, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", linking.ErrStorageUnavailable, err)
	}
	if !won {
		// Lost the conditional write: someone consumed this code between
		// our validation read and now.
		telemetry.LinkingConsumeConflictsTotal.Inc()
		telemetry.LinkingCodeValidationsTotal.WithLabelValues(linking.ReasonAlreadyUsed).Inc()
		return nil, linking.ErrAlreadyUsed
	}

	// The code is burned; everything from here on must either produce a
	// link or leave a trail for reconciliation.
	if chatLink != nil {
		// Same user re-linking from the same chat: refresh in place.
		err = withStorageRetry(ctx, func() error {
			return s.linkRepo.Refresh(ctx, chatLink.ID, displayName, now)
		})
		if err != nil {
			return nil, s.linkWriteFailed(ctx, lc, externalChatID, err)
		}
		chatLink.ExternalDisplayName = displayName
		chatLink.LinkedAt = now

		s.invalidate(ctx, externalChatID)
		s.audit(ctx, &lc.OwnerUserID, models.AuditActionLinkRefreshed, "account_link", chatLink.ID,
			map[string]interface{}{"external_chat_id": externalChatID, "code": lc.Code})
		return chatLink, nil
	}

	link := &models.AccountLink{
		WebUserID:           lc.OwnerUserID,
		ExternalChatID:      externalChatID,
		ExternalDisplayName: displayName,
	}
	err = withStorageRetry(ctx, func() error { return s.linkRepo.Create(ctx, link) })
	if errors.Is(err, repositories.ErrActiveLinkExists) {
		// A competing link won under write. The code is burned without a
		// link; reconciliation will surface it.
		s.noteBurned(ctx, lc, externalChatID, err)
		return nil, linking.ErrAlreadyLinkedElsewhere
	}
	if err != nil {
		return nil, s.linkWriteFailed(ctx, lc, externalChatID, err)
	}

	s.invalidate(ctx, externalChatID)
	s.audit(ctx, &lc.OwnerUserID, models.AuditActionLinkCreated, "account_link", link.ID,
		map[string]interface{}{"external_chat_id": externalChatID, "code": lc.Code})
	return link, nil
}

// ResolveLink maps a chat to its active link. (nil, nil) means the chat is
// not linked, which is a supported mode, not an error. The cache is consulted
// first when configured; any cache trouble falls through to the store.
func (s *LinkingService) ResolveLink(ctx context.Context, externalChatID string) (*models.AccountLink, error) {
	if s.linkCache == nil {
		telemetry.LinkResolveCacheTotal.WithLabelValues("bypass").Inc()
	} else {
		link, err := s.linkCache.GetLink(ctx, externalChatID)
		switch {
		case err != nil:
			telemetry.LinkResolveCacheTotal.WithLabelValues("bypass").Inc()
			slog.Warn("link cache read failed, using store", "error", err)
		case link != nil:
			telemetry.LinkResolveCacheTotal.WithLabelValues("hit").Inc()
			return link, nil
		default:
			telemetry.LinkResolveCacheTotal.WithLabelValues("miss").Inc()
		}
	}

	link, err := s.activeByChat(ctx, externalChatID)
	if err != nil {
		return nil, err
	}
	if link != nil && s.linkCache != nil {
		if err := s.linkCache.SetLink(ctx, link); err != nil {
			slog.Warn("link cache write failed", "error", err)
		}
	}
	return link, nil
}

// StatusForUser returns the web user's active link, or (nil, nil) when none.
func (s *LinkingService) StatusForUser(ctx context.Context, webUserID string) (*models.AccountLink, error) {
	return s.activeByUser(ctx, webUserID)
}

// Disconnect soft-deletes the active link for a chat (the bot's /unlink).
// Disconnecting an unlinked chat is a successful no-op.
func (s *LinkingService) Disconnect(ctx context.Context, externalChatID string) error {
	var affected int64
	err := withStorageRetry(ctx, func() error {
		var e error
		affected, e = s.linkRepo.DeactivateByChatID(ctx, externalChatID, time.Now())
		return e
	})
	if err != nil {
		return fmt.Errorf("%w: %v", linking.ErrStorageUnavailable, err)
	}

	s.invalidate(ctx, externalChatID)
	if affected > 0 {
		s.audit(ctx, nil, models.AuditActionLinkDeactivated, "account_link", externalChatID,
			map[string]interface{}{"side": "chat"})
	}
	return nil
}

// DisconnectByUser soft-deletes the caller's active link from the web side.
// Also a no-op success when nothing is active.
func (s *LinkingService) DisconnectByUser(ctx context.Context, webUserID string) error {
	// Read first so the chat-side cache entry can be dropped.
	link, err := s.activeByUser(ctx, webUserID)
	if err != nil {
		return err
	}

	var affected int64
	err = withStorageRetry(ctx, func() error {
		var e error
		affected, e = s.linkRepo.DeactivateByUserID(ctx, webUserID, time.Now())
		return e
	})
	if err != nil {
		return fmt.Errorf("%w: %v", linking.ErrStorageUnavailable, err)
	}

	if link != nil {
		s.invalidate(ctx, link.ExternalChatID)
	}
	if affected > 0 {
		s.audit(ctx, &webUserID, models.AuditActionLinkDeactivated, "account_link", webUserID,
			map[string]interface{}{"side": "web"})
	}
	return nil
}

// RepairBurnedCode creates the account link a burned code should have
// produced. This is the explicit admin remediation for the consumed-but-
// unlinked state; it refuses to guess when either identity has since gone
// elsewhere.
func (s *LinkingService) RepairBurnedCode(ctx context.Context, code string) (*models.AccountLink, error) {
	normalized := linking.Normalize(code)

	var lc *models.LinkingCode
	err := withStorageRetry(ctx, func() error {
		var e error
		lc, e = s.codeRepo.GetByCode(ctx, normalized)
		return e
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", linking.ErrStorageUnavailable, err)
	}
	if lc == nil {
		return nil, linking.ErrNotFound
	}
	if !lc.Used || lc.UsedByExternalID == nil {
		return nil, fmt.Errorf("code %s was never consumed; nothing to repair", normalized)
	}
	chatID := *lc.UsedByExternalID

	// Refuse when either side has an active link that is not this pairing.
	chatLink, err := s.activeByChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if chatLink != nil {
		if chatLink.WebUserID == lc.OwnerUserID {
			return chatLink, nil // already consistent
		}
		return nil, linking.ErrAlreadyLinkedElsewhere
	}
	ownerLink, err := s.activeByUser(ctx, lc.OwnerUserID)
	if err != nil {
		return nil, err
	}
	if ownerLink != nil {
		return nil, linking.ErrAlreadyLinkedElsewhere
	}

	link := &models.AccountLink{
		WebUserID:      lc.OwnerUserID,
		ExternalChatID: chatID,
	}
	err = withStorageRetry(ctx, func() error { return s.linkRepo.Create(ctx, link) })
	if errors.Is(err, repositories.ErrActiveLinkExists) {
		return nil, linking.ErrAlreadyLinkedElsewhere
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", linking.ErrStorageUnavailable, err)
	}

	s.invalidate(ctx, chatID)
	s.audit(ctx, &lc.OwnerUserID, models.AuditActionLinkRepaired, "account_link", link.ID,
		map[string]interface{}{"external_chat_id": chatID, "code": lc.Code})
	return link, nil
}

// ---- internals --------------------------------------------------------------

func (s *LinkingService) activeByChat(ctx context.Context, externalChatID string) (*models.AccountLink, error) {
	var link *models.AccountLink
	err := withStorageRetry(ctx, func() error {
		var e error
		link, e = s.linkRepo.GetActiveByChatID(ctx, externalChatID)
		return e
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", linking.ErrStorageUnavailable, err)
	}
	return link, nil
}

func (s *LinkingService) activeByUser(ctx context.Context, webUserID string) (*models.AccountLink, error) {
	var link *models.AccountLink
	err := withStorageRetry(ctx, func() error {
		var e error
		link, e = s.linkRepo.GetActiveByUserID(ctx, webUserID)
		return e
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", linking.ErrStorageUnavailable, err)
	}
	return link, nil
}

// linkWriteFailed records the consumed-but-unlinked state and maps the
// failure for the caller. The user sees a storage failure; the code stays
// burned and reconciliation reports it until repaired.
func (s *LinkingService) linkWriteFailed(ctx context.Context, lc *models.LinkingCode, externalChatID string, err error) error {
	s.noteBurned(ctx, lc, externalChatID, err)
	return fmt.Errorf("%w: link write after consume failed: %v", linking.ErrStorageUnavailable, err)
}

// noteBurned logs and audits a consumed code that produced no link. The
// audit write is best-effort: the reconciliation job re-detects unnoted
// codes from the store itself.
func (s *LinkingService) noteBurned(ctx context.Context, lc *models.LinkingCode, externalChatID string, cause error) {
	slog.Error("code consumed but no link was written",
		"code", lc.Code,
		"owner_user_id", lc.OwnerUserID,
		"external_chat_id", externalChatID,
		"error", cause)
	s.audit(ctx, &lc.OwnerUserID, models.AuditActionBurnedUnlinked, "linking_code", lc.Code,
		map[string]interface{}{"external_chat_id": externalChatID, "cause": cause.Error()})
}

// invalidate drops the chat's cache entry. Failures are logged, not
// surfaced: the TTL bounds how long a stale entry can live.
func (s *LinkingService) invalidate(ctx context.Context, externalChatID string) {
	if s.linkCache == nil {
		return
	}
	if err := s.linkCache.InvalidateLink(ctx, externalChatID); err != nil {
		slog.Warn("link cache invalidation failed", "external_chat_id", externalChatID, "error", err)
	}
}

func (s *LinkingService) audit(ctx context.Context, userID *string, action, resourceType, resourceID string, metadata map[string]interface{}) {
	entry := &models.AuditLog{
		UserID:       userID,
		Action:       action,
		ResourceType: &resourceType,
		ResourceID:   &resourceID,
		Metadata:     metadata,
	}
	if err := s.auditRepo.CreateAuditLog(ctx, entry); err != nil {
		slog.Warn("failed to write audit entry", "action", action, "error", err)
	}
}
