package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/crypto"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/db/models"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/linking"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/llm"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/storage"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/telemetry"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/pkg/checksum"
)

// Narrow views of the collaborators the ingestor needs. The production
// wiring passes the concrete repositories and the linking service; tests
// substitute fakes.
type scanStore interface {
	Create(ctx context.Context, scan *models.ReceiptScan) error
	GetByChatAndChecksum(ctx context.Context, externalChatID, checksum string) (*models.ReceiptScan, error)
	AttachTransaction(ctx context.Context, scanID, transactionID string) error
}

type transactionStore interface {
	Create(ctx context.Context, txn *models.Transaction) error
}

type linkResolver interface {
	ResolveLink(ctx context.Context, externalChatID string) (*models.AccountLink, error)
}

// IngestResult is what one receipt photo produced. Scan is always set on
// success; Data is nil when the model could not read the image or when the
// result is a duplicate of an earlier scan.
type IngestResult struct {
	Scan          *models.ReceiptScan
	Data          *llm.ReceiptData
	Duplicate     bool
	TransactionID string // empty when no transaction was written
}

// Linked reports whether the scan belongs to a linked web user. Duplicates
// report the linkage recorded at the original scan time.
func (r *IngestResult) Linked() bool {
	return r.Scan != nil && r.Scan.WebUserID != nil
}

// ReceiptIngestor turns a receipt photo into an archived image, a scan
// record, and, for linked chats, a transaction. Each image is processed at
// most once per chat: the content checksum is the dedupe key, so resending
// a photo after a mid-flow failure is always safe.
type ReceiptIngestor struct {
	scans   scanStore
	txns    transactionStore
	links   linkResolver
	archive storage.Archive
	model   llm.Client
	cipher  *crypto.TextCipher // nil disables sealed raw text
}

// NewReceiptIngestor creates the ingestor. cipher may be nil; raw model
// output for unparseable scans is then discarded instead of sealed.
func NewReceiptIngestor(scans scanStore, txns transactionStore, links linkResolver, archive storage.Archive, model llm.Client, cipher *crypto.TextCipher) *ReceiptIngestor {
	return &ReceiptIngestor{
		scans:   scans,
		txns:    txns,
		links:   links,
		archive: archive,
		model:   model,
		cipher:  cipher,
	}
}

// IngestImage processes one receipt photo from a chat. The sequence is
// checksum, dedupe, archive, model read, then persistence; the scan row is
// written before the transaction so a failure between the two leaves a
// detectable gap instead of a double-counted resend.
func (ri *ReceiptIngestor) IngestImage(ctx context.Context, externalChatID string, image []byte, mimeType string) (*IngestResult, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("empty image")
	}

	sum := checksum.SHA256Hex(image)

	// Duplicate photos never reach the archive or the model.
	var existing *models.ReceiptScan
	err := withStorageRetry(ctx, func() error {
		var e error
		existing, e = ri.scans.GetByChatAndChecksum(ctx, externalChatID, sum)
		return e
	})
	if err != nil {
		telemetry.ReceiptScansTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%w: %v", linking.ErrStorageUnavailable, err)
	}
	if existing != nil {
		telemetry.ReceiptScansTotal.WithLabelValues("duplicate").Inc()
		res := &IngestResult{Scan: existing, Duplicate: true}
		if existing.TransactionID != nil {
			res.TransactionID = *existing.TransactionID
		}
		return res, nil
	}

	path := fmt.Sprintf("receipts/%s/%s%s", externalChatID, sum, extensionFor(mimeType))
	var up *storage.UploadResult
	err = withStorageRetry(ctx, func() error {
		var e error
		up, e = ri.archive.Upload(ctx, path, bytes.NewReader(image), int64(len(image)))
		return e
	})
	if err != nil {
		telemetry.ReceiptScansTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%w: archive upload failed: %v", linking.ErrStorageUnavailable, err)
	}

	raw, err := ri.readReceipt(ctx, image, mimeType)
	if err != nil {
		telemetry.ReceiptScansTotal.WithLabelValues("failed").Inc()
		ri.discardBlob(ctx, up.Path)
		return nil, fmt.Errorf("%w: %v", linking.ErrUpstreamUnavailable, err)
	}
	parsed := llm.ParseReceipt(raw)

	link, err := ri.links.ResolveLink(ctx, externalChatID)
	if err != nil {
		telemetry.ReceiptScansTotal.WithLabelValues("failed").Inc()
		ri.discardBlob(ctx, up.Path)
		return nil, err
	}

	scan := &models.ReceiptScan{
		ExternalChatID: externalChatID,
		StoragePath:    up.Path,
		Checksum:       sum,
	}
	if link != nil {
		scan.WebUserID = &link.WebUserID
	}

	if parsed.Unparseable() {
		scan.Status = models.ScanStatusUnparseable
		scan.SealedText = ri.seal(parsed.Raw)
		err = withStorageRetry(ctx, func() error { return ri.scans.Create(ctx, scan) })
		if err != nil {
			telemetry.ReceiptScansTotal.WithLabelValues("failed").Inc()
			ri.discardBlob(ctx, up.Path)
			return nil, fmt.Errorf("%w: %v", linking.ErrStorageUnavailable, err)
		}
		telemetry.ReceiptScansTotal.WithLabelValues("unparseable").Inc()
		return &IngestResult{Scan: scan}, nil
	}

	scan.Status = models.ScanStatusParsed
	err = withStorageRetry(ctx, func() error { return ri.scans.Create(ctx, scan) })
	if err != nil {
		telemetry.ReceiptScansTotal.WithLabelValues("failed").Inc()
		ri.discardBlob(ctx, up.Path)
		return nil, fmt.Errorf("%w: %v", linking.ErrStorageUnavailable, err)
	}

	result := &IngestResult{Scan: scan, Data: parsed.Parsed}
	if link == nil {
		// Unlinked chat: the scan is on record but no money moves until
		// the user links and resubmits through support.
		telemetry.ReceiptScansTotal.WithLabelValues("parsed").Inc()
		return result, nil
	}

	txn := ri.buildTransaction(link.WebUserID, parsed.Parsed, scan)
	err = withStorageRetry(ctx, func() error { return ri.txns.Create(ctx, txn) })
	if err != nil {
		// The scan row is committed, so a resend dedupes instead of
		// double-counting. Support attaches the transaction later.
		telemetry.ReceiptScansTotal.WithLabelValues("failed").Inc()
		slog.Error("scan recorded but transaction write failed",
			"scan_id", scan.ID, "external_chat_id", externalChatID, "error", err)
		return nil, fmt.Errorf("%w: %v", linking.ErrStorageUnavailable, err)
	}

	err = withStorageRetry(ctx, func() error { return ri.scans.AttachTransaction(ctx, scan.ID, txn.ID) })
	if err != nil {
		// The transaction is saved; the missing back-reference is a
		// cosmetic gap, not a user-visible failure.
		slog.Error("failed to attach transaction to scan",
			"scan_id", scan.ID, "transaction_id", txn.ID, "error", err)
	} else {
		scan.TransactionID = &txn.ID
	}

	telemetry.ReceiptScansTotal.WithLabelValues("parsed").Inc()
	result.TransactionID = txn.ID
	return result, nil
}

// readReceipt asks the vision model for the structured read of the image.
func (ri *ReceiptIngestor) readReceipt(ctx context.Context, image []byte, mimeType string) (string, error) {
	prompt := llm.BuildReceiptPrompt(time.Now())
	raw, err := ri.model.AnalyzeImage(ctx, image, mimeType, prompt)
	if err != nil {
		outcome := "error"
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			outcome = "timeout"
		}
		telemetry.LLMRequestsTotal.WithLabelValues("receipt_parse", outcome).Inc()
		return "", err
	}
	telemetry.LLMRequestsTotal.WithLabelValues("receipt_parse", "ok").Inc()
	return raw, nil
}

func (ri *ReceiptIngestor) buildTransaction(webUserID string, data *llm.ReceiptData, scan *models.ReceiptScan) *models.Transaction {
	txn := &models.Transaction{
		UserID:          webUserID,
		TxnDate:         scan.CreatedAt,
		AmountMinor:     data.TotalMinor,
		Currency:        data.Currency,
		Direction:       models.DirectionExpense,
		Source:          models.SourceTelegramReceipt,
		ReceiptPath:     &scan.StoragePath,
		ReceiptChecksum: &scan.Checksum,
	}
	if data.Date != "" {
		if d, err := time.Parse("2006-01-02", data.Date); err == nil {
			txn.TxnDate = d
		}
	}
	if data.Merchant != "" {
		m := data.Merchant
		txn.Merchant = &m
	}
	if data.Category != "" {
		c := data.Category
		txn.Category = &c
	}
	return txn
}

// seal encrypts raw model output for at-rest storage. Nil when no cipher is
// configured or sealing fails; an unreadable receipt is not worth failing
// the whole scan over.
func (ri *ReceiptIngestor) seal(raw string) *string {
	if ri.cipher == nil || raw == "" {
		return nil
	}
	sealed, err := ri.cipher.Seal(raw)
	if err != nil {
		slog.Warn("failed to seal raw receipt text", "error", err)
		return nil
	}
	return &sealed
}

// discardBlob removes an archived image that ended up with no scan row.
func (ri *ReceiptIngestor) discardBlob(ctx context.Context, path string) {
	if err := ri.archive.Delete(ctx, path); err != nil {
		slog.Warn("failed to remove orphaned receipt blob", "path", path, "error", err)
	}
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}
