package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/db/models"
)

// ---------------------------------------------------------------------------
// Column definitions
// ---------------------------------------------------------------------------

var receiptScanCols = []string{
	"id", "external_chat_id", "web_user_id", "storage_path", "checksum",
	"status", "sealed_text", "transaction_id", "created_at",
}

// ---------------------------------------------------------------------------
// Row builders
// ---------------------------------------------------------------------------

func parsedScanRow() *sqlmock.Rows {
	return sqlmock.NewRows(receiptScanCols).
		AddRow("scan-1", "chat-12345", "user-1", "receipts/chat-12345/ab/abcd.jpg", "abcd",
			models.ScanStatusParsed, nil, "txn-1", time.Now())
}

func unparseableScanRow() *sqlmock.Rows {
	return sqlmock.NewRows(receiptScanCols).
		AddRow("scan-2", "chat-12345", nil, "receipts/chat-12345/ef/efgh.jpg", "efgh",
			models.ScanStatusUnparseable, "c2VhbGVk", nil, time.Now())
}

func newReceiptScanRepo(t *testing.T) (*ReceiptScanRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewReceiptScanRepository(db), mock
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestReceiptScanCreate_Success(t *testing.T) {
	repo, mock := newReceiptScanRepo(t)
	mock.ExpectExec("INSERT INTO receipt_scans").
		WillReturnResult(sqlmock.NewResult(0, 1))

	scan := &models.ReceiptScan{
		ExternalChatID: "chat-12345",
		StoragePath:    "receipts/chat-12345/ab/abcd.jpg",
		Checksum:       "abcd",
		Status:         models.ScanStatusParsed,
	}
	if err := repo.Create(context.Background(), scan); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scan.ID == "" {
		t.Error("ID should be generated")
	}
}

func TestReceiptScanCreate_DBError(t *testing.T) {
	repo, mock := newReceiptScanRepo(t)
	mock.ExpectExec("INSERT INTO receipt_scans").
		WillReturnError(errDB)

	scan := &models.ReceiptScan{ExternalChatID: "chat-12345", Checksum: "abcd"}
	if err := repo.Create(context.Background(), scan); err == nil {
		t.Error("expected error, got nil")
	}
}

// ---------------------------------------------------------------------------
// GetByChatAndChecksum
// ---------------------------------------------------------------------------

func TestGetByChatAndChecksum_Found(t *testing.T) {
	repo, mock := newReceiptScanRepo(t)
	mock.ExpectQuery("SELECT.*FROM receipt_scans.*WHERE external_chat_id.*AND checksum").
		WithArgs("chat-12345", "abcd").
		WillReturnRows(parsedScanRow())

	scan, err := repo.GetByChatAndChecksum(context.Background(), "chat-12345", "abcd")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scan == nil {
		t.Fatal("expected scan, got nil")
	}
	if scan.Status != models.ScanStatusParsed {
		t.Errorf("Status = %s, want parsed", scan.Status)
	}
	if scan.TransactionID == nil || *scan.TransactionID != "txn-1" {
		t.Errorf("TransactionID = %v, want txn-1", scan.TransactionID)
	}
}

func TestGetByChatAndChecksum_NotFound(t *testing.T) {
	repo, mock := newReceiptScanRepo(t)
	mock.ExpectQuery("SELECT.*FROM receipt_scans.*WHERE external_chat_id.*AND checksum").
		WillReturnRows(sqlmock.NewRows(receiptScanCols))

	scan, err := repo.GetByChatAndChecksum(context.Background(), "chat-12345", "zzzz")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scan != nil {
		t.Error("expected nil, got non-nil")
	}
}

// ---------------------------------------------------------------------------
// GetByID
// ---------------------------------------------------------------------------

func TestScanGetByID_Found(t *testing.T) {
	repo, mock := newReceiptScanRepo(t)
	mock.ExpectQuery("SELECT.*FROM receipt_scans.*WHERE id").
		WithArgs("scan-1").
		WillReturnRows(parsedScanRow())

	scan, err := repo.GetByID(context.Background(), "scan-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scan == nil {
		t.Fatal("expected scan, got nil")
	}
	if scan.StoragePath != "receipts/chat-12345/ab/abcd.jpg" {
		t.Errorf("StoragePath = %s", scan.StoragePath)
	}
}

func TestScanGetByID_NotFound(t *testing.T) {
	repo, mock := newReceiptScanRepo(t)
	mock.ExpectQuery("SELECT.*FROM receipt_scans.*WHERE id").
		WillReturnRows(sqlmock.NewRows(receiptScanCols))

	scan, err := repo.GetByID(context.Background(), "scan-404")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scan != nil {
		t.Error("expected nil, got non-nil")
	}
}

// ---------------------------------------------------------------------------
// ListUnparseable
// ---------------------------------------------------------------------------

func TestListUnparseable_Success(t *testing.T) {
	repo, mock := newReceiptScanRepo(t)
	mock.ExpectQuery("SELECT.*FROM receipt_scans.*WHERE status.*ORDER BY created_at ASC").
		WillReturnRows(unparseableScanRow())

	scans, err := repo.ListUnparseable(context.Background(), 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(scans) != 1 {
		t.Fatalf("len(scans) = %d, want 1", len(scans))
	}
	if scans[0].Status != models.ScanStatusUnparseable {
		t.Errorf("Status = %s, want unparseable", scans[0].Status)
	}
	if scans[0].SealedText == nil {
		t.Error("SealedText should be present on unparseable scans")
	}
}

func TestListUnparseable_DBError(t *testing.T) {
	repo, mock := newReceiptScanRepo(t)
	mock.ExpectQuery("SELECT.*FROM receipt_scans.*WHERE status").
		WillReturnError(errDB)

	if _, err := repo.ListUnparseable(context.Background(), 20); err == nil {
		t.Error("expected error, got nil")
	}
}

// ---------------------------------------------------------------------------
// AttachTransaction
// ---------------------------------------------------------------------------

func TestAttachTransaction_Success(t *testing.T) {
	repo, mock := newReceiptScanRepo(t)
	mock.ExpectExec("UPDATE receipt_scans.*SET status.*transaction_id").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.AttachTransaction(context.Background(), "scan-2", "txn-9"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAttachTransaction_NotFound(t *testing.T) {
	repo, mock := newReceiptScanRepo(t)
	mock.ExpectExec("UPDATE receipt_scans.*SET status.*transaction_id").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.AttachTransaction(context.Background(), "scan-404", "txn-9")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("error = %v, want sql.ErrNoRows", err)
	}
}
