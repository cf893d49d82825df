package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/db/models"
)

// ---------------------------------------------------------------------------
// Column definitions
// ---------------------------------------------------------------------------

var accountLinkCols = []string{
	"id", "web_user_id", "external_chat_id", "external_display_name",
	"linked_at", "active", "deactivated_at",
}

// ---------------------------------------------------------------------------
// Row builders
// ---------------------------------------------------------------------------

func sampleAccountLinkRow() *sqlmock.Rows {
	return sqlmock.NewRows(accountLinkCols).
		AddRow("link-1", "user-1", "chat-12345", "Juan D.",
			time.Now(), true, nil)
}

func emptyAccountLinkRow() *sqlmock.Rows {
	return sqlmock.NewRows(accountLinkCols)
}

func newAccountLinkRepo(t *testing.T) (*AccountLinkRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewAccountLinkRepository(db), mock
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestAccountLinkCreate_Success(t *testing.T) {
	repo, mock := newAccountLinkRepo(t)
	mock.ExpectExec("INSERT INTO account_links").
		WillReturnResult(sqlmock.NewResult(0, 1))

	name := "Juan D."
	link := &models.AccountLink{
		WebUserID:           "user-1",
		ExternalChatID:      "chat-12345",
		ExternalDisplayName: &name,
	}
	if err := repo.Create(context.Background(), link); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if link.ID == "" {
		t.Error("ID should be generated")
	}
	if !link.Active {
		t.Error("Active should default to true")
	}
	if link.LinkedAt.IsZero() {
		t.Error("LinkedAt should be set")
	}
}

func TestAccountLinkCreate_ActiveLinkExists(t *testing.T) {
	repo, mock := newAccountLinkRepo(t)
	mock.ExpectExec("INSERT INTO account_links").
		WillReturnError(&pq.Error{Code: "23505"})

	link := &models.AccountLink{WebUserID: "user-1", ExternalChatID: "chat-12345"}
	err := repo.Create(context.Background(), link)
	if !errors.Is(err, ErrActiveLinkExists) {
		t.Errorf("error = %v, want ErrActiveLinkExists", err)
	}
}

func TestAccountLinkCreate_DBError(t *testing.T) {
	repo, mock := newAccountLinkRepo(t)
	mock.ExpectExec("INSERT INTO account_links").
		WillReturnError(errDB)

	link := &models.AccountLink{WebUserID: "user-1", ExternalChatID: "chat-12345"}
	if err := repo.Create(context.Background(), link); err == nil {
		t.Error("expected error, got nil")
	}
}

// ---------------------------------------------------------------------------
// GetActiveByChatID / GetActiveByUserID
// ---------------------------------------------------------------------------

func TestGetActiveByChatID_Found(t *testing.T) {
	repo, mock := newAccountLinkRepo(t)
	mock.ExpectQuery("SELECT.*FROM account_links.*WHERE external_chat_id.*AND active = true").
		WithArgs("chat-12345").
		WillReturnRows(sampleAccountLinkRow())

	link, err := repo.GetActiveByChatID(context.Background(), "chat-12345")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if link == nil {
		t.Fatal("expected link, got nil")
	}
	if link.WebUserID != "user-1" {
		t.Errorf("WebUserID = %s, want user-1", link.WebUserID)
	}
}

func TestGetActiveByChatID_NotFound(t *testing.T) {
	repo, mock := newAccountLinkRepo(t)
	mock.ExpectQuery("SELECT.*FROM account_links.*WHERE external_chat_id.*AND active = true").
		WillReturnRows(emptyAccountLinkRow())

	link, err := repo.GetActiveByChatID(context.Background(), "chat-99999")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if link != nil {
		t.Error("expected nil, got non-nil")
	}
}

func TestGetActiveByUserID_Found(t *testing.T) {
	repo, mock := newAccountLinkRepo(t)
	mock.ExpectQuery("SELECT.*FROM account_links.*WHERE web_user_id.*AND active = true").
		WithArgs("user-1").
		WillReturnRows(sampleAccountLinkRow())

	link, err := repo.GetActiveByUserID(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if link == nil {
		t.Fatal("expected link, got nil")
	}
	if link.ExternalChatID != "chat-12345" {
		t.Errorf("ExternalChatID = %s, want chat-12345", link.ExternalChatID)
	}
}

func TestGetActiveByUserID_NotFound(t *testing.T) {
	repo, mock := newAccountLinkRepo(t)
	mock.ExpectQuery("SELECT.*FROM account_links.*WHERE web_user_id.*AND active = true").
		WillReturnRows(emptyAccountLinkRow())

	link, err := repo.GetActiveByUserID(context.Background(), "user-404")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if link != nil {
		t.Error("expected nil, got non-nil")
	}
}

func TestGetActiveByChatID_DBError(t *testing.T) {
	repo, mock := newAccountLinkRepo(t)
	mock.ExpectQuery("SELECT.*FROM account_links").
		WillReturnError(errDB)

	if _, err := repo.GetActiveByChatID(context.Background(), "chat-12345"); err == nil {
		t.Error("expected error, got nil")
	}
}

// ---------------------------------------------------------------------------
// Refresh
// ---------------------------------------------------------------------------

func TestRefresh_Success(t *testing.T) {
	repo, mock := newAccountLinkRepo(t)
	mock.ExpectExec("UPDATE account_links.*SET external_display_name.*linked_at").
		WillReturnResult(sqlmock.NewResult(0, 1))

	name := "Juan Dela Cruz"
	if err := repo.Refresh(context.Background(), "link-1", &name, time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRefresh_NotFound(t *testing.T) {
	repo, mock := newAccountLinkRepo(t)
	mock.ExpectExec("UPDATE account_links.*SET external_display_name.*linked_at").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Refresh(context.Background(), "link-404", nil, time.Now())
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("error = %v, want sql.ErrNoRows", err)
	}
}

// ---------------------------------------------------------------------------
// DeactivateByChatID / DeactivateByUserID
// ---------------------------------------------------------------------------

func TestDeactivateByChatID_Touched(t *testing.T) {
	repo, mock := newAccountLinkRepo(t)
	mock.ExpectExec("UPDATE account_links.*SET active = false.*WHERE external_chat_id.*AND active = true").
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := repo.DeactivateByChatID(context.Background(), "chat-12345", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("n = %d, want 1", n)
	}
}

func TestDeactivateByChatID_NoActiveLink(t *testing.T) {
	repo, mock := newAccountLinkRepo(t)
	mock.ExpectExec("UPDATE account_links.*SET active = false.*WHERE external_chat_id.*AND active = true").
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := repo.DeactivateByChatID(context.Background(), "chat-99999", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("n = %d, want 0", n)
	}
}

func TestDeactivateByUserID_Touched(t *testing.T) {
	repo, mock := newAccountLinkRepo(t)
	mock.ExpectExec("UPDATE account_links.*SET active = false.*WHERE web_user_id.*AND active = true").
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := repo.DeactivateByUserID(context.Background(), "user-1", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("n = %d, want 1", n)
	}
}

func TestDeactivateByUserID_DBError(t *testing.T) {
	repo, mock := newAccountLinkRepo(t)
	mock.ExpectExec("UPDATE account_links.*SET active = false").
		WillReturnError(errDB)

	if _, err := repo.DeactivateByUserID(context.Background(), "user-1", time.Now()); err == nil {
		t.Error("expected error, got nil")
	}
}

// ---------------------------------------------------------------------------
// ListByUserID
// ---------------------------------------------------------------------------

func TestListByUserID_Success(t *testing.T) {
	repo, mock := newAccountLinkRepo(t)
	rows := sqlmock.NewRows(accountLinkCols).
		AddRow("link-1", "user-1", "chat-12345", "Juan D.", time.Now(), true, nil).
		AddRow("link-0", "user-1", "chat-11111", nil, time.Now().Add(-48*time.Hour), false, time.Now())
	mock.ExpectQuery("SELECT.*FROM account_links.*WHERE web_user_id.*ORDER BY linked_at DESC").
		WithArgs("user-1", 50).
		WillReturnRows(rows)

	links, err := repo.ListByUserID(context.Background(), "user-1", 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("len(links) = %d, want 2", len(links))
	}
	if !links[0].Active || links[1].Active {
		t.Error("expected first link active, second inactive")
	}
}
