package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/db/models"
)

// ---------------------------------------------------------------------------
// Column definitions
// ---------------------------------------------------------------------------

var auditCols = []string{
	"id", "user_id", "action",
	"resource_type", "resource_id", "metadata", "ip_address", "created_at",
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newAuditRepo(t *testing.T) (*AuditRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewAuditRepository(db), mock
}

func sampleAuditRow() *sqlmock.Rows {
	return sqlmock.NewRows(auditCols).
		AddRow("log-1", "user-1", models.AuditActionLinkCreated,
			"account_link", "link-1", []byte(`{"chat_id":"chat-12345"}`), "1.2.3.4", time.Now())
}

func auditCountRows(n int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"count"}).AddRow(n)
}

func strPtr(s string) *string { return &s }

// ---------------------------------------------------------------------------
// whereClause
// ---------------------------------------------------------------------------

func TestAuditFilters_WhereClause(t *testing.T) {
	userID := "user-1"
	action := models.AuditActionCodeIssued
	resourceType := "linking_code"
	start := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 7)

	tests := []struct {
		name      string
		filters   AuditFilters
		wantWhere string
		wantArgs  int
	}{
		{
			name:      "no filters",
			filters:   AuditFilters{},
			wantWhere: "",
			wantArgs:  0,
		},
		{
			name:      "user only",
			filters:   AuditFilters{UserID: &userID},
			wantWhere: " WHERE user_id = $1",
			wantArgs:  1,
		},
		{
			name:      "action with date window",
			filters:   AuditFilters{Action: &action, StartDate: &start, EndDate: &end},
			wantWhere: " WHERE action = $1 AND created_at >= $2 AND created_at <= $3",
			wantArgs:  3,
		},
		{
			name: "all filters keep positional order",
			filters: AuditFilters{
				UserID:       &userID,
				Action:       &action,
				ResourceType: &resourceType,
				StartDate:    &start,
				EndDate:      &end,
			},
			wantWhere: " WHERE user_id = $1 AND action = $2 AND resource_type = $3 AND created_at >= $4 AND created_at <= $5",
			wantArgs:  5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := tt.filters.whereClause()
			if where != tt.wantWhere {
				t.Errorf("whereClause() = %q, want %q", where, tt.wantWhere)
			}
			if len(args) != tt.wantArgs {
				t.Errorf("len(args) = %d, want %d", len(args), tt.wantArgs)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// CreateAuditLog
// ---------------------------------------------------------------------------

func TestCreateAuditLog_Success(t *testing.T) {
	repo, mock := newAuditRepo(t)
	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(1, 1))

	log := &models.AuditLog{
		UserID:       strPtr("user-1"),
		Action:       models.AuditActionLinkCreated,
		ResourceType: strPtr("account_link"),
		ResourceID:   strPtr("link-1"),
		IPAddress:    strPtr("1.2.3.4"),
	}
	if err := repo.CreateAuditLog(context.Background(), log); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if log.ID == "" {
		t.Error("CreateAuditLog() did not assign an ID")
	}
	if log.CreatedAt.IsZero() {
		t.Error("CreateAuditLog() did not stamp CreatedAt")
	}
}

func TestCreateAuditLog_WithMetadata(t *testing.T) {
	repo, mock := newAuditRepo(t)
	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(1, 1))

	log := &models.AuditLog{
		UserID:       strPtr("user-1"),
		Action:       models.AuditActionCodeIssued,
		ResourceType: strPtr("linking_code"),
		Metadata:     map[string]interface{}{"expires_in": "10m"},
	}
	if err := repo.CreateAuditLog(context.Background(), log); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateAuditLog_DBError(t *testing.T) {
	repo, mock := newAuditRepo(t)
	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnError(errDB)

	log := &models.AuditLog{Action: models.AuditActionCodeIssued}
	if err := repo.CreateAuditLog(context.Background(), log); err == nil {
		t.Error("expected error, got nil")
	}
}

// ---------------------------------------------------------------------------
// HasAction
// ---------------------------------------------------------------------------

func TestHasAction_True(t *testing.T) {
	repo, mock := newAuditRepo(t)
	mock.ExpectQuery("SELECT EXISTS.*FROM audit_logs.*WHERE action.*AND resource_id").
		WithArgs(models.AuditActionBurnedUnlinked, "KITA-ABC234-DEF5678").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	found, err := repo.HasAction(context.Background(), models.AuditActionBurnedUnlinked, "KITA-ABC234-DEF5678")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Error("HasAction() = false, want true")
	}
}

func TestHasAction_False(t *testing.T) {
	repo, mock := newAuditRepo(t)
	mock.ExpectQuery("SELECT EXISTS.*FROM audit_logs.*WHERE action.*AND resource_id").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	found, err := repo.HasAction(context.Background(), models.AuditActionBurnedUnlinked, "KITA-XYZ234-XYZ5678")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Error("HasAction() = true, want false")
	}
}

func TestHasAction_DBError(t *testing.T) {
	repo, mock := newAuditRepo(t)
	mock.ExpectQuery("SELECT EXISTS.*FROM audit_logs").
		WillReturnError(errDB)

	if _, err := repo.HasAction(context.Background(), models.AuditActionBurnedUnlinked, "KITA-ABC234-DEF5678"); err == nil {
		t.Error("expected error, got nil")
	}
}

// ---------------------------------------------------------------------------
// ListAuditLogs
// ---------------------------------------------------------------------------

func TestListAuditLogs_NoFilters(t *testing.T) {
	repo, mock := newAuditRepo(t)
	mock.ExpectQuery("SELECT COUNT.*FROM audit_logs").
		WillReturnRows(auditCountRows(1))
	mock.ExpectQuery("SELECT id.*FROM audit_logs.*ORDER BY created_at DESC").
		WithArgs(10, 0).
		WillReturnRows(sampleAuditRow())

	logs, total, err := repo.ListAuditLogs(context.Background(), AuditFilters{}, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 {
		t.Errorf("total = %d, want 1", total)
	}
	if len(logs) != 1 {
		t.Errorf("len(logs) = %d, want 1", len(logs))
	}
}

func TestListAuditLogs_FiltersBindArgs(t *testing.T) {
	repo, mock := newAuditRepo(t)
	userID := "user-1"
	action := models.AuditActionLinkDeactivated
	resourceType := "account_link"

	mock.ExpectQuery("SELECT COUNT.*FROM audit_logs WHERE user_id = .1 AND action = .2 AND resource_type = .3").
		WithArgs(userID, action, resourceType).
		WillReturnRows(auditCountRows(0))
	mock.ExpectQuery("FROM audit_logs WHERE user_id = .1 AND action = .2 AND resource_type = .3.*LIMIT .4 OFFSET .5").
		WithArgs(userID, action, resourceType, 10, 0).
		WillReturnRows(sqlmock.NewRows(auditCols))

	logs, total, err := repo.ListAuditLogs(context.Background(), AuditFilters{
		UserID:       &userID,
		Action:       &action,
		ResourceType: &resourceType,
	}, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 0 {
		t.Errorf("total = %d, want 0", total)
	}
	if len(logs) != 0 {
		t.Errorf("len(logs) = %d, want 0", len(logs))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestListAuditLogs_DateWindowBindsArgs(t *testing.T) {
	repo, mock := newAuditRepo(t)
	start := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 7)

	mock.ExpectQuery("SELECT COUNT.*FROM audit_logs WHERE created_at >= .1 AND created_at <= .2").
		WithArgs(start, end).
		WillReturnRows(auditCountRows(0))
	mock.ExpectQuery("FROM audit_logs WHERE created_at >= .1 AND created_at <= .2").
		WithArgs(start, end, 50, 0).
		WillReturnRows(sqlmock.NewRows(auditCols))

	_, _, err := repo.ListAuditLogs(context.Background(), AuditFilters{
		StartDate: &start,
		EndDate:   &end,
	}, 50, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestListAuditLogs_CountError(t *testing.T) {
	repo, mock := newAuditRepo(t)
	mock.ExpectQuery("SELECT COUNT.*FROM audit_logs").
		WillReturnError(errDB)

	_, _, err := repo.ListAuditLogs(context.Background(), AuditFilters{}, 10, 0)
	if err == nil {
		t.Error("expected error, got nil")
	}
}

func TestListAuditLogs_QueryError(t *testing.T) {
	repo, mock := newAuditRepo(t)
	mock.ExpectQuery("SELECT COUNT.*FROM audit_logs").
		WillReturnRows(auditCountRows(1))
	mock.ExpectQuery("SELECT id.*FROM audit_logs").
		WillReturnError(errDB)

	_, _, err := repo.ListAuditLogs(context.Background(), AuditFilters{}, 10, 0)
	if err == nil {
		t.Error("expected error, got nil")
	}
}

func TestListAuditLogs_ScanError(t *testing.T) {
	repo, mock := newAuditRepo(t)
	mock.ExpectQuery("SELECT COUNT.*FROM audit_logs").
		WillReturnRows(auditCountRows(1))
	// created_at carries a non-timestamp value, so row scanning must fail
	bad := sqlmock.NewRows(auditCols).
		AddRow("log-1", "user-1", models.AuditActionLinkCreated,
			"account_link", "link-1", []byte(`{}`), "1.2.3.4", "not-a-timestamp")
	mock.ExpectQuery("SELECT id.*FROM audit_logs").
		WillReturnRows(bad)

	_, _, err := repo.ListAuditLogs(context.Background(), AuditFilters{}, 10, 0)
	if err == nil {
		t.Error("expected scan error, got nil")
	}
}

// ---------------------------------------------------------------------------
// GetAuditLog
// ---------------------------------------------------------------------------

func TestGetAuditLog_Found(t *testing.T) {
	repo, mock := newAuditRepo(t)
	mock.ExpectQuery("SELECT id.*FROM audit_logs.*WHERE id").
		WillReturnRows(sampleAuditRow())

	log, err := repo.GetAuditLog(context.Background(), "log-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if log == nil {
		t.Fatal("expected log, got nil")
	}
	if log.ID != "log-1" {
		t.Errorf("ID = %q, want %q", log.ID, "log-1")
	}
	if log.Metadata["chat_id"] != "chat-12345" {
		t.Errorf("Metadata[chat_id] = %v, want chat-12345", log.Metadata["chat_id"])
	}
}

func TestGetAuditLog_NotFound(t *testing.T) {
	repo, mock := newAuditRepo(t)
	mock.ExpectQuery("SELECT id.*FROM audit_logs.*WHERE id").
		WillReturnRows(sqlmock.NewRows(auditCols))

	log, err := repo.GetAuditLog(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if log != nil {
		t.Errorf("expected nil, got %v", log)
	}
}

func TestGetAuditLog_CorruptMetadata(t *testing.T) {
	repo, mock := newAuditRepo(t)
	corrupt := sqlmock.NewRows(auditCols).
		AddRow("log-1", "user-1", models.AuditActionLinkCreated,
			"account_link", "link-1", []byte(`{broken`), "1.2.3.4", time.Now())
	mock.ExpectQuery("SELECT id.*FROM audit_logs.*WHERE id").
		WillReturnRows(corrupt)

	if _, err := repo.GetAuditLog(context.Background(), "log-1"); err == nil {
		t.Error("expected error for corrupt metadata JSON, got nil")
	}
}

func TestGetAuditLog_Error(t *testing.T) {
	repo, mock := newAuditRepo(t)
	mock.ExpectQuery("SELECT id.*FROM audit_logs.*WHERE id").
		WillReturnError(errDB)

	_, err := repo.GetAuditLog(context.Background(), "log-1")
	if err == nil {
		t.Error("expected error, got nil")
	}
}
