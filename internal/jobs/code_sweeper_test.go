package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/db/repositories"
)

func newSweeperRepo(t *testing.T) (*repositories.LinkingCodeRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return repositories.NewLinkingCodeRepository(db), mock
}

// ---------------------------------------------------------------------------
// NewCodeSweeper — duration defaulting
// ---------------------------------------------------------------------------

func TestNewCodeSweeper_Defaults(t *testing.T) {
	s := NewCodeSweeper(nil, 0, 0)
	if s.interval != defaultSweepInterval {
		t.Errorf("interval = %v, want %v", s.interval, defaultSweepInterval)
	}
	if s.retention != defaultSweepRetention {
		t.Errorf("retention = %v, want %v", s.retention, defaultSweepRetention)
	}
}

func TestNewCodeSweeper_CustomDurations(t *testing.T) {
	s := NewCodeSweeper(nil, 10*time.Minute, 48*time.Hour)
	if s.interval != 10*time.Minute {
		t.Errorf("interval = %v, want 10m", s.interval)
	}
	if s.retention != 48*time.Hour {
		t.Errorf("retention = %v, want 48h", s.retention)
	}
}

// ---------------------------------------------------------------------------
// runSweep — exercised via sqlmock
// ---------------------------------------------------------------------------

func TestSweeper_RunSweep_DeletesAgedCodes(t *testing.T) {
	codeRepo, mock := newSweeperRepo(t)
	s := NewCodeSweeper(codeRepo, time.Hour, 24*time.Hour)

	mock.ExpectExec("DELETE FROM linking_codes").WillReturnResult(sqlmock.NewResult(0, 7))

	s.runSweep(context.Background())

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSweeper_RunSweep_NothingToDelete(t *testing.T) {
	codeRepo, mock := newSweeperRepo(t)
	s := NewCodeSweeper(codeRepo, time.Hour, 24*time.Hour)

	mock.ExpectExec("DELETE FROM linking_codes").WillReturnResult(sqlmock.NewResult(0, 0))

	s.runSweep(context.Background())

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSweeper_RunSweep_DBError(t *testing.T) {
	codeRepo, mock := newSweeperRepo(t)
	s := NewCodeSweeper(codeRepo, time.Hour, 24*time.Hour)

	mock.ExpectExec("DELETE FROM linking_codes").WillReturnError(errors.New("db connection lost"))

	// Should log and return without panicking.
	s.runSweep(context.Background())
}

// ---------------------------------------------------------------------------
// Start / Stop — lifecycle
// ---------------------------------------------------------------------------

func TestSweeper_StartStop(t *testing.T) {
	codeRepo, mock := newSweeperRepo(t)
	s := NewCodeSweeper(codeRepo, time.Hour, 24*time.Hour)

	// The immediate first sweep runs before the ticker loop.
	mock.ExpectExec("DELETE FROM linking_codes").WillReturnResult(sqlmock.NewResult(0, 0))

	s.Start(context.Background())

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("Stop did not return; worker goroutine is stuck")
	}
}
