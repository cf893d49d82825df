package models

import (
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// LinkingCode.Consumable / ExpiredAt
// ---------------------------------------------------------------------------

func TestLinkingCode_Consumable_Fresh(t *testing.T) {
	now := time.Now()
	c := &LinkingCode{Used: false, ExpiresAt: now.Add(10 * time.Minute)}
	if !c.Consumable(now) {
		t.Error("Consumable() should be true for an unused, unexpired code")
	}
}

func TestLinkingCode_Consumable_Used(t *testing.T) {
	now := time.Now()
	c := &LinkingCode{Used: true, ExpiresAt: now.Add(10 * time.Minute)}
	if c.Consumable(now) {
		t.Error("Consumable() should be false once the code is used")
	}
}

func TestLinkingCode_Consumable_AtExpiryInstant(t *testing.T) {
	now := time.Now()
	c := &LinkingCode{Used: false, ExpiresAt: now}
	// The boundary is inclusive: valid up to and including ExpiresAt.
	if !c.Consumable(now) {
		t.Error("Consumable() should be true at the exact expiry instant")
	}
}

func TestLinkingCode_Consumable_JustPastExpiry(t *testing.T) {
	now := time.Now()
	c := &LinkingCode{Used: false, ExpiresAt: now.Add(-time.Nanosecond)}
	if c.Consumable(now) {
		t.Error("Consumable() should be false any time after expiry")
	}
}

func TestLinkingCode_ExpiredAt(t *testing.T) {
	now := time.Now()
	c := &LinkingCode{ExpiresAt: now}
	if c.ExpiredAt(now) {
		t.Error("ExpiredAt() should be false at the expiry instant itself")
	}
	if !c.ExpiredAt(now.Add(time.Nanosecond)) {
		t.Error("ExpiredAt() should be true just past expiry")
	}
}

// ---------------------------------------------------------------------------
// Transaction.ValidDirection
// ---------------------------------------------------------------------------

func TestValidDirection(t *testing.T) {
	for _, d := range []string{DirectionIncome, DirectionExpense, DirectionTransfer} {
		if !ValidDirection(d) {
			t.Errorf("ValidDirection(%q) = false, want true", d)
		}
	}
	for _, d := range []string{"", "spend", "INCOME", "refund"} {
		if ValidDirection(d) {
			t.Errorf("ValidDirection(%q) = true, want false", d)
		}
	}
}

// ---------------------------------------------------------------------------
// OpsToken.Usable
// ---------------------------------------------------------------------------

func TestOpsToken_Usable_NoExpiry(t *testing.T) {
	tok := &OpsToken{}
	if !tok.Usable(time.Now()) {
		t.Error("Usable() should be true for an unrevoked token with no expiry")
	}
}

func TestOpsToken_Usable_Revoked(t *testing.T) {
	now := time.Now()
	tok := &OpsToken{RevokedAt: &now}
	if tok.Usable(now) {
		t.Error("Usable() should be false for a revoked token")
	}
}

func TestOpsToken_Usable_Expired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	tok := &OpsToken{ExpiresAt: &past}
	if tok.Usable(now) {
		t.Error("Usable() should be false for an expired token")
	}
}

func TestOpsToken_Usable_FutureExpiry(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	tok := &OpsToken{ExpiresAt: &future}
	if !tok.Usable(now) {
		t.Error("Usable() should be true before expiry")
	}
}
