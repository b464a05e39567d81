package gatehouse

import (
	"context"
	"errors"
	"testing"
)

func TestInitiateResetUnknownEmail(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig())

	// Unknown identifiers are indistinguishable from known ones: no
	// error, no secret.
	secret, err := engine.InitiateReset(context.Background(), "nobody@example.com")
	if err != nil {
		t.Fatalf("expected nil error for unknown email, got %v", err)
	}
	if secret != "" {
		t.Fatalf("expected empty secret for unknown email, got %q", secret)
	}
}

func TestResetFlow(t *testing.T) {
	engine, db := newTestEngine(t, testConfig())
	userID := seedUser(t, engine, db, "alice@example.com", "correct-horse-battery")

	if _, err := engine.Login(context.Background(), "alice@example.com", "correct-horse-battery"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	secret, err := engine.InitiateReset(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("initiate reset failed: %v", err)
	}
	if secret == "" {
		t.Fatal("expected a reset secret for a known email")
	}

	if err := engine.CompleteReset(context.Background(), "not-the-secret", "brand-new-password"); !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("expected ErrResetTokenInvalid for wrong secret, got %v", err)
	}
	if err := engine.CompleteReset(context.Background(), secret, "short"); !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("expected ErrPasswordPolicy, got %v", err)
	}

	if err := engine.CompleteReset(context.Background(), secret, "brand-new-password"); err != nil {
		t.Fatalf("complete reset failed: %v", err)
	}

	// The reset killed every live session.
	if got := db.activeRefreshCount(userID); got != 0 {
		t.Fatalf("expected all sessions revoked, got %d active", got)
	}

	if _, err := engine.Login(context.Background(), "alice@example.com", "correct-horse-battery"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected old password to be rejected, got %v", err)
	}
	if _, err := engine.Login(context.Background(), "alice@example.com", "brand-new-password"); err != nil {
		t.Fatalf("expected new password to work, got %v", err)
	}
}

func TestResetSecretIsSingleUse(t *testing.T) {
	engine, db := newTestEngine(t, testConfig())
	seedUser(t, engine, db, "alice@example.com", "correct-horse-battery")

	secret, err := engine.InitiateReset(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("initiate reset failed: %v", err)
	}
	if err := engine.CompleteReset(context.Background(), secret, "brand-new-password"); err != nil {
		t.Fatalf("complete reset failed: %v", err)
	}

	if err := engine.CompleteReset(context.Background(), secret, "another-password-1"); !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("expected spent secret to be rejected, got %v", err)
	}
}

func TestResetOnlyLatestRequestHonored(t *testing.T) {
	engine, db := newTestEngine(t, testConfig())
	seedUser(t, engine, db, "alice@example.com", "correct-horse-battery")

	first, err := engine.InitiateReset(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("first initiate failed: %v", err)
	}
	second, err := engine.InitiateReset(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("second initiate failed: %v", err)
	}

	if err := engine.CompleteReset(context.Background(), first, "brand-new-password"); !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("expected superseded secret to be rejected, got %v", err)
	}
	if err := engine.CompleteReset(context.Background(), second, "brand-new-password"); err != nil {
		t.Fatalf("latest secret should redeem, got %v", err)
	}
}

func TestResetClearsLockout(t *testing.T) {
	engine, db := newTestEngine(t, testConfig())
	seedUser(t, engine, db, "alice@example.com", "correct-horse-battery")

	for i := 0; i < 5; i++ {
		_, _ = engine.Login(context.Background(), "alice@example.com", "wrong-password-123")
	}
	if _, err := engine.Login(context.Background(), "alice@example.com", "correct-horse-battery"); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked, got %v", err)
	}

	secret, err := engine.InitiateReset(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("initiate reset failed: %v", err)
	}
	if err := engine.CompleteReset(context.Background(), secret, "brand-new-password"); err != nil {
		t.Fatalf("complete reset failed: %v", err)
	}

	// A completed reset is proof of account ownership, so the lockout
	// counter resets with the password.
	if _, err := engine.Login(context.Background(), "alice@example.com", "brand-new-password"); err != nil {
		t.Fatalf("expected login after reset to succeed, got %v", err)
	}
}
