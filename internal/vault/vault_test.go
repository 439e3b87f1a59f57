package vault

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/moltis/moltis/internal/merr"
)

func openTestVault(t *testing.T) *Vault {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	v, err := Open(context.Background(), db)
	if err != nil {
		t.Fatalf("open vault: %v", err)
	}
	return v
}

func TestStatusUninitialized(t *testing.T) {
	v := openTestVault(t)
	if v.Status() != StatusUninitialized {
		t.Fatalf("expected uninitialized, got %s", v.Status())
	}
}

func TestInitializeAndUnseal(t *testing.T) {
	ctx := context.Background()
	v := openTestVault(t)

	recovery, err := v.Initialize(ctx, "correct horse battery staple")
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if len(recovery.words) != recoveryWordCount {
		t.Fatalf("expected %d recovery words, got %d", recoveryWordCount, len(recovery.words))
	}
	if !v.IsUnsealed() {
		t.Fatalf("expected unsealed after initialize")
	}

	v.Seal()
	if v.IsUnsealed() {
		t.Fatalf("expected sealed after Seal()")
	}

	if err := v.Unseal(ctx, "correct horse battery staple"); err != nil {
		t.Fatalf("unseal: %v", err)
	}
	if !v.IsUnsealed() {
		t.Fatalf("expected unsealed after Unseal()")
	}
}

func TestWrongPasswordFails(t *testing.T) {
	ctx := context.Background()
	v := openTestVault(t)
	if _, err := v.Initialize(ctx, "right-password"); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	v.Seal()

	err := v.Unseal(ctx, "wrong-password")
	if !merr.Is(err, merr.KindBadCredential) {
		t.Fatalf("expected KindBadCredential, got %v", err)
	}
}

func TestRecoveryKeyUnseal(t *testing.T) {
	ctx := context.Background()
	v := openTestVault(t)
	recovery, err := v.Initialize(ctx, "right-password")
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	v.Seal()

	if err := v.UnsealWithRecovery(ctx, recovery.Phrase()); err != nil {
		t.Fatalf("unseal with recovery: %v", err)
	}
	if !v.IsUnsealed() {
		t.Fatalf("expected unsealed after recovery unseal")
	}
}

func TestEncryptDecryptString(t *testing.T) {
	ctx := context.Background()
	v := openTestVault(t)
	if _, err := v.Initialize(ctx, "right-password"); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	aad := []byte("credential:telegram")
	blob, err := v.EncryptString("super-secret-token", aad)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	plaintext, err := v.DecryptString(blob, aad)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if plaintext != "super-secret-token" {
		t.Fatalf("roundtrip mismatch: got %q", plaintext)
	}

	if _, err := v.DecryptString(blob, []byte("wrong-aad")); err == nil {
		t.Fatalf("expected aad mismatch to fail")
	}
}

func TestEncryptWhileSealedFails(t *testing.T) {
	ctx := context.Background()
	v := openTestVault(t)
	if _, err := v.Initialize(ctx, "right-password"); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	v.Seal()

	if _, err := v.EncryptString("x", nil); !merr.Is(err, merr.KindSealed) {
		t.Fatalf("expected KindSealed, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	v := openTestVault(t)
	if _, err := v.Initialize(ctx, "old-password"); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	if err := v.ChangePassword(ctx, "old-password", "new-password"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	v.Seal()

	if err := v.Unseal(ctx, "old-password"); err == nil {
		t.Fatalf("expected old password to fail after rotation")
	}
	if err := v.Unseal(ctx, "new-password"); err != nil {
		t.Fatalf("unseal with new password: %v", err)
	}
}
