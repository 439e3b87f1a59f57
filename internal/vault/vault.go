// Package vault implements the encrypted secret store described in the
// system overview: a single data-encryption key (DEK) wrapped by a
// password-derived key-encryption key (KEK), with a recovery-phrase unwrap
// path, sealed at rest and unsealed for the lifetime of the process.
package vault

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/moltis/moltis/internal/merr"
)

// Status is the lifecycle state of a Vault.
type Status string

const (
	StatusUninitialized Status = "uninitialized"
	StatusSealed        Status = "sealed"
	StatusUnsealed      Status = "unsealed"
)

const (
	versionTag byte = 1
	dekSize         = 32
	kdfSaltSize     = 16
)

// KdfParams mirrors the Argon2id tuning knobs persisted alongside the wrapped
// DEK so future unwraps use the same parameters the key was wrapped with.
type KdfParams struct {
	MemoryKiB   uint32 `json:"memory_kib"`
	Iterations  uint32 `json:"iterations"`
	Parallelism uint8  `json:"parallelism"`
}

// DefaultKdfParams matches commonly recommended Argon2id interactive tuning.
func DefaultKdfParams() KdfParams {
	return KdfParams{MemoryKiB: 64 * 1024, Iterations: 3, Parallelism: 2}
}

func (p KdfParams) derive(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, p.Iterations, p.MemoryKiB, p.Parallelism, dekSize)
}

// RecoveryKey is returned exactly once, from Initialize. Callers must show
// it to the operator and never persist it themselves.
type RecoveryKey struct {
	words []string
}

func (r RecoveryKey) Phrase() string { return strings.Join(r.words, " ") }

// Vault is the encrypted secret store. One Vault per process.
type Vault struct {
	db sql.DB

	mu     sync.RWMutex
	dek    []byte // nil when sealed
	status Status
}

// Open prepares the backing SQLite table (idempotent) and inspects it to
// determine the vault's current status without unsealing it.
func Open(ctx context.Context, db *sql.DB) (*Vault, error) {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS vault_metadata (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			version INTEGER DEFAULT 1,
			kdf_salt TEXT,
			kdf_memory_kib INTEGER,
			kdf_iterations INTEGER,
			kdf_parallelism INTEGER,
			wrapped_dek TEXT,
			recovery_wrapped_dek TEXT,
			recovery_key_hash TEXT,
			created_at TEXT,
			updated_at TEXT
		)`); err != nil {
		return nil, merr.Wrap(merr.KindInternal, "create vault_metadata table", err)
	}

	v := &Vault{db: *db, status: StatusUninitialized}
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vault_metadata WHERE id = 1`).Scan(&count); err != nil {
		return nil, merr.Wrap(merr.KindInternal, "query vault_metadata", err)
	}
	if count > 0 {
		v.status = StatusSealed
	}
	return v, nil
}

// Status reports whether the vault has been initialized and, if so, whether
// it is currently sealed.
func (v *Vault) Status() Status {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.status
}

// Initialize generates a fresh DEK, wraps it under both the operator
// password and a freshly-generated recovery phrase, persists the metadata
// row, and returns the recovery phrase. It fails if the vault has already
// been initialized.
func (v *Vault) Initialize(ctx context.Context, password string) (RecoveryKey, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.status != StatusUninitialized {
		return RecoveryKey{}, merr.New(merr.KindConflict, "vault already initialized")
	}

	dek := make([]byte, dekSize)
	if _, err := rand.Read(dek); err != nil {
		return RecoveryKey{}, merr.Wrap(merr.KindInternal, "generate dek", err)
	}

	params := DefaultKdfParams()
	salt := make([]byte, kdfSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return RecoveryKey{}, merr.Wrap(merr.KindInternal, "generate kdf salt", err)
	}
	kek := params.derive([]byte(password), salt)
	wrappedDEK, err := wrapKey(kek, dek)
	if err != nil {
		return RecoveryKey{}, merr.Wrap(merr.KindInternal, "wrap dek", err)
	}

	recovery := generateRecoveryKey()
	recoveryKEK := deriveRecoveryKey(recovery)
	recoveryWrapped, err := wrapKey(recoveryKEK, dek)
	if err != nil {
		return RecoveryKey{}, merr.Wrap(merr.KindInternal, "wrap recovery dek", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = v.db.ExecContext(ctx, `
		INSERT INTO vault_metadata
			(id, version, kdf_salt, kdf_memory_kib, kdf_iterations, kdf_parallelism,
			 wrapped_dek, recovery_wrapped_dek, recovery_key_hash, created_at, updated_at)
		VALUES (1, 1, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		base64.StdEncoding.EncodeToString(salt), params.MemoryKiB, params.Iterations, params.Parallelism,
		wrappedDEK, recoveryWrapped, hashRecoveryKey(recovery), now, now)
	if err != nil {
		return RecoveryKey{}, merr.Wrap(merr.KindInternal, "persist vault_metadata", err)
	}

	v.dek = dek
	v.status = StatusUnsealed
	return RecoveryKey{words: recovery}, nil
}

type metaRow struct {
	salt, wrappedDEK, recoveryWrapped, recoveryHash string
	params                                          KdfParams
}

func (v *Vault) loadMetadata(ctx context.Context) (metaRow, error) {
	var row metaRow
	err := v.db.QueryRowContext(ctx, `
		SELECT kdf_salt, kdf_memory_kib, kdf_iterations, kdf_parallelism,
		       wrapped_dek, recovery_wrapped_dek, recovery_key_hash
		FROM vault_metadata WHERE id = 1`).
		Scan(&row.salt, &row.params.MemoryKiB, &row.params.Iterations, &row.params.Parallelism,
			&row.wrappedDEK, &row.recoveryWrapped, &row.recoveryHash)
	if err != nil {
		return metaRow{}, merr.Wrap(merr.KindInternal, "load vault_metadata", err)
	}
	return row, nil
}

// Unseal unwraps the DEK using the operator password. A wrong password and
// a corrupt blob are indistinguishable by design: both surface as
// KindBadCredential.
func (v *Vault) Unseal(ctx context.Context, password string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.status == StatusUninitialized {
		return merr.New(merr.KindNotFound, "vault not initialized")
	}
	row, err := v.loadMetadata(ctx)
	if err != nil {
		return err
	}
	salt, err := base64.StdEncoding.DecodeString(row.salt)
	if err != nil {
		return merr.Wrap(merr.KindInternal, "decode kdf salt", err)
	}
	kek := row.params.derive([]byte(password), salt)
	dek, err := unwrapKey(kek, row.wrappedDEK)
	if err != nil {
		return merr.New(merr.KindBadCredential, "incorrect password")
	}
	v.dek = dek
	v.status = StatusUnsealed
	return nil
}

// UnsealWithRecovery unwraps the DEK using the recovery phrase returned by
// Initialize.
func (v *Vault) UnsealWithRecovery(ctx context.Context, phrase string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.status == StatusUninitialized {
		return merr.New(merr.KindNotFound, "vault not initialized")
	}
	row, err := v.loadMetadata(ctx)
	if err != nil {
		return err
	}
	words := strings.Fields(phrase)
	recoveryKEK := deriveRecoveryKey(words)
	dek, err := unwrapKey(recoveryKEK, row.recoveryWrapped)
	if err != nil {
		return merr.New(merr.KindBadCredential, "incorrect recovery phrase")
	}
	v.dek = dek
	v.status = StatusUnsealed
	return nil
}

// Seal discards the in-memory DEK. Subsequent Encrypt/Decrypt calls fail
// until the vault is unsealed again.
func (v *Vault) Seal() {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := range v.dek {
		v.dek[i] = 0
	}
	v.dek = nil
	if v.status == StatusUnsealed {
		v.status = StatusSealed
	}
}

func (v *Vault) IsUnsealed() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.status == StatusUnsealed
}

// ChangePassword verifies the old password, then re-wraps the SAME DEK under
// a freshly-salted KEK derived from the new password. The DEK itself never
// rotates.
func (v *Vault) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	row, err := v.loadMetadata(ctx)
	if err != nil {
		return err
	}
	salt, err := base64.StdEncoding.DecodeString(row.salt)
	if err != nil {
		return merr.Wrap(merr.KindInternal, "decode kdf salt", err)
	}
	oldKEK := row.params.derive([]byte(oldPassword), salt)
	dek, err := unwrapKey(oldKEK, row.wrappedDEK)
	if err != nil {
		return merr.New(merr.KindBadCredential, "incorrect password")
	}

	newSalt := make([]byte, kdfSaltSize)
	if _, err := rand.Read(newSalt); err != nil {
		return merr.Wrap(merr.KindInternal, "generate kdf salt", err)
	}
	params := DefaultKdfParams()
	newKEK := params.derive([]byte(newPassword), newSalt)
	newWrapped, err := wrapKey(newKEK, dek)
	if err != nil {
		return merr.Wrap(merr.KindInternal, "wrap dek", err)
	}

	_, err = v.db.ExecContext(ctx, `
		UPDATE vault_metadata
		SET kdf_salt = ?, kdf_memory_kib = ?, kdf_iterations = ?, kdf_parallelism = ?,
		    wrapped_dek = ?, updated_at = ?
		WHERE id = 1`,
		base64.StdEncoding.EncodeToString(newSalt), params.MemoryKiB, params.Iterations, params.Parallelism,
		newWrapped, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return merr.Wrap(merr.KindInternal, "persist vault_metadata", err)
	}

	v.dek = dek
	return nil
}

// EncryptString encrypts plaintext under the live DEK, binding aad as
// additional authenticated data, and returns a versioned base64 blob.
func (v *Vault) EncryptString(plaintext string, aad []byte) (string, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.dek == nil {
		return "", merr.New(merr.KindSealed, "vault is sealed")
	}

	aead, err := chacha20poly1305.NewX(v.dek)
	if err != nil {
		return "", merr.Wrap(merr.KindInternal, "init cipher", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", merr.Wrap(merr.KindInternal, "generate nonce", err)
	}
	ciphertext := aead.Seal(nil, nonce, []byte(plaintext), aad)

	blob := make([]byte, 0, 1+len(nonce)+len(ciphertext))
	blob = append(blob, versionTag)
	blob = append(blob, nonce...)
	blob = append(blob, ciphertext...)
	return base64.StdEncoding.EncodeToString(blob), nil
}

// DecryptString reverses EncryptString, checking aad and the version tag.
func (v *Vault) DecryptString(b64 string, aad []byte) (string, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.dek == nil {
		return "", merr.New(merr.KindSealed, "vault is sealed")
	}

	blob, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", merr.Wrap(merr.KindInvalidInput, "decode blob", err)
	}
	if len(blob) < 1 || blob[0] != versionTag {
		return "", merr.New(merr.KindInvalidInput, "unsupported vault blob version")
	}
	aead, err := chacha20poly1305.NewX(v.dek)
	if err != nil {
		return "", merr.Wrap(merr.KindInternal, "init cipher", err)
	}
	rest := blob[1:]
	if len(rest) < aead.NonceSize() {
		return "", merr.New(merr.KindInvalidInput, "truncated vault blob")
	}
	nonce, ciphertext := rest[:aead.NonceSize()], rest[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return "", merr.New(merr.KindBadCredential, "decryption failed")
	}
	return string(plaintext), nil
}

func wrapKey(kek, key []byte) (string, error) {
	aead, err := chacha20poly1305.NewX(kek)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	ciphertext := aead.Seal(nil, nonce, key, nil)
	blob := append(nonce, ciphertext...)
	return base64.StdEncoding.EncodeToString(blob), nil
}

func unwrapKey(kek []byte, wrapped string) ([]byte, error) {
	blob, err := base64.StdEncoding.DecodeString(wrapped)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(kek)
	if err != nil {
		return nil, err
	}
	if len(blob) < aead.NonceSize() {
		return nil, fmt.Errorf("truncated wrapped key")
	}
	nonce, ciphertext := blob[:aead.NonceSize()], blob[aead.NonceSize():]
	return aead.Open(nil, nonce, ciphertext, nil)
}

func deriveRecoveryKey(words []string) []byte {
	params := DefaultKdfParams()
	return params.derive([]byte(strings.Join(words, " ")), []byte("moltis-recovery-salt-v1"))
}

func hashRecoveryKey(words []string) string {
	sum := deriveRecoveryKey(words)
	return base64.StdEncoding.EncodeToString(sum)
}
