// Package vault provides authenticated, symmetric at-rest encryption for
// camera credentials (SPEC_FULL §4.7), so the Metadata Store never persists
// a plaintext secret.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"

	"github.com/cortexvms/vms-core/internal/vmscore"
)

// prefix tags vault ciphertext so Open can distinguish "not our format" from
// "our format but tampered" as SPEC_FULL §4.7 requires.
const prefix = "vms:v1:"

// ErrVaultNotFound is returned when the input does not look like a value
// this vault produced (missing or malformed prefix).
var ErrVaultNotFound = errors.New("vault: ciphertext not recognized")

// ErrVaultTampered is returned when the input has the vault's prefix but
// fails authentication — the GCM tag did not verify.
var ErrVaultTampered = errors.New("vault: ciphertext authentication failed")

// Vault seals and opens camera secrets with AES-256-GCM, keyed by a single
// AEAD derived once at startup via HKDF-SHA256 from an operator-supplied
// master secret, so the raw master secret is never used directly as an AES
// key.
type Vault struct {
	gcm cipher.AEAD
}

// New derives the vault's AEAD key from masterSecret using HKDF-SHA256 with
// a vault-specific info string, isolating it from any other derived use of
// the same master secret.
func New(masterSecret []byte, keyInfo string) (*Vault, error) {
	if len(masterSecret) == 0 {
		return nil, vmscore.New(vmscore.KindFatal, "vault.New", "master secret must not be empty")
	}

	reader := hkdf.New(sha256.New, masterSecret, []byte("vms-core-credential-vault"), []byte(keyInfo))
	key := make([]byte, 32)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, vmscore.Wrap(vmscore.KindFatal, "vault.New", "HKDF key derivation failed", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, vmscore.Wrap(vmscore.KindFatal, "vault.New", "AES cipher initialization failed", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, vmscore.Wrap(vmscore.KindFatal, "vault.New", "GCM initialization failed", err)
	}

	return &Vault{gcm: gcm}, nil
}

// Seal encrypts plaintext with a fresh random nonce and returns a
// self-contained ciphertext string: a version prefix followed by base64 of
// nonce||ciphertext||tag.
func (v *Vault) Seal(plaintext string) (string, error) {
	nonce := make([]byte, v.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", vmscore.Wrap(vmscore.KindFatal, "vault.Seal", "failed to generate nonce", err)
	}
	ciphertext := v.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return prefix + base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Open decrypts a value previously produced by Seal. It returns
// ErrVaultNotFound if the input does not carry the vault's version prefix,
// and ErrVaultTampered if the prefix matches but authentication fails.
func (v *Vault) Open(stored string) (string, error) {
	if !strings.HasPrefix(stored, prefix) {
		return "", fmt.Errorf("%w: missing %q prefix", ErrVaultNotFound, prefix)
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, prefix))
	if err != nil {
		return "", fmt.Errorf("%w: invalid base64: %v", ErrVaultNotFound, err)
	}

	nonceSize := v.gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("%w: ciphertext too short", ErrVaultNotFound)
	}

	plaintext, err := v.gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrVaultTampered, err)
	}
	return string(plaintext), nil
}

// IsSealed reports whether stored carries this vault's version prefix.
func IsSealed(stored string) bool {
	return strings.HasPrefix(stored, prefix)
}
