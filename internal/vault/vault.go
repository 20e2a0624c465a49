// Package vault is the authenticated-encryption boundary for user and
// ticket secret material. Blobs are base64(12-byte nonce || ciphertext ||
// 16-byte tag), AES-256-GCM under a process-wide master key. The layout
// must stay stable: previously issued tickets carry blobs in this format.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
)

const (
	// DefaultSecretLen is the plaintext length of freshly generated secrets.
	DefaultSecretLen = 32

	nonceLen = 12
	tagLen   = 16
)

// ErrIntegrity covers every way a blob can fail to decrypt: bad base64,
// truncated data, tag mismatch. Callers must not be able to tell a wrong
// key from corrupted data, so there is exactly one error for all of them.
var ErrIntegrity = errors.New("secret integrity check failed")

// Keys is the immutable key material the vault is constructed with. It is
// loaded once at startup by config; missing keys abort the process there.
type Keys struct {
	Master [32]byte
	HMAC   []byte
}

type Vault struct {
	aead    cipher.AEAD
	hmacKey []byte
}

func New(keys Keys) (*Vault, error) {
	const op = "vault.New"

	if len(keys.HMAC) == 0 {
		return nil, fmt.Errorf("%s: empty HMAC key", op)
	}

	block, err := aes.NewCipher(keys.Master[:])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	hk := make([]byte, len(keys.HMAC))
	copy(hk, keys.HMAC)

	return &Vault{aead: aead, hmacKey: hk}, nil
}

// EncryptNewSecret generates length bytes of cryptographically secure
// random material and returns it encrypted as an opaque blob. The nonce is
// freshly random per call; the operator rotates the master key before the
// birthday bound on nonce collisions matters.
func (v *Vault) EncryptNewSecret(length int) (string, error) {
	const op = "vault.EncryptNewSecret"

	if length <= 0 {
		return "", fmt.Errorf("%s: invalid length %d", op, length)
	}

	raw := make([]byte, length)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	sealed := v.aead.Seal(nonce, nonce, raw, nil)

	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptSecret reverses EncryptNewSecret. Any malformed or tampered blob
// yields ErrIntegrity.
func (v *Vault) DecryptSecret(blob string) ([]byte, error) {
	const op = "vault.DecryptSecret"

	sealed, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrIntegrity)
	}

	if len(sealed) < nonceLen+tagLen {
		return nil, fmt.Errorf("%s: %w", op, ErrIntegrity)
	}

	raw, err := v.aead.Open(nil, sealed[:nonceLen], sealed[nonceLen:], nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrIntegrity)
	}

	return raw, nil
}

// TicketProof computes the deterministic gate-verification value for a
// ticket: HMAC-SHA256 over the ticket id and both decrypted secrets,
// lowercase hex. Each field is length-prefixed (4-byte big-endian) so no
// byte value inside a secret can make two different inputs collide.
func (v *Vault) TicketProof(ticketID string, userSecret, ticketSecret []byte) string {
	mac := hmac.New(sha256.New, v.hmacKey)

	for _, field := range [][]byte{[]byte(ticketID), userSecret, ticketSecret} {
		var n [4]byte
		binary.BigEndian.PutUint32(n[:], uint32(len(field)))
		mac.Write(n[:])
		mac.Write(field)
	}

	return hex.EncodeToString(mac.Sum(nil))
}
