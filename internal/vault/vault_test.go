package vault

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func testVault(t *testing.T) *Vault {
	t.Helper()

	var keys Keys
	for i := range keys.Master {
		keys.Master[i] = byte(i)
	}
	keys.HMAC = []byte("hmac-test-key")

	v, err := New(keys)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	return v
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	v := testVault(t)

	for _, n := range []int{1, 2, 15, 16, 31, 32, 33, 64, 256} {
		blob, err := v.EncryptNewSecret(n)
		if err != nil {
			t.Fatalf("EncryptNewSecret(%d): %v", n, err)
		}

		raw, err := v.DecryptSecret(blob)
		if err != nil {
			t.Fatalf("DecryptSecret(%d): %v", n, err)
		}

		if len(raw) != n {
			t.Errorf("length %d: got %d plaintext bytes", n, len(raw))
		}
	}
}

func TestEncryptNewSecretRejectsBadLength(t *testing.T) {
	v := testVault(t)

	for _, n := range []int{0, -1} {
		if _, err := v.EncryptNewSecret(n); err == nil {
			t.Errorf("EncryptNewSecret(%d): expected error", n)
		}
	}
}

func TestDecryptTamperedBlob(t *testing.T) {
	v := testVault(t)

	blob, err := v.EncryptNewSecret(32)
	if err != nil {
		t.Fatalf("EncryptNewSecret: %v", err)
	}

	sealed, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	// flip the last byte (inside the tag)
	sealed[len(sealed)-1] ^= 0x01
	tampered := base64.StdEncoding.EncodeToString(sealed)

	if _, err := v.DecryptSecret(tampered); !errors.Is(err, ErrIntegrity) {
		t.Errorf("tampered blob: got %v, want ErrIntegrity", err)
	}
}

func TestDecryptMalformedBlob(t *testing.T) {
	v := testVault(t)

	cases := map[string]string{
		"empty":      "",
		"not base64": "%%%not-base64%%%",
		"too short":  base64.StdEncoding.EncodeToString([]byte("short")),
	}

	for name, blob := range cases {
		if _, err := v.DecryptSecret(blob); !errors.Is(err, ErrIntegrity) {
			t.Errorf("%s: got %v, want ErrIntegrity", name, err)
		}
	}
}

func TestDecryptErrorsAreUniform(t *testing.T) {
	v := testVault(t)

	blob, _ := v.EncryptNewSecret(16)
	sealed, _ := base64.StdEncoding.DecodeString(blob)
	sealed[nonceLen] ^= 0xff
	tampered := base64.StdEncoding.EncodeToString(sealed)

	_, errTamper := v.DecryptSecret(tampered)
	_, errShort := v.DecryptSecret("AAAA")

	if !errors.Is(errTamper, ErrIntegrity) || !errors.Is(errShort, ErrIntegrity) {
		t.Fatalf("expected ErrIntegrity for both failure modes")
	}

	// externally visible messages must not distinguish the failure modes
	if !strings.Contains(errTamper.Error(), ErrIntegrity.Error()) ||
		!strings.Contains(errShort.Error(), ErrIntegrity.Error()) {
		t.Errorf("integrity errors leak failure details: %q vs %q", errTamper, errShort)
	}
}

func TestNewRequiresHMACKey(t *testing.T) {
	var keys Keys
	if _, err := New(keys); err == nil {
		t.Fatal("expected error for empty HMAC key")
	}
}

func TestTicketProofDeterministic(t *testing.T) {
	v := testVault(t)

	userSecret := []byte("user-secret-material")
	ticketSecret := []byte("ticket-secret-material")

	a := v.TicketProof("ticket-1", userSecret, ticketSecret)
	b := v.TicketProof("ticket-1", userSecret, ticketSecret)

	if a != b {
		t.Fatalf("proof not deterministic: %s vs %s", a, b)
	}

	if len(a) != 64 || a != strings.ToLower(a) {
		t.Errorf("proof is not lowercase hex sha256: %q", a)
	}
}

func TestTicketProofSensitivity(t *testing.T) {
	v := testVault(t)

	base := v.TicketProof("ticket-1", []byte("us"), []byte("ts"))

	variants := []string{
		v.TicketProof("ticket-2", []byte("us"), []byte("ts")),
		v.TicketProof("ticket-1", []byte("u2"), []byte("ts")),
		v.TicketProof("ticket-1", []byte("us"), []byte("t2")),
	}

	for i, p := range variants {
		if p == base {
			t.Errorf("variant %d collides with base proof", i)
		}
	}

	other := testVaultWithHMAC(t, []byte("other-key"))
	if other.TicketProof("ticket-1", []byte("us"), []byte("ts")) == base {
		t.Error("different HMAC key produced the same proof")
	}
}

// Length-prefixed framing: shifting bytes between adjacent fields must
// change the proof even when the concatenation is identical.
func TestTicketProofFramingUnambiguous(t *testing.T) {
	v := testVault(t)

	a := v.TicketProof("id", []byte("ab:c"), []byte("d"))
	b := v.TicketProof("id", []byte("ab"), []byte(":cd"))

	if a == b {
		t.Fatal("field framing is ambiguous")
	}
}

func testVaultWithHMAC(t *testing.T, hmacKey []byte) *Vault {
	t.Helper()

	var keys Keys
	for i := range keys.Master {
		keys.Master[i] = byte(i)
	}
	keys.HMAC = hmacKey

	v, err := New(keys)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	return v
}
