package vault

import (
	"errors"
	"strings"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	v, err := New("test-vault-secret")
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}

	const seed = "SOMEVERYSECRETSEEDVALUE"
	ciphertext, err := v.Encrypt(seed)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if ciphertext == seed || !strings.HasPrefix(ciphertext, "v1:") {
		t.Fatalf("ciphertext %q does not look sealed", ciphertext)
	}

	plain, err := v.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if plain != seed {
		t.Fatalf("round trip mismatch: got %q want %q", plain, seed)
	}
}

func TestEncryptProducesDistinctCiphertexts(t *testing.T) {
	v, _ := New("test-vault-secret")

	first, err := v.Encrypt("same-seed")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	second, err := v.Encrypt("same-seed")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if first == second {
		t.Fatal("expected fresh salt/nonce per encryption")
	}
}

func TestDecryptWithWrongSecretFails(t *testing.T) {
	v1, _ := New("secret-one")
	v2, _ := New("secret-two")

	ciphertext, err := v1.Encrypt("seed")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	if _, err := v2.Decrypt(ciphertext); !errors.Is(err, ErrKeyMaterial) {
		t.Fatalf("expected ErrKeyMaterial, got %v", err)
	}
}

func TestDecryptMalformedCiphertext(t *testing.T) {
	v, _ := New("secret")

	for _, ciphertext := range []string{"", "garbage", "v1:", "v1:!!!", "v2:abcd"} {
		if _, err := v.Decrypt(ciphertext); !errors.Is(err, ErrKeyMaterial) {
			t.Fatalf("ciphertext %q: expected ErrKeyMaterial, got %v", ciphertext, err)
		}
	}
}

func TestDecryptTamperedCiphertext(t *testing.T) {
	v, _ := New("secret")

	ciphertext, err := v.Encrypt("seed")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	tampered := []byte(ciphertext)
	tampered[len(tampered)-1] ^= 1
	if _, err := v.Decrypt(string(tampered)); !errors.Is(err, ErrKeyMaterial) {
		t.Fatalf("expected ErrKeyMaterial, got %v", err)
	}
}

func TestNewRejectsEmptySecret(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty secret")
	}
}
