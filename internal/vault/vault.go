// Package vault encrypts signing seeds at rest under a process-wide secret.
// Ciphertexts are AES-256-GCM with an argon2id-derived key; a fresh salt and
// nonce per encryption means equal plaintexts never share ciphertext.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	scheme    = "v1"
	saltSize  = 16
	nonceSize = 12
	keySize   = 32
)

// ErrKeyMaterial indicates a decrypt (or encrypt) failure: malformed
// ciphertext, tampered data, or a vault secret that does not match the one
// used to encrypt. Decryption never silently returns wrong plaintext.
var ErrKeyMaterial = errors.New("key material error")

// Vault performs pure seed encryption/decryption. It holds no other state and
// is safe for concurrent use.
type Vault struct {
	secret []byte
}

// New creates a vault keyed by the process secret.
func New(secret string) (*Vault, error) {
	if secret == "" {
		return nil, errors.New("vault secret must not be empty")
	}
	return &Vault{secret: []byte(secret)}, nil
}

// Encrypt seals a signing seed into a scheme-tagged ciphertext string.
func (v *Vault) Encrypt(seed string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("%w: %v", ErrKeyMaterial, err)
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("%w: %v", ErrKeyMaterial, err)
	}

	aead, err := v.aead(salt)
	if err != nil {
		return "", err
	}

	sealed := aead.Seal(nil, nonce, []byte(seed), nil)
	blob := append(append(salt, nonce...), sealed...)
	return scheme + ":" + base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt opens a ciphertext produced by Encrypt.
func (v *Vault) Decrypt(ciphertext string) (string, error) {
	encoded, ok := strings.CutPrefix(ciphertext, scheme+":")
	if !ok {
		return "", fmt.Errorf("%w: unknown scheme", ErrKeyMaterial)
	}

	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(blob) <= saltSize+nonceSize {
		return "", fmt.Errorf("%w: malformed ciphertext", ErrKeyMaterial)
	}
	salt, nonce, sealed := blob[:saltSize], blob[saltSize:saltSize+nonceSize], blob[saltSize+nonceSize:]

	aead, err := v.aead(salt)
	if err != nil {
		return "", err
	}

	seed, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrKeyMaterial, err)
	}
	return string(seed), nil
}

func (v *Vault) aead(salt []byte) (cipher.AEAD, error) {
	key := argon2.IDKey(v.secret, salt, 1, 64*1024, 4, keySize)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyMaterial, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyMaterial, err)
	}
	return aead, nil
}
