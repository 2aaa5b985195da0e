// Package keypair implements the ed25519 signing identities used for ledger
// accounts. Addresses and seeds are base58check strings with distinct version
// bytes, so one can never be mistaken for the other.
package keypair

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

const (
	addressVersion byte = 0x30
	seedVersion    byte = 0x90
)

// ErrInvalidAddress indicates a string that does not decode to a public key.
var ErrInvalidAddress = errors.New("invalid account address")

// ErrInvalidSeed indicates a string that does not decode to a signing seed.
var ErrInvalidSeed = errors.New("invalid signing seed")

// Full holds both halves of a signing identity. The private half never leaves
// process memory except encrypted by the vault.
type Full struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

// Random generates a fresh keypair. Failure here means the process cannot
// read entropy and is not recoverable.
func Random() (Full, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return Full{}, fmt.Errorf("generate keypair: %w", err)
	}
	return Full{pub: pub, priv: priv}, nil
}

// FromSeed reconstructs a keypair from its seed string.
func FromSeed(seed string) (Full, error) {
	raw, err := decodeCheck(seed, seedVersion)
	if err != nil || len(raw) != ed25519.SeedSize {
		return Full{}, ErrInvalidSeed
	}
	priv := ed25519.NewKeyFromSeed(raw)
	return Full{pub: priv.Public().(ed25519.PublicKey), priv: priv}, nil
}

// Address returns the public account address.
func (f Full) Address() string {
	return encodeCheck(f.pub, addressVersion)
}

// Seed returns the private seed string. Callers must encrypt it before it
// leaves the process.
func (f Full) Seed() string {
	return encodeCheck(f.priv.Seed(), seedVersion)
}

// Sign produces a detached signature over the payload.
func (f Full) Sign(payload []byte) []byte {
	return ed25519.Sign(f.priv, payload)
}

// DecodeAddress extracts the raw public key behind an address string.
func DecodeAddress(address string) (ed25519.PublicKey, error) {
	raw, err := decodeCheck(address, addressVersion)
	if err != nil || len(raw) != ed25519.PublicKeySize {
		return nil, ErrInvalidAddress
	}
	return ed25519.PublicKey(raw), nil
}

// Verify reports whether sig is a valid signature over payload by the account
// at the given address.
func Verify(address string, payload, sig []byte) bool {
	pub, err := DecodeAddress(address)
	if err != nil {
		return false
	}
	return ed25519.Verify(pub, payload, sig)
}

func encodeCheck(data []byte, version byte) string {
	buf := make([]byte, 0, len(data)+5)
	buf = append(buf, version)
	buf = append(buf, data...)
	return base58.Encode(append(buf, checksum(buf)...))
}

func decodeCheck(s string, version byte) ([]byte, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, err
	}
	if len(raw) < 5 || raw[0] != version {
		return nil, errors.New("bad version byte")
	}
	payload, check := raw[:len(raw)-4], raw[len(raw)-4:]
	want := checksum(payload)
	for i := range check {
		if check[i] != want[i] {
			return nil, errors.New("bad checksum")
		}
	}
	return payload[1:], nil
}

func checksum(data []byte) []byte {
	h := sha256.Sum256(data)
	h = sha256.Sum256(h[:])
	return h[:4]
}
