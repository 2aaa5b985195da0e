package directory

import "time"

// Record is a user's directory entry. PublicKey and EncryptedSeed are set
// together at signup and never independently; after a successful create both
// are non-empty.
type Record struct {
	ID            string
	Username      string
	PublicKey     string
	EncryptedSeed string
	CreatedAt     time.Time
}
