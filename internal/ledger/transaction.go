package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mamapay/ledgerwallet/internal/keypair"
)

// Operation types understood by the ledger.
const (
	OpCreateAccount = "create_account"
	OpChangeTrust   = "change_trust"
	OpAllowTrust    = "allow_trust"
	OpPayment       = "payment"
)

// Operation is one ledger mutation inside a transaction. Source overrides the
// transaction source for that operation only; the override account must also
// sign the transaction.
type Operation struct {
	Type            string `json:"type"`
	Source          string `json:"source,omitempty"`
	Destination     string `json:"destination,omitempty"`
	StartingBalance string `json:"starting_balance,omitempty"`
	Asset           Asset  `json:"asset,omitempty"`
	Amount          string `json:"amount,omitempty"`
	Trustor         string `json:"trustor,omitempty"`
	Authorize       bool   `json:"authorize,omitempty"`
}

// CreateAccount funds a brand-new account with a native starting balance.
func CreateAccount(destination, startingBalance string) Operation {
	return Operation{Type: OpCreateAccount, Destination: destination, StartingBalance: startingBalance}
}

// ChangeTrust establishes a trust line from the operation source to the asset.
func ChangeTrust(asset Asset) Operation {
	return Operation{Type: OpChangeTrust, Asset: asset}
}

// AllowTrust authorizes the trustor's trust line for the asset. The operation
// source must be the asset issuer; a delegated signer may sign on its behalf.
func AllowTrust(issuer, trustor string, asset Asset, authorize bool) Operation {
	return Operation{Type: OpAllowTrust, Source: issuer, Trustor: trustor, Asset: asset, Authorize: authorize}
}

// Payment moves an amount of the asset from the operation (or transaction)
// source to the destination.
func Payment(destination string, asset Asset, amount string) Operation {
	return Operation{Type: OpPayment, Destination: destination, Asset: asset, Amount: amount}
}

// Transaction accumulates operations against a freshly loaded snapshot. The
// sequence number is fixed at build time, so a transaction must be rebuilt
// from a new snapshot after any rejection.
type Transaction struct {
	source     string
	sequence   uint64
	operations []Operation
	memo       string
}

// NewTransaction starts a transaction sourced from the snapshot's account,
// consuming its next sequence number.
func NewTransaction(source AccountSnapshot) *Transaction {
	return &Transaction{source: source.Address, sequence: source.Sequence + 1}
}

// AddOperation appends an operation.
func (t *Transaction) AddOperation(op Operation) *Transaction {
	t.operations = append(t.operations, op)
	return t
}

// WithMemo attaches a text memo.
func (t *Transaction) WithMemo(memo string) *Transaction {
	t.memo = memo
	return t
}

// payload is the canonical signed form. Including the network passphrase binds
// signatures to one network, so a test-ledger transaction can never replay
// against production.
type payload struct {
	Network    string      `json:"network"`
	Source     string      `json:"source"`
	Sequence   uint64      `json:"sequence"`
	Operations []Operation `json:"operations"`
	Memo       string      `json:"memo,omitempty"`
}

// Sign serializes the transaction for the given network and signs it with
// each keypair, returning the submittable envelope.
func (t *Transaction) Sign(network string, signers ...keypair.Full) (Envelope, error) {
	if len(t.operations) == 0 {
		return Envelope{}, errors.New("transaction has no operations")
	}
	if len(signers) == 0 {
		return Envelope{}, errors.New("transaction needs at least one signer")
	}

	raw, err := json.Marshal(payload{
		Network:    network,
		Source:     t.source,
		Sequence:   t.sequence,
		Operations: t.operations,
		Memo:       t.memo,
	})
	if err != nil {
		return Envelope{}, fmt.Errorf("encode transaction: %w", err)
	}

	env := Envelope{Payload: raw}
	for _, kp := range signers {
		env.Signatures = append(env.Signatures, Signature{
			Address:   kp.Address(),
			Signature: kp.Sign(raw),
		})
	}
	return env, nil
}

// Signature is one signer's endorsement of an envelope payload.
type Signature struct {
	Address   string `json:"address"`
	Signature []byte `json:"signature"`
}

// Envelope is the opaque signed wire form submitted to the ledger.
type Envelope struct {
	Payload    []byte      `json:"payload"`
	Signatures []Signature `json:"signatures"`
}

// Hash returns the settlement reference for the enveloped transaction. It is
// derived from the payload alone, so resubmitting the same signed transaction
// yields the same hash.
func (e Envelope) Hash() string {
	sum := sha256.Sum256(e.Payload)
	return hex.EncodeToString(sum[:])
}

// MarshalBinary encodes the envelope for transport.
func (e Envelope) MarshalBinary() ([]byte, error) {
	return json.Marshal(e)
}

// decode unpacks the canonical payload for verification.
func (e Envelope) decode() (payload, error) {
	var p payload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return payload{}, fmt.Errorf("decode envelope: %w", err)
	}
	return p, nil
}

// signedBy reports whether the envelope carries a valid signature from the
// given address.
func (e Envelope) signedBy(address string) bool {
	for _, sig := range e.Signatures {
		if sig.Address == address && keypair.Verify(address, e.Payload, sig.Signature) {
			return true
		}
	}
	return false
}
