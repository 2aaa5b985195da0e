// Package asset holds the process-wide description of the custom asset and
// the custodial keypairs that act as transaction sources.
package asset

import (
	"errors"
	"fmt"

	"github.com/mamapay/ledgerwallet/internal/keypair"
	"github.com/mamapay/ledgerwallet/internal/ledger"
)

// Registry is the immutable startup-time view of the asset and custodial
// keys. It is constructed once and shared read-only by every request.
type Registry struct {
	// Asset is the custom asset users hold and transfer.
	Asset ledger.Asset
	// Funder pays the native starting balance for new accounts.
	Funder keypair.Full
	// Bank is a delegated signer for the issuer and the source of asset
	// credits.
	Bank keypair.Full
}

// NewRegistry resolves seeds and addresses. A malformed value is a fatal
// configuration error, never a runtime one.
func NewRegistry(assetCode, issuerAddress, funderSeed, bankSeed string) (*Registry, error) {
	if assetCode == "" {
		return nil, errors.New("asset code must not be empty")
	}
	if _, err := keypair.DecodeAddress(issuerAddress); err != nil {
		return nil, fmt.Errorf("issuer address: %w", err)
	}

	funder, err := keypair.FromSeed(funderSeed)
	if err != nil {
		return nil, fmt.Errorf("funder seed: %w", err)
	}
	bank, err := keypair.FromSeed(bankSeed)
	if err != nil {
		return nil, fmt.Errorf("bank seed: %w", err)
	}

	return &Registry{
		Asset:  ledger.Asset{Code: assetCode, Issuer: issuerAddress},
		Funder: funder,
		Bank:   bank,
	}, nil
}
