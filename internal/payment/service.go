// Package payment resolves user identities to ledger accounts and executes
// signed asset transfers between them.
package payment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mamapay/ledgerwallet/internal/asset"
	"github.com/mamapay/ledgerwallet/internal/directory"
	"github.com/mamapay/ledgerwallet/internal/keypair"
	"github.com/mamapay/ledgerwallet/internal/ledger"
	"github.com/mamapay/ledgerwallet/internal/notification"
	"github.com/mamapay/ledgerwallet/internal/vault"
)

// Service orchestrates user-to-user, credit, and debit transfers.
type Service struct {
	dir      directory.Repository
	vault    *vault.Vault
	client   ledger.Client
	registry *asset.Registry
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewService constructs a payment service.
func NewService(dir directory.Repository, v *vault.Vault, client ledger.Client, registry *asset.Registry,
	notifier notification.Notifier, logger *slog.Logger) *Service {
	return &Service{dir: dir, vault: v, client: client, registry: registry, notifier: notifier, logger: logger}
}

// Receipt is the settlement reference returned to the caller. ID is the
// ledger transaction hash; the ledger itself remains the source of truth for
// history.
type Receipt struct {
	ID   string
	Memo string
}

// Pay transfers an amount of the asset between two users. Ledger rejections
// propagate with their result codes intact so callers can branch on the
// reason.
func (s *Service) Pay(ctx context.Context, amount, sender, recipient, memo string) (Receipt, error) {
	if _, err := ledger.ParseAmount(amount); err != nil {
		return Receipt{}, err
	}

	records, err := s.dir.FindManyByUsernames(ctx, []string{sender, recipient})
	if err != nil {
		return Receipt{}, err
	}
	// The lookup result order is unspecified; match strictly by username.
	senderRecord, err := matchByUsername(records, sender)
	if err != nil {
		return Receipt{}, err
	}
	recipientRecord, err := matchByUsername(records, recipient)
	if err != nil {
		return Receipt{}, err
	}

	signer, err := s.signerFor(senderRecord)
	if err != nil {
		return Receipt{}, err
	}

	receipt, err := s.send(ctx, signer, recipientRecord.PublicKey, amount, memo)
	if err != nil {
		return Receipt{}, err
	}

	s.logger.Info("payment settled", "sender", sender, "recipient", recipient, "amount", amount, "hash", receipt.ID)
	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindPaymentReceived,
			Destination: recipient,
			Body:        fmt.Sprintf("You received %s %s from %s", amount, s.registry.Asset.Code, sender),
		})
	}
	return receipt, nil
}

// Credit issues the asset from the bank to a user, as when money enters from
// an outside rail.
func (s *Service) Credit(ctx context.Context, amount, username string) (Receipt, error) {
	if _, err := ledger.ParseAmount(amount); err != nil {
		return Receipt{}, err
	}
	record, err := s.dir.FindByUsername(ctx, username)
	if err != nil {
		return Receipt{}, err
	}
	return s.send(ctx, s.registry.Bank, record.PublicKey, amount, "")
}

// Debit returns the asset from a user to the issuer, as when money leaves to
// an outside rail.
func (s *Service) Debit(ctx context.Context, amount, username string) (Receipt, error) {
	if _, err := ledger.ParseAmount(amount); err != nil {
		return Receipt{}, err
	}
	record, err := s.dir.FindByUsername(ctx, username)
	if err != nil {
		return Receipt{}, err
	}
	signer, err := s.signerFor(record)
	if err != nil {
		return Receipt{}, err
	}
	return s.send(ctx, signer, s.registry.Asset.Issuer, amount, "")
}

// send runs one build-sign-submit triple for a single payment operation.
func (s *Service) send(ctx context.Context, signer keypair.Full, destination, amount, memo string) (Receipt, error) {
	snapshot, err := s.client.LoadAccount(ctx, signer.Address())
	if err != nil {
		return Receipt{}, err
	}

	env, err := ledger.NewTransaction(snapshot).
		AddOperation(ledger.Payment(destination, s.registry.Asset, amount)).
		WithMemo(memo).
		Sign(s.client.Network(), signer)
	if err != nil {
		return Receipt{}, err
	}

	result, err := s.client.Submit(ctx, env)
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{ID: result.Hash, Memo: memo}, nil
}

// signerFor decrypts a record's seed into a usable keypair. The plaintext
// seed lives only for the duration of the signing call.
func (s *Service) signerFor(record directory.Record) (keypair.Full, error) {
	seed, err := s.vault.Decrypt(record.EncryptedSeed)
	if err != nil {
		return keypair.Full{}, err
	}
	return keypair.FromSeed(seed)
}

func matchByUsername(records []directory.Record, username string) (directory.Record, error) {
	for _, record := range records {
		if record.Username == username {
			return record, nil
		}
	}
	return directory.Record{}, fmt.Errorf("%w: %s", directory.ErrUserNotFound, username)
}
