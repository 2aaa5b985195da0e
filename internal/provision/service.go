// Package provision drives the ordered workflow that takes a freshly
// generated keypair from "nonexistent" to "funded, trusted, able to
// transact" on the ledger.
package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/mamapay/ledgerwallet/internal/asset"
	"github.com/mamapay/ledgerwallet/internal/directory"
	"github.com/mamapay/ledgerwallet/internal/keypair"
	"github.com/mamapay/ledgerwallet/internal/ledger"
	"github.com/mamapay/ledgerwallet/internal/notification"
	"github.com/mamapay/ledgerwallet/internal/vault"
)

// Step identifies one stage of the provisioning workflow. Steps run strictly
// in order; none is skipped and none is idempotent by default.
type Step string

const (
	StepGenerate      Step = "generate"
	StepPersist       Step = "persist_identity"
	StepUnseal        Step = "unseal_key"
	StepCreateAccount Step = "create_account"
	StepTrustline     Step = "trustline"
	StepAllowTrust    Step = "allow_trust"
	StepSeedFunding   Step = "seed_funding"
)

// StepError reports which provisioning step failed. Earlier steps are not
// rolled back; ledger operations are not transactional across steps.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("provisioning step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Settings are the caller-configurable knobs of the workflow.
type Settings struct {
	// NativeStartingBalance funds the new account's minimum reserve plus one
	// trust-line reserve.
	NativeStartingBalance string
	// SeedFundingAmount is the asset gift sent once trust is authorized.
	SeedFundingAmount string
	// Retries caps per-step retries of the build-sign-submit triple. Zero
	// means each step runs exactly once.
	Retries int
}

// Service orchestrates account provisioning.
type Service struct {
	dir      directory.Repository
	vault    *vault.Vault
	client   ledger.Client
	registry *asset.Registry
	status   StatusStore
	notifier notification.Notifier
	logger   *slog.Logger
	settings Settings
}

// NewService constructs a provisioning service.
func NewService(dir directory.Repository, v *vault.Vault, client ledger.Client, registry *asset.Registry,
	status StatusStore, notifier notification.Notifier, logger *slog.Logger, settings Settings) *Service {
	return &Service{
		dir:      dir,
		vault:    v,
		client:   client,
		registry: registry,
		status:   status,
		notifier: notifier,
		logger:   logger,
		settings: settings,
	}
}

// Signup runs the identity phase: generate a keypair, encrypt its seed, and
// persist the record. It never touches the ledger, so a failure here leaves no
// orphaned on-ledger account. The returned record is the signup contract;
// ledger provisioning is a separately observable task.
func (s *Service) Signup(ctx context.Context, username string) (directory.Record, error) {
	if username == "" {
		return directory.Record{}, fmt.Errorf("username must not be empty")
	}

	kp, err := keypair.Random()
	if err != nil {
		return directory.Record{}, &StepError{Step: StepGenerate, Err: err}
	}

	encrypted, err := s.vault.Encrypt(kp.Seed())
	if err != nil {
		return directory.Record{}, &StepError{Step: StepPersist, Err: err}
	}

	record := directory.Record{
		ID:            uuid.NewString(),
		Username:      username,
		PublicKey:     kp.Address(),
		EncryptedSeed: encrypted,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.dir.Create(ctx, record); err != nil {
		if errors.Is(err, directory.ErrUsernameTaken) {
			return directory.Record{}, err
		}
		return directory.Record{}, &StepError{Step: StepPersist, Err: err}
	}

	s.setStatus(ctx, username, Status{State: StatePending})
	return record, nil
}

// Provision runs the ledger phase for an already persisted user: create the
// account, establish and authorize the trust line, then send the seed funding.
// The failing step is reported via StepError and the status store; completed
// steps stay committed.
func (s *Service) Provision(ctx context.Context, username string) error {
	record, err := s.dir.FindByUsername(ctx, username)
	if err != nil {
		return err
	}

	// A decrypt or seed-parse failure is a key-material problem, reported
	// under its own step rather than blamed on the first ledger call.
	seed, err := s.vault.Decrypt(record.EncryptedSeed)
	if err != nil {
		s.fail(ctx, username, StepUnseal, err)
		return &StepError{Step: StepUnseal, Err: err}
	}
	kp, err := keypair.FromSeed(seed)
	if err != nil {
		s.fail(ctx, username, StepUnseal, err)
		return &StepError{Step: StepUnseal, Err: err}
	}

	steps := []struct {
		step Step
		run  func(context.Context) error
	}{
		{StepCreateAccount, func(ctx context.Context) error { return s.createAccount(ctx, record.PublicKey) }},
		{StepTrustline, func(ctx context.Context) error { return s.establishTrustline(ctx, kp) }},
		{StepAllowTrust, func(ctx context.Context) error { return s.allowTrust(ctx, record.PublicKey) }},
		{StepSeedFunding, func(ctx context.Context) error { return s.seedFunding(ctx, record.PublicKey) }},
	}

	for _, st := range steps {
		s.setStatus(ctx, username, Status{State: StateRunning, Step: st.step})
		if err := s.submitWithRetry(ctx, st.run); err != nil {
			s.fail(ctx, username, st.step, err)
			return &StepError{Step: st.step, Err: err}
		}
	}

	s.setStatus(ctx, username, Status{State: StateProvisioned})
	s.logger.Info("account provisioned", "username", username, "address", record.PublicKey)
	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindAccountProvisioned,
			Destination: username,
			Body:        fmt.Sprintf("Your account %s is ready to transact", record.PublicKey),
		})
	}
	return nil
}

// submitWithRetry re-runs the whole build-sign-submit triple on transient
// failures. Rejections other than a stale sequence are permanent; a stale
// sequence or a not-yet-visible account warrants a fresh snapshot and another
// attempt.
func (s *Service) submitWithRetry(ctx context.Context, triple func(context.Context) error) error {
	backoff := retry.WithMaxRetries(uint64(s.settings.Retries), retry.NewFibonacci(500*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := triple(ctx)
		if err == nil {
			return nil
		}
		if rejected, ok := ledger.AsRejected(err); ok && !rejected.HasCode(ledger.CodeBadSequence) {
			return err
		}
		return retry.RetryableError(err)
	})
}

// createAccount has the funder pay the native starting balance into a
// brand-new account.
func (s *Service) createAccount(ctx context.Context, address string) error {
	funder := s.registry.Funder
	snapshot, err := s.client.LoadAccount(ctx, funder.Address())
	if err != nil {
		return err
	}
	env, err := ledger.NewTransaction(snapshot).
		AddOperation(ledger.CreateAccount(address, s.settings.NativeStartingBalance)).
		Sign(s.client.Network(), funder)
	if err != nil {
		return err
	}
	_, err = s.client.Submit(ctx, env)
	return err
}

// establishTrustline has the new account itself trust the asset. The account
// must be reloaded first: the create-account step has to be visible before
// this operation can be built.
func (s *Service) establishTrustline(ctx context.Context, kp keypair.Full) error {
	snapshot, err := s.client.LoadAccount(ctx, kp.Address())
	if err != nil {
		return err
	}
	env, err := ledger.NewTransaction(snapshot).
		AddOperation(ledger.ChangeTrust(s.registry.Asset)).
		Sign(s.client.Network(), kp)
	if err != nil {
		return err
	}
	_, err = s.client.Submit(ctx, env)
	return err
}

// allowTrust has the issuer, via the bank's delegated signature, authorize the
// new account's trust line.
func (s *Service) allowTrust(ctx context.Context, trustor string) error {
	bank := s.registry.Bank
	snapshot, err := s.client.LoadAccount(ctx, bank.Address())
	if err != nil {
		return err
	}
	env, err := ledger.NewTransaction(snapshot).
		AddOperation(ledger.AllowTrust(s.registry.Asset.Issuer, trustor, s.registry.Asset, true)).
		Sign(s.client.Network(), bank)
	if err != nil {
		return err
	}
	_, err = s.client.Submit(ctx, env)
	return err
}

// seedFunding sends the asset gift from the bank to the new account.
func (s *Service) seedFunding(ctx context.Context, address string) error {
	bank := s.registry.Bank
	snapshot, err := s.client.LoadAccount(ctx, bank.Address())
	if err != nil {
		return err
	}
	amount := s.settings.SeedFundingAmount
	env, err := ledger.NewTransaction(snapshot).
		AddOperation(ledger.Payment(address, s.registry.Asset, amount)).
		WithMemo(fmt.Sprintf("Here's %s %s to get you started", amount, s.registry.Asset.Code)).
		Sign(s.client.Network(), bank)
	if err != nil {
		return err
	}
	_, err = s.client.Submit(ctx, env)
	return err
}

func (s *Service) fail(ctx context.Context, username string, step Step, err error) {
	s.logger.Error("provisioning failed", "username", username, "step", string(step), "error", err)
	s.setStatus(ctx, username, Status{State: StateFailed, Step: step, Error: err.Error()})
}

func (s *Service) setStatus(ctx context.Context, username string, status Status) {
	status.UpdatedAt = time.Now().UTC()
	if err := s.status.Set(ctx, username, status); err != nil {
		s.logger.Warn("record provisioning status", "username", username, "error", err)
	}
}
