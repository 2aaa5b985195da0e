package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/mamapay/ledgerwallet/internal/keypair"
)

const testNetwork = "Test Network ; sandbox"

func mustKeypair(t *testing.T) keypair.Full {
	t.Helper()
	kp, err := keypair.Random()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	return kp
}

// newIssuedEnv builds a sandbox with a funded funder, an auth-required issuer
// with the bank as delegated signer, and a bank holding plenty of the asset.
func newIssuedEnv(t *testing.T) (*Sandbox, Asset, keypair.Full, keypair.Full, keypair.Full) {
	t.Helper()
	sandbox := NewSandbox(testNetwork)

	funder := mustKeypair(t)
	issuer := mustKeypair(t)
	bank := mustKeypair(t)

	for _, boot := range []struct {
		address string
		balance string
	}{
		{funder.Address(), "100000"},
		{issuer.Address(), "100"},
		{bank.Address(), "100"},
	} {
		if err := sandbox.Genesis(boot.address, boot.balance); err != nil {
			t.Fatalf("genesis %s: %v", boot.address, err)
		}
	}

	asset := Asset{Code: "USD", Issuer: issuer.Address()}
	sandbox.RequireAuth(issuer.Address())
	sandbox.AddSigner(issuer.Address(), bank.Address())
	if err := sandbox.SetTrustline(bank.Address(), asset, "1000000", true); err != nil {
		t.Fatalf("bank trustline: %v", err)
	}

	return sandbox, asset, funder, issuer, bank
}

func submit(t *testing.T, sandbox *Sandbox, source AccountSnapshot, memo string, signer keypair.Full, ops ...Operation) (SubmitResult, error) {
	t.Helper()
	tx := NewTransaction(source).WithMemo(memo)
	for _, op := range ops {
		tx.AddOperation(op)
	}
	env, err := tx.Sign(testNetwork, signer)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return sandbox.Submit(context.Background(), env)
}

func TestLoadAccountMissing(t *testing.T) {
	sandbox := NewSandbox(testNetwork)
	if _, err := sandbox.LoadAccount(context.Background(), "nobody"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestProvisioningAndPaymentFlow(t *testing.T) {
	sandbox, asset, funder, _, bank := newIssuedEnv(t)
	ctx := context.Background()
	user := mustKeypair(t)

	// Create the account from the funder.
	funderSnap, err := sandbox.LoadAccount(ctx, funder.Address())
	if err != nil {
		t.Fatalf("load funder: %v", err)
	}
	if _, err := submit(t, sandbox, funderSnap, "", funder, CreateAccount(user.Address(), "999")); err != nil {
		t.Fatalf("create account: %v", err)
	}

	// Trust the asset from the new account itself.
	userSnap, err := sandbox.LoadAccount(ctx, user.Address())
	if err != nil {
		t.Fatalf("load user: %v", err)
	}
	if _, err := submit(t, sandbox, userSnap, "", user, ChangeTrust(asset)); err != nil {
		t.Fatalf("change trust: %v", err)
	}

	// Authorize via the bank's delegated signature for the issuer.
	bankSnap, _ := sandbox.LoadAccount(ctx, bank.Address())
	if _, err := submit(t, sandbox, bankSnap, "", bank, AllowTrust(asset.Issuer, user.Address(), asset, true)); err != nil {
		t.Fatalf("allow trust: %v", err)
	}

	// Gift from the bank.
	bankSnap, _ = sandbox.LoadAccount(ctx, bank.Address())
	res, err := submit(t, sandbox, bankSnap, "welcome", bank, Payment(user.Address(), asset, "50"))
	if err != nil {
		t.Fatalf("payment: %v", err)
	}
	if res.Hash == "" {
		t.Fatal("expected settlement hash")
	}

	userSnap, _ = sandbox.LoadAccount(ctx, user.Address())
	if amount, ok := userSnap.BalanceOf(asset); !ok || amount != "50" {
		t.Fatalf("expected asset balance 50, got %q (ok=%v)", amount, ok)
	}
	if amount, _ := userSnap.BalanceOf(Native); amount != "999" {
		t.Fatalf("expected native balance 999, got %q", amount)
	}
}

func TestAllowTrustBeforeTrustline(t *testing.T) {
	sandbox, asset, funder, _, bank := newIssuedEnv(t)
	ctx := context.Background()
	user := mustKeypair(t)

	funderSnap, _ := sandbox.LoadAccount(ctx, funder.Address())
	if _, err := submit(t, sandbox, funderSnap, "", funder, CreateAccount(user.Address(), "999")); err != nil {
		t.Fatalf("create account: %v", err)
	}

	bankSnap, _ := sandbox.LoadAccount(ctx, bank.Address())
	_, err := submit(t, sandbox, bankSnap, "", bank, AllowTrust(asset.Issuer, user.Address(), asset, true))
	rejected, ok := AsRejected(err)
	if !ok || !rejected.HasCode(CodeNoTrust) {
		t.Fatalf("expected %s rejection, got %v", CodeNoTrust, err)
	}
}

func TestPaymentToUnprovisionedAccount(t *testing.T) {
	sandbox, asset, _, _, bank := newIssuedEnv(t)
	ctx := context.Background()

	bankSnap, _ := sandbox.LoadAccount(ctx, bank.Address())
	_, err := submit(t, sandbox, bankSnap, "", bank, Payment("missing-account", asset, "10"))
	rejected, ok := AsRejected(err)
	if !ok || !rejected.HasCode(CodeNoDestination) {
		t.Fatalf("expected %s rejection, got %v", CodeNoDestination, err)
	}
}

func TestPaymentInsufficientBalance(t *testing.T) {
	sandbox, asset, funder, _, bank := newIssuedEnv(t)
	ctx := context.Background()
	user := mustKeypair(t)

	funderSnap, _ := sandbox.LoadAccount(ctx, funder.Address())
	if _, err := submit(t, sandbox, funderSnap, "", funder, CreateAccount(user.Address(), "999")); err != nil {
		t.Fatalf("create account: %v", err)
	}
	userSnap, _ := sandbox.LoadAccount(ctx, user.Address())
	if _, err := submit(t, sandbox, userSnap, "", user, ChangeTrust(asset)); err != nil {
		t.Fatalf("change trust: %v", err)
	}
	bankSnap, _ := sandbox.LoadAccount(ctx, bank.Address())
	if _, err := submit(t, sandbox, bankSnap, "", bank, AllowTrust(asset.Issuer, user.Address(), asset, true)); err != nil {
		t.Fatalf("allow trust: %v", err)
	}

	userSnap, _ = sandbox.LoadAccount(ctx, user.Address())
	_, err := submit(t, sandbox, userSnap, "", user, Payment(bank.Address(), asset, "10"))
	rejected, ok := AsRejected(err)
	if !ok || !rejected.HasCode(CodeUnderfunded) {
		t.Fatalf("expected %s rejection, got %v", CodeUnderfunded, err)
	}
}

func TestResubmittingEnvelopeIsRejected(t *testing.T) {
	sandbox, _, funder, _, _ := newIssuedEnv(t)
	ctx := context.Background()
	user := mustKeypair(t)

	funderSnap, _ := sandbox.LoadAccount(ctx, funder.Address())
	otherUser := mustKeypair(t)
	env, err := NewTransaction(funderSnap).
		AddOperation(CreateAccount(user.Address(), "999")).
		AddOperation(CreateAccount(otherUser.Address(), "999")).
		Sign(testNetwork, funder)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	first, err := sandbox.Submit(ctx, env)
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}

	// The sequence number is consumed, so a byte-identical resubmission must
	// be rejected rather than doubling the ledger effect.
	_, err = sandbox.Submit(ctx, env)
	rejected, ok := AsRejected(err)
	if !ok || !rejected.HasCode(CodeBadSequence) {
		t.Fatalf("expected %s rejection, got %v", CodeBadSequence, err)
	}
	if first.Hash != env.Hash() {
		t.Fatalf("hash mismatch: %s != %s", first.Hash, env.Hash())
	}
}

func TestRejectedTransactionIsAtomic(t *testing.T) {
	sandbox, _, funder, _, _ := newIssuedEnv(t)
	ctx := context.Background()
	user := mustKeypair(t)

	// First operation is valid, second is malformed. Neither may commit.
	funderSnap, _ := sandbox.LoadAccount(ctx, funder.Address())
	_, err := submit(t, sandbox, funderSnap, "", funder,
		CreateAccount(user.Address(), "999"),
		ChangeTrust(Native))
	rejected, ok := AsRejected(err)
	if !ok || !rejected.HasCode(CodeMalformed) {
		t.Fatalf("expected %s rejection, got %v", CodeMalformed, err)
	}

	if _, err := sandbox.LoadAccount(ctx, user.Address()); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("rejected transaction created the account: %v", err)
	}

	after, err := sandbox.LoadAccount(ctx, funder.Address())
	if err != nil {
		t.Fatalf("load funder: %v", err)
	}
	if amount, _ := after.BalanceOf(Native); amount != "100000" {
		t.Fatalf("rejected transaction moved funds: funder balance %q", amount)
	}
	if after.Sequence != funderSnap.Sequence {
		t.Fatalf("rejected transaction consumed sequence: %d -> %d", funderSnap.Sequence, after.Sequence)
	}

	// The untouched sequence supports a straight retry without a fresh reload.
	if _, err := submit(t, sandbox, funderSnap, "", funder, CreateAccount(user.Address(), "999")); err != nil {
		t.Fatalf("retry after rejection: %v", err)
	}
}

func TestWrongNetworkRejected(t *testing.T) {
	sandbox, _, funder, _, _ := newIssuedEnv(t)
	ctx := context.Background()
	user := mustKeypair(t)

	funderSnap, _ := sandbox.LoadAccount(ctx, funder.Address())
	env, err := NewTransaction(funderSnap).
		AddOperation(CreateAccount(user.Address(), "999")).
		Sign("Public Network ; production", funder)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	_, err = sandbox.Submit(ctx, env)
	rejected, ok := AsRejected(err)
	if !ok || !rejected.HasCode(CodeBadAuth) {
		t.Fatalf("expected %s rejection, got %v", CodeBadAuth, err)
	}
}

func TestSubmitWithoutRequiredSignature(t *testing.T) {
	sandbox, _, funder, _, bank := newIssuedEnv(t)
	ctx := context.Background()
	user := mustKeypair(t)

	funderSnap, _ := sandbox.LoadAccount(ctx, funder.Address())
	// Signed by the bank, not the funder whose account sources the tx.
	env, err := NewTransaction(funderSnap).
		AddOperation(CreateAccount(user.Address(), "999")).
		Sign(testNetwork, bank)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	_, err = sandbox.Submit(ctx, env)
	rejected, ok := AsRejected(err)
	if !ok || !rejected.HasCode(CodeBadAuth) {
		t.Fatalf("expected %s rejection, got %v", CodeBadAuth, err)
	}
}

func TestChangeTrustUnknownIssuer(t *testing.T) {
	sandbox, _, funder, _, _ := newIssuedEnv(t)
	ctx := context.Background()

	funderSnap, _ := sandbox.LoadAccount(ctx, funder.Address())
	_, err := submit(t, sandbox, funderSnap, "", funder, ChangeTrust(Asset{Code: "EUR", Issuer: "unknown"}))
	rejected, ok := AsRejected(err)
	if !ok || !rejected.HasCode(CodeNoIssuer) {
		t.Fatalf("expected %s rejection, got %v", CodeNoIssuer, err)
	}
}
