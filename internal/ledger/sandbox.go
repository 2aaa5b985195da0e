package ledger

import (
	"context"
	"sync"
)

type trustline struct {
	balance    int64
	authorized bool
}

type sandboxAccount struct {
	sequence   uint64
	native     int64
	trustlines map[Asset]*trustline
}

// Sandbox is a concurrency-safe in-memory ledger with the same observable
// semantics as the remote gateway: per-account sequence numbers, native and
// custom-asset balances, trust lines with issuer authorization, delegated
// signers, and structured rejections. It backs unit tests and local runs.
type Sandbox struct {
	mu           sync.Mutex
	network      string
	accounts     map[string]*sandboxAccount
	authRequired map[string]bool
	signers      map[string]map[string]bool
	baseReserve  int64
}

// NewSandbox creates an empty sandbox ledger for the given network passphrase.
func NewSandbox(network string) *Sandbox {
	base, _ := ParseAmount("1")
	return &Sandbox{
		network:      network,
		accounts:     map[string]*sandboxAccount{},
		authRequired: map[string]bool{},
		signers:      map[string]map[string]bool{},
		baseReserve:  base,
	}
}

// Network returns the sandbox network passphrase.
func (s *Sandbox) Network() string {
	return s.network
}

// Genesis creates an account directly with a native balance, bypassing the
// create-account operation. Bootstrap only.
func (s *Sandbox) Genesis(address, nativeBalance string) error {
	amount, err := ParseAmount(nativeBalance)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[address] = &sandboxAccount{native: amount, trustlines: map[Asset]*trustline{}}
	return nil
}

// SetTrustline installs a trust line with a balance directly. Bootstrap only.
func (s *Sandbox) SetTrustline(address string, asset Asset, balance string, authorized bool) error {
	amount, err := ParseAmount(balance)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[address]
	if !ok {
		return ErrAccountNotFound
	}
	acct.trustlines[asset] = &trustline{balance: amount, authorized: authorized}
	return nil
}

// RequireAuth marks an issuer as requiring allow-trust before its asset can be
// held; trust lines to it start unauthorized.
func (s *Sandbox) RequireAuth(issuer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authRequired[issuer] = true
}

// AddSigner registers signer as a delegated signer for account.
func (s *Sandbox) AddSigner(account, signer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.signers[account] == nil {
		s.signers[account] = map[string]bool{}
	}
	s.signers[account][signer] = true
}

// LoadAccount returns the account's current snapshot.
func (s *Sandbox) LoadAccount(_ context.Context, address string) (AccountSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[address]
	if !ok {
		return AccountSnapshot{}, ErrAccountNotFound
	}

	snapshot := AccountSnapshot{
		Address:  address,
		Sequence: acct.sequence,
		Balances: []Balance{{Asset: Native, Amount: FormatAmount(acct.native)}},
	}
	for asset, tl := range acct.trustlines {
		snapshot.Balances = append(snapshot.Balances, Balance{Asset: asset, Amount: FormatAmount(tl.balance)})
	}
	return snapshot, nil
}

// Submit validates and applies a signed envelope. Transactions are atomic: a
// rejection leaves ledger state untouched, including the source sequence
// number, no matter how many operations had already validated. The caller can
// rebuild from a fresh snapshot and resubmit.
func (s *Sandbox) Submit(_ context.Context, env Envelope) (SubmitResult, error) {
	p, err := env.decode()
	if err != nil {
		return SubmitResult{}, Reject(CodeMalformed)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if p.Network != s.network {
		return SubmitResult{}, Reject(CodeBadAuth)
	}

	source, ok := s.accounts[p.Source]
	if !ok {
		return SubmitResult{}, ErrAccountNotFound
	}
	if !s.authorizedBy(env, p.Source) {
		return SubmitResult{}, Reject(CodeBadAuth)
	}
	if p.Sequence != source.sequence+1 {
		return SubmitResult{}, Reject(CodeBadSequence)
	}

	// Operations mutate a staged copy; live state only changes when every
	// operation in the transaction succeeds.
	staged := cloneAccounts(s.accounts)
	for _, op := range p.Operations {
		opSource := p.Source
		if op.Source != "" {
			opSource = op.Source
			if !s.authorizedBy(env, opSource) {
				return SubmitResult{}, Reject(CodeBadAuth)
			}
		}
		if code := s.apply(staged, opSource, op); code != "" {
			return SubmitResult{}, Reject(code)
		}
	}

	staged[p.Source].sequence++
	s.accounts = staged
	return SubmitResult{Hash: env.Hash()}, nil
}

func cloneAccounts(accounts map[string]*sandboxAccount) map[string]*sandboxAccount {
	cloned := make(map[string]*sandboxAccount, len(accounts))
	for address, acct := range accounts {
		trustlines := make(map[Asset]*trustline, len(acct.trustlines))
		for asset, tl := range acct.trustlines {
			copied := *tl
			trustlines[asset] = &copied
		}
		cloned[address] = &sandboxAccount{
			sequence:   acct.sequence,
			native:     acct.native,
			trustlines: trustlines,
		}
	}
	return cloned
}

// authorizedBy checks for a valid signature from the account itself or from
// one of its delegated signers.
func (s *Sandbox) authorizedBy(env Envelope, account string) bool {
	if env.signedBy(account) {
		return true
	}
	for signer := range s.signers[account] {
		if env.signedBy(signer) {
			return true
		}
	}
	return false
}

// apply mutates the staged account set for one operation, returning a result
// code on failure and "" on success.
func (s *Sandbox) apply(accounts map[string]*sandboxAccount, opSource string, op Operation) string {
	src, ok := accounts[opSource]
	if !ok {
		return CodeNoDestination
	}

	switch op.Type {
	case OpCreateAccount:
		amount, err := ParseAmount(op.StartingBalance)
		if err != nil {
			return CodeMalformed
		}
		if _, exists := accounts[op.Destination]; exists {
			return CodeAlreadyExists
		}
		if amount < 2*s.baseReserve {
			return CodeLowReserve
		}
		if src.native < amount {
			return CodeUnderfunded
		}
		src.native -= amount
		accounts[op.Destination] = &sandboxAccount{native: amount, trustlines: map[Asset]*trustline{}}
		return ""

	case OpChangeTrust:
		if op.Asset.IsNative() {
			return CodeMalformed
		}
		if _, ok := accounts[op.Asset.Issuer]; !ok {
			return CodeNoIssuer
		}
		if _, ok := src.trustlines[op.Asset]; !ok {
			src.trustlines[op.Asset] = &trustline{authorized: !s.authRequired[op.Asset.Issuer]}
		}
		return ""

	case OpAllowTrust:
		if opSource != op.Asset.Issuer {
			return CodeNotAuthorized
		}
		trustor, ok := accounts[op.Trustor]
		if !ok {
			return CodeNoTrust
		}
		tl, ok := trustor.trustlines[op.Asset]
		if !ok {
			return CodeNoTrust
		}
		tl.authorized = op.Authorize
		return ""

	case OpPayment:
		amount, err := ParseAmount(op.Amount)
		if err != nil || amount <= 0 {
			return CodeMalformed
		}
		dest, ok := accounts[op.Destination]
		if !ok {
			return CodeNoDestination
		}
		if op.Asset.IsNative() {
			if src.native < amount+s.baseReserve {
				return CodeUnderfunded
			}
			src.native -= amount
			dest.native += amount
			return ""
		}
		// The issuer mints on send and burns on receive; everyone else needs
		// an authorized trust line.
		if opSource != op.Asset.Issuer {
			tl, ok := src.trustlines[op.Asset]
			if !ok {
				return CodeSourceNoTrust
			}
			if !tl.authorized {
				return CodeNotAuthorized
			}
			if tl.balance < amount {
				return CodeUnderfunded
			}
			tl.balance -= amount
		}
		if op.Destination != op.Asset.Issuer {
			tl, ok := dest.trustlines[op.Asset]
			if !ok {
				return CodeNoTrust
			}
			if !tl.authorized {
				return CodeNotAuthorized
			}
			tl.balance += amount
		}
		return ""

	default:
		return CodeMalformed
	}
}
