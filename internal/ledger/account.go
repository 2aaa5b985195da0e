package ledger

// Asset identifies what is being moved: the ledger's native token when Code is
// empty, otherwise a custom asset issued by the account at Issuer.
type Asset struct {
	Code   string `json:"code,omitempty"`
	Issuer string `json:"issuer,omitempty"`
}

// Native is the ledger's built-in token.
var Native = Asset{}

// IsNative reports whether the asset is the ledger's native token.
func (a Asset) IsNative() bool {
	return a.Code == ""
}

// Balance is one asset position held by an account.
type Balance struct {
	Asset  Asset  `json:"asset"`
	Amount string `json:"amount"`
}

// AccountSnapshot is the state of one on-ledger account at load time. The
// sequence number is only valid for building the next transaction; a snapshot
// goes stale as soon as any transaction from the same account commits.
type AccountSnapshot struct {
	Address  string    `json:"address"`
	Sequence uint64    `json:"sequence"`
	Balances []Balance `json:"balances"`
}

// BalanceOf returns the account's balance for the given asset, if any.
func (s AccountSnapshot) BalanceOf(asset Asset) (string, bool) {
	for _, b := range s.Balances {
		if b.Asset == asset {
			return b.Amount, true
		}
	}
	return "", false
}
