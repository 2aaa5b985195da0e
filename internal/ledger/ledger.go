package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrAccountNotFound indicates the ledger has no record for the requested
// address, either because the account was never provisioned or because
// provisioning failed before the create-account step committed.
var ErrAccountNotFound = errors.New("account not found on ledger")

// Transaction-level and operation-level result codes returned by the ledger
// when it refuses a submission.
const (
	CodeBadSequence   = "tx_bad_seq"
	CodeBadAuth       = "tx_bad_auth"
	CodeUnderfunded   = "op_underfunded"
	CodeLowReserve    = "op_low_reserve"
	CodeAlreadyExists = "op_already_exists"
	CodeNoDestination = "op_no_destination"
	CodeNoTrust       = "op_no_trust"
	CodeSourceNoTrust = "op_src_no_trust"
	CodeNotAuthorized = "op_not_authorized"
	CodeNoIssuer      = "op_no_issuer"
	CodeMalformed     = "op_malformed"
)

// RejectedError reports that a transaction was built and signed correctly but
// the ledger refused it. Codes carries the ledger's structured result codes so
// callers can branch on the rejection reason instead of parsing messages.
type RejectedError struct {
	Codes []string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("ledger rejected transaction: %s", strings.Join(e.Codes, ", "))
}

// HasCode reports whether the rejection carries the given result code.
func (e *RejectedError) HasCode(code string) bool {
	for _, c := range e.Codes {
		if c == code {
			return true
		}
	}
	return false
}

// Reject builds a RejectedError from result codes.
func Reject(codes ...string) *RejectedError {
	return &RejectedError{Codes: codes}
}

// AsRejected unwraps err into a RejectedError if it carries one.
func AsRejected(err error) (*RejectedError, bool) {
	var rej *RejectedError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

// SubmitResult is the settlement reference returned for an accepted
// transaction. The hash is the sole durable reference to ledger-side effects.
type SubmitResult struct {
	Hash string
}

// Client is the single funnel for ledger I/O. Every mutation follows the
// build-sign-submit triple: load a fresh snapshot, build and sign against it,
// submit. The client performs no implicit retries; a stale-sequence rejection
// surfaces to the caller, who may reload and re-run the whole triple.
type Client interface {
	LoadAccount(ctx context.Context, address string) (AccountSnapshot, error)
	Submit(ctx context.Context, env Envelope) (SubmitResult, error)
	Network() string
}
