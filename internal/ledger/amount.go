package ledger

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Amounts travel as decimal strings on the wire and are handled internally as
// int64 counts of the smallest ledger unit (1e-7 of one asset unit).
const amountPrecision = 7

var unitScale = int64(10_000_000)

// ErrMalformedAmount indicates an amount string that is not a valid ledger
// amount: negative, empty, over-precise, non-numeric, or too large to
// represent.
var ErrMalformedAmount = errors.New("malformed amount")

// ParseAmount converts a decimal amount string into smallest-unit form.
func ParseAmount(s string) (int64, error) {
	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if whole == "" || len(frac) > amountPrecision {
		return 0, fmt.Errorf("%w %q", ErrMalformedAmount, s)
	}

	w, err := strconv.ParseUint(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w %q", ErrMalformedAmount, s)
	}

	var f uint64
	if frac != "" {
		f, err = strconv.ParseUint(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w %q", ErrMalformedAmount, s)
		}
		for i := len(frac); i < amountPrecision; i++ {
			f *= 10
		}
	}

	// The fraction counts against the int64 headroom too.
	if w > (math.MaxInt64-f)/uint64(unitScale) {
		return 0, fmt.Errorf("%w %q", ErrMalformedAmount, s)
	}

	return int64(w)*unitScale + int64(f), nil
}

// FormatAmount renders a smallest-unit value back into its decimal string
// form, trimming trailing fraction zeros.
func FormatAmount(v int64) string {
	whole, frac := v/unitScale, v%unitScale
	if frac == 0 {
		return strconv.FormatInt(whole, 10)
	}
	s := fmt.Sprintf("%d.%07d", whole, frac)
	return strings.TrimRight(s, "0")
}
