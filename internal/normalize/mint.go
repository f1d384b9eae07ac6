package normalize

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/mr-tron/base58"

	"solana-token-engine/internal/domain"
)

// ErrInvalidMint is returned when a provider address is not a usable mint.
var ErrInvalidMint = fmt.Errorf("%w: invalid mint address", domain.ErrDataUnavailable)

// CleanMint strips provider decorations from an address and verifies that it is
// a base58 encoded 32-byte public key.
func CleanMint(raw string) (string, error) {
	addr := strings.TrimSpace(raw)
	if i := strings.IndexByte(addr, '?'); i >= 0 {
		addr = addr[:i]
	}
	if addr == "" {
		return "", ErrInvalidMint
	}

	allDigits, allLower := true, true
	for _, r := range addr {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return "", ErrInvalidMint
		}
		if !unicode.IsDigit(r) {
			allDigits = false
		}
		if unicode.IsUpper(r) {
			allLower = false
		}
	}
	// Ticker-like strings and pure numbers show up in scraped exports.
	if allDigits || allLower {
		return "", ErrInvalidMint
	}

	decoded, err := base58.Decode(addr)
	if err != nil || len(decoded) != 32 {
		return "", ErrInvalidMint
	}
	return addr, nil
}
