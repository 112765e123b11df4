// Package keys parses the deployer's private key and signs transactions with it.
package keys

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"

	mytoken "github.com/manzur349/my-token"
)

// LookupFunc reads an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// FromEnv reads and parses PRIVATE_KEY using lookup.
// A nil lookup falls back to os.LookupEnv.
func FromEnv(lookup LookupFunc) (*ecdsa.PrivateKey, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	raw, ok := lookup(mytoken.PrivateKeyEnv)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, mytoken.NewConfigError(mytoken.PrivateKeyEnv, mytoken.ErrMissingPrivateKey)
	}
	key, err := ParsePrivateKey(raw)
	if err != nil {
		return nil, mytoken.NewConfigError(mytoken.PrivateKeyEnv, err)
	}
	return key, nil
}

// ParsePrivateKey parses a secp256k1 private key given as an unsigned integer.
//
// Accepted forms:
//   - 0x-prefixed hex ("0xac09...")
//   - decimal digits
//   - exactly 64 hex characters without a prefix
//
// A value made only of decimal digits is always read as decimal, even when it
// is 64 characters long.
//
// The value must be in [1, N) where N is the curve order.
func ParsePrivateKey(s string) (*ecdsa.PrivateKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, mytoken.ErrMissingPrivateKey
	}

	n, err := parseUint256(s)
	if err != nil {
		return nil, err
	}

	key, err := crypto.ToECDSA(math.PaddedBigBytes(n, 32))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", mytoken.ErrInvalidPrivateKey, err)
	}
	return key, nil
}

func parseUint256(s string) (*big.Int, error) {
	var (
		digits string
		base   int
	)
	switch {
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		digits, base = s[2:], 16
	case isDecimal(s):
		digits, base = s, 10
	case len(s) == 64:
		digits, base = s, 16
	default:
		return nil, fmt.Errorf("%w: not a decimal or hex number", mytoken.ErrInvalidPrivateKey)
	}
	if digits == "" {
		return nil, fmt.Errorf("%w: empty number", mytoken.ErrInvalidPrivateKey)
	}
	if base == 16 && !isHex(digits) {
		return nil, fmt.Errorf("%w: not a decimal or hex number", mytoken.ErrInvalidPrivateKey)
	}

	n, ok := new(big.Int).SetString(digits, base)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("%w: not a decimal or hex number", mytoken.ErrInvalidPrivateKey)
	}
	if n.BitLen() > 256 {
		return nil, fmt.Errorf("%w: value exceeds 256 bits", mytoken.ErrInvalidPrivateKey)
	}
	return n, nil
}

func isDecimal(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isHex(s string) bool {
	for _, r := range s {
		if !('0' <= r && r <= '9' || 'a' <= r && r <= 'f' || 'A' <= r && r <= 'F') {
			return false
		}
	}
	return true
}

// Address derives the account address controlled by key.
func Address(key *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(key.PublicKey)
}
