package token

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"

	mytoken "github.com/manzur349/my-token"
)

// MyToken constructor constants.
const (
	DefaultName     = "MyToken"
	DefaultSymbol   = "MTK"
	DefaultDecimals = 18
)

// ErrVerificationFailed is returned when on-chain state differs from the expectations.
var ErrVerificationFailed = errors.New("token: verification failed")

// Expectations describe the state of a freshly deployed token.
type Expectations struct {
	Name        string
	Symbol      string
	Decimals    uint8
	TotalSupply *big.Int
}

// DefaultExpectations returns the MyToken initial state: one million tokens
// with 18 decimals, all minted to the owner.
func DefaultExpectations() Expectations {
	return Expectations{
		Name:        DefaultName,
		Symbol:      DefaultSymbol,
		Decimals:    DefaultDecimals,
		TotalSupply: new(big.Int).Mul(big.NewInt(1_000_000), big.NewInt(params.Ether)),
	}
}

// Report is what Verify read from chain.
type Report struct {
	Token        common.Address `json:"token" yaml:"token"`
	Owner        common.Address `json:"owner" yaml:"owner"`
	Name         string         `json:"name" yaml:"name"`
	Symbol       string         `json:"symbol" yaml:"symbol"`
	Decimals     uint8          `json:"decimals" yaml:"decimals"`
	TotalSupply  *big.Int       `json:"totalSupply" yaml:"total_supply"`
	OwnerBalance *big.Int       `json:"ownerBalance" yaml:"owner_balance"`
}

// VerificationError lists every field that did not match.
type VerificationError struct {
	Mismatches []string
}

// Error implements the error interface.
func (e *VerificationError) Error() string {
	return fmt.Sprintf("%v: %s", ErrVerificationFailed, strings.Join(e.Mismatches, "; "))
}

// Is matches ErrVerificationFailed and, since the mismatch is on-chain
// state, the ErrTransaction category.
func (e *VerificationError) Is(target error) bool {
	return target == ErrVerificationFailed || target == mytoken.ErrTransaction
}

// Verify reads the token's metadata, supply and owner balance and compares them
// with want. The owner must hold the whole supply.
func Verify(ctx context.Context, tok *Token, owner common.Address, want Expectations) (*Report, error) {
	rep := &Report{Token: tok.Address(), Owner: owner}

	var err error
	if rep.Name, err = tok.Name(ctx); err != nil {
		return nil, err
	}
	if rep.Symbol, err = tok.Symbol(ctx); err != nil {
		return nil, err
	}
	if rep.Decimals, err = tok.Decimals(ctx); err != nil {
		return nil, err
	}
	if rep.TotalSupply, err = tok.TotalSupply(ctx); err != nil {
		return nil, err
	}
	if rep.OwnerBalance, err = tok.BalanceOf(ctx, owner); err != nil {
		return nil, err
	}

	var mismatches []string
	if rep.Name != want.Name {
		mismatches = append(mismatches, fmt.Sprintf("name: want %q, got %q", want.Name, rep.Name))
	}
	if rep.Symbol != want.Symbol {
		mismatches = append(mismatches, fmt.Sprintf("symbol: want %q, got %q", want.Symbol, rep.Symbol))
	}
	if rep.Decimals != want.Decimals {
		mismatches = append(mismatches, fmt.Sprintf("decimals: want %d, got %d", want.Decimals, rep.Decimals))
	}
	if want.TotalSupply != nil && rep.TotalSupply.Cmp(want.TotalSupply) != 0 {
		mismatches = append(mismatches, fmt.Sprintf("totalSupply: want %s, got %s", want.TotalSupply, rep.TotalSupply))
	}
	if rep.OwnerBalance.Cmp(rep.TotalSupply) != 0 {
		mismatches = append(mismatches, fmt.Sprintf("balanceOf(owner): want %s, got %s", rep.TotalSupply, rep.OwnerBalance))
	}

	if len(mismatches) > 0 {
		return rep, &VerificationError{Mismatches: mismatches}
	}
	return rep, nil
}
