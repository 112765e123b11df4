package token

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Sender sends token transactions for one account. *broadcast.Session
// satisfies it.
type Sender interface {
	Address() common.Address
	Transact(ctx context.Context, to common.Address, data []byte) (*types.Receipt, error)
}

// Amounts are the base units moved by Exercise.
type Amounts struct {
	Transfer     *big.Int
	Approve      *big.Int
	TransferFrom *big.Int
}

// DefaultAmounts moves 100, approves 200 and spends 150 of the allowance.
func DefaultAmounts() Amounts {
	return Amounts{
		Transfer:     big.NewInt(100),
		Approve:      big.NewInt(200),
		TransferFrom: big.NewInt(150),
	}
}

// ExerciseReport is the state observed after each step of Exercise.
type ExerciseReport struct {
	Token              common.Address `json:"token" yaml:"token"`
	Owner              common.Address `json:"owner" yaml:"owner"`
	Spender            common.Address `json:"spender" yaml:"spender"`
	Recipient          common.Address `json:"recipient" yaml:"recipient"`
	SpenderBalance     *big.Int       `json:"spenderBalance" yaml:"spender_balance"`
	RecipientBalance   *big.Int       `json:"recipientBalance" yaml:"recipient_balance"`
	RemainingAllowance *big.Int       `json:"remainingAllowance" yaml:"remaining_allowance"`
	OverdraftRejected  bool           `json:"overdraftRejected" yaml:"overdraft_rejected"`
	UnapprovedRejected bool           `json:"unapprovedRejected" yaml:"unapproved_rejected"`
}

// Exercise moves tokens the way a holder would and checks the balances and
// allowance after every step:
//
//  1. owner transfers amt.Transfer to spender
//  2. owner approves spender for amt.Approve
//  3. spender moves amt.TransferFrom from owner to recipient
//
// It also checks that a transfer above the total supply and a transferFrom
// without an allowance both revert. Mismatches are returned together as a
// *VerificationError along with the report.
func Exercise(ctx context.Context, tok *Token, owner, spender Sender, recipient common.Address, amt Amounts) (*ExerciseReport, error) {
	rep := &ExerciseReport{
		Token:     tok.Address(),
		Owner:     owner.Address(),
		Spender:   spender.Address(),
		Recipient: recipient,
	}
	var mismatches []string
	check := func(what string, want, got *big.Int) {
		if want.Cmp(got) != 0 {
			mismatches = append(mismatches, fmt.Sprintf("%s: want %s, got %s", what, want, got))
		}
	}

	spenderBefore, err := tok.BalanceOf(ctx, rep.Spender)
	if err != nil {
		return nil, err
	}
	data, err := TransferData(rep.Spender, amt.Transfer)
	if err != nil {
		return nil, err
	}
	if _, err := owner.Transact(ctx, tok.Address(), data); err != nil {
		return nil, err
	}
	if rep.SpenderBalance, err = tok.BalanceOf(ctx, rep.Spender); err != nil {
		return nil, err
	}
	check("balanceOf(spender)", new(big.Int).Add(spenderBefore, amt.Transfer), rep.SpenderBalance)

	if data, err = ApproveData(rep.Spender, amt.Approve); err != nil {
		return nil, err
	}
	if _, err := owner.Transact(ctx, tok.Address(), data); err != nil {
		return nil, err
	}
	allowance, err := tok.Allowance(ctx, rep.Owner, rep.Spender)
	if err != nil {
		return nil, err
	}
	check("allowance(owner, spender)", amt.Approve, allowance)

	recipientBefore, err := tok.BalanceOf(ctx, recipient)
	if err != nil {
		return nil, err
	}
	if data, err = TransferFromData(rep.Owner, recipient, amt.TransferFrom); err != nil {
		return nil, err
	}
	if _, err := spender.Transact(ctx, tok.Address(), data); err != nil {
		return nil, err
	}
	if rep.RecipientBalance, err = tok.BalanceOf(ctx, recipient); err != nil {
		return nil, err
	}
	check("balanceOf(recipient)", new(big.Int).Add(recipientBefore, amt.TransferFrom), rep.RecipientBalance)
	if rep.RemainingAllowance, err = tok.Allowance(ctx, rep.Owner, rep.Spender); err != nil {
		return nil, err
	}
	check("allowance after transferFrom", new(big.Int).Sub(amt.Approve, amt.TransferFrom), rep.RemainingAllowance)

	supply, err := tok.TotalSupply(ctx)
	if err != nil {
		return nil, err
	}
	if data, err = TransferData(recipient, new(big.Int).Add(supply, big.NewInt(1))); err != nil {
		return nil, err
	}
	rep.OverdraftRejected = tok.Simulate(ctx, rep.Owner, data) != nil
	if !rep.OverdraftRejected {
		mismatches = append(mismatches, "transfer above total supply did not revert")
	}

	if data, err = TransferFromData(rep.Owner, rep.Spender, amt.TransferFrom); err != nil {
		return nil, err
	}
	rep.UnapprovedRejected = tok.Simulate(ctx, recipient, data) != nil
	if !rep.UnapprovedRejected {
		mismatches = append(mismatches, "transferFrom without allowance did not revert")
	}

	if len(mismatches) > 0 {
		return rep, &VerificationError{Mismatches: mismatches}
	}
	return rep, nil
}
