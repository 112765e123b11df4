// Package token reads and writes an ERC-20 token through its standard ABI.
package token

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	mytoken "github.com/manzur349/my-token"
)

// ERC20ABI is the subset of the ERC-20 interface the deployer uses.
const ERC20ABI = `[
	{"type":"function","name":"name","inputs":[],"outputs":[{"name":"","type":"string"}],"stateMutability":"view"},
	{"type":"function","name":"symbol","inputs":[],"outputs":[{"name":"","type":"string"}],"stateMutability":"view"},
	{"type":"function","name":"decimals","inputs":[],"outputs":[{"name":"","type":"uint8"}],"stateMutability":"view"},
	{"type":"function","name":"totalSupply","inputs":[],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
	{"type":"function","name":"balanceOf","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
	{"type":"function","name":"allowance","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
	{"type":"function","name":"transfer","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable"},
	{"type":"function","name":"approve","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable"},
	{"type":"function","name":"transferFrom","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable"}
]`

var erc20 = mustParseABI(ERC20ABI)

// ErrNoCode is returned when a call comes back empty, which usually means
// there is no contract at the address.
var ErrNoCode = errors.New("token: empty call result (no contract at address?)")

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Sprintf("parse ERC-20 ABI: %v", err))
	}
	return parsed
}

// Token is a read-only ERC-20 binding. Writes are built as calldata and sent
// through a broadcast session.
type Token struct {
	address common.Address
	caller  ethereum.ContractCaller
}

// New binds the token at address.
func New(address common.Address, caller ethereum.ContractCaller) *Token {
	return &Token{address: address, caller: caller}
}

// Address returns the token address.
func (t *Token) Address() common.Address {
	return t.address
}

func pack(method string, args ...any) ([]byte, error) {
	data, err := erc20.Pack(method, args...)
	if err != nil {
		return nil, mytoken.WrapTxError("pack "+method, common.Hash{}, err)
	}
	return data, nil
}

func (t *Token) call(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := pack(method, args...)
	if err != nil {
		return nil, err
	}

	out, err := t.caller.CallContract(ctx, ethereum.CallMsg{To: &t.address, Data: data}, nil)
	if err != nil {
		return nil, mytoken.WrapTxError("call "+method, common.Hash{}, err)
	}
	if len(out) == 0 {
		return nil, mytoken.WrapTxError("call "+method, common.Hash{}, ErrNoCode)
	}

	res, err := erc20.Unpack(method, out)
	if err != nil {
		return nil, mytoken.WrapTxError("unpack "+method, common.Hash{}, err)
	}
	if len(res) != 1 {
		return nil, mytoken.WrapTxError("unpack "+method, common.Hash{}, fmt.Errorf("expected 1 value, got %d", len(res)))
	}
	return res, nil
}

func unexpectedType(method string, v any) error {
	return mytoken.WrapTxError("unpack "+method, common.Hash{}, fmt.Errorf("unexpected type %T", v))
}

func (t *Token) callBig(ctx context.Context, method string, args ...any) (*big.Int, error) {
	res, err := t.call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := res[0].(*big.Int)
	if !ok {
		return nil, unexpectedType(method, res[0])
	}
	return v, nil
}

func (t *Token) callString(ctx context.Context, method string) (string, error) {
	res, err := t.call(ctx, method)
	if err != nil {
		return "", err
	}
	v, ok := res[0].(string)
	if !ok {
		return "", unexpectedType(method, res[0])
	}
	return v, nil
}

// Simulate runs data against the token as an eth_call from from and returns
// the call error, typically a revert.
func (t *Token) Simulate(ctx context.Context, from common.Address, data []byte) error {
	_, err := t.caller.CallContract(ctx, ethereum.CallMsg{From: from, To: &t.address, Data: data}, nil)
	return err
}

// Name returns the token name.
func (t *Token) Name(ctx context.Context) (string, error) {
	return t.callString(ctx, "name")
}

// Symbol returns the token symbol.
func (t *Token) Symbol(ctx context.Context) (string, error) {
	return t.callString(ctx, "symbol")
}

// Decimals returns the token decimals.
func (t *Token) Decimals(ctx context.Context) (uint8, error) {
	res, err := t.call(ctx, "decimals")
	if err != nil {
		return 0, err
	}
	v, ok := res[0].(uint8)
	if !ok {
		return 0, unexpectedType("decimals", res[0])
	}
	return v, nil
}

// TotalSupply returns the total supply in base units.
func (t *Token) TotalSupply(ctx context.Context) (*big.Int, error) {
	return t.callBig(ctx, "totalSupply")
}

// BalanceOf returns the balance of account.
func (t *Token) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	return t.callBig(ctx, "balanceOf", account)
}

// Allowance returns how much spender may move on behalf of owner.
func (t *Token) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	return t.callBig(ctx, "allowance", owner, spender)
}

// TransferData returns calldata for transfer(to, amount).
func TransferData(to common.Address, amount *big.Int) ([]byte, error) {
	return pack("transfer", to, amount)
}

// ApproveData returns calldata for approve(spender, amount).
func ApproveData(spender common.Address, amount *big.Int) ([]byte, error) {
	return pack("approve", spender, amount)
}

// TransferFromData returns calldata for transferFrom(from, to, amount).
func TransferFromData(from, to common.Address, amount *big.Int) ([]byte, error) {
	return pack("transferFrom", from, to, amount)
}
