// Package testchain provides an in-process chain and a tiny test contract for
// deployment tests.
package testchain

import (
	"context"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/ethereum/go-ethereum/params"
)

// Owned is a hand-assembled contract. Its constructor stores the address
// argument in slot 0 and its runtime code returns slot 0 for any call data, so
// owner() reads back the constructor argument.
//
//	init:    CODECOPY(0, 0x24, 32) SSTORE(0, MLOAD(0)) CODECOPY(0, 0x19, 11) RETURN(0, 11)
//	runtime: MSTORE(0, SLOAD(0)) RETURN(0, 32)
const (
	OwnedBytecode = "0x60206024600039600051600055600b6019600039600b6000f3" + "60005460005260206000f3"
	OwnedABI      = `[
		{"type":"constructor","inputs":[{"name":"initialOwner","type":"address","internalType":"address"}],"stateMutability":"nonpayable"},
		{"type":"function","name":"owner","inputs":[],"outputs":[{"name":"","type":"address","internalType":"address"}],"stateMutability":"view"}
	]`

	// RevertingBytecode is init code that always reverts.
	RevertingBytecode = "0x60006000fd"
)

// ArtifactJSON returns a Foundry-style artifact for the given bytecode using OwnedABI.
func ArtifactJSON(bytecode string) []byte {
	return []byte(`{"abi":` + OwnedABI + `,"bytecode":{"object":"` + bytecode + `","linkReferences":{}}}`)
}

// WriteArtifact writes an artifact to dir/<name>.sol/<name>.json and returns its path.
func WriteArtifact(t testing.TB, dir, name, bytecode string) string {
	t.Helper()
	path := filepath.Join(dir, name+".sol", name+".json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create artifact dir: %v", err)
	}
	if err := os.WriteFile(path, ArtifactJSON(bytecode), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	return path
}

// Chain is a simulated chain whose client mines a block after every sent transaction.
type Chain struct {
	Backend *simulated.Backend
	Client  *Client
}

// New starts a simulated chain with each address funded with 1000 ether.
func New(t testing.TB, funded ...common.Address) *Chain {
	t.Helper()

	alloc := types.GenesisAlloc{}
	balance := new(big.Int).Mul(big.NewInt(1000), big.NewInt(params.Ether))
	for _, addr := range funded {
		alloc[addr] = types.Account{Balance: balance}
	}

	backend := simulated.NewBackend(alloc)
	t.Cleanup(func() { _ = backend.Close() })

	return &Chain{
		Backend: backend,
		Client:  &Client{Client: backend.Client(), commit: func() { backend.Commit() }},
	}
}

// Client wraps the simulated client. It commits a block after each accepted
// transaction and can be told to fail sends.
type Client struct {
	simulated.Client

	commit func()

	mu      sync.Mutex
	sent    []*types.Transaction
	sendErr error
}

// SendTransaction implements ethereum.TransactionSender.
func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	c.mu.Lock()
	sendErr := c.sendErr
	c.mu.Unlock()
	if sendErr != nil {
		return sendErr
	}

	if err := c.Client.SendTransaction(ctx, tx); err != nil {
		return err
	}
	c.mu.Lock()
	c.sent = append(c.sent, tx)
	c.mu.Unlock()
	c.commit()
	return nil
}

// Sent returns the transactions accepted so far.
func (c *Client) Sent() []*types.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*types.Transaction(nil), c.sent...)
}

// FailSends makes every later SendTransaction return err.
func (c *Client) FailSends(err error) {
	c.mu.Lock()
	c.sendErr = err
	c.mu.Unlock()
}

// Owner calls an Owned contract and returns the stored address.
func (c *Chain) Owner(ctx context.Context, contract common.Address) (common.Address, error) {
	out, err := c.Client.CallContract(ctx, ethereum.CallMsg{To: &contract}, nil)
	if err != nil {
		return common.Address{}, err
	}
	if len(out) != 32 {
		return common.Address{}, errors.New("unexpected return size")
	}
	return common.BytesToAddress(out), nil
}
