package keys

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Signer signs transactions for one chain with a local private key.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    *big.Int
	signer     types.Signer
}

// NewSigner creates a Signer for chainID.
func NewSigner(key *ecdsa.PrivateKey, chainID *big.Int) (*Signer, error) {
	if key == nil {
		return nil, errors.New("nil private key")
	}
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, fmt.Errorf("invalid chain ID %v", chainID)
	}

	id := new(big.Int).Set(chainID)
	return &Signer{
		privateKey: key,
		address:    Address(key),
		chainID:    id,
		signer:     types.LatestSignerForChainID(id),
	}, nil
}

// Address returns the signer's Ethereum address.
func (s *Signer) Address() common.Address {
	return s.address
}

// ChainID returns the chain ID used for EIP-155 signing.
func (s *Signer) ChainID() *big.Int {
	return new(big.Int).Set(s.chainID)
}

// SignTx signs tx with the local key.
func (s *Signer) SignTx(tx *types.Transaction) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, s.signer, s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	return signed, nil
}

// Sender recovers the sender of a transaction signed for this chain.
func (s *Signer) Sender(tx *types.Transaction) (common.Address, error) {
	return types.Sender(s.signer, tx)
}
