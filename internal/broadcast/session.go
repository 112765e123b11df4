// Package broadcast signs and sends transactions for one deployer key.
//
// A Session replaces the ambient "start broadcast / stop broadcast" context
// of scripting frameworks with an explicit value: Open acquires it, every
// transaction goes through it, and Close releases the signer. Run wraps the
// three so the signer is released on every exit path.
package broadcast

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	mytoken "github.com/manzur349/my-token"
	"github.com/manzur349/my-token/internal/artifact"
	"github.com/manzur349/my-token/internal/keys"
)

// Defaults applied by Options.withDefaults.
const (
	DefaultGasLimitBufferPercent = 20
	DefaultReceiptTimeout        = 2 * time.Minute
)

// Backend is the subset of an Ethereum RPC client a session needs.
// *ethclient.Client satisfies it.
type Backend interface {
	ethereum.ChainIDReader
	ethereum.GasEstimator
	ethereum.GasPricer
	ethereum.GasPricer1559
	ethereum.TransactionSender

	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
}

// Options tune how a session prices and waits for transactions.
type Options struct {
	// ExpectedChainID, when set and non-zero, must match the backend's chain ID.
	ExpectedChainID *big.Int
	// Legacy sends type-0 transactions priced with eth_gasPrice.
	Legacy bool
	// GasPriceBumpPercent raises the suggested gas price (legacy) or tip (dynamic).
	GasPriceBumpPercent uint64
	// GasLimitBufferPercent is added on top of the gas estimate. Zero selects
	// DefaultGasLimitBufferPercent.
	GasLimitBufferPercent uint64
	// ReceiptTimeout bounds the wait for each receipt.
	ReceiptTimeout time.Duration
	Logger         *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.GasLimitBufferPercent == 0 {
		o.GasLimitBufferPercent = DefaultGasLimitBufferPercent
	}
	if o.ReceiptTimeout <= 0 {
		o.ReceiptTimeout = DefaultReceiptTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Session is an open broadcast context for one key on one chain.
// It is not safe for concurrent use.
type Session struct {
	backend Backend
	signer  *keys.Signer
	opts    Options
	logger  *slog.Logger

	chainID *big.Int
	from    common.Address
	nonce   uint64
	records []mytoken.TxRecord
	closed  bool
}

// Open starts a broadcast session keyed by key. It reads the chain ID and the
// pending nonce of the derived address from backend.
func Open(ctx context.Context, backend Backend, key *ecdsa.PrivateKey, opts Options) (*Session, error) {
	opts = opts.withDefaults()

	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, mytoken.WrapTxError("get chain ID", common.Hash{}, err)
	}
	if want := opts.ExpectedChainID; want != nil && want.Sign() != 0 && want.Cmp(chainID) != 0 {
		return nil, mytoken.NewConfigError("chain_id",
			fmt.Errorf("%w: expected %s, got %s", mytoken.ErrChainIDMismatch, want, chainID))
	}

	if key == nil {
		return nil, mytoken.NewConfigError(mytoken.PrivateKeyEnv, mytoken.ErrMissingPrivateKey)
	}
	signer, err := keys.NewSigner(key, chainID)
	if err != nil {
		return nil, mytoken.NewConfigError("chain_id", err)
	}

	nonce, err := backend.PendingNonceAt(ctx, signer.Address())
	if err != nil {
		return nil, mytoken.WrapTxError("get nonce", common.Hash{}, err)
	}

	logger := opts.Logger.With(slog.String("sender", signer.Address().Hex()))
	logger.Info("broadcast session opened",
		slog.String("chain_id", chainID.String()),
		slog.Uint64("nonce", nonce),
	)

	return &Session{
		backend: backend,
		signer:  signer,
		opts:    opts,
		logger:  logger,
		chainID: chainID,
		from:    signer.Address(),
		nonce:   nonce,
	}, nil
}

// Run opens a session, calls fn with it and closes it, whatever fn returns.
func Run(ctx context.Context, backend Backend, key *ecdsa.PrivateKey, opts Options, fn func(*Session) error) error {
	s, err := Open(ctx, backend, key, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	return fn(s)
}

// Close releases the signer. It is safe to call more than once.
// Records stay readable after Close.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.signer = nil
	s.logger.Info("broadcast session closed", slog.Int("transactions", len(s.records)))
	return nil
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	return s.closed
}

// Address returns the sender address.
func (s *Session) Address() common.Address {
	return s.from
}

// ChainID returns the chain the session signs for.
func (s *Session) ChainID() *big.Int {
	return new(big.Int).Set(s.chainID)
}

// Records returns the transactions sent so far, in broadcast order.
func (s *Session) Records() []mytoken.TxRecord {
	return append([]mytoken.TxRecord(nil), s.records...)
}

// Deploy creates art with the given constructor arguments and waits for it to be mined.
func (s *Session) Deploy(ctx context.Context, art *artifact.Artifact, args ...any) (*mytoken.Deployment, error) {
	if s.closed {
		return nil, mytoken.WrapTxError("deploy "+art.Name, common.Hash{}, mytoken.ErrSessionClosed)
	}

	data, err := art.DeployData(args...)
	if err != nil {
		return nil, err
	}

	rec := mytoken.TxRecord{
		Kind:         mytoken.TxKindCreate,
		ContractName: art.Name,
		Arguments:    artifact.FormatArgs(args...),
	}
	receipt, err := s.send(ctx, nil, nil, data, &rec)
	if err != nil {
		return nil, err
	}

	s.logger.Info("contract deployed",
		slog.String("contract", art.Name),
		slog.String("address", receipt.ContractAddress.Hex()),
		slog.String("tx_hash", receipt.TxHash.Hex()),
		slog.Uint64("gas_used", receipt.GasUsed),
	)

	return &mytoken.Deployment{
		ContractName: art.Name,
		Address:      receipt.ContractAddress,
		TxHash:       receipt.TxHash,
		Deployer:     s.from,
		Arguments:    rec.Arguments,
		ChainID:      s.ChainID(),
		BlockNumber:  receipt.BlockNumber.Uint64(),
		GasUsed:      receipt.GasUsed,
	}, nil
}

// Transact sends a call transaction to a contract and waits for it to be mined.
func (s *Session) Transact(ctx context.Context, to common.Address, data []byte) (*types.Receipt, error) {
	if s.closed {
		return nil, mytoken.WrapTxError("transact", common.Hash{}, mytoken.ErrSessionClosed)
	}
	rec := mytoken.TxRecord{Kind: mytoken.TxKindCall}
	return s.send(ctx, &to, nil, data, &rec)
}

// SendValue transfers value wei to to and waits for it to be mined.
func (s *Session) SendValue(ctx context.Context, to common.Address, value *big.Int) (*types.Receipt, error) {
	if s.closed {
		return nil, mytoken.WrapTxError("send value", common.Hash{}, mytoken.ErrSessionClosed)
	}
	if value == nil || value.Sign() <= 0 {
		return nil, mytoken.WrapTxError("send value", common.Hash{}, fmt.Errorf("value must be positive, got %v", value))
	}
	rec := mytoken.TxRecord{Kind: mytoken.TxKindCall, Value: new(big.Int).Set(value)}
	return s.send(ctx, &to, rec.Value, nil, &rec)
}

// send estimates, prices, signs, broadcasts and waits for one transaction.
// A nil value sends no ether.
func (s *Session) send(ctx context.Context, to *common.Address, value *big.Int, data []byte, rec *mytoken.TxRecord) (*types.Receipt, error) {
	if value == nil {
		value = new(big.Int)
	}
	gasLimit, err := s.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  s.from,
		To:    to,
		Value: value,
		Data:  data,
	})
	if err != nil {
		return nil, mytoken.WrapTxError("estimate gas", common.Hash{}, err)
	}
	estimated := gasLimit
	gasLimit = addPercent(gasLimit, s.opts.GasLimitBufferPercent)
	s.logger.Debug("gas estimated",
		slog.Uint64("estimate", estimated),
		slog.Uint64("gas_limit", gasLimit),
	)

	tx, err := s.buildTx(ctx, to, value, gasLimit, data)
	if err != nil {
		return nil, err
	}

	signedTx, err := s.signer.SignTx(tx)
	if err != nil {
		return nil, mytoken.WrapTxError("sign transaction", common.Hash{}, err)
	}

	if err := s.backend.SendTransaction(ctx, signedTx); err != nil {
		return nil, mytoken.WrapTxError("send transaction", signedTx.Hash(), err)
	}

	rec.Hash = signedTx.Hash()
	rec.From = s.from
	rec.To = to
	rec.Nonce = s.nonce
	rec.GasLimit = gasLimit
	rec.Status = mytoken.TxStatusPending
	s.records = append(s.records, *rec)
	idx := len(s.records) - 1
	s.nonce++

	s.logger.Info("transaction sent",
		slog.String("kind", string(rec.Kind)),
		slog.String("tx_hash", rec.Hash.Hex()),
		slog.Uint64("nonce", rec.Nonce),
		slog.Uint64("gas_limit", gasLimit),
	)

	receipt, err := s.waitMined(ctx, signedTx)
	if err != nil {
		return nil, mytoken.WrapTxError("wait for receipt", signedTx.Hash(), err)
	}

	r := &s.records[idx]
	r.BlockNumber = receipt.BlockNumber.Uint64()
	r.GasUsed = receipt.GasUsed
	if to == nil {
		addr := receipt.ContractAddress
		r.ContractAddress = &addr
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		r.Status = mytoken.TxStatusReverted
		return nil, mytoken.WrapTxError("transaction", signedTx.Hash(), mytoken.ErrDeploymentReverted)
	}
	r.Status = mytoken.TxStatusSuccess

	return receipt, nil
}

func (s *Session) waitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, s.opts.ReceiptTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, s.backend, tx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w after %s", mytoken.ErrReceiptTimeout, s.opts.ReceiptTimeout)
		}
		return nil, err
	}
	return receipt, nil
}

// buildTx prices an unsigned transaction. Dynamic fee transactions fall back
// to legacy pricing on chains without a base fee.
func (s *Session) buildTx(ctx context.Context, to *common.Address, value *big.Int, gasLimit uint64, data []byte) (*types.Transaction, error) {
	if !s.opts.Legacy {
		head, err := s.backend.HeaderByNumber(ctx, nil)
		if err != nil {
			return nil, mytoken.WrapTxError("get latest header", common.Hash{}, err)
		}
		if head.BaseFee != nil {
			tip, err := s.backend.SuggestGasTipCap(ctx)
			if err != nil {
				return nil, mytoken.WrapTxError("suggest gas tip", common.Hash{}, err)
			}
			tip = bumpPercent(tip, s.opts.GasPriceBumpPercent)
			feeCap := new(big.Int).Add(new(big.Int).Mul(head.BaseFee, big.NewInt(2)), tip)

			return types.NewTx(&types.DynamicFeeTx{
				ChainID:   s.ChainID(),
				Nonce:     s.nonce,
				GasTipCap: tip,
				GasFeeCap: feeCap,
				Gas:       gasLimit,
				To:        to,
				Value:     value,
				Data:      data,
			}), nil
		}
		s.logger.Debug("chain has no base fee, using legacy pricing")
	}

	gasPrice, err := s.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, mytoken.WrapTxError("suggest gas price", common.Hash{}, err)
	}
	gasPrice = bumpPercent(gasPrice, s.opts.GasPriceBumpPercent)

	return types.NewTx(&types.LegacyTx{
		Nonce:    s.nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       to,
		Value:    value,
		Data:     data,
	}), nil
}

func addPercent(v, pct uint64) uint64 {
	return v + v*pct/100
}

func bumpPercent(v *big.Int, pct uint64) *big.Int {
	if pct == 0 {
		return new(big.Int).Set(v)
	}
	out := new(big.Int).Mul(v, new(big.Int).SetUint64(100+pct))
	return out.Div(out, big.NewInt(100))
}
