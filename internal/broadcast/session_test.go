package broadcast

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mytoken "github.com/manzur349/my-token"
	"github.com/manzur349/my-token/internal/artifact"
	"github.com/manzur349/my-token/internal/keys"
	"github.com/manzur349/my-token/internal/testchain"
)

// Anvil account 0 (DO NOT use outside local networks).
const anvilKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func testKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := keys.ParsePrivateKey(anvilKey)
	require.NoError(t, err)
	return key
}

func testOptions() Options {
	return Options{
		GasLimitBufferPercent: DefaultGasLimitBufferPercent,
		ReceiptTimeout:        10 * time.Second,
		Logger:                slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func loadArtifact(t *testing.T, bytecode string) *artifact.Artifact {
	t.Helper()
	art, err := artifact.Parse(testchain.ArtifactJSON(bytecode))
	require.NoError(t, err)
	art.Name = "Owned"
	return art
}

func TestSession_Deploy(t *testing.T) {
	for _, legacy := range []bool{false, true} {
		name := "dynamic fee"
		wantType := uint8(types.DynamicFeeTxType)
		if legacy {
			name = "legacy"
			wantType = types.LegacyTxType
		}

		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := testKey(t)
			chain := testchain.New(t, keys.Address(key))
			opts := testOptions()
			opts.Legacy = legacy

			s, err := Open(ctx, chain.Client, key, opts)
			require.NoError(t, err)
			defer s.Close()

			owner := s.Address()
			dep, err := s.Deploy(ctx, loadArtifact(t, testchain.OwnedBytecode), owner)
			require.NoError(t, err)

			assert.NotEqual(t, common.Address{}, dep.Address)
			assert.Equal(t, "Owned", dep.ContractName)
			assert.Equal(t, owner, dep.Deployer)
			assert.Equal(t, []string{owner.Hex()}, dep.Arguments)
			assert.Equal(t, int64(1337), dep.ChainID.Int64())
			assert.NotZero(t, dep.GasUsed)

			stored, err := chain.Owner(ctx, dep.Address)
			require.NoError(t, err)
			assert.Equal(t, owner, stored)

			sent := chain.Client.Sent()
			require.Len(t, sent, 1)
			assert.Equal(t, wantType, sent[0].Type())
			assert.Nil(t, sent[0].To())
			assert.Equal(t, dep.TxHash, sent[0].Hash())

			records := s.Records()
			require.Len(t, records, 1)
			rec := records[0]
			assert.Equal(t, mytoken.TxKindCreate, rec.Kind)
			assert.Equal(t, mytoken.TxStatusSuccess, rec.Status)
			assert.Equal(t, uint64(0), rec.Nonce)
			require.NotNil(t, rec.ContractAddress)
			assert.Equal(t, dep.Address, *rec.ContractAddress)
			assert.Equal(t, dep.GasUsed, rec.GasUsed)
			assert.GreaterOrEqual(t, rec.GasLimit, rec.GasUsed)
		})
	}
}

func TestSession_DeployTwice(t *testing.T) {
	ctx := context.Background()
	key := testKey(t)
	chain := testchain.New(t, keys.Address(key))

	s, err := Open(ctx, chain.Client, key, testOptions())
	require.NoError(t, err)
	defer s.Close()

	art := loadArtifact(t, testchain.OwnedBytecode)
	first, err := s.Deploy(ctx, art, s.Address())
	require.NoError(t, err)
	second, err := s.Deploy(ctx, art, s.Address())
	require.NoError(t, err)

	assert.NotEqual(t, first.Address, second.Address)

	records := s.Records()
	require.Len(t, records, 2)
	assert.Equal(t, uint64(0), records[0].Nonce)
	assert.Equal(t, uint64(1), records[1].Nonce)
}

func TestSession_Transact(t *testing.T) {
	ctx := context.Background()
	key := testKey(t)
	chain := testchain.New(t, keys.Address(key))

	s, err := Open(ctx, chain.Client, key, testOptions())
	require.NoError(t, err)
	defer s.Close()

	dep, err := s.Deploy(ctx, loadArtifact(t, testchain.OwnedBytecode), s.Address())
	require.NoError(t, err)

	receipt, err := s.Transact(ctx, dep.Address, []byte{0x8d, 0xa5, 0xcb, 0x5b})
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)

	records := s.Records()
	require.Len(t, records, 2)
	call := records[1]
	assert.Equal(t, mytoken.TxKindCall, call.Kind)
	require.NotNil(t, call.To)
	assert.Equal(t, dep.Address, *call.To)
	assert.Nil(t, call.ContractAddress)
	assert.Equal(t, uint64(1), call.Nonce)
}

func TestSession_SendValue(t *testing.T) {
	ctx := context.Background()
	key := testKey(t)
	chain := testchain.New(t, keys.Address(key))
	to := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	value := big.NewInt(1_000_000)

	s, err := Open(ctx, chain.Client, key, testOptions())
	require.NoError(t, err)
	defer s.Close()

	receipt, err := s.SendValue(ctx, to, value)
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)

	balance, err := chain.Client.BalanceAt(ctx, to, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, balance.Cmp(value))

	records := s.Records()
	require.Len(t, records, 1)
	assert.Equal(t, mytoken.TxKindCall, records[0].Kind)
	require.NotNil(t, records[0].Value)
	assert.Equal(t, 0, records[0].Value.Cmp(value))

	sent := chain.Client.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, 0, sent[0].Value().Cmp(value))

	_, err = s.SendValue(ctx, to, big.NewInt(0))
	assert.ErrorIs(t, err, mytoken.ErrTransaction)
	assert.Len(t, chain.Client.Sent(), 1)
}

// zeroChainClient reports chain ID 0.
type zeroChainClient struct {
	*testchain.Client
}

func (c zeroChainClient) ChainID(context.Context) (*big.Int, error) {
	return big.NewInt(0), nil
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	key := testKey(t)

	t.Run("matching expected chain ID", func(t *testing.T) {
		chain := testchain.New(t, keys.Address(key))
		opts := testOptions()
		opts.ExpectedChainID = big.NewInt(1337)

		s, err := Open(ctx, chain.Client, key, opts)
		require.NoError(t, err)
		assert.Equal(t, keys.Address(key), s.Address())
		assert.Equal(t, int64(1337), s.ChainID().Int64())
		require.NoError(t, s.Close())
	})

	t.Run("zero expected chain ID skips the check", func(t *testing.T) {
		chain := testchain.New(t, keys.Address(key))
		opts := testOptions()
		opts.ExpectedChainID = big.NewInt(0)

		s, err := Open(ctx, chain.Client, key, opts)
		require.NoError(t, err)
		require.NoError(t, s.Close())
	})

	t.Run("non-positive backend chain ID is filed under chain_id", func(t *testing.T) {
		chain := testchain.New(t, keys.Address(key))

		_, err := Open(ctx, zeroChainClient{chain.Client}, key, testOptions())
		require.Error(t, err)
		assert.ErrorIs(t, err, mytoken.ErrConfiguration)

		var cfgErr *mytoken.ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "chain_id", cfgErr.Field)
		assert.Empty(t, chain.Client.Sent())
	})

	t.Run("nil key is filed under PRIVATE_KEY", func(t *testing.T) {
		chain := testchain.New(t, keys.Address(key))

		_, err := Open(ctx, chain.Client, nil, testOptions())
		assert.ErrorIs(t, err, mytoken.ErrMissingPrivateKey)

		var cfgErr *mytoken.ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, mytoken.PrivateKeyEnv, cfgErr.Field)
	})

	t.Run("chain ID mismatch is a configuration error", func(t *testing.T) {
		chain := testchain.New(t, keys.Address(key))
		opts := testOptions()
		opts.ExpectedChainID = big.NewInt(31337)

		_, err := Open(ctx, chain.Client, key, opts)
		require.Error(t, err)
		assert.ErrorIs(t, err, mytoken.ErrConfiguration)
		assert.ErrorIs(t, err, mytoken.ErrChainIDMismatch)
		assert.Empty(t, chain.Client.Sent())
	})
}

func TestRun_ClosesSession(t *testing.T) {
	ctx := context.Background()
	key := testKey(t)

	t.Run("after success", func(t *testing.T) {
		chain := testchain.New(t, keys.Address(key))
		var got *Session

		err := Run(ctx, chain.Client, key, testOptions(), func(s *Session) error {
			got = s
			assert.False(t, s.Closed())
			_, err := s.Deploy(ctx, loadArtifact(t, testchain.OwnedBytecode), s.Address())
			return err
		})
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.True(t, got.Closed())
		assert.Len(t, got.Records(), 1)
	})

	t.Run("after a failing deployment", func(t *testing.T) {
		chain := testchain.New(t, keys.Address(key))
		var got *Session

		err := Run(ctx, chain.Client, key, testOptions(), func(s *Session) error {
			got = s
			_, err := s.Deploy(ctx, loadArtifact(t, testchain.RevertingBytecode), s.Address())
			return err
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, mytoken.ErrTransaction)
		require.NotNil(t, got)
		assert.True(t, got.Closed())
		assert.Empty(t, chain.Client.Sent())
	})

	t.Run("after a panic", func(t *testing.T) {
		chain := testchain.New(t, keys.Address(key))
		var got *Session

		assert.Panics(t, func() {
			_ = Run(ctx, chain.Client, key, testOptions(), func(s *Session) error {
				got = s
				panic("boom")
			})
		})
		require.NotNil(t, got)
		assert.True(t, got.Closed())
	})

	t.Run("closed session refuses work", func(t *testing.T) {
		chain := testchain.New(t, keys.Address(key))
		var got *Session

		require.NoError(t, Run(ctx, chain.Client, key, testOptions(), func(s *Session) error {
			got = s
			return nil
		}))

		_, err := got.Deploy(ctx, loadArtifact(t, testchain.OwnedBytecode), got.Address())
		assert.ErrorIs(t, err, mytoken.ErrSessionClosed)
		_, err = got.Transact(ctx, got.Address(), nil)
		assert.ErrorIs(t, err, mytoken.ErrSessionClosed)
		assert.NoError(t, got.Close())
		assert.Empty(t, chain.Client.Sent())
	})
}

func TestSession_SendFailure(t *testing.T) {
	ctx := context.Background()
	key := testKey(t)
	chain := testchain.New(t, keys.Address(key))
	chain.Client.FailSends(errors.New("connection refused"))

	s, err := Open(ctx, chain.Client, key, testOptions())
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Deploy(ctx, loadArtifact(t, testchain.OwnedBytecode), s.Address())
	require.Error(t, err)
	assert.ErrorIs(t, err, mytoken.ErrTransaction)
	assert.Contains(t, err.Error(), "connection refused")

	var txErr *mytoken.TxError
	require.ErrorAs(t, err, &txErr)
	assert.Equal(t, "send transaction", txErr.Op)
	assert.Empty(t, s.Records())
}

// unminedClient accepts transactions without ever mining them.
type unminedClient struct {
	*testchain.Client
}

func (c unminedClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return c.Client.Client.SendTransaction(ctx, tx)
}

func TestSession_ReceiptTimeout(t *testing.T) {
	ctx := context.Background()
	key := testKey(t)
	chain := testchain.New(t, keys.Address(key))
	opts := testOptions()
	opts.ReceiptTimeout = 50 * time.Millisecond

	s, err := Open(ctx, unminedClient{chain.Client}, key, opts)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Deploy(ctx, loadArtifact(t, testchain.OwnedBytecode), s.Address())
	require.Error(t, err)
	assert.ErrorIs(t, err, mytoken.ErrReceiptTimeout)
	assert.ErrorIs(t, err, mytoken.ErrTransaction)

	records := s.Records()
	require.Len(t, records, 1)
	assert.Equal(t, mytoken.TxStatusPending, records[0].Status)
}

func TestOptions_WithDefaults(t *testing.T) {
	got := Options{}.withDefaults()
	assert.Equal(t, uint64(DefaultGasLimitBufferPercent), got.GasLimitBufferPercent)
	assert.Equal(t, DefaultReceiptTimeout, got.ReceiptTimeout)
	assert.NotNil(t, got.Logger)

	set := Options{GasLimitBufferPercent: 50, ReceiptTimeout: time.Second}.withDefaults()
	assert.Equal(t, uint64(50), set.GasLimitBufferPercent)
	assert.Equal(t, time.Second, set.ReceiptTimeout)
}

func TestSession_DefaultGasLimitBuffer(t *testing.T) {
	ctx := context.Background()
	key := testKey(t)
	chain := testchain.New(t, keys.Address(key))
	to := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")

	opts := testOptions()
	opts.GasLimitBufferPercent = 0
	s, err := Open(ctx, chain.Client, key, opts)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.SendValue(ctx, to, big.NewInt(1))
	require.NoError(t, err)

	// A plain value transfer estimates to exactly 21000 gas.
	records := s.Records()
	require.Len(t, records, 1)
	assert.Equal(t, addPercent(params.TxGas, DefaultGasLimitBufferPercent), records[0].GasLimit)
}

func TestBumpPercent(t *testing.T) {
	tests := []struct {
		in   int64
		pct  uint64
		want int64
	}{
		{in: 1_000_000_000, pct: 0, want: 1_000_000_000},
		{in: 1_000_000_000, pct: 50, want: 1_500_000_000},
		{in: 3, pct: 10, want: 3},
		{in: 100, pct: 100, want: 200},
	}
	for _, tt := range tests {
		in := big.NewInt(tt.in)
		got := bumpPercent(in, tt.pct)
		assert.Equal(t, tt.want, got.Int64())
		assert.Equal(t, tt.in, in.Int64(), "input must not be modified")
	}
}

func TestAddPercent(t *testing.T) {
	assert.Equal(t, uint64(120), addPercent(100, 20))
	assert.Equal(t, uint64(53000), addPercent(53000, 0))
	assert.Equal(t, uint64(25200), addPercent(21000, 20))
}
