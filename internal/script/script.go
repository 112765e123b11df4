// Package script runs the MyToken deployment: read the deployer key, open a
// broadcast session, deploy the token with the deployer as initial owner and
// close the session.
package script

import (
	"context"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	mytoken "github.com/manzur349/my-token"
	"github.com/manzur349/my-token/internal/artifact"
	"github.com/manzur349/my-token/internal/broadcast"
	"github.com/manzur349/my-token/internal/config"
	"github.com/manzur349/my-token/internal/keys"
	"github.com/manzur349/my-token/internal/metrics"
)

// Client is what the deployer needs from an RPC connection.
// *ethclient.Client satisfies it.
type Client interface {
	broadcast.Backend
	ethereum.ContractCaller
}

// DialFunc connects to an RPC endpoint. The returned func releases the connection.
type DialFunc func(ctx context.Context, url string) (Client, func(), error)

// DialRPC dials url with ethclient.
func DialRPC(ctx context.Context, url string) (Client, func(), error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, nil, err
	}
	return client, client.Close, nil
}

// Deps are the outside collaborators of a run. Zero values fall back to the
// process environment, DialRPC, slog.Default and time.Now. Metrics is optional.
type Deps struct {
	LookupEnv keys.LookupFunc
	Dial      DialFunc
	Logger    *slog.Logger
	Metrics   *metrics.Recorder
	Now       func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Dial == nil {
		d.Dial = DialRPC
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// Result is the outcome of a run that got as far as opening a session.
type Result struct {
	Deployment *mytoken.Deployment
	Record     *broadcast.RunRecord
	// RecordPath is the run-latest.json path, empty if the record could not be written.
	RecordPath string
	// Session is closed by the time Run returns. Its records stay readable.
	Session *broadcast.Session
}

// Run performs one deployment as described by cfg.
//
// The key is parsed before anything touches the network, so a missing or
// malformed PRIVATE_KEY never dials the RPC endpoint. The returned Result is
// nil when the run fails before a session is opened; otherwise it is returned
// even on failure so callers can inspect what was broadcast.
func Run(ctx context.Context, cfg *config.Config, deps Deps) (*Result, error) {
	deps = deps.withDefaults()
	start := deps.Now()

	res, err := run(ctx, cfg, deps, start)

	elapsed := deps.Now().Sub(start)
	if deps.Metrics != nil {
		if err != nil {
			deps.Metrics.ObserveFailure(elapsed, failureResult(err))
		} else {
			deps.Metrics.ObserveSuccess(elapsed, res.Deployment.GasUsed, deps.Now())
		}
	}
	return res, err
}

func run(ctx context.Context, cfg *config.Config, deps Deps, start time.Time) (*Result, error) {
	logger := deps.Logger

	key, err := keys.FromEnv(deps.LookupEnv)
	if err != nil {
		return nil, err
	}
	owner := keys.Address(key)
	logger.Info("deployer key loaded", slog.String("deployer", owner.Hex()))

	art, err := artifact.Load(cfg.Artifact)
	if err != nil {
		return nil, err
	}
	if cfg.ContractName != "" {
		art.Name = cfg.ContractName
	}

	backend, closeBackend, err := deps.Dial(ctx, cfg.RPCURL)
	if err != nil {
		return nil, mytoken.WrapTxError("dial rpc", common.Hash{}, err)
	}
	if closeBackend != nil {
		defer closeBackend()
	}

	res := &Result{Record: broadcast.NewRunRecord(start)}
	logger = logger.With(slog.String("run_id", res.Record.RunID))

	err = broadcast.Run(ctx, backend, key, sessionOptions(cfg, logger), func(s *broadcast.Session) error {
		res.Session = s
		dep, err := s.Deploy(ctx, art, owner)
		if err != nil {
			return err
		}
		res.Deployment = dep
		return nil
	})
	if res.Session == nil {
		return nil, err
	}

	res.Record.Capture(res.Session)
	if err != nil {
		res.Record.Fail(err)
	} else {
		res.Deployment.RunID = res.Record.RunID
		res.Deployment.Duration = mytoken.Duration(deps.Now().Sub(start))
		res.Record.Deployment = res.Deployment
	}

	// A record write failure is logged only; the transaction is already on chain.
	path, werr := broadcast.WriteRecord(cfg.BroadcastDir, res.Record)
	if werr != nil {
		logger.Error("failed to write run record", slog.String("error", werr.Error()))
	} else {
		res.RecordPath = path
	}

	if err != nil {
		return res, err
	}

	logger.Info("deployment complete",
		slog.String("contract", res.Deployment.ContractName),
		slog.String("address", res.Deployment.Address.Hex()),
		slog.String("record", res.RecordPath),
	)
	return res, nil
}

func sessionOptions(cfg *config.Config, logger *slog.Logger) broadcast.Options {
	return broadcast.Options{
		ExpectedChainID:       new(big.Int).SetUint64(cfg.ChainID),
		Legacy:                cfg.Tx.Legacy,
		GasPriceBumpPercent:   cfg.Tx.GasPriceBumpPercent,
		GasLimitBufferPercent: cfg.Tx.GasLimitBufferPercent,
		ReceiptTimeout:        cfg.Tx.ReceiptTimeout,
		Logger:                logger,
	}
}

// DeployerAddress returns the address derived from PRIVATE_KEY without any
// network access.
func DeployerAddress(lookup keys.LookupFunc) (common.Address, error) {
	key, err := keys.FromEnv(lookup)
	if err != nil {
		return common.Address{}, err
	}
	return keys.Address(key), nil
}

func failureResult(err error) string {
	if mytoken.IsConfigError(err) {
		return metrics.ResultConfigError
	}
	return metrics.ResultTxError
}
