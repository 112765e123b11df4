package script

import (
	"context"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"

	mytoken "github.com/manzur349/my-token"
	"github.com/manzur349/my-token/internal/broadcast"
	"github.com/manzur349/my-token/internal/config"
	"github.com/manzur349/my-token/internal/keys"
	"github.com/manzur349/my-token/internal/token"
)

// SpenderFunding is the wei sent to the throwaway spender so it can pay for
// its transferFrom.
var SpenderFunding = big.NewInt(params.Ether / 100)

// Exercise moves tokens of the contract at tokenAddr from the PRIVATE_KEY
// account through transfer, approve and transferFrom and checks the result
// with token.Exercise. The spender and recipient are fresh keys; the spender
// is funded with SpenderFunding first. Meant for local and test networks.
func Exercise(ctx context.Context, cfg *config.Config, deps Deps, tokenAddr common.Address) (*token.ExerciseReport, error) {
	deps = deps.withDefaults()

	key, err := keys.FromEnv(deps.LookupEnv)
	if err != nil {
		return nil, err
	}
	spenderKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, mytoken.WrapTxError("generate spender key", common.Hash{}, err)
	}
	recipientKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, mytoken.WrapTxError("generate recipient key", common.Hash{}, err)
	}
	spender, recipient := keys.Address(spenderKey), keys.Address(recipientKey)

	backend, closeBackend, err := deps.Dial(ctx, cfg.RPCURL)
	if err != nil {
		return nil, mytoken.WrapTxError("dial rpc", common.Hash{}, err)
	}
	if closeBackend != nil {
		defer closeBackend()
	}

	logger := deps.Logger.With(slog.String("token", tokenAddr.Hex()))
	logger.Info("exercising token",
		slog.String("spender", spender.Hex()),
		slog.String("recipient", recipient.Hex()),
	)
	opts := sessionOptions(cfg, logger)
	tok := token.New(tokenAddr, backend)

	var rep *token.ExerciseReport
	err = broadcast.Run(ctx, backend, key, opts, func(owner *broadcast.Session) error {
		if _, err := owner.SendValue(ctx, spender, SpenderFunding); err != nil {
			return err
		}
		return broadcast.Run(ctx, backend, spenderKey, opts, func(s *broadcast.Session) error {
			var err error
			rep, err = token.Exercise(ctx, tok, owner, s, recipient, token.DefaultAmounts())
			return err
		})
	})
	if err != nil {
		return rep, err
	}

	logger.Info("token exercise passed",
		slog.String("recipient_balance", rep.RecipientBalance.String()),
		slog.String("remaining_allowance", rep.RemainingAllowance.String()),
	)
	return rep, nil
}
