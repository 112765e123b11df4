package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	mytoken "github.com/manzur349/my-token"
	"github.com/manzur349/my-token/internal/script"
	"github.com/manzur349/my-token/internal/token"
)

func newVerifyCmd(a *app) *cobra.Command {
	var tokenFlag, ownerFlag string
	var smoke bool

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check a deployed MyToken against its expected initial state",
		Long: `Read name, symbol, decimals, total supply and the owner's balance from a
deployed token and compare them with MyToken's initial state:
MyToken / MTK / 18 decimals / 1,000,000 tokens, all held by the owner.

The owner defaults to the address derived from PRIVATE_KEY.

With --smoke, a token that passes is then exercised from the PRIVATE_KEY
account: transfer to a fresh spender, approve it, and have it transferFrom to
a fresh recipient, checking balances and allowance after each step. The
spender is funded with 0.01 ether for gas. Use it on local or test networks
only: it moves real tokens.

Examples:
  mytoken verify --token 0x5FbDB2315678afecb367f032d93F642f64180aa3
  mytoken verify --token 0x5FbD... --owner 0xf39F... -o yaml
  mytoken verify --token 0x5FbD... --smoke`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if tokenFlag == "" {
				return mytoken.NewConfigError("token", fmt.Errorf("%w: --token is required", mytoken.ErrInvalidConfig))
			}
			if !common.IsHexAddress(tokenFlag) {
				return mytoken.NewConfigError("token", fmt.Errorf("%w: invalid address %q", mytoken.ErrInvalidConfig, tokenFlag))
			}

			var owner common.Address
			switch {
			case ownerFlag == "":
				addr, err := script.DeployerAddress(a.lookupEnv)
				if err != nil {
					return err
				}
				owner = addr
			case common.IsHexAddress(ownerFlag):
				owner = common.HexToAddress(ownerFlag)
			default:
				return mytoken.NewConfigError("owner", fmt.Errorf("%w: invalid address %q", mytoken.ErrInvalidConfig, ownerFlag))
			}

			if smoke {
				deployer, err := script.DeployerAddress(a.lookupEnv)
				if err != nil {
					return err
				}
				if deployer != owner {
					return mytoken.NewConfigError("owner", fmt.Errorf("%w: --smoke sends from %s, not the owner %s",
						mytoken.ErrInvalidConfig, deployer.Hex(), owner.Hex()))
				}
			}

			client, closeClient, err := a.dial(cmd.Context(), a.cfg.RPCURL)
			if err != nil {
				return mytoken.WrapTxError("dial rpc", common.Hash{}, err)
			}
			if closeClient != nil {
				defer closeClient()
			}

			rep, err := token.Verify(cmd.Context(), token.New(common.HexToAddress(tokenFlag), client), owner, token.DefaultExpectations())
			if rep == nil {
				return err
			}
			if smoke && err == nil {
				return runSmoke(cmd, a, rep)
			}

			perr := printResult(cmd.OutOrStdout(), a.cfg.Output.Format, rep, func(w io.Writer) {
				mark := "✓"
				if err != nil {
					mark = "✗"
				}
				fmt.Fprintf(w, "%s %s\n\n", mark, rep.Token.Hex())
				printReport(w, rep)
			})
			return errors.Join(err, perr)
		},
	}

	cmd.Flags().StringVar(&tokenFlag, "token", "", "deployed token address")
	cmd.Flags().StringVar(&ownerFlag, "owner", "", "expected owner (default: PRIVATE_KEY address)")
	cmd.Flags().BoolVar(&smoke, "smoke", false, "after verifying, send transfer/approve/transferFrom and check the results")

	return cmd
}

func printReport(w io.Writer, rep *token.Report) {
	fmt.Fprintf(w, "  Name:          %s\n", rep.Name)
	fmt.Fprintf(w, "  Symbol:        %s\n", rep.Symbol)
	fmt.Fprintf(w, "  Decimals:      %d\n", rep.Decimals)
	fmt.Fprintf(w, "  Total Supply:  %s\n", rep.TotalSupply)
	fmt.Fprintf(w, "  Owner:         %s\n", rep.Owner.Hex())
	fmt.Fprintf(w, "  Owner Balance: %s\n", rep.OwnerBalance)
}

// smokeResult is the json/yaml output of verify --smoke.
type smokeResult struct {
	Verify   *token.Report         `json:"verify" yaml:"verify"`
	Exercise *token.ExerciseReport `json:"exercise" yaml:"exercise"`
}

func runSmoke(cmd *cobra.Command, a *app, rep *token.Report) error {
	ex, err := script.Exercise(cmd.Context(), a.cfg, script.Deps{
		LookupEnv: a.lookupEnv,
		Dial:      a.dial,
		Logger:    a.logger,
	}, rep.Token)
	if ex == nil {
		return err
	}

	perr := printResult(cmd.OutOrStdout(), a.cfg.Output.Format, smokeResult{Verify: rep, Exercise: ex}, func(w io.Writer) {
		mark := "✓"
		if err != nil {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s\n\n", mark, rep.Token.Hex())
		printReport(w, rep)
		fmt.Fprintf(w, "\n  Spender:             %s (balance %s)\n", ex.Spender.Hex(), ex.SpenderBalance)
		fmt.Fprintf(w, "  Recipient:           %s (balance %s)\n", ex.Recipient.Hex(), ex.RecipientBalance)
		fmt.Fprintf(w, "  Remaining Allowance: %s\n", ex.RemainingAllowance)
		fmt.Fprintf(w, "  Overdraft Rejected:  %t\n", ex.OverdraftRejected)
		fmt.Fprintf(w, "  Unapproved Rejected: %t\n", ex.UnapprovedRejected)
	})
	return errors.Join(err, perr)
}
