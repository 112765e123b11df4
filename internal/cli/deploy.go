package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/manzur349/my-token/internal/metrics"
	"github.com/manzur349/my-token/internal/script"
)

func newDeployCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "deploy",
		Short: "Deploy MyToken with the PRIVATE_KEY address as owner",
		Long: `Deploy the contract in the configured artifact, passing the address derived
from PRIVATE_KEY as its only constructor argument.

The transaction is simulated first, so a reverting constructor fails before
anything is broadcast. A run record is written to
<broadcast-dir>/<chain-id>/run-latest.json whether the run succeeds or not.

Examples:
  mytoken deploy --rpc-url http://localhost:8545
  mytoken deploy --legacy -o json`,
		Args: cobra.NoArgs,
		RunE: a.runDeploy,
	}
}

func (a *app) runDeploy(cmd *cobra.Command, _ []string) error {
	recorder := metrics.NewRecorder()

	res, err := script.Run(cmd.Context(), a.cfg, script.Deps{
		LookupEnv: a.lookupEnv,
		Dial:      a.dial,
		Logger:    a.logger,
		Metrics:   recorder,
	})

	if werr := recorder.WriteTextfile(a.cfg.Metrics.Textfile); werr != nil {
		a.logger.Error("failed to write metrics", slog.String("error", werr.Error()))
	}
	if err != nil {
		return err
	}

	dep := res.Deployment
	return printResult(cmd.OutOrStdout(), a.cfg.Output.Format, dep, func(w io.Writer) {
		fmt.Fprintf(w, "✓ %s deployed!\n\n", dep.ContractName)
		fmt.Fprintf(w, "  Address:  %s\n", dep.Address.Hex())
		fmt.Fprintf(w, "  TX Hash:  %s\n", dep.TxHash.Hex())
		fmt.Fprintf(w, "  Owner:    %s\n", dep.Deployer.Hex())
		fmt.Fprintf(w, "  Chain:    %s\n", dep.ChainID)
		fmt.Fprintf(w, "  Block:    %d\n", dep.BlockNumber)
		fmt.Fprintf(w, "  Gas Used: %d\n", dep.GasUsed)
		fmt.Fprintf(w, "  Run ID:   %s\n", dep.RunID)
		if res.RecordPath != "" {
			fmt.Fprintf(w, "  Record:   %s\n", res.RecordPath)
		}
	})
}
