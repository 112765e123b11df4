package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/manzur349/my-token/internal/script"
)

func newAddressCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "address",
		Short: "Print the deployer address derived from PRIVATE_KEY",
		Long: `Print the address derived from PRIVATE_KEY. No network calls are made.

Use it to check which account needs funding before a deployment.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr, err := script.DeployerAddress(a.lookupEnv)
			if err != nil {
				return err
			}
			out := struct {
				Address string `json:"address" yaml:"address"`
			}{Address: addr.Hex()}

			return printResult(cmd.OutOrStdout(), a.cfg.Output.Format, out, func(w io.Writer) {
				fmt.Fprintln(w, out.Address)
			})
		},
	}
}
