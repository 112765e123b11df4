// Package cli implements the mytoken command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	mytoken "github.com/manzur349/my-token"
	"github.com/manzur349/my-token/internal/config"
	"github.com/manzur349/my-token/internal/keys"
	"github.com/manzur349/my-token/internal/logging"
	"github.com/manzur349/my-token/internal/script"
)

// Exit codes.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitConfigError = 2
)

// Option customizes the root command.
type Option func(*app)

// WithLookupEnv replaces os.LookupEnv for PRIVATE_KEY.
func WithLookupEnv(lookup keys.LookupFunc) Option {
	return func(a *app) { a.lookupEnv = lookup }
}

// WithDialer replaces the RPC dialer.
func WithDialer(dial script.DialFunc) Option {
	return func(a *app) { a.dial = dial }
}

// WithOutput redirects command output and logs.
func WithOutput(out, errOut io.Writer) Option {
	return func(a *app) {
		a.out = out
		a.errOut = errOut
	}
}

type app struct {
	v         *viper.Viper
	cfgFile   string
	envFile   string
	lookupEnv keys.LookupFunc
	dial      script.DialFunc
	out       io.Writer
	errOut    io.Writer

	cfg    *config.Config
	logger *slog.Logger
}

// NewRootCmd builds the mytoken command tree.
func NewRootCmd(opts ...Option) *cobra.Command {
	a := &app{
		v:         config.New(),
		lookupEnv: os.LookupEnv,
		dial:      script.DialRPC,
	}
	for _, opt := range opts {
		opt(a)
	}

	root := &cobra.Command{
		Use:   "mytoken",
		Short: "Deploy the MyToken ERC-20 contract",
		Long: `Deploy the MyToken ERC-20 contract with the key in PRIVATE_KEY.

The deployer address derived from the key becomes the token's initial owner.
Running mytoken without a subcommand is the same as "mytoken deploy".

PRIVATE_KEY accepts a 0x-prefixed hex or a decimal number. It may also be
set in a .env file in the working directory.

Examples:
  # Deploy to a local anvil node
  PRIVATE_KEY=0xac09... mytoken

  # Deploy to another network, checking its chain ID first
  mytoken deploy --rpc-url https://sepolia.example.org --chain-id 11155111

  # Print the deployer address without touching the network
  mytoken address`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		RunE: a.runDeploy,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default: mytoken.yaml in ., ./config or $HOME/.mytoken)")
	flags.StringVar(&a.envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	flags.String("rpc-url", "", "JSON-RPC endpoint (default "+mytoken.DefaultRPCURL+")")
	flags.Uint64("chain-id", 0, "expected chain ID, 0 skips the check")
	flags.String("artifact", "", "contract artifact JSON (default "+mytoken.DefaultArtifactPath+")")
	flags.String("broadcast-dir", "", "directory for run records (default broadcast/Deploy)")
	flags.Bool("legacy", false, "send legacy (type 0) transactions")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: text, json")
	flags.StringP("output", "o", "", "output format: text, json, yaml")

	for key, flag := range map[string]string{
		"rpc_url":       "rpc-url",
		"chain_id":      "chain-id",
		"artifact":      "artifact",
		"broadcast_dir": "broadcast-dir",
		"tx.legacy":     "legacy",
		"log.level":     "log-level",
		"log.format":    "log-format",
		"output.format": "output",
	} {
		_ = a.v.BindPFlag(key, flags.Lookup(flag))
	}

	if a.out != nil {
		root.SetOut(a.out)
	}
	if a.errOut != nil {
		root.SetErr(a.errOut)
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return mytoken.NewConfigError("flags", err)
	})

	root.AddCommand(
		newDeployCmd(a),
		newAddressCmd(a),
		newVerifyCmd(a),
	)
	return root
}

// setup loads the dotenv file and the configuration, then builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	if err := config.LoadDotEnv(a.envFile); err != nil {
		return err
	}
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	return nil
}

// Execute runs the command line with args and returns the process exit code.
func Execute(ctx context.Context, args []string, opts ...Option) int {
	root := NewRootCmd(opts...)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
	}
	return ExitCode(err)
}

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case mytoken.IsConfigError(err):
		return ExitConfigError
	default:
		return ExitFailure
	}
}
