// Command mytoken deploys the MyToken ERC-20 contract.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/manzur349/my-token/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
