package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/cmd/crmctl/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand(cli.Connect).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "crmctl:", err)
		stop()
		os.Exit(1)
	}
}
