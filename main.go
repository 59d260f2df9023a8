package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/samuelfneumann/rllaunch/experiments"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := experiments.GetRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
