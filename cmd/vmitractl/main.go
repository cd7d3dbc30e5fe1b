package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vmitra/vmitra/internal/cmd/vmitractl"
)

func main() {
	root, err := vmitractl.NewRootCommand(os.LookupEnv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vmitractl: %v\n", err)
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "vmitractl: %v\n", err)
		os.Exit(1)
	}
}
