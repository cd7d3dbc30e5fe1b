package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	vmitracmd "github.com/vmitra/vmitra/internal/cmd/vmitra"
)

func main() {
	cfg, err := vmitracmd.ParseConfig(flag.CommandLine, os.Args[1:], os.LookupEnv)
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := vmitracmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
