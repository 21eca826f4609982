// Command pinctl watches and edits the pin collection, uploads images through
// the relay and manages editor accounts.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"

	"pinworld/internal/config"
	"pinworld/internal/logging"
)

func main() {
	cfg := config.Load()
	log := logging.New(os.Stderr, cfg.Location())
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, cfg, log); err != nil {
		fmt.Fprintln(os.Stderr, "pinctl:", err)
		log.Debug("command_failed", zap.Error(err))
		os.Exit(1)
	}
}
