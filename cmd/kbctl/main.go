package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/marzetti/salon-assistant/internal/config"
	"github.com/marzetti/salon-assistant/internal/factory"
	"github.com/marzetti/salon-assistant/internal/logger"
)

var (
	logLevelFlag string
	rootCmd      = &cobra.Command{
		Use:   "kbctl",
		Short: "Operate the salon assistant database and knowledge base",
		// errors are printed once by main
		SilenceUsage: true,
	}
)

// env loads configuration, a logger and an open store for one command.
type env struct {
	cfg     *config.Config
	log     zerolog.Logger
	backend *factory.Backend
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, err
	}
	log := logger.NewWithOptions("kbctl", logger.Options{Level: logLevelFlag, Console: true, Out: os.Stderr})
	backend, err := factory.NewStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: log, backend: backend}, nil
}

func (e *env) Close() { _ = e.backend.Close() }

func main() {
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "info", "Log level (debug, info, warn, error)")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
