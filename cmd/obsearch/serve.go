package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/thebtf/obsearch/internal/worker"
)

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 30 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var (
		host    string
		port    int
		backend string
		dbPath  string
		dsn     string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP search service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			flags := cmd.Flags()
			if flags.Changed("host") {
				cfg.Host = host
			}
			if flags.Changed("port") {
				cfg.Port = port
			}
			if flags.Changed("backend") {
				cfg.Backend = backend
			}
			if flags.Changed("db") {
				cfg.DBPath = dbPath
			}
			if flags.Changed("dsn") {
				cfg.DSN = dsn
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			store, err := openStore(cfg)
			if err != nil {
				return err
			}

			log.Info().
				Str("version", Version).
				Str("backend", cfg.Backend).
				Msg("Starting obsearch")

			svc := worker.NewService(Version, cfg, store)
			if err := svc.Start(); err != nil {
				_ = store.Close()
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			log.Info().Msg("Received shutdown signal")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return svc.Shutdown(shutdownCtx)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&host, "host", "", "listen host (overrides config)")
	flags.IntVar(&port, "port", 0, "listen port (overrides config)")
	flags.StringVar(&backend, "backend", "", "storage backend: sqlite or postgres")
	flags.StringVar(&dbPath, "db", "", "SQLite database path")
	flags.StringVar(&dsn, "dsn", "", "PostgreSQL DSN")
	return cmd
}
