package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/thebtf/obsearch/internal/importer"
)

// defaultExportPath is the XML export read when no file is given.
const defaultExportPath = "db.xml"

func newImportCmd(a *app) *cobra.Command {
	var (
		backend string
		dbPath  string
		dsn     string
	)

	cmd := &cobra.Command{
		Use:   "import [export.xml]",
		Short: "Replace the stored dataset with an XML export",
		Long: `Parse the XML export and replace every stored observation and
session link with its contents in a single transaction.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := defaultExportPath
			if len(args) == 1 {
				path = args[0]
			}

			cfg := a.cfg
			flags := cmd.Flags()
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
			defer store.Close()

			result, err := importer.ImportFile(cmd.Context(), path, store)
			if err != nil {
				return err
			}

			log.Info().
				Str("file", path).
				Str("backend", cfg.Backend).
				Int("observations", result.Observations).
				Int("session_links", result.SessionLinks).
				Int("sessions", result.Sessions).
				Dur("elapsed", result.Elapsed).
				Msg("Import complete")

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Observation rows: %d\nSession rows: %d\n",
				result.Observations, result.SessionLinks)
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&backend, "backend", "", "storage backend: sqlite or postgres")
	flags.StringVar(&dbPath, "db", "", "SQLite database path")
	flags.StringVar(&dsn, "dsn", "", "PostgreSQL DSN")
	return cmd
}
