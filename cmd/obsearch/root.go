package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	gormlogger "gorm.io/gorm/logger"

	"github.com/thebtf/obsearch/internal/config"
	"github.com/thebtf/obsearch/internal/db"
	gormstore "github.com/thebtf/obsearch/internal/db/gorm"
	"github.com/thebtf/obsearch/internal/db/sqlite"
)

// app carries state shared by the subcommands.
type app struct {
	settingsPath string
	dotenvPath   string
	logLevel     string
	logOut       io.Writer

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{logOut: os.Stderr}

	root := &cobra.Command{
		Use:   "obsearch",
		Short: "Search scheduling observations and their sessions",
		Long: `obsearch serves a read-only search API over a table of scheduling
observations and the sessions that group them. Load the XML export with
"obsearch import", then run "obsearch serve".`,
		Version:       Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.settingsPath, "config", "", "settings file (default $"+config.SettingsEnvVar+" or ./"+config.DefaultSettingsFile+")")
	flags.StringVar(&a.dotenvPath, "env-file", "", "dotenv file (default ./"+config.DefaultDotEnvFile+" when present)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(newServeCmd(a))
	root.AddCommand(newImportCmd(a))
	root.AddCommand(newVersionCmd())
	return root
}

// load reads the configuration and sets up logging.
func (a *app) load() error {
	cfg, err := config.Load(config.LoadOptions{
		SettingsPath: a.settingsPath,
		DotEnvPath:   a.dotenvPath,
	})
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if err := setupLogging(cfg.LogLevel, a.logOut); err != nil {
		return err
	}

	a.cfg = cfg
	return nil
}

// setupLogging points the global logger at a console writer on w.
func setupLogging(level string, w io.Writer) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w})
	return nil
}

// openStore opens the storage backend named by cfg.
func openStore(cfg *config.Config) (db.Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case config.BackendPostgres:
		store, err := gormstore.NewStore(gormstore.Config{
			DSN:      cfg.DSN,
			MaxConns: cfg.MaxConns,
			LogLevel: gormLogLevel(cfg.LogLevel),
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendSQLite:
		store, err := sqlite.NewStore(sqlite.StoreConfig{
			Path:     cfg.DBPath,
			MaxConns: cfg.MaxConns,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// gormLogLevel maps the application log level onto GORM's coarser levels.
func gormLogLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "trace", "debug":
		return gormlogger.Info
	case "warn":
		return gormlogger.Warn
	case "error", "fatal", "panic":
		return gormlogger.Error
	default:
		return gormlogger.Silent
	}
}
