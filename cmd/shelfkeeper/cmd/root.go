package cmd

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/solatis/shelfkeeper/internal/core/config"
	"github.com/solatis/shelfkeeper/internal/core/db"
	"github.com/solatis/shelfkeeper/internal/core/logging"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

var (
	configFile string
	dbURL      string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:          "shelfkeeper",
	Short:        "Shelfkeeper personal library server",
	Long:         `Shelfkeeper serves a personal book library with magic shelves: saved rule trees that select books dynamically.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "database connection URL (sqlite://path or postgres://...)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (json, text)")
}

func Execute() error {
	return rootCmd.Execute()
}

// runtime is the state shared by every subcommand.
type runtime struct {
	cfg    *config.Config
	logger *slog.Logger
	closer io.Closer
}

// Close releases the log file.
func (r *runtime) Close() error {
	return r.closer.Close()
}

// setup loads .env and the config file, applies flag overrides and builds
// the logger. Flags > environment > config file > defaults.
func setup(cmd *cobra.Command) (*runtime, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("db-url") {
		cfg.Server.DBURL = dbURL
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = logFormat
	}

	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return &runtime{cfg: cfg, logger: logger, closer: closer}, nil
}

// openStore connects to the configured database. With migrate set the schema
// is brought up to date first.
func (r *runtime) openStore(cmd *cobra.Command, migrate bool) (*sqlx.DB, *db.Store, error) {
	conn, err := db.Open(r.cfg.Server.DBURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	if migrate {
		if err := db.MigrateUp(cmd.Context(), conn); err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}
	store, err := db.NewStore(conn)
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to load queries: %w", err)
	}
	return conn, store, nil
}
