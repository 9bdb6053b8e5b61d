// Package cli implements the congregate command line.
package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/congregate/internal/audit"
	"github.com/mrlokans/congregate/internal/config"
	"github.com/mrlokans/congregate/internal/database"
	dbaudit "github.com/mrlokans/congregate/internal/database/audit"
	"github.com/mrlokans/congregate/internal/database/settings"
	"github.com/mrlokans/congregate/internal/entrypoint"
	"github.com/mrlokans/congregate/internal/services"
	"github.com/mrlokans/congregate/internal/settingsstore"
)

// globalOptions are the flags shared by every command. Flags that are set
// override the environment.
type globalOptions struct {
	databaseDriver string
	databaseDSN    string
	logLevel       string
	verbose        bool
}

func (o *globalOptions) config(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()
	if flags.Changed("database-driver") {
		cfg.Database.Driver = o.databaseDriver
	}
	if flags.Changed("database-dsn") {
		cfg.Database.DSN = o.databaseDSN
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = o.logLevel
	}
	if o.verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewRootCommand builds the command tree.
func NewRootCommand(version string) *cobra.Command {
	var opts globalOptions

	root := &cobra.Command{
		Use:           "congregate",
		Short:         "Migrate a legacy church-management dataset into the destination schema",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.databaseDriver, "database-driver", "sqlite", "Destination driver: sqlite or postgres")
	pf.StringVar(&opts.databaseDSN, "database-dsn", config.DefaultDatabasePath, "Destination database file or DSN")
	pf.StringVar(&opts.logLevel, "log-level", "info", "Log level")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging and SQL warnings")

	root.AddCommand(
		newImportCmd(&opts),
		newTablesCmd(&opts),
		newKeysCmd(&opts),
		newServeCmd(&opts, version),
	)
	return root
}

// Execute runs the command line with ctx.
func Execute(ctx context.Context, version string, args []string, out io.Writer) error {
	root := NewRootCommand(version)
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(out)
	return root.ExecuteContext(ctx)
}

// environment is what every command works against.
type environment struct {
	cfg     *config.Config
	db      *database.Database
	service *services.ImportService
}

func openEnvironment(cfg *config.Config, verbose bool) (*environment, error) {
	if err := entrypoint.ConfigureLogging(cfg.Logging); err != nil {
		return nil, err
	}

	level := logger.Warn
	if verbose {
		level = logger.Info
	}
	db, err := database.Open(cfg.Database, level)
	if err != nil {
		return nil, err
	}

	store := settingsstore.New(settings.NewRepository(db.DB), cfg)
	auditService := audit.NewService(dbaudit.NewRepository(db.DB))
	return &environment{
		cfg:     cfg,
		db:      db,
		service: services.NewImportService(db, cfg, auditService, store),
	}, nil
}

func (e *environment) Close() error {
	return e.db.Close()
}
