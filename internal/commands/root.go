// Package commands implements the qarzhyctl command tree.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"qarzhy/internal/backend"
	"qarzhy/internal/cli"
	"qarzhy/internal/config"
	"qarzhy/internal/log"
	"qarzhy/internal/services"
)

// Env is everything a command needs to work on the ledger.
type Env struct {
	Config  *config.Config
	Chart   config.Chart
	Store   services.Store
	Ledger  *services.LedgerService
	Logger  *log.Logger
	Cleanup func() error
}

func (e *Env) Close() error {
	if e.Cleanup == nil {
		return nil
	}
	return e.Cleanup()
}

// OpenFunc builds an Env from a validated config.
type OpenFunc func(ctx context.Context, cfg *config.Config) (*Env, error)

type Options struct {
	Out  io.Writer
	Open OpenFunc
}

type app struct {
	out  io.Writer
	open OpenFunc

	backendType string
	dbPath      string
	chartFile   string
	logLevel    string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand(opts Options) *cobra.Command {
	a := &app{out: opts.Out, open: opts.Open}
	if a.out == nil {
		a.out = os.Stdout
	}
	if a.open == nil {
		a.open = Open
	}

	rootCmd := &cobra.Command{
		Use:   "qarzhyctl",
		Short: "Administer the qarzhy ledger",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.SetOut(a.out)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.backendType, "backend", "",
		fmt.Sprintf("data backend (%s), overrides DATA_BACKEND", strings.Join(backend.GetBackendTypeStrings(), "|")))
	pf.StringVar(&a.dbPath, "db", "", "SQLite database path, overrides SQLITE_DB_PATH")
	pf.StringVar(&a.chartFile, "chart", "", "chart of accounts TOML file, overrides CHART_FILE")
	pf.StringVar(&a.logLevel, "log-level", "", "log level, overrides LOG_LEVEL")

	rootCmd.AddCommand(
		newBalancesCommand(a),
		newDebtsCommand(a),
		newEntryCommand(a, "expense"),
		newEntryCommand(a, "income"),
		newTransferCommand(a),
		newDebtCommand(a),
		newDeleteCommand(a),
		newMigrateCommand(a),
		newImportLegacyCommand(a),
	)
	return rootCmd
}

// config loads the environment and applies flag overrides.
func (a *app) config() (*config.Config, error) {
	cli.LoadEnvFile()
	cfg := config.Load()
	if a.backendType != "" {
		cfg.DataBackend = a.backendType
	}
	if a.dbPath != "" {
		cfg.SQLiteDBPath = a.dbPath
	}
	if a.chartFile != "" {
		cfg.ChartFile = a.chartFile
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (a *app) env(ctx context.Context) (*Env, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	return a.open(ctx, cfg)
}

// Open is the default OpenFunc: it logs to stderr and builds the backend
// the config selects.
func Open(ctx context.Context, cfg *config.Config) (*Env, error) {
	logger := cli.SetupLogger(cfg, os.Stderr)

	chart, err := cli.LoadChart(logger, cfg)
	if err != nil {
		return nil, err
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("create backend: %w", err)
	}

	return &Env{
		Config:  cfg,
		Chart:   chart,
		Store:   res.Store,
		Ledger:  services.NewLedgerService(res.Store, res.Publisher, chart),
		Logger:  logger,
		Cleanup: res.Cleanup,
	}, nil
}

// withEnv opens the ledger for the duration of fn.
func (a *app) withEnv(cmd *cobra.Command, fn func(ctx context.Context, env *Env) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	env, err := a.env(ctx)
	if err != nil {
		return err
	}
	logger := env.Logger
	if logger == nil {
		logger = log.FromContext(ctx)
	}
	defer func() {
		if cerr := env.Close(); cerr != nil {
			logger.Warn("Failed to close ledger", log.FieldError, cerr)
		}
	}()
	return fn(log.WithLogger(ctx, logger.WithComponent(log.ComponentCLI)), env)
}
