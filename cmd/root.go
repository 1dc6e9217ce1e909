package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/acuervo/catalog-mirror/internal/app"
	"github.com/acuervo/catalog-mirror/internal/config"
	"github.com/acuervo/catalog-mirror/internal/progress"
	"github.com/acuervo/catalog-mirror/internal/storage"
	"github.com/acuervo/catalog-mirror/internal/store"
)

var (
	cfgFile   string
	warehouse string
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands use. This allows us
// to inject a mock app during tests.
type App interface {
	Close(ctx context.Context)
	Config() config.Config
	Logger() *zap.Logger
	Backend() storage.Backend
	Hub() *progress.Hub
	Runs() store.RunRepository
}

// newApp is the application factory. It's a variable so tests can replace
// it with a mock factory.
var newApp = func(ctx context.Context, cfg config.Config) (App, error) {
	return app.New(ctx, cfg)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog-mirror",
		Short: "Resumable catalog importer with field-level change history.",
		Long: `catalog-mirror crawls a warehouse-scoped product catalog API and keeps a
local mirror of every product, recording the full history of every field
that ever changed. Runs checkpoint their progress and resume where they
left off after crashes or rate-limit pauses.`,

		// Runs after flags are parsed but before the subcommand's RunE,
		// so every subcommand finds a fully built App in its context.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			if warehouse != "" {
				cfg.Warehouse = warehouse
			}

			appInstance, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}

			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				appInstance.Close(closeCtx)
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default reads MIRROR_* environment)")
	cmd.PersistentFlags().StringVar(&warehouse, "warehouse", "", "warehouse code to import (overrides config)")

	cmd.AddCommand(newImportCmd())

	return cmd
}

// Execute is the main entry point. It wires signal handling so an interrupt
// lands as context cancellation and the checkpoint stays consistent.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application services not initialized")
	}
	return appInstance, nil
}
