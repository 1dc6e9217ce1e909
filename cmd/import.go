// Package cmd defines and implements the CLI commands for the catalog-mirror
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/acuervo/catalog-mirror/internal/catalog"
	"github.com/acuervo/catalog-mirror/internal/checkpoint"
	"github.com/acuervo/catalog-mirror/internal/clock/system"
	idgen "github.com/acuervo/catalog-mirror/internal/id/uuid"
	"github.com/acuervo/catalog-mirror/internal/identity"
	"github.com/acuervo/catalog-mirror/internal/importer"
	"github.com/acuervo/catalog-mirror/internal/progress"
	"github.com/acuervo/catalog-mirror/internal/record"
)

// newImportCmd creates and configures the 'import' subcommand. It runs one
// full import pass for the configured warehouse, resuming from the stored
// checkpoint when one exists.
func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Imports the catalog for one warehouse",
		Long: `Walks the remote category tree for the configured warehouse, fetches
every product, and merges each payload into its versioned record. Progress
is checkpointed continuously; re-running the command resumes from wherever
the previous run stopped.`,

		RunE: runImportCommand,
	}
}

func runImportCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := appInstance.Config()
	logger := appInstance.Logger()

	runID, err := idgen.NewUUIDGenerator().NewRawID()
	if err != nil {
		return fmt.Errorf("generate run id: %w", err)
	}

	emitter := progress.NewRunEmitter(progress.UUIDToBytes(runID), cfg.Warehouse, appInstance.Hub(), nil)
	client, err := catalog.NewClient(catalog.ClientConfig{
		BaseURL:      cfg.API.BaseURL,
		Warehouse:    cfg.Warehouse,
		RequestDelay: cfg.API.RequestDelay,
		Timeout:      cfg.API.Timeout,
	}, emitter, logger)
	if err != nil {
		return fmt.Errorf("init catalog client: %w", err)
	}

	identities, err := identity.Open(cmd.Context(), appInstance.Backend())
	if err != nil {
		return err
	}

	engine, err := importer.New(runID, importer.Config{
		Warehouse:           cfg.Warehouse,
		RateLimitBackoff:    cfg.Import.RateLimitBackoff,
		IncludeFullProduct:  cfg.Import.IncludeFullProduct,
		ReimportFullProduct: cfg.Import.ReimportFullProduct,
		RefetchMissingEAN:   cfg.Import.RefetchMissingEAN,
		EmptyCategoryPolicy: importer.EmptyCategoryPolicy(cfg.Import.EmptyCategoryPolicy),
	}, importer.Deps{
		API:         client,
		Checkpoints: checkpoint.NewStore(appInstance.Backend()),
		Identities:  identities,
		Records:     record.NewStore(appInstance.Backend()),
		Emitter:     appInstance.Hub(),
		Clock:       system.New(),
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("init import engine: %w", err)
	}

	logger.Info("starting import",
		zap.Stringer("run_id", runID),
		zap.String("warehouse", cfg.Warehouse))

	if err := engine.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run import: %w", err)
	}

	logger.Info("import finished", zap.Stringer("run_id", runID))
	return nil
}
