package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"checkout-orchestrator/internal/config"
	"checkout-orchestrator/internal/database"
	"checkout-orchestrator/internal/logger"
	"checkout-orchestrator/internal/server"
	"checkout-orchestrator/internal/worker"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "checkout",
		Short:   "Checkout payment orchestration service",
		Version: Version,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(reconcileCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg := config.New()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	return cfg, nil
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the checkout HTTP API with the reconciliation worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if migrate, _ := cmd.Flags().GetBool("migrate"); migrate {
				if err := database.Migrate(ctx, a.db); err != nil {
					return err
				}
			}

			srv := server.New(cfg, a.checkout, a.checks)
			reconciler := worker.NewReconciliationWorker(a.journal, a.lookup, cfg.ReconcileInterval, cfg.ReconcileAfter, cfg.ReconcileBatch)
			sweeper := worker.NewSessionSweeper(a.selector, cfg.ApprovalTTL/2, cfg.ApprovalTTL, cfg.SessionIdleTTL)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return srv.ListenAndServe(gctx) })
			g.Go(func() error { return reconciler.Run(gctx) })
			g.Go(func() error { return sweeper.Run(gctx) })

			logger.Info("checkout service started", map[string]interface{}{
				"version":     Version,
				"environment": cfg.Environment,
				"draft_store": cfg.DraftStore,
				"mock":        cfg.UseMockProvider,
			})
			return g.Wait()
		},
	}

	cmd.Flags().Bool("migrate", false, "Create missing tables before serving")
	return cmd
}

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run one reconciliation pass over unsettled finalizations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			rw := worker.NewReconciliationWorker(a.journal, a.lookup, cfg.ReconcileInterval, cfg.ReconcileAfter, cfg.ReconcileBatch)
			report, err := rw.ProcessOnce(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("scanned=%d confirmed=%d needs_review=%d skipped=%d\n",
				report.Scanned, report.Confirmed, report.NeedsReview, report.Skipped)
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the checkout tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			db, err := database.NewPostgres(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := database.Migrate(ctx, db); err != nil {
				return err
			}
			logger.Info("migrations applied", nil)
			return nil
		},
	}
}
