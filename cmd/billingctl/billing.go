package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bivex/paygate/internal/app"
	"github.com/bivex/paygate/internal/application/command"
	"github.com/bivex/paygate/internal/infrastructure/config"
	"github.com/bivex/paygate/internal/infrastructure/logging"
)

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Charge every due subscription once and print the batch report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			services, err := setup(ctx)
			if err != nil {
				return err
			}
			defer services.Close()
			defer logging.Sync()

			report := services.Billing.RunSweep(ctx)
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if report.Error != "" {
				return fmt.Errorf("sweep aborted: %s", report.Error)
			}
			return nil
		},
	}
}

func chargeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "charge [subscription-id]",
		Short: "Charge a single subscription if it is due",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			services, err := setup(ctx)
			if err != nil {
				return err
			}
			defer services.Close()
			defer logging.Sync()

			result, err := command.NewChargeSubscriptionCommand(services.Billing).Execute(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
}

func setup(ctx context.Context) (*app.Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := logging.Init(&cfg.Sentry); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return app.New(ctx, cfg)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
