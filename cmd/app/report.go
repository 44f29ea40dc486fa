package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"TokenLens/internal/di"
	"TokenLens/internal/domain/models"
	"TokenLens/internal/handler/api"
	"TokenLens/pkg/config"

	"github.com/spf13/cobra"
)

type reportFlags struct {
	capabilities string
	deadline     time.Duration
	compact      bool
}

func newReportCmd() *cobra.Command {
	var f reportFlags
	cmd := &cobra.Command{
		Use:   "report <token>",
		Short: "Build one report and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			caps, err := models.ParseCapabilities(f.capabilities)
			if err != nil {
				return err
			}
			oneShot(cfg)

			r, cleanup, err := di.InitializeReporter(cfg)
			if err != nil {
				return fmt.Errorf("reporter initialization failed: %w", err)
			}
			defer cleanup()
			return runReport(cmd.Context(), r, args[0], caps, f, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&f.capabilities, "capabilities", "", "comma separated capabilities, all when empty")
	cmd.Flags().DurationVar(&f.deadline, "deadline", 0, "report deadline, config default when zero")
	cmd.Flags().BoolVar(&f.compact, "compact", false, "print JSON on one line")
	return cmd
}

// oneShot keeps stdout for the report and disables the long running parts.
func oneShot(cfg *config.Config) {
	cfg.Log.Output = "stderr"
	cfg.Events.Consume = false
	cfg.Prefetch.Enabled = false
}

func runReport(ctx context.Context, r *di.Reporter, token string, caps []models.Capability, f reportFlags, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	r.Pipeline.Start(ctx)
	defer r.Pipeline.Stop()

	report, err := r.Agg.BuildReport(ctx, token, caps, f.deadline)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	if !f.compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(api.NewReportDTO(report))
}
