package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ardalan-sia/lanesim/pkg/config"
	"github.com/ardalan-sia/lanesim/pkg/logging"
	"github.com/ardalan-sia/lanesim/pkg/server"
	"github.com/ardalan-sia/lanesim/pkg/simulation"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	var (
		configPath string
		seed       uint64
	)
	cmd := &cobra.Command{
		Use:   "sim",
		Short: "Single-lane traffic simulator",
		Long: `sim drives vehicles along a one-lane road, printing the lane every
tick and appending telemetry to logs/Telemetry_<start>.csv until interrupted.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("seed") {
				cfg.Road.Seed = seed
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, out)
		},
	}
	cmd.SetOut(out)
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "seed for the spawn draws (0 is nondeterministic)")
	return cmd
}

func run(ctx context.Context, cfg config.Config, out io.Writer) error {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Log.Dir,
		Service: "lanesim",
		JSON:    cfg.Log.JSON,
		Quiet:   !cfg.Log.Stderr,
	})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logger.Close()

	runID := uuid.NewString()
	log := logger.Slog().With("run_id", runID)

	sim, err := simulation.FromConfig(cfg, simulation.Options{
		RunID:  runID,
		Output: out,
		Logger: logger.Slog(),
	})
	if err != nil {
		return err
	}
	defer sim.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sim.Run(gctx) })
	if cfg.Server.Addr != "" {
		gin.SetMode(gin.ReleaseMode)
		srv := server.New(cfg.Server.Addr, sim, sim.Metrics.Handler(), log.With("component", "server"))
		g.Go(func() error { return srv.Run(gctx) })
	}

	if err := g.Wait(); err != nil {
		log.Error("simulation failed", "error", err)
		return err
	}
	return nil
}
