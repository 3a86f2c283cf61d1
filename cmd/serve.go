package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/iqtlabs/gamutrf/internal/server"
	"github.com/iqtlabs/gamutrf/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the recording API and worker",
	Long: `Start the gamutrf HTTP API and the recording worker.

Requests to /v1/record/{center_freq}/{sample_count}/{sample_rate} are queued
and recorded one at a time. On SIGINT or SIGTERM the server stops accepting
requests and a recording in progress is allowed to finish.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := service.New(cfg, service.Options{})
		if err != nil {
			return fmt.Errorf("failed to create service: %w", err)
		}
		defer svc.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		slog.Info("gamutrf starting",
			"version", service.Version,
			"sdr", cfg.SDR,
			"path", cfg.Path,
			"port", cfg.Port,
			"sigmf", cfg.SigMF,
			"freq_excluded", cfg.FreqExcluded)

		if _, ok := cfg.Device().Available(); !ok {
			slog.Warn("Capture binary not found, recordings will fail", "binary", cfg.Device().Binary())
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return svc.RunWorker(gctx)
		})
		g.Go(func() error {
			return server.New(svc, cfg).Run(gctx)
		})

		if err := g.Wait(); err != nil {
			return err
		}
		slog.Info("gamutrf stopped")
		return nil
	},
}
