package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iqtlabs/gamutrf/internal/domain"
	"github.com/iqtlabs/gamutrf/internal/service"
)

var recordCmd = &cobra.Command{
	Use:   "record <center_freq> <sample_count> <sample_rate>",
	Short: "Make one recording and exit",
	Long: `Make a single recording with the configured SDR, using the same command
builder, output naming and SigMF sidecar as the API server. Frequencies and
rates are in Hz and accept exponents, e.g. 915e6.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := domain.ParseRecordingRequest(args[0], args[1], args[2])
		if err != nil {
			return fmt.Errorf("invalid values in request: %w", err)
		}

		svc, err := service.New(cfg, service.Options{})
		if err != nil {
			return fmt.Errorf("failed to create service: %w", err)
		}
		defer svc.Close()

		if svc.Excluded(req.CenterFreq) {
			return fmt.Errorf("requested frequency %s Hz is excluded", args[0])
		}

		if _, err := svc.Submit(req); err != nil {
			return err
		}

		// A capture in progress is not interrupted; the signal only stops waiting
		// for a job that has not started.
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		job, err := svc.ProcessNext(ctx)
		if err != nil {
			return fmt.Errorf("recording did not run: %w", err)
		}

		out, _ := json.MarshalIndent(job, "", "  ")
		fmt.Println(string(out))

		if !job.Succeeded {
			return fmt.Errorf("recording failed: %s", job.Error)
		}
		if job.MetadataError != "" {
			slog.Warn("Recording kept without metadata", "error", job.MetadataError)
		}
		return nil
	},
}
