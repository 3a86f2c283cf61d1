package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iqtlabs/gamutrf/internal/domain"
	"github.com/iqtlabs/gamutrf/internal/service"
)

var infoCmd = &cobra.Command{
	Use:   "info [center_freq sample_count sample_rate]",
	Short: "Show the resolved recorder settings and a dry-run capture command",
	Long: `Display the resolved recorder settings. Given a request, also print the
capture command the worker would run for it right now, without running it.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 && len(args) != 3 {
			return fmt.Errorf("expected no arguments or center_freq sample_count sample_rate, got %d", len(args))
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		dry := *cfg
		dry.History = false
		svc, err := service.New(&dry, service.Options{})
		if err != nil {
			return err
		}
		defer svc.Close()

		info := svc.Info()
		tuning := cfg.Tuning()

		fmt.Printf("=== RECORDER ===\n")
		fmt.Printf("version: %s\n", info.Version)
		fmt.Printf("sdr: %s (%s)\n", info.SDR, cfg.Device().Binary())
		fmt.Printf("path_prefix: %s\n", info.PathPrefix)
		fmt.Printf("freq_excluded: %s\n", strings.Join(info.FreqExcluded, ", "))
		fmt.Printf("gain: %d\n", tuning.Gain)
		fmt.Printf("agc: %t\n", tuning.AGC)
		fmt.Printf("rxb: %d\n", tuning.RecvBufferSize)
		fmt.Printf("sigmf: %t\n", cfg.SigMF)
		fmt.Printf("capture_timeout: %s\n", cfg.CaptureTimeout)
		if cfg.History {
			fmt.Printf("history_db: %s\n", cfg.HistoryDB)
		}

		if len(args) == 0 {
			return nil
		}

		req, err := domain.ParseRecordingRequest(args[0], args[1], args[2])
		if err != nil {
			return fmt.Errorf("invalid values in request: %w", err)
		}

		fmt.Printf("\n=== CAPTURE COMMAND ===\n")
		if svc.Excluded(req.CenterFreq) {
			fmt.Printf("(frequency is excluded, the API would reject this request)\n")
		}
		fmt.Println(strings.Join(svc.DryRun(req), " "))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
