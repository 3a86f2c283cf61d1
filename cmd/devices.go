package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iqtlabs/gamutrf/internal/sdr"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List supported SDRs and their capture tools",
	Long:  `List the supported SDR kinds and whether the capture binary of each is installed.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("SDR devices\n")
		fmt.Printf("═══════════════════════════════════════\n\n")

		for _, kind := range sdr.Kinds() {
			device, err := sdr.New(string(kind))
			if err != nil {
				return err
			}

			marker := " "
			if cfg != nil && cfg.Device().Kind() == kind {
				marker = "*"
			}

			if path, ok := device.Available(); ok {
				fmt.Printf("%s %-8s ✅ %s\n", marker, kind, path)
			} else {
				fmt.Printf("%s %-8s ❌ %s not found\n", marker, kind, device.Binary())
			}
		}

		fmt.Printf("\n* configured device\n")
		return nil
	},
}
