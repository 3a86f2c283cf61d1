package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iqtlabs/gamutrf/internal/convert"
)

var convertCmd = &cobra.Command{
	Use:   "convert <sample_file> [output_file]",
	Short: "Convert a signed 16 bit I/Q recording to float (gnuradio raw)",
	Long: `Convert an I/Q recording to the float format read by gnuradio file sources,
using sox. The sample rate is read from gamutrf recording file names unless
--sample-rate is given. The output defaults to the input with a .raw extension.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rate, _ := cmd.Flags().GetFloat64("sample-rate")
		bits, _ := cmd.Flags().GetInt("bits")
		encoding, _ := cmd.Flags().GetString("encoding")

		out := ""
		if len(args) == 2 {
			out = args[1]
		}

		converter := convert.New(nil)
		opts := convert.Options{SampleRate: rate, Bits: bits, Encoding: encoding}
		if err := converter.Raw2GRRaw(cmd.Context(), args[0], out, opts); err != nil {
			return fmt.Errorf("conversion failed: %w", err)
		}
		return nil
	},
}

func init() {
	convertCmd.Flags().Float64("sample-rate", 0, "input sample rate in Hz (default from file name)")
	convertCmd.Flags().Int("bits", 16, "input sample width in bits")
	convertCmd.Flags().String("encoding", "signed-integer", "input sample encoding (sox -e)")
}
