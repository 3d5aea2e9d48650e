package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/maauso/audiosplit-api/internal/audio"
)

func newProbeCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "probe <file>",
		Short: "Show duration and stream details of a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := audio.ValidateInput(args[0]); err != nil {
				return err
			}

			info, err := audio.NewFFprobeProber(cfg.FFprobePath).Probe(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd, info)
			}
			fmt.Fprintln(cmd.OutOrStdout(), tableView{
				columns: []column{left("Property"), right("Value")},
				rows: [][]string{
					{"Duration", formatClock(info.DurationMs)},
					{"Channels", strconv.Itoa(info.Channels)},
					{"Sample rate", fmt.Sprintf("%d Hz", info.SampleRate)},
					{"Codec", info.Codec},
					{"Container", info.FormatName},
					{"Size", formatSize(info.SizeBytes)},
				},
			}.render())
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output JSON")
	return cmd
}
