package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maauso/audiosplit-api/internal/audio"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var ffmpegPath, ffprobePath string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify that ffmpeg and ffprobe are installed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("ffmpeg") {
				ffmpegPath = cfg.FFmpegPath
			}
			if !cmd.Flags().Changed("ffprobe") {
				ffprobePath = cfg.FFprobePath
			}

			statuses, checkErr := audio.CheckTools(ffmpegPath, ffprobePath)
			rows := make([][]string, len(statuses))
			for i, st := range statuses {
				state, path := "ok", st.Path
				if st.Err != nil {
					state, path = "missing", "-"
				}
				rows[i] = []string{st.Name, path, state}
			}
			fmt.Fprintln(cmd.OutOrStdout(), tableView{
				columns: []column{left("Tool"), left("Path"), left("Status")},
				rows:    rows,
			}.render())
			return checkErr
		},
	}

	cmd.Flags().StringVar(&ffmpegPath, "ffmpeg", "", "ffmpeg binary (default FFMPEG_PATH)")
	cmd.Flags().StringVar(&ffprobePath, "ffprobe", "", "ffprobe binary (default FFPROBE_PATH)")
	return cmd
}
