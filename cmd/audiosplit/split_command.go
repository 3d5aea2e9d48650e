package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/maauso/audiosplit-api/internal/audio"
	"github.com/maauso/audiosplit-api/internal/bootstrap"
	"github.com/maauso/audiosplit-api/internal/job"
	"github.com/maauso/audiosplit-api/internal/report"
	"github.com/maauso/audiosplit-api/internal/segment"
)

func newSplitCommand(ctx *commandContext) *cobra.Command {
	var (
		minDur, maxDur time.Duration
		strategyName   string
		outputFormat   string
		qualityName    string
		outputDir      string
		seed           uint64
		pushToS3       bool
		jsonOutput     bool
	)

	cmd := &cobra.Command{
		Use:   "split <file>",
		Short: "Cut a recording into segments and write a processing report",
		Example: `  audiosplit split lecture.mp3 --min 5m --max 10m
  audiosplit split podcast.wav --min 20m --max 30m --strategy equal --format mp3 --quality medium`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}

			strategy := cfg.Strategy()
			if cmd.Flags().Changed("strategy") {
				if strategy, err = segment.ParseStrategy(strategyName); err != nil {
					return err
				}
			}
			quality := cfg.Quality()
			if cmd.Flags().Changed("quality") {
				if quality, err = audio.ParseQuality(qualityName); err != nil {
					return err
				}
			}

			input := args[0]
			if outputDir == "" {
				outputDir = defaultOutputDir(input, time.Now())
			}
			discardOutputDir := createdDirCleanup(outputDir)

			var opts []job.Option
			if cmd.Flags().Changed("seed") {
				opts = append(opts, job.WithPlannerFactory(func() *segment.Planner {
					return segment.NewSeededPlanner(seed)
				}))
			}
			deps, err := bootstrap.NewDependencies(cfg, logger, opts...)
			if err != nil {
				return err
			}

			out, err := deps.SplitService.Split(cmd.Context(), job.SplitInput{
				InputPath:     input,
				MinDurationMs: minDur.Milliseconds(),
				MaxDurationMs: maxDur.Milliseconds(),
				Strategy:      strategy,
				OutputFormat:  outputFormat,
				Quality:       quality,
				PushToS3:      pushToS3,
				OutputDir:     outputDir,
			})
			if err != nil {
				discardOutputDir()
				return err
			}

			if jsonOutput {
				rep, err := readReport(out.ReportPath)
				if err != nil {
					return err
				}
				return writeJSON(cmd, rep)
			}
			printSplit(cmd, out)
			return nil
		},
	}

	cmd.Flags().DurationVar(&minDur, "min", 0, "Minimum segment duration (e.g. 5m)")
	cmd.Flags().DurationVar(&maxDur, "max", 0, "Maximum segment duration (e.g. 10m)")
	cmd.Flags().StringVar(&strategyName, "strategy", "", "Segment strategy: random or equal (default DEFAULT_STRATEGY)")
	cmd.Flags().StringVar(&outputFormat, "format", "", "Output container: mp3, wav, m4a, flac, aac or ogg (default: same as input)")
	cmd.Flags().StringVar(&qualityName, "quality", "", "Encoder preset: high, medium or standard (default DEFAULT_QUALITY)")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Directory for segments and report (default: <input>_split_<timestamp>)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Seed for reproducible random plans")
	cmd.Flags().BoolVar(&pushToS3, "push-s3", false, "Upload segments and report to S3 (requires S3_BUCKET and S3_REGION)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the processing report as JSON")
	_ = cmd.MarkFlagRequired("min")
	_ = cmd.MarkFlagRequired("max")

	return cmd
}

// defaultOutputDir places results next to the input as <stem>_split_<timestamp>.
func defaultOutputDir(input string, now time.Time) string {
	return filepath.Join(filepath.Dir(input),
		fmt.Sprintf("%s_split_%s", audio.Stem(input), now.Format("20060102_150405")))
}

func readReport(path string) (*report.Report, error) {
	f, err := os.Open(path) // #nosec G304 - path is the report the split just wrote
	if err != nil {
		return nil, fmt.Errorf("open report: %w", err)
	}
	defer func() { _ = f.Close() }()
	return report.Decode(f)
}

func printSplit(cmd *cobra.Command, out *job.SplitOutput) {
	rows := make([][]string, len(out.Parts))
	var totalSize, totalMs int64
	for i, p := range out.Parts {
		totalSize += p.SizeBytes
		totalMs += p.Segment.Duration()
		rows[i] = []string{
			strconv.Itoa(p.Index),
			p.FileName,
			formatClock(p.Segment.Start),
			formatClock(p.Segment.End),
			formatDuration(p.Segment.Duration()),
			formatSize(p.SizeBytes),
		}
	}
	w := cmd.OutOrStdout()
	fmt.Fprintln(w, tableView{
		columns: []column{right("#"), left("File"), right("Start"), right("End"), right("Duration"), right("Size")},
		rows:    rows,
		footer:  []string{"", fmt.Sprintf("%d segments", len(out.Parts)), "", "", formatDuration(totalMs), formatSize(totalSize)},
	}.render())
	fmt.Fprintf(w, "Report: %s\n", out.ReportPath)
	if out.ReportURL != "" {
		fmt.Fprintf(w, "Report URL: %s\n", out.ReportURL)
	}
}

// createdDirCleanup returns a func that removes dir if this run created it
// and left it empty. A directory that already existed is never touched.
func createdDirCleanup(dir string) func() {
	if _, err := os.Stat(dir); !errors.Is(err, fs.ErrNotExist) {
		return func() {}
	}
	return func() { _ = os.Remove(dir) }
}
