package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/maauso/audiosplit-api/internal/segment"
)

type planSegment struct {
	Index      int   `json:"index"`
	StartMs    int64 `json:"start_ms"`
	EndMs      int64 `json:"end_ms"`
	DurationMs int64 `json:"duration_ms"`
}

type planOutput struct {
	Strategy string        `json:"strategy"`
	TotalMs  int64         `json:"total_ms"`
	Count    int           `json:"count"`
	Segments []planSegment `json:"segments"`
}

func newPlanCommand() *cobra.Command {
	var (
		total, minDur, maxDur time.Duration
		strategyName          string
		seed                  uint64
		jsonOutput            bool
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Compute a segment plan for a timeline without touching any audio",
		Example: `  audiosplit plan --total 1h --min 5m --max 10m
  audiosplit plan --total 95s --min 10s --max 20s --strategy equal --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			strategy, err := segment.ParseStrategy(strategyName)
			if err != nil {
				return err
			}

			planner := segment.NewPlanner(nil)
			if cmd.Flags().Changed("seed") {
				planner = segment.NewSeededPlanner(seed)
			}

			b := segment.Bound{Min: minDur.Milliseconds(), Max: maxDur.Milliseconds()}
			plan, err := planner.Plan(total.Milliseconds(), b, strategy)
			if err != nil {
				return err
			}

			out := planOutput{
				Strategy: string(strategy),
				TotalMs:  total.Milliseconds(),
				Count:    len(plan),
				Segments: make([]planSegment, len(plan)),
			}
			for i, s := range plan {
				out.Segments[i] = planSegment{Index: i + 1, StartMs: s.Start, EndMs: s.End, DurationMs: s.Duration()}
			}

			if jsonOutput {
				return writeJSON(cmd, out)
			}
			printPlan(cmd, out)
			return nil
		},
	}

	cmd.Flags().DurationVar(&total, "total", 0, "Length of the timeline (e.g. 1h30m)")
	cmd.Flags().DurationVar(&minDur, "min", 0, "Minimum segment duration (e.g. 5m)")
	cmd.Flags().DurationVar(&maxDur, "max", 0, "Maximum segment duration (e.g. 10m)")
	cmd.Flags().StringVar(&strategyName, "strategy", string(segment.StrategyRandom), "Segment strategy: random or equal")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Seed for reproducible random plans")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output JSON")
	_ = cmd.MarkFlagRequired("total")
	_ = cmd.MarkFlagRequired("min")
	_ = cmd.MarkFlagRequired("max")

	return cmd
}

func printPlan(cmd *cobra.Command, out planOutput) {
	rows := make([][]string, len(out.Segments))
	for i, s := range out.Segments {
		rows[i] = []string{
			strconv.Itoa(s.Index),
			formatClock(s.StartMs),
			formatClock(s.EndMs),
			formatDuration(s.DurationMs),
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), tableView{
		columns: []column{right("#"), right("Start"), right("End"), right("Duration")},
		rows:    rows,
	}.render())
	fmt.Fprintf(cmd.OutOrStdout(), "%d segments, %s strategy, %s total\n",
		out.Count, out.Strategy, formatDuration(out.TotalMs))
}
