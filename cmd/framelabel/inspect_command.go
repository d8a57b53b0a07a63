package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"framelabel/internal/sampler"
	"framelabel/internal/shardset"
)

func newInspectCommand(ctx *commandContext) *cobra.Command {
	var datasetPath string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show the resolved shard set and sampling plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			pattern := cfg.Dataset.Path
			if datasetPath != "" {
				pattern = datasetPath
			}
			if pattern == "" {
				return errors.New("dataset path required: set dataset.path or pass --dataset-path")
			}

			smp, err := sampler.New(cfg.Dataset.SourceRateHz, cfg.Dataset.TargetRateHz)
			if err != nil {
				return err
			}
			shards, err := shardset.Resolve(pattern)
			if err != nil {
				return err
			}

			var (
				rows         [][]string
				globalIndex  int64
				totalFrames  int64
				totalSampled int
			)
			for _, shard := range shards {
				frames, sampled, err := countShard(shard.Path, &globalIndex, smp)
				if err != nil {
					return err
				}
				totalFrames += frames
				totalSampled += sampled
				rows = append(rows, []string{
					strconv.Itoa(shard.SequenceIndex),
					filepath.Base(shard.Path),
					strconv.FormatInt(frames, 10),
					strconv.Itoa(sampled),
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Shards: %d  Frames: %d  Stride: %d  Sampled: %d\n\n",
				len(shards), totalFrames, smp.Stride(), totalSampled)
			fmt.Fprintln(out, renderTable(
				[]string{"#", "SHARD", "FRAMES", "SAMPLED"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignRight, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&datasetPath, "dataset-path", "", "Glob pattern matching shard files (overrides config)")
	return cmd
}

// countShard walks one shard, advancing the shared global index exactly as
// the pipeline would.
func countShard(path string, globalIndex *int64, smp sampler.Sampler) (int64, int, error) {
	reader, err := shardset.OpenReader(path)
	if err != nil {
		return 0, 0, err
	}
	defer reader.Close()

	var (
		frames  int64
		sampled int
	)
	for {
		if _, err := reader.Next(); err != nil {
			if errors.Is(err, io.EOF) {
				return frames, sampled, nil
			}
			return frames, sampled, err
		}
		if smp.Included(*globalIndex) {
			sampled++
		}
		*globalIndex++
		frames++
	}
}
