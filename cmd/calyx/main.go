package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/farcloser/calyx/internal/config"
	"github.com/farcloser/calyx/internal/logging"
	"github.com/farcloser/calyx/internal/pipeline"
	"github.com/farcloser/calyx/version"
)

func main() {
	logging.Setup()

	ctx := context.Background()

	appl := &cli.Command{
		Name:      version.Name(),
		Usage:     "Measure ITU-R BS.1770 loudness and write iTunNORM tags",
		Version:   version.Version() + " " + version.Commit(),
		ArgsUsage: "[PATH ...]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"j"},
				Usage:   "Worker pool size (0 = number of CPUs)",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Analyze every file but do not write tags",
			},
			&cli.FloatFlag{
				Name:  "gate",
				Usage: "Relative gate, in LU below the ungated mean, for integrated loudness",
				Value: config.DefaultGateLU,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			roots := cmd.Args().Slice()
			if len(roots) == 0 {
				roots = []string{"."}
			}

			opts := config.Options{
				Workers: int(cmd.Int("workers")),
				DryRun:  cmd.Bool("dry-run"),
				GateLU:  cmd.Float("gate"),
			}

			return pipeline.Run(ctx, roots, opts)
		},
	}

	if err := appl.Run(ctx, os.Args); err != nil {
		slog.Error("failed to run", "error", err)
		os.Exit(1)
	}
}
