package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/heap/pool"
	"github.com/joshuapare/heapkit/internal/config"
	"github.com/joshuapare/heapkit/internal/logger"
	"github.com/joshuapare/heapkit/internal/trace"
)

var (
	replayConfig string
	replayCheck  bool
	replayStats  bool
)

func init() {
	cmd := newReplayCmd()
	cmd.Flags().StringVarP(&replayConfig, "config", "c", "", "YAML configuration file")
	cmd.Flags().BoolVar(&replayCheck, "check", false, "Check heap consistency after every operation")
	cmd.Flags().BoolVar(&replayStats, "stats", false, "Print malloc_stats-style arena statistics")
	rootCmd.AddCommand(cmd)
}

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <trace>",
		Short: "Replay an allocation trace",
		Long: `The replay command runs every operation of a trace against a fresh arena
and pool that share one break. Each allocation is filled with a pattern
derived from its id, and the pattern is verified before the block is
freed or resized. Use "-" to read the trace from standard input.

Example:
  heapctl replay session.trace
  heapctl replay session.trace --check --config heap.yaml
  heapctl gen --ops 10000 | heapctl replay - --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(args)
		},
	}
	return cmd
}

func runReplay(args []string) error {
	closer, err := setupLogging()
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}
	defer closer.Close()

	cfg := config.Default()
	if replayConfig != "" {
		if cfg, err = config.Load(replayConfig); err != nil {
			return err
		}
		printVerbose("Loaded configuration: %s\n", replayConfig)
	}

	ops, err := readTrace(args[0])
	if err != nil {
		return err
	}
	printVerbose("Parsed %d operations\n", len(ops))
	logger.Debug("trace parsed", "trace", args[0], "ops", len(ops))

	b, err := cfg.NewBreak()
	if err != nil {
		return err
	}
	if c, ok := b.(io.Closer); ok {
		defer func() {
			if err := c.Close(); err != nil {
				logger.Warn("failed to release break", "err", err)
			}
		}()
	}

	opts := cfg.ArenaOptions(logger.L)
	opts.OnCorruption = func(ce *alloc.CorruptionError) {
		// Already logged by the arena; the replay stops with the error.
	}
	arena, err := alloc.New(b, opts)
	if err != nil {
		return err
	}
	blocks, err := pool.New(b, int(cfg.Pool.BlockSize), int(cfg.Pool.PageSize))
	if err != nil {
		return err
	}

	player := trace.NewPlayer(arena, blocks, trace.PlayerOptions{Check: replayCheck, Logger: logger.L})
	res, runErr := player.Run(ops)
	if runErr != nil {
		logger.Error("replay failed", "ops", res.Ops, "err", runErr)
	} else {
		logger.Info("replay finished", "ops", res.Ops, "peak_live", res.PeakLive)
	}

	if jsonOut {
		out := replayReport{Trace: args[0], Result: res}
		if runErr != nil {
			out.Error = runErr.Error()
		}
		if err := printJSON(out); err != nil {
			return err
		}
		return runErr
	}

	if !quiet {
		writeReport(os.Stdout, args[0], res)
		if replayStats {
			fmt.Fprintln(os.Stdout)
			arena.PrintStats(os.Stdout)
		}
	}
	return runErr
}

type replayReport struct {
	Trace  string       `json:"trace"`
	Error  string       `json:"error,omitempty"`
	Result trace.Result `json:"result"`
}

func readTrace(path string) ([]trace.Op, error) {
	if path == "-" {
		return trace.Parse(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace: %w", err)
	}
	defer f.Close()
	return trace.Parse(f)
}
