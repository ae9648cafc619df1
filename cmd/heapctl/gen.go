package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/heapkit/internal/config"
	"github.com/joshuapare/heapkit/internal/trace"
)

var (
	genOps     int
	genSeed    int64
	genMaxSize string
	genPool    bool
	genOutput  string
)

func init() {
	cmd := newGenCmd()
	cmd.Flags().IntVar(&genOps, "ops", 1000, "Number of random operations (final frees not counted)")
	cmd.Flags().Int64Var(&genSeed, "seed", 1, "Random seed")
	cmd.Flags().StringVar(&genMaxSize, "max-size", "4KB", "Largest request size")
	cmd.Flags().BoolVar(&genPool, "pool", false, "Include pool operations")
	cmd.Flags().StringVarP(&genOutput, "output", "o", "", "Write the trace to a file instead of stdout")
	rootCmd.AddCommand(cmd)
}

func newGenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate a random allocation trace",
		Long: `The gen command writes a random, well-formed trace: every free and
realloc names a live id, and everything allocated is freed at the end.
The same seed always produces the same trace.

Example:
  heapctl gen --ops 5000 --seed 7 --max-size 64KB -o big.trace
  heapctl gen --pool | heapctl replay -`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGen()
		},
	}
	return cmd
}

func runGen() error {
	if genOps < 0 {
		return fmt.Errorf("--ops must not be negative, got %d", genOps)
	}
	maxSize, err := config.ParseSize(genMaxSize)
	if err != nil {
		return fmt.Errorf("--max-size: %w", err)
	}
	if maxSize <= 0 {
		return fmt.Errorf("--max-size must be positive, got %d", maxSize)
	}

	ops := trace.Generate(trace.GenOptions{Ops: genOps, Seed: genSeed, MaxSize: maxSize, Pool: genPool})

	var w io.Writer = os.Stdout
	if genOutput != "" {
		f, err := os.Create(genOutput)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer f.Close()
		w = f
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# heapctl gen --ops %d --seed %d --max-size %d\n", genOps, genSeed, maxSize)
	if err := trace.Write(bw, ops); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if genOutput != "" {
		printInfo("Wrote %d operations to %s\n", len(ops), genOutput)
	}
	return nil
}
