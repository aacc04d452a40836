// Command build-wand-meta builds a WAND metadata file
// from a collection's forward index, for a chosen ranker.
//
// Usage:
//
//	build-wand-meta <collection_basename> <output_path> <ranker:BM25|LMDS> [flags]
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fenwick-ir/topk/internal/buildindex"
	"github.com/fenwick-ir/topk/internal/cliutil"
	"github.com/fenwick-ir/topk/internal/docsizes"
	"github.com/fenwick-ir/topk/pkg/docvector"
	"github.com/fenwick-ir/topk/pkg/ranker"
	"github.com/fenwick-ir/topk/pkg/wand"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var variableBlock bool
	var compress bool
	var blockSize int
	var referenceSize int
	var eps1, eps2, fixedCost float64
	var logFormat string

	cmd := &cobra.Command{
		Use:          "build-wand-meta <collection_basename> <output_path> <ranker:BM25|LMDS>",
		Short:        "Build WAND metadata for a collection's forward index",
		Args:         cobra.ExactArgs(3),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliutil.InstallLogger(logFormat)
			return run(args[0], args[1], args[2], wand.BuildOptions{
				Variable:      variableBlock,
				BlockSize:     blockSize,
				Epsilon1:      eps1,
				Epsilon2:      eps2,
				FixedCost:     fixedCost,
				Compressed:    compress,
				ReferenceSize: referenceSize,
			})
		},
	}
	cmd.Flags().BoolVar(&variableBlock, "variable-block", false, "use DP-optimal variable-size block partitioning instead of fixed-size")
	cmd.Flags().BoolVar(&compress, "compress", false, "quantize block max-term-weight into R buckets, dropping per-block doc weights")
	cmd.Flags().IntVar(&blockSize, "block-size", 64, "fixed block size B")
	cmd.Flags().IntVar(&referenceSize, "reference-size", 256, "R, number of quantization buckets (compressed only, power of 2)")
	cmd.Flags().Float64Var(&eps1, "eps1", 0.01, "variable-block partition cost: per-posting weight")
	cmd.Flags().Float64Var(&eps2, "eps2", 0.1, "variable-block partition cost: within-block spread weight")
	cmd.Flags().Float64Var(&fixedCost, "fixed-cost", 1.0, "variable-block partition cost: fixed per-block cost")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log output format: text|json")
	return cmd
}

func run(basename, outputPath, rankerName string, opts wand.BuildOptions) error {
	rk, err := ranker.ByName(rankerName)
	if err != nil {
		return err
	}
	opts.Ranker = rk

	fwdPath := basename + ".fwd"
	f, err := os.Open(fwdPath)
	if err != nil {
		return fmt.Errorf("open forward index %s: %w", fwdPath, err)
	}
	defer f.Close()
	store, err := docvector.ReadStore(f)
	if err != nil {
		return fmt.Errorf("read forward index %s: %w", fwdPath, err)
	}

	opts.DocLens = docLens(basename, store)

	idx := buildindex.Invert(store)
	terms := buildindex.TermIDs(store)

	meta, err := wand.Build(idx, terms, opts)
	if err != nil {
		return fmt.Errorf("build wand metadata: %w", err)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", outputPath, err)
	}
	defer out.Close()
	n, err := meta.WriteTo(out)
	if err != nil {
		return fmt.Errorf("write %s: %w", outputPath, err)
	}
	slog.Info("wrote wand metadata", "path", outputPath, "bytes", n, "terms", len(terms), "docs", len(opts.DocLens), "ranker", rk.Name())
	return nil
}

// docLens prefers the collection's on-disk document-sizes file when present
// over re-deriving lengths from the forward
// index, matching the ambient pipeline the builder was designed against.
func docLens(basename string, store *docvector.Store) []uint32 {
	if f, err := os.Open(basename + ".sizes"); err == nil {
		defer f.Close()
		if lens, err := docsizes.Read(f); err == nil {
			return lens
		}
	}
	return buildindex.DocLens(store)
}
