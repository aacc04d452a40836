// Command run-queries drives one dynamic-pruning traversal engine against a
// single collection and reports per-query timing.
//
// Usage:
//
//	run-queries <index_type> <engine:wand|block_max_wand|ranked_or|maxscore> <index_path> --wand <path> [--compressed-wand] [--query <file>] [--k <n>] [--lexicon <file>]
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fenwick-ir/topk/internal/buildindex"
	"github.com/fenwick-ir/topk/internal/cliutil"
	"github.com/fenwick-ir/topk/internal/trecio"
	"github.com/fenwick-ir/topk/pkg/docvector"
	"github.com/fenwick-ir/topk/pkg/lexicon"
	"github.com/fenwick-ir/topk/pkg/posting"
	"github.com/fenwick-ir/topk/pkg/query"
	"github.com/fenwick-ir/topk/pkg/ranker"
	"github.com/fenwick-ir/topk/pkg/topk"
	"github.com/fenwick-ir/topk/pkg/wand"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var wandPath string
	var compressedWand bool
	var queryPath string
	var k int
	var lexiconPath string
	var logFormat string

	cmd := &cobra.Command{
		Use:          "run-queries <index_type> <engine:wand|block_max_wand|ranked_or|maxscore> <index_path>",
		Short:        "Run queries through one traversal engine and report per-query timing",
		Args:         cobra.ExactArgs(3),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliutil.InstallLogger(logFormat)
			if wandPath == "" {
				return fmt.Errorf("--wand is required")
			}
			if queryPath == "" {
				return fmt.Errorf("--query is required")
			}
			return run(args[0], args[1], args[2], wandPath, compressedWand, queryPath, k, lexiconPath)
		},
	}
	cmd.Flags().StringVar(&wandPath, "wand", "", "path to WAND metadata file")
	cmd.Flags().BoolVar(&compressedWand, "compressed-wand", false, "assert the WAND metadata file is the compressed variant")
	cmd.Flags().StringVar(&queryPath, "query", "", "query input file")
	cmd.Flags().IntVar(&k, "k", 10, "top-k depth")
	cmd.Flags().StringVar(&lexiconPath, "lexicon", "", "lexicon file (numeric term-id form used when omitted)")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log output format: text|json")
	return cmd
}

func run(indexType, engineName, indexPath, wandPath string, compressedWand bool, queryPath string, k int, lexiconPath string) error {
	if indexType != "fwd" {
		return fmt.Errorf("unsupported index_type %q (want \"fwd\")", indexType)
	}

	idx, err := loadIndex(indexPath)
	if err != nil {
		return err
	}

	meta, err := loadMeta(wandPath, idx.NumDocs())
	if err != nil {
		return err
	}
	if compressedWand && !meta.Compressed() {
		return fmt.Errorf("--compressed-wand given but %s is not a compressed WAND metadata file", wandPath)
	}

	rk, ok := ranker.ByID(ranker.ID(meta.RankerID()))
	if !ok {
		return wand.ErrUnknownRanker
	}

	var lx *lexicon.Lexicon
	if lexiconPath != "" {
		lx, err = loadLexicon(lexiconPath)
		if err != nil {
			return err
		}
	}

	queryFile, err := os.Open(queryPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", queryPath, err)
	}
	defer queryFile.Close()
	queries, warnings, err := trecio.ParseQueries(queryFile, lx)
	if err != nil {
		return fmt.Errorf("parse queries: %w", err)
	}
	if warnings > 0 {
		slog.Warn("dropped out-of-vocabulary query tokens", "count", warnings)
	}

	engine, err := resolveEngine(engineName)
	if err != nil {
		return err
	}

	for _, q := range queries {
		start := time.Now()
		tk, counters := engine(idx, meta, rk, q.Terms, k)
		elapsed := time.Since(start)
		results := tk.Finalize()
		fmt.Printf("%s processed in %s, k=%d, results=%d, pivots=%d, postings=%d\n",
			q.QID, elapsed, k, len(results), counters.UniquePivotsProcessed, counters.PostingsScored)
	}
	return nil
}

type engineFunc func(posting.Index, *wand.Meta, ranker.Ranker, []uint32, int) (*topk.TopK, query.Counters)

func resolveEngine(name string) (engineFunc, error) {
	switch name {
	case "wand":
		return query.WAND, nil
	case "block_max_wand":
		return query.BlockMaxWAND, nil
	case "maxscore":
		return query.MaxScore, nil
	case "ranked_or":
		return query.RankedOr, nil
	default:
		return nil, fmt.Errorf("unknown engine %q (want wand|block_max_wand|ranked_or|maxscore)", name)
	}
}

func loadIndex(path string) (*posting.MemIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	store, err := docvector.ReadStore(f)
	if err != nil {
		return nil, fmt.Errorf("read forward index %s: %w", path, err)
	}
	return buildindex.Invert(store), nil
}

func loadMeta(path string, numDocs uint64) (*wand.Meta, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return wand.ReadFrom(f, numDocs)
}

func loadLexicon(path string) (*lexicon.Lexicon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open lexicon %s: %w", path, err)
	}
	defer f.Close()
	lx, _, err := lexicon.Load(f)
	if err != nil {
		return nil, fmt.Errorf("load lexicon %s: %w", path, err)
	}
	return lx, nil
}
