// Command run-multi-corpus-rm runs the full multi-corpus orchestrator:
// per-corpus first-stage retrieval + RM expansion + target back-mapping, a
// second-stage weighted MaxScore against the target, and RRF fusion of
// every corpus's ranking.
//
// Usage:
//
//	run-multi-corpus-rm <target_config> --external <ext_config>* --query <file> --output <file> [--sampler] [--gen-queries <n>] [--seed <n>]
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fenwick-ir/topk/internal/cliutil"
	"github.com/fenwick-ir/topk/internal/config"
	"github.com/fenwick-ir/topk/internal/corpusload"
	"github.com/fenwick-ir/topk/internal/trecio"
	"github.com/fenwick-ir/topk/pkg/orchestrator"
	"github.com/fenwick-ir/topk/pkg/sampler"
	"github.com/fenwick-ir/topk/pkg/topk"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var externalConfigs []string
	var outputPath, queryPath, runTag, logFormat string
	var useSampler bool
	var genQueries int
	var seed int64

	cmd := &cobra.Command{
		Use:          "run-multi-corpus-rm <target_config>",
		Short:        "Run multi-corpus RM-expanded retrieval with RRF fusion, emitting TREC output",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliutil.InstallLogger(logFormat)
			if outputPath == "" {
				return fmt.Errorf("--output is required")
			}
			if queryPath == "" {
				return fmt.Errorf("--query is required")
			}
			return run(args[0], externalConfigs, queryPath, outputPath, runTag, useSampler, genQueries, seed)
		},
	}
	cmd.Flags().StringArrayVar(&externalConfigs, "external", nil, "external corpus config path (repeatable)")
	cmd.Flags().StringVar(&outputPath, "output", "", "TREC output file")
	cmd.Flags().StringVar(&queryPath, "query", "", "query input file")
	cmd.Flags().StringVar(&runTag, "run-tag", "topk-rm-multi", "TREC run tag")
	cmd.Flags().BoolVar(&useSampler, "sampler", false, "use the weighted-sampler alternative variant instead of RM back-mapping")
	cmd.Flags().IntVar(&genQueries, "gen-queries", 4, "sampler variant: BoW queries generated per external corpus")
	cmd.Flags().Int64Var(&seed, "seed", 1, "sampler variant: PRNG seed (math/rand source)")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log output format: text|json")
	return cmd
}

func run(targetConfigPath string, externalConfigPaths []string, queryPath, outputPath, runTag string, useSampler bool, genQueries int, seed int64) error {
	target, docnames, err := loadCorpus("target", targetConfigPath, true)
	if err != nil {
		return err
	}

	externals := make([]orchestrator.Corpus, 0, len(externalConfigPaths))
	for i, p := range externalConfigPaths {
		c, _, err := loadCorpus(fmt.Sprintf("external-%d", i), p, false)
		if err != nil {
			return err
		}
		externals = append(externals, c)
	}

	runner, err := orchestrator.New(target, externals)
	if err != nil {
		return err
	}

	queryFile, err := os.Open(queryPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", queryPath, err)
	}
	defer queryFile.Close()
	queries, err := trecio.ParseRawQueries(queryFile)
	if err != nil {
		return fmt.Errorf("parse queries: %w", err)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", outputPath, err)
	}
	defer out.Close()

	var smp *sampler.Sampler
	if useSampler {
		smp = sampler.New(seed)
	}

	for _, q := range queries {
		var results []topk.Result
		var err error
		if useSampler {
			results, err = runner.RunSampler(q.Tokens, genQueries, smp)
		} else {
			results, err = runner.Run(q.Tokens)
		}
		if err != nil {
			return fmt.Errorf("query %s: %w", q.QID, err)
		}
		if err := trecio.WriteRun(out, q.QID, results, docnames, runTag); err != nil {
			return fmt.Errorf("write results for %s: %w", q.QID, err)
		}
	}
	slog.Info("ran multi-corpus RM retrieval", "queries", len(queries), "externals", len(externals), "sampler", useSampler, "output", outputPath)
	return nil
}

func loadCorpus(name, configPath string, isTarget bool) (orchestrator.Corpus, []string, error) {
	f, err := os.Open(configPath)
	if err != nil {
		return orchestrator.Corpus{}, nil, fmt.Errorf("open config %s: %w", configPath, err)
	}
	cfg, err := config.Load(f)
	f.Close()
	if err != nil {
		return orchestrator.Corpus{}, nil, fmt.Errorf("load config %s: %w", configPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return orchestrator.Corpus{}, nil, err
	}
	return corpusload.Load(name, cfg, isTarget)
}
