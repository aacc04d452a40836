// Command run-single-corpus-rm runs first-stage retrieval, RM expansion, and
// second-stage weighted MaxScore against one corpus, emitting TREC-formatted
// output. It is the degenerate (zero-external-corpora) case of the
// multi-corpus orchestrator.
//
// Usage:
//
//	run-single-corpus-rm <config_path> --output <file> --query <file>
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

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var outputPath, queryPath, runTag, logFormat string

	cmd := &cobra.Command{
		Use:          "run-single-corpus-rm <config_path>",
		Short:        "Run single-corpus RM-expanded retrieval, emitting TREC output",
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
			return run(args[0], queryPath, outputPath, runTag)
		},
	}
	cmd.Flags().StringVar(&outputPath, "output", "", "TREC output file")
	cmd.Flags().StringVar(&queryPath, "query", "", "query input file")
	cmd.Flags().StringVar(&runTag, "run-tag", "topk-rm", "TREC run tag")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log output format: text|json")
	return cmd
}

func run(configPath, queryPath, outputPath, runTag string) error {
	cfgFile, err := os.Open(configPath)
	if err != nil {
		return fmt.Errorf("open config %s: %w", configPath, err)
	}
	cfg, err := config.Load(cfgFile)
	cfgFile.Close()
	if err != nil {
		return fmt.Errorf("load config %s: %w", configPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	target, docnames, err := corpusload.Load("target", cfg, true)
	if err != nil {
		return err
	}

	runner, err := orchestrator.New(target, nil)
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

	for _, q := range queries {
		results, err := runner.Run(q.Tokens)
		if err != nil {
			return fmt.Errorf("query %s: %w", q.QID, err)
		}
		if err := trecio.WriteRun(out, q.QID, results, docnames, runTag); err != nil {
			return fmt.Errorf("write results for %s: %w", q.QID, err)
		}
	}
	slog.Info("ran single-corpus RM retrieval", "queries", len(queries), "output", outputPath)
	return nil
}
