// Command build-forward-index builds a document-vector forward index file
// from a collection's already-tokenized documents file
// (`<collection_basename>.docs`: one line per document, `<docid> <token>
// <token>...`) and its lexicon (`<collection_basename>.lexicon`). Ingest
// from raw source formats is out of spec scope; this binary's
// `.docs` format is the simple already-segmented input the rest of the
// pipeline (lexicon building, stemming) is assumed to have already produced.
//
// Usage:
//
//	build-forward-index <collection_basename> <output_path> [stoplist_path]
package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/fenwick-ir/topk/internal/cliutil"
	"github.com/fenwick-ir/topk/internal/docsizes"
	"github.com/fenwick-ir/topk/pkg/docvector"
	"github.com/fenwick-ir/topk/pkg/lexicon"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var logFormat string
	cmd := &cobra.Command{
		Use:          "build-forward-index <collection_basename> <output_path> [stoplist_path]",
		Short:        "Build a document-vector forward index from a tokenized collection",
		Args:         cobra.RangeArgs(2, 3),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliutil.InstallLogger(logFormat)
			stoplistPath := ""
			if len(args) == 3 {
				stoplistPath = args[2]
			}
			return run(args[0], args[1], stoplistPath)
		},
	}
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log output format: text|json")
	return cmd
}

func run(basename, outputPath, stoplistPath string) error {
	lx, err := loadLexicon(basename + ".lexicon")
	if err != nil {
		return err
	}
	stop, err := loadStoplist(stoplistPath)
	if err != nil {
		return err
	}

	docsPath := basename + ".docs"
	f, err := os.Open(docsPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", docsPath, err)
	}
	defer f.Close()

	records, lens, uniqueTerms, warnings, err := buildRecords(f, lx, stop)
	if err != nil {
		return err
	}
	if warnings > 0 {
		slog.Warn("dropped out-of-vocabulary tokens while building forward index", "count", warnings)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", outputPath, err)
	}
	defer out.Close()
	if err := docvector.WriteStore(out, uniqueTerms, records); err != nil {
		return fmt.Errorf("write %s: %w", outputPath, err)
	}

	if sizesFile, err := os.Create(basename + ".sizes"); err == nil {
		defer sizesFile.Close()
		if _, err := docsizes.Write(sizesFile, lens); err != nil {
			return fmt.Errorf("write %s.sizes: %w", basename, err)
		}
	}

	slog.Info("wrote forward index", "path", outputPath, "docs", len(records), "unique_terms", uniqueTerms)
	return nil
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

func loadStoplist(path string) (map[string]struct{}, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open stoplist %s: %w", path, err)
	}
	defer f.Close()
	set := make(map[string]struct{})
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		w := strings.TrimSpace(sc.Text())
		if w != "" {
			set[w] = struct{}{}
		}
	}
	return set, sc.Err()
}

func buildRecords(r *os.File, lx *lexicon.Lexicon, stop map[string]struct{}) ([]docvector.Record, []uint32, uint32, int, error) {
	var records []docvector.Record
	var lens []uint32
	seen := make(map[uint32]struct{})
	warnings := 0

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 1 {
			continue
		}
		docID, err := strconv.ParseUint(fields[0], 10, 32)
		if err != nil {
			return nil, nil, 0, 0, fmt.Errorf("line %d: bad docid %q: %w", lineNo, fields[0], err)
		}
		if uint64(docID) != uint64(len(records)) {
			return nil, nil, 0, 0, fmt.Errorf("line %d: docid %d is not dense (expected %d)", lineNo, docID, len(records))
		}

		freqs := make(map[uint32]uint32)
		var docLen uint32
		for _, tok := range fields[1:] {
			if stop != nil {
				if _, skip := stop[tok]; skip {
					continue
				}
			}
			id, ok := lx.Lookup(tok)
			if !ok {
				warnings++
				continue
			}
			freqs[id]++
			docLen++
			seen[id] = struct{}{}
		}

		termIDs := make([]uint32, 0, len(freqs))
		for t := range freqs {
			termIDs = append(termIDs, t)
		}
		sort.Slice(termIDs, func(i, j int) bool { return termIDs[i] < termIDs[j] })
		freqList := make([]uint32, len(termIDs))
		for i, t := range termIDs {
			freqList[i] = freqs[t]
		}

		records = append(records, docvector.Record{
			DocID:   uint32(docID),
			DocLen:  docLen,
			TermIDs: termIDs,
			Freqs:   freqList,
		})
		lens = append(lens, docLen)
	}
	if err := sc.Err(); err != nil {
		return nil, nil, 0, 0, fmt.Errorf("scan %s: %w", r.Name(), err)
	}
	return records, lens, uint32(len(seen)), warnings, nil
}
