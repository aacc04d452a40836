// Package corpusload wires one corpus's on-disk files into an
// orchestrator.Corpus: lexicon, forward index, WAND metadata, and the
// concrete reference PostingIndex this repo backs it with. Shared by
// cmd/run-single-corpus-rm and cmd/run-multi-corpus-rm so both binaries
// build a Corpus the same way from a parsed Config.
package corpusload

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fenwick-ir/topk/internal/buildindex"
	"github.com/fenwick-ir/topk/internal/config"
	"github.com/fenwick-ir/topk/internal/trecio"
	"github.com/fenwick-ir/topk/pkg/docvector"
	"github.com/fenwick-ir/topk/pkg/lexicon"
	"github.com/fenwick-ir/topk/pkg/orchestrator"
	"github.com/fenwick-ir/topk/pkg/ranker"
	"github.com/fenwick-ir/topk/pkg/wand"
)

// Load builds an orchestrator.Corpus from cfg's file paths. docnames is only
// populated for the target, since only the target's ranking is ever emitted as output.
func Load(name string, cfg *config.Config, isTarget bool) (orchestrator.Corpus, []string, error) {
	var c orchestrator.Corpus
	c.Name = name
	c.IsTarget = isTarget
	c.DocsToExpand = int(cfg.DocsToExpand)
	c.TermsToExpand = int(cfg.TermsToExpand)
	c.Lambda = cfg.LambdaExpand
	c.FinalK = int(cfg.FinalK)

	lx, err := loadLexicon(cfg.Lexicon())
	if err != nil {
		return c, nil, fmt.Errorf("corpusload %s: %w", name, err)
	}
	c.Lexicon = lx

	store, err := loadForward(cfg.ForwardIndex)
	if err != nil {
		return c, nil, fmt.Errorf("corpusload %s: %w", name, err)
	}
	c.Forward = store
	c.Index = buildindex.Invert(store)

	meta, err := loadWandMeta(cfg.WandFile, c.Index.NumDocs())
	if err != nil {
		return c, nil, fmt.Errorf("corpusload %s: %w", name, err)
	}
	c.Meta = meta

	rk, ok := ranker.ByID(ranker.ID(meta.RankerID()))
	if !ok {
		return c, nil, fmt.Errorf("corpusload %s: %w", name, wand.ErrUnknownRanker)
	}
	c.Ranker = rk

	var docnames []string
	if isTarget {
		docnames, err = loadDocNames(cfg.Docids())
		if err != nil {
			return c, nil, fmt.Errorf("corpusload %s: %w", name, err)
		}
	}
	return c, docnames, nil
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

func loadForward(path string) (*docvector.Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open forward index %s: %w", path, err)
	}
	defer f.Close()
	store, err := docvector.ReadStore(f)
	if err != nil {
		return nil, fmt.Errorf("read forward index %s: %w", path, err)
	}
	return store, nil
}

func loadWandMeta(path string, numDocs uint64) (*wand.Meta, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wand metadata %s: %w", path, err)
	}
	defer f.Close()
	meta, err := wand.ReadFrom(f, numDocs)
	if err != nil {
		return nil, fmt.Errorf("read wand metadata %s: %w", path, err)
	}
	return meta, nil
}

func loadDocNames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		// The docid-name map is only required for the target;
		// its absence degrades TREC output to numeric docids, not a fatal
		// error, for an otherwise-runnable query.
		slog.Warn("docid name map unavailable, TREC output will use numeric docids", "path", path, "err", err)
		return nil, nil
	}
	defer f.Close()
	return trecio.ReadDocNames(f)
}
