// Package config loads the key=value configuration file: paths
// to the collection's inverted/forward/WAND-metadata files and the RM
// expansion parameters driving a query run.
package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fenwick-ir/topk/internal/errs"
)

// Config holds one corpus's configuration, as parsed from a `key=value` file.
type Config struct {
	RawCollection string
	InvertedIndex string
	ForwardIndex  string
	WandFile      string
	DocsToExpand  uint64
	TermsToExpand uint64
	LambdaExpand  float64
	FinalK        uint64
	GenQueries    uint64
}

// Load parses a configuration file from r.
func Load(r io.Reader) (*Config, error) {
	cfg := &Config{}
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("config: line %d: expected key=value, got %q", lineNo, line)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if err := cfg.set(key, value); err != nil {
			return nil, fmt.Errorf("config: line %d: %w", lineNo, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("config: scan: %w", err)
	}
	cfg.deriveFromRawCollection()
	return cfg, nil
}

func (c *Config) set(key, value string) error {
	switch key {
	case "raw_collection":
		c.RawCollection = value
	case "inverted_index":
		c.InvertedIndex = value
	case "forward_index":
		c.ForwardIndex = value
	case "wand_file":
		c.WandFile = value
	case "docs_to_expand":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return errs.NewConfigError(key, err.Error())
		}
		c.DocsToExpand = n
	case "terms_to_expand":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return errs.NewConfigError(key, err.Error())
		}
		c.TermsToExpand = n
	case "lambda_expand":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return errs.NewConfigError(key, err.Error())
		}
		c.LambdaExpand = f
	case "final_k":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return errs.NewConfigError(key, err.Error())
		}
		c.FinalK = n
	case "gen_queries":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return errs.NewConfigError(key, err.Error())
		}
		c.GenQueries = n
	default:
		return errs.NewConfigError(key, "unknown key")
	}
	return nil
}

// Lexicon returns the derived lexicon path for raw_collection.
func (c *Config) Lexicon() string { return c.RawCollection + ".lexicon" }

// Docids returns the derived docid-name-map path for raw_collection.
func (c *Config) Docids() string { return c.RawCollection + ".docids" }

func (c *Config) deriveFromRawCollection() {
	if c.RawCollection == "" {
		return
	}
	if c.InvertedIndex == "" {
		c.InvertedIndex = c.RawCollection + ".index"
	}
	if c.ForwardIndex == "" {
		c.ForwardIndex = c.RawCollection + ".fwd"
	}
	if c.WandFile == "" {
		c.WandFile = c.RawCollection + ".wand"
	}
}

// Validate enforces the configuration-error class: λ∈[0,1],
// final_k>0.
func (c *Config) Validate() error {
	if c.LambdaExpand < 0 || c.LambdaExpand > 1 {
		return errs.NewConfigError("lambda_expand", fmt.Sprintf("must be in [0,1], got %v", c.LambdaExpand))
	}
	if c.FinalK == 0 {
		return errs.NewConfigError("final_k", "must be > 0")
	}
	if c.InvertedIndex == "" {
		return errs.NewConfigError("inverted_index", "required (set directly or derive from raw_collection)")
	}
	return nil
}
