// Package trecio parses query-input files and writes TREC-formatted run
// output.
package trecio

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fenwick-ir/topk/pkg/lexicon"
	"github.com/fenwick-ir/topk/pkg/topk"
)

// Query is one parsed query-input line: its QID and resolved TermIds.
type Query struct {
	QID   string
	Terms []uint32
}

// ParseQueries reads `<QID> <token> <token>...` lines, resolving tokens
// against lx. A nil lx treats every token as a literal numeric TermId
//. Unknown surface tokens are
// dropped and counted in the returned warning total.
func ParseQueries(r io.Reader, lx *lexicon.Lexicon) ([]Query, int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var out []Query
	warnings := 0
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
		qid := fields[0]
		tokens := fields[1:]

		var terms []uint32
		if lx != nil {
			resolved, dropped := lx.ParseQuery(tokens)
			terms = resolved
			warnings += dropped
		} else {
			terms = make([]uint32, 0, len(tokens))
			for _, tok := range tokens {
				id, err := strconv.ParseUint(tok, 10, 32)
				if err != nil {
					warnings++
					continue
				}
				terms = append(terms, uint32(id))
			}
		}
		out = append(out, Query{QID: qid, Terms: terms})
	}
	if err := sc.Err(); err != nil {
		return nil, warnings, fmt.Errorf("trecio: scan: %w", err)
	}
	return out, warnings, nil
}

// RawQuery is one query-input line's QID and unresolved tokens. Used by
// callers that must parse the same raw query against more than one corpus's
// lexicon.
type RawQuery struct {
	QID    string
	Tokens []string
}

// ParseRawQueries reads `<QID> <token> <token>...` lines without resolving
// tokens against any lexicon.
func ParseRawQueries(r io.Reader) ([]RawQuery, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var out []RawQuery
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 1 {
			continue
		}
		out = append(out, RawQuery{QID: fields[0], Tokens: fields[1:]})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("trecio: scan: %w", err)
	}
	return out, nil
}

// WriteRun writes results for one query in TREC format:
// `<QID> Q0 <docname> <rank> <score> <run_tag>`, ranks 1-based. docnames
// resolves internal docid → external name; a docid absent from it falls
// back to its numeric form.
func WriteRun(w io.Writer, qid string, results []topk.Result, docnames []string, runTag string) error {
	bw := bufio.NewWriter(w)
	for rank, res := range results {
		name := docName(docnames, res.DocID)
		if _, err := fmt.Fprintf(bw, "%s Q0 %s %d %f %s\n", qid, name, rank+1, res.Score, runTag); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func docName(docnames []string, docID uint32) string {
	if int(docID) < len(docnames) {
		return docnames[docID]
	}
	return strconv.FormatUint(uint64(docID), 10)
}

// ReadDocNames loads the docid-name-map file: one external
// docname per line, index = internal docid.
func ReadDocNames(r io.Reader) ([]string, error) {
	sc := bufio.NewScanner(r)
	var names []string
	for sc.Scan() {
		names = append(names, strings.TrimRight(sc.Text(), "\r\n"))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("trecio: read docnames: %w", err)
	}
	return names, nil
}
