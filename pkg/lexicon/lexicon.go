// Package lexicon loads the text lexicon file: surface term to
// TermId, with an optional reverse map, used by query parsing and by the
// multi-corpus orchestrator's external→target back-map construction.
package lexicon

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	ahocorasick "github.com/coregx/ahocorasick"
	trie "github.com/derekparker/trie/v3"
)

// Entry is one lexicon line's collection statistics.
type Entry struct {
	TermID uint32
	DF     uint64
	CF     uint64
}

// Lexicon is a loaded `<surface_term> <TermId> <df> <cf>` file.
// Surface lookup (Lookup, and ParseQuery through it) is an exact-match query
// against a trie; no prefix or fuzzy lookup is exposed.
type Lexicon struct {
	surfaces *trie.Trie[uint32]
	entries  map[string]Entry
	reverse  map[uint32]string

	ac       *ahocorasick.Automaton
	acBuilt  bool
	patterns []string
}

// Load parses a lexicon file from r.
// Malformed lines are skipped with the returned warning count so the caller
// can log them.
func Load(r io.Reader) (*Lexicon, int, error) {
	lx := &Lexicon{
		surfaces: trie.New[uint32](),
		entries:  make(map[string]Entry),
		reverse:  make(map[uint32]string),
	}
	sc := bufio.NewScanner(r)
	warnings := 0
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 4 {
			warnings++
			continue
		}
		id, err1 := strconv.ParseUint(fields[1], 10, 32)
		df, err2 := strconv.ParseUint(fields[2], 10, 64)
		cf, err3 := strconv.ParseUint(fields[3], 10, 64)
		if err1 != nil || err2 != nil || err3 != nil {
			warnings++
			continue
		}
		surface := fields[0]
		termID := uint32(id)
		lx.surfaces.Add(surface, termID)
		lx.entries[surface] = Entry{TermID: termID, DF: df, CF: cf}
		lx.reverse[termID] = surface
	}
	if err := sc.Err(); err != nil {
		return nil, warnings, fmt.Errorf("lexicon: scan: %w", err)
	}
	return lx, warnings, nil
}

// buildAC lazily builds the Aho-Corasick automaton over every surface form,
// for use by Scan against raw, unsegmented query text.
func (lx *Lexicon) buildAC() {
	if lx.acBuilt {
		return
	}
	patterns := make([]string, 0, len(lx.entries))
	for surface := range lx.entries {
		patterns = append(patterns, surface)
	}
	builder := ahocorasick.NewBuilder().SetMatchKind(ahocorasick.LeftmostLongest)
	lowered := make([][]byte, len(patterns))
	for i, p := range patterns {
		lowered[i] = []byte(strings.ToLower(p))
	}
	builder.AddPatterns(lowered)
	ac, err := builder.Build()
	if err != nil {
		return
	}
	lx.patterns = patterns
	lx.ac = ac
	lx.acBuilt = true
}

// Scan finds every known surface form occurring in text via a single
// Aho-Corasick pass, returning their TermIds in match order. Unlike
// ParseQuery, this does not require whitespace-delimited tokens.
func (lx *Lexicon) Scan(text string) []uint32 {
	lx.buildAC()
	if lx.ac == nil {
		return nil
	}
	matches := lx.ac.FindAll([]byte(strings.ToLower(text)), -1)
	out := make([]uint32, 0, len(matches))
	for _, m := range matches {
		surface := lx.patterns[m.PatternID]
		if e, ok := lx.entries[surface]; ok {
			out = append(out, e.TermID)
		}
	}
	return out
}

// Lookup resolves a surface form to its TermId.
func (lx *Lexicon) Lookup(surface string) (uint32, bool) {
	node, ok := lx.surfaces.Find(surface)
	if !ok {
		return 0, false
	}
	return node.Val(), true
}

// Entry returns the full statistics entry for a surface form.
func (lx *Lexicon) Entry(surface string) (Entry, bool) {
	e, ok := lx.entries[surface]
	return e, ok
}

// Surface resolves a TermId back to its surface form, if the lexicon was
// loaded with a reverse map (always true for Load).
func (lx *Lexicon) Surface(id uint32) (string, bool) {
	s, ok := lx.reverse[id]
	return s, ok
}

// ParseQuery tokenizes raw whitespace-separated surface terms against this
// lexicon, dropping out-of-vocabulary tokens and returning the count dropped.
func (lx *Lexicon) ParseQuery(tokens []string) ([]uint32, int) {
	out := make([]uint32, 0, len(tokens))
	dropped := 0
	for _, tok := range tokens {
		if id, ok := lx.Lookup(tok); ok {
			out = append(out, id)
		} else {
			dropped++
		}
	}
	return out, dropped
}

// BackMap builds ExternalTermId → TargetTermId by iterating the target
// lexicon and looking each surface form up in the external lexicon.
func BackMap(target, external *Lexicon) map[uint32]uint32 {
	back := make(map[uint32]uint32, len(target.entries))
	for surface, targetEntry := range target.entries {
		if extEntry, ok := external.entries[surface]; ok {
			back[extEntry.TermID] = targetEntry.TermID
		}
	}
	return back
}
