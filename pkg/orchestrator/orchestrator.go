// Package orchestrator implements the multi-corpus query driver: one-task-per-corpus first-stage retrieval plus RM expansion, a
// second-stage weighted MaxScore against the target, and RRF fusion of the
// per-corpus rankings.
package orchestrator

import (
	"fmt"
	"sort"
	"sync"

	"github.com/fenwick-ir/topk/internal/errs"
	"github.com/fenwick-ir/topk/pkg/docvector"
	"github.com/fenwick-ir/topk/pkg/lexicon"
	"github.com/fenwick-ir/topk/pkg/posting"
	"github.com/fenwick-ir/topk/pkg/query"
	"github.com/fenwick-ir/topk/pkg/ranker"
	"github.com/fenwick-ir/topk/pkg/rm"
	"github.com/fenwick-ir/topk/pkg/sampler"
	"github.com/fenwick-ir/topk/pkg/topk"
	"github.com/fenwick-ir/topk/pkg/wand"
)

// DefaultRRFK is the RRF constant k.
const DefaultRRFK = 60

// Corpus is one corpus's wired state: its own inverted index, forward
// index, WAND metadata, lexicon, ranker, and expansion parameters, plus
// whether it is the run's single target.
type Corpus struct {
	Name     string
	IsTarget bool

	Index   posting.Index
	Forward *docvector.Store
	Meta    *wand.Meta
	Ranker  ranker.Ranker
	Lexicon *lexicon.Lexicon

	DocsToExpand  int
	TermsToExpand int
	Lambda        float64
	FinalK        int
}

// Runner holds a target corpus plus zero or more external corpora and the
// back-maps built from each external lexicon to the target's.
type Runner struct {
	Target    Corpus
	Externals []Corpus
	backMaps  []map[uint32]uint32
}

// New builds a Runner, constructing each external corpus's back-map against
// the target lexicon eagerly so per-query work only does lookups.
func New(target Corpus, externals []Corpus) (*Runner, error) {
	if !target.IsTarget {
		target.IsTarget = true
	}
	r := &Runner{Target: target, Externals: externals}
	r.backMaps = make([]map[uint32]uint32, len(externals))
	for i, ext := range externals {
		if ext.Lexicon == nil || target.Lexicon == nil {
			return nil, fmt.Errorf("orchestrator: corpus %q missing lexicon for back_map construction", ext.Name)
		}
		r.backMaps[i] = lexicon.BackMap(target.Lexicon, ext.Lexicon)
	}
	return r, nil
}

// corpusTask is what one per-corpus goroutine produces before RRF fusion.
type corpusTask struct {
	name    string
	ranking []topk.Result
	err     error
}

// Run executes one raw query against the whole runner: parse against every corpus's lexicon, fan out first-stage
// retrieval + RM expansion + second-stage weighted MaxScore one task per
// corpus, join, then RRF-fuse.
func (r *Runner) Run(rawQuery []string) ([]topk.Result, error) {
	tasks := make([]corpusTask, 1+len(r.Externals))

	var wg sync.WaitGroup
	wg.Add(len(tasks))

	go func() {
		defer wg.Done()
		ranking, err := r.runTarget(rawQuery)
		tasks[0] = corpusTask{name: r.Target.Name, ranking: ranking, err: err}
	}()
	for i, ext := range r.Externals {
		i, ext := i, ext
		go func() {
			defer wg.Done()
			ranking, err := r.runExternal(ext, r.backMaps[i], rawQuery)
			tasks[i+1] = corpusTask{name: ext.Name, ranking: ranking, err: err}
		}()
	}
	wg.Wait()

	rankings := make([][]topk.Result, 0, len(tasks))
	for _, t := range tasks {
		if t.err != nil {
			return nil, errs.NewCorpusTaskError(t.name, t.err)
		}
		rankings = append(rankings, t.ranking)
	}

	fused := FuseRRF(rankings, DefaultRRFK)
	if r.Target.FinalK > 0 && len(fused) > r.Target.FinalK {
		fused = fused[:r.Target.FinalK]
	}
	return fused, nil
}

func (r *Runner) runTarget(rawQuery []string) ([]topk.Result, error) {
	c := r.Target
	parsed, _ := c.Lexicon.ParseQuery(rawQuery)
	if len(parsed) == 0 {
		return nil, nil
	}

	firstStage, _ := query.WAND(c.Index, c.Meta, c.Ranker, parsed, c.DocsToExpand)
	feedback, err := gatherFeedback(c.Forward, firstStage)
	if err != nil {
		return nil, err
	}
	w := rm.Expand(feedback, c.TermsToExpand)
	w = rm.Normalize(w)
	w = rm.AddOriginalQuery(c.Lambda, w, parsed)

	tk, _ := query.WeightedMaxScore(c.Index, c.Meta, w, c.FinalK)
	return tk.Finalize(), nil
}

func (r *Runner) runExternal(c Corpus, backMap map[uint32]uint32, rawQuery []string) ([]topk.Result, error) {
	parsedExt, _ := c.Lexicon.ParseQuery(rawQuery)
	if len(parsedExt) == 0 {
		return nil, nil
	}

	firstStage, _ := query.WAND(c.Index, c.Meta, c.Ranker, parsedExt, c.DocsToExpand)
	feedback, err := gatherFeedback(c.Forward, firstStage)
	if err != nil {
		return nil, err
	}
	w := rm.Expand(feedback, c.TermsToExpand)
	w = rm.NormalizeExt(w, backMap)
	parsedSrc := rm.QueryFromExtToSrc(parsedExt, backMap)
	w = rm.AddOriginalQuery(c.Lambda, w, parsedSrc)

	tk, _ := query.WeightedMaxScore(r.Target.Index, r.Target.Meta, w, r.Target.FinalK)
	return tk.Finalize(), nil
}

func gatherFeedback(fwd *docvector.Store, tk *topk.TopK) ([]rm.FeedbackDoc, error) {
	results := tk.Finalize()
	out := make([]rm.FeedbackDoc, 0, len(results))
	for _, res := range results {
		rec, ok := fwd.Get(res.DocID)
		if !ok {
			continue
		}
		out = append(out, rm.FeedbackDoc{Score: res.Score, Vector: rec})
	}
	return out, nil
}

// RunSampler executes the sampler alternative variant: each external corpus's RM-expansion weights drive
// a batch of gen_queries sampled BoW queries (4.H), each run through plain
// MaxScore against the target; the target itself contributes its raw parsed
// query through the same path. All sub-rankings are RRF-fused together.
//
// Sub-query generation is sequential (the seeded PRNG keeps batches
// reproducible); the MaxScore passes fan out one task per sub-query and are
// joined before fusion.
func (r *Runner) RunSampler(rawQuery []string, genQueries int, smp *sampler.Sampler) ([]topk.Result, error) {
	var subQueries [][]uint32

	targetParsed, _ := r.Target.Lexicon.ParseQuery(rawQuery)
	if len(targetParsed) > 0 {
		subQueries = append(subQueries, targetParsed)
	}

	for i, ext := range r.Externals {
		parsedExt, _ := ext.Lexicon.ParseQuery(rawQuery)
		if len(parsedExt) == 0 {
			continue
		}
		firstStage, _ := query.WAND(ext.Index, ext.Meta, ext.Ranker, parsedExt, ext.DocsToExpand)
		feedback, err := gatherFeedback(ext.Forward, firstStage)
		if err != nil {
			return nil, err
		}
		w := rm.Expand(feedback, ext.TermsToExpand)
		w = rm.NormalizeExt(w, r.backMaps[i])

		batch := smp.GenerateQueryBatch(w, rm.QueryFromExtToSrc(parsedExt, r.backMaps[i]), 1, len(w), genQueries)
		for _, subQuery := range batch {
			if len(subQuery) > 0 {
				subQueries = append(subQueries, subQuery)
			}
		}
	}

	rankings := make([][]topk.Result, len(subQueries))
	var wg sync.WaitGroup
	wg.Add(len(subQueries))
	for i, subQuery := range subQueries {
		i, subQuery := i, subQuery
		go func() {
			defer wg.Done()
			tk, _ := query.MaxScore(r.Target.Index, r.Target.Meta, r.Target.Ranker, subQuery, r.Target.FinalK)
			rankings[i] = tk.Finalize()
		}()
	}
	wg.Wait()

	fused := FuseRRF(rankings, DefaultRRFK)
	if r.Target.FinalK > 0 && len(fused) > r.Target.FinalK {
		fused = fused[:r.Target.FinalK]
	}
	return fused, nil
}

// FuseRRF combines C per-corpus rankings by Reciprocal Rank Fusion:
// score(d) = Σ_c 1/(k + rank_c(d)), rank_c(d) = ∞ (term omitted) if d is
// absent from ranking c.
func FuseRRF(rankings [][]topk.Result, k int) []topk.Result {
	scores := make(map[uint32]float64)
	for _, ranking := range rankings {
		for rank, res := range ranking {
			scores[res.DocID] += 1.0 / float64(k+rank+1)
		}
	}
	out := make([]topk.Result, 0, len(scores))
	for docID, score := range scores {
		out = append(out, topk.Result{DocID: docID, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].DocID < out[j].DocID
	})
	return out
}
