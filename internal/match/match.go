// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package match evaluates a substructure pattern over a corpus view. The
// pattern is tested once per distinct canonical identity, then the view is
// re-read to return every row carrying a matched identity.
package match

import (
	"cmp"
	"context"
	"iter"
	"maps"
	"slices"
	"strings"

	"github.com/pdiddy/qca-catalog/internal/chem"
	"github.com/pdiddy/qca-catalog/internal/logging"
	"github.com/pdiddy/qca-catalog/pkg/types"
)

// Capability compiles substructure patterns.
type Capability interface {
	Compile(pattern string) (Query, error)
}

// Query is one compiled pattern.
type Query interface {
	Matches(identity string) (bool, error)
}

// ChemCapability is the Capability backed by the chemistry package.
type ChemCapability struct{}

// Compile parses pattern as SMARTS.
func (ChemCapability) Compile(pattern string) (Query, error) {
	p, err := chem.CompilePattern(pattern)
	if err != nil {
		return nil, err
	}
	return chemQuery{p}, nil
}

type chemQuery struct {
	p *chem.Pattern
}

func (q chemQuery) Matches(identity string) (bool, error) {
	m, err := chem.Parse(identity)
	if err != nil {
		return false, err
	}
	return q.p.Matches(m), nil
}

// Outcome says whether a search found anything.
type Outcome string

const (
	Matched   Outcome = "matched"
	NoMatches Outcome = "no_matches"
)

// Result is the outcome of one search.
type Result struct {
	Pattern string `json:"pattern" yaml:"pattern"`

	// Identities are the matched canonical identities, sorted.
	Identities []string `json:"identities" yaml:"identities"`

	// Rows are the view's rows whose identity matched, in view order.
	Rows []types.Row `json:"rows" yaml:"rows"`

	Outcome Outcome `json:"outcome" yaml:"outcome"`
}

// Datasets returns the number of distinct datasets among the rows.
func (r *Result) Datasets() int {
	seen := make(map[string]bool)
	for _, row := range r.Rows {
		seen[row.Dataset] = true
	}
	return len(seen)
}

// Matcher runs searches through a Capability.
type Matcher struct {
	capability  Capability
	log         logging.Logger
	evaluations int
}

// NewMatcher returns a Matcher. A nil capability uses ChemCapability.
func NewMatcher(c Capability, log logging.Logger) *Matcher {
	if c == nil {
		c = ChemCapability{}
	}
	return &Matcher{capability: c, log: logging.OrNop(log).Named("match")}
}

// Evaluations returns how many identities have been tested so far.
func (m *Matcher) Evaluations() int { return m.evaluations }

// Match returns the rows of view whose canonical identity contains
// pattern. An invalid pattern is a *types.PatternError. The view is read
// twice and must yield the same rows both times.
func (m *Matcher) Match(ctx context.Context, view iter.Seq2[types.Row, error], pattern string) (*Result, error) {
	pattern = strings.TrimSpace(pattern)
	q, err := m.capability.Compile(pattern)
	if err != nil {
		return nil, &types.PatternError{Pattern: pattern, Err: err}
	}

	distinct := make(map[string]struct{})
	for row, err := range view {
		if err != nil {
			return nil, err
		}
		distinct[row.CanonicalIdentity] = struct{}{}
	}

	matched := make(map[string]bool)
	for i, identity := range slices.Sorted(maps.Keys(distinct)) {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		m.evaluations++
		ok, err := q.Matches(identity)
		if err != nil {
			m.log.Warn("skipping identity", logging.String("smiles", identity), logging.Err(err))
			continue
		}
		if ok {
			matched[identity] = true
		}
	}
	m.log.Info("evaluated identities",
		logging.String("pattern", pattern),
		logging.Int("distinct", len(distinct)),
		logging.Int("matched", len(matched)))

	res := &Result{Pattern: pattern, Outcome: NoMatches, Identities: slices.Sorted(maps.Keys(matched))}
	if len(matched) == 0 {
		return res, nil
	}
	for row, err := range view {
		if err != nil {
			return nil, err
		}
		if matched[row.CanonicalIdentity] {
			res.Rows = append(res.Rows, row)
		}
	}
	res.Outcome = Matched
	return res, nil
}

// GroupCount is the number of matched rows in one (type, dataset,
// specification) group.
type GroupCount struct {
	Type          types.RecordType `json:"type" yaml:"type"`
	Dataset       string           `json:"dataset" yaml:"dataset"`
	Specification string           `json:"specification" yaml:"specification"`
	Conformers    int              `json:"conformers" yaml:"conformers"`
}

// GroupCounts counts rows by type, dataset and specification, sorted by
// the same keys.
func GroupCounts(rows []types.Row) []GroupCount {
	type key struct {
		kind          types.RecordType
		dataset, spec string
	}
	counts := make(map[key]int)
	for _, r := range rows {
		counts[key{r.RecordType, r.Dataset, r.Specification}]++
	}
	out := make([]GroupCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, GroupCount{Type: k.kind, Dataset: k.dataset, Specification: k.spec, Conformers: n})
	}
	slices.SortFunc(out, func(a, b GroupCount) int {
		return cmp.Or(
			cmp.Compare(a.Type, b.Type),
			cmp.Compare(a.Dataset, b.Dataset),
			cmp.Compare(a.Specification, b.Specification),
		)
	})
	return out
}
