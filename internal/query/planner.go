// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package query turns search criteria into corpus predicates and reads
// search requests out of free text.
package query

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/qca-catalog/internal/corpus"
	"github.com/pdiddy/qca-catalog/internal/logging"
	"github.com/pdiddy/qca-catalog/pkg/types"
)

// Counter counts the rows admitted by a predicate.
type Counter interface {
	Count(ctx context.Context, p corpus.Predicate) (int, error)
}

// Reporter receives the row count after each planning step.
type Reporter interface {
	Filtered(step string, rows int)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(step string, rows int)

func (f ReporterFunc) Filtered(step string, rows int) { f(step, rows) }

// WriterReporter prints one status line per step to w.
func WriterReporter(w io.Writer) Reporter {
	return ReporterFunc(func(step string, rows int) {
		if step == StepLoaded {
			fmt.Fprintf(w, "Loaded %d molecules\n", rows)
			return
		}
		fmt.Fprintf(w, "Filtered for %s to %d molecules\n", step, rows)
	})
}

// Planning steps in the order they are applied.
const (
	StepLoaded         = "loaded"
	StepCombinations   = "combinations"
	StepSpecifications = "specifications"
	StepDatasets       = "datasets"
	StepTypes          = "types"
)

// Planner builds predicates from criteria.
type Planner struct {
	counter  Counter
	resolver CombinationResolver
	reporter Reporter
	log      logging.Logger

	matchParents bool
}

// NewPlanner returns a Planner. With a nil reporter no counts are taken.
func NewPlanner(counter Counter, resolver CombinationResolver, reporter Reporter, log logging.Logger) *Planner {
	return &Planner{
		counter:  counter,
		resolver: resolver,
		reporter: reporter,
		log:      logging.OrNop(log).Named("query"),
	}
}

// MatchTorsiondriveParents makes a listed torsiondrive id also admit the
// grid points of that parent torsiondrive. It is off unless enabled.
func (pl *Planner) MatchTorsiondriveParents(on bool) *Planner {
	pl.matchParents = on
	return pl
}

// Plan returns the predicate selecting criteria's view. Combinations are
// applied first, then specifications, datasets and types.
func (pl *Planner) Plan(ctx context.Context, criteria types.QueryCriteria) (corpus.Predicate, error) {
	p := corpus.All()
	if err := pl.report(ctx, StepLoaded, p); err != nil {
		return p, err
	}

	if len(criteria.Combinations) > 0 {
		var refs []types.RecordRef
		for _, name := range criteria.Combinations {
			got, err := pl.resolver.Resolve(name)
			if err != nil {
				return corpus.Predicate{}, err
			}
			pl.log.Debug("resolved combination", logging.String("combination", name), logging.Int("records", len(got)))
			refs = append(refs, got...)
		}
		if len(refs) == 0 {
			return corpus.Predicate{}, fmt.Errorf("%w: %s", types.ErrNoCombinations, strings.Join(criteria.Combinations, ", "))
		}
		members := corpus.NewMembership(refs)
		if pl.matchParents {
			members = members.WithTorsiondriveParents()
		}
		p = p.And(corpus.MemberOf(members))
		if err := pl.report(ctx, StepCombinations, p); err != nil {
			return p, err
		}
	}

	if len(criteria.Specifications) > 0 {
		p = p.And(corpus.SpecIn(criteria.Specifications...))
		if err := pl.report(ctx, StepSpecifications, p); err != nil {
			return p, err
		}
	}
	if len(criteria.Datasets) > 0 {
		p = p.And(corpus.DatasetIn(criteria.Datasets...))
		if err := pl.report(ctx, StepDatasets, p); err != nil {
			return p, err
		}
	}
	if len(criteria.RecordTypes) > 0 {
		p = p.And(corpus.TypeIn(criteria.RecordTypes...))
		if err := pl.report(ctx, StepTypes, p); err != nil {
			return p, err
		}
	}

	pl.log.Info("planned query", logging.String("predicate", p.String()))
	return p, nil
}

func (pl *Planner) report(ctx context.Context, step string, p corpus.Predicate) error {
	if pl.reporter == nil || pl.counter == nil {
		return nil
	}
	n, err := pl.counter.Count(ctx, p)
	if err != nil {
		return fmt.Errorf("counting %s: %w", step, err)
	}
	pl.reporter.Filtered(step, n)
	return nil
}

// CommandSuffix renders criteria as command-line flags: combinations,
// specifications, datasets, then types, each in the order given.
func CommandSuffix(criteria types.QueryCriteria) string {
	var b strings.Builder
	for _, v := range criteria.Combinations {
		fmt.Fprintf(&b, " --combination '%s'", v)
	}
	for _, v := range criteria.Specifications {
		fmt.Fprintf(&b, " --spec '%s'", v)
	}
	for _, v := range criteria.Datasets {
		fmt.Fprintf(&b, " --dataset '%s'", v)
	}
	for _, v := range criteria.RecordTypes {
		fmt.Fprintf(&b, " --type '%s'", v)
	}
	return b.String()
}

// Command renders the full search command line echoed in reports.
func Command(name, pattern string, criteria types.QueryCriteria) string {
	return fmt.Sprintf("%s --pattern '%s'", name, pattern) + CommandSuffix(criteria)
}
