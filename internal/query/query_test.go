// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package query

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/qca-catalog/internal/corpus"
	"github.com/pdiddy/qca-catalog/pkg/types"
)

func row(spec, dataset string, kind types.RecordType, id, parent int64) types.Row {
	r := types.Row{
		RecordType:        kind,
		RecordID:          id,
		RawIdentifier:     "CCO",
		CanonicalIdentity: "CCO",
		Dataset:           dataset,
		Specification:     spec,
		TorsiondriveID:    types.AbsentID,
		DihedralIndices:   types.AbsentDihedrals(),
		GridID:            types.AbsentGrid(),
	}
	if kind == types.RecordTorsiondrive {
		r.TorsiondriveID = parent
		r.DihedralIndices = []int64{0, 1, 2, 3}
		r.GridID = []int64{id}
	}
	return r
}

func seedCorpus(t *testing.T) *corpus.Corpus {
	t.Helper()
	c := corpus.Open(filepath.Join(t.TempDir(), "tables"), nil)
	ctx := context.Background()
	parts := map[[2]string][]types.Row{
		{"default", "opt-a"}: {
			row("default", "opt-a", types.RecordOptimization, 1, 0),
			row("default", "opt-a", types.RecordOptimization, 2, 0),
		},
		{"default", "td-a"}: {
			row("default", "td-a", types.RecordTorsiondrive, 101, 50),
			row("default", "td-a", types.RecordTorsiondrive, 102, 50),
			row("default", "td-a", types.RecordTorsiondrive, 103, 51),
		},
		{"other", "opt-a"}: {
			row("other", "opt-a", types.RecordOptimization, 3, 0),
		},
	}
	for key, rows := range parts {
		_, err := c.Append(ctx, key[0], key[1], slices.Values(rows))
		require.NoError(t, err)
	}
	return c
}

type mapResolver map[string][]types.RecordRef

func (m mapResolver) Resolve(name string) ([]types.RecordRef, error) {
	refs, ok := m[name]
	if !ok {
		return nil, ErrCombinationNotFound
	}
	return refs, nil
}

type step struct {
	name string
	rows int
}

func recordSteps(steps *[]step) Reporter {
	return ReporterFunc(func(name string, rows int) { *steps = append(*steps, step{name, rows}) })
}

func countRows(t *testing.T, c *corpus.Corpus, p corpus.Predicate) int {
	t.Helper()
	n, err := c.Count(context.Background(), p)
	require.NoError(t, err)
	return n
}

func TestPlan_EmptyCriteria(t *testing.T) {
	c := seedCorpus(t)
	var steps []step
	p, err := NewPlanner(c, mapResolver{}, recordSteps(&steps), nil).Plan(context.Background(), types.QueryCriteria{})
	require.NoError(t, err)
	assert.Equal(t, 6, countRows(t, c, p))
	assert.Equal(t, []step{{StepLoaded, 6}}, steps)
}

func TestPlan_StepOrder(t *testing.T) {
	c := seedCorpus(t)
	resolver := mapResolver{
		"first": {
			{Type: types.RecordOptimization, ID: 1},
			{Type: types.RecordTorsiondrive, ID: 101},
			{Type: types.RecordTorsiondrive, ID: 102},
		},
		"second": {{Type: types.RecordOptimization, ID: 3}},
	}
	var steps []step
	criteria := types.QueryCriteria{
		Specifications: []string{"default"},
		Datasets:       []string{"td-a", "opt-a"},
		RecordTypes:    []types.RecordType{types.RecordTorsiondrive},
		Combinations:   []string{"first", "second"},
	}
	p, err := NewPlanner(c, resolver, recordSteps(&steps), nil).Plan(context.Background(), criteria)
	require.NoError(t, err)

	assert.Equal(t, []step{
		{StepLoaded, 6},
		{StepCombinations, 4}, // 1, 101, 102 and 3: combinations are OR-ed
		{StepSpecifications, 3},
		{StepDatasets, 3},
		{StepTypes, 2},
	}, steps)
	assert.Equal(t, 2, countRows(t, c, p))
}

func TestPlan_CombinationMembership(t *testing.T) {
	c := seedCorpus(t)
	resolver := mapResolver{"parents": {{Type: types.RecordOptimization, ID: 1}, {Type: types.RecordTorsiondrive, ID: 50}}}
	criteria := types.QueryCriteria{Combinations: []string{"parents"}}

	// Only listed (type, id) pairs match by default.
	p, err := NewPlanner(c, resolver, nil, nil).Plan(context.Background(), criteria)
	require.NoError(t, err)
	assert.Equal(t, 1, countRows(t, c, p))

	// 101 and 102 belong to torsiondrive 50.
	p, err = NewPlanner(c, resolver, nil, nil).MatchTorsiondriveParents(true).Plan(context.Background(), criteria)
	require.NoError(t, err)
	assert.Equal(t, 3, countRows(t, c, p))
}

func TestPlan_NoReporterSkipsCounting(t *testing.T) {
	p, err := NewPlanner(nil, mapResolver{}, nil, nil).Plan(context.Background(), types.QueryCriteria{Datasets: []string{"x"}})
	require.NoError(t, err)
	assert.False(t, p.AdmitsPartition(corpus.Partition{Specification: "s", Dataset: "y"}))
}

func TestPlan_CombinationErrors(t *testing.T) {
	c := seedCorpus(t)
	pl := NewPlanner(c, mapResolver{"empty": nil}, nil, nil)

	_, err := pl.Plan(context.Background(), types.QueryCriteria{Combinations: []string{"empty"}})
	assert.ErrorIs(t, err, types.ErrNoCombinations)

	_, err = pl.Plan(context.Background(), types.QueryCriteria{Combinations: []string{"missing"}})
	assert.ErrorIs(t, err, ErrCombinationNotFound)
}

func TestWriterReporter(t *testing.T) {
	var buf bytes.Buffer
	r := WriterReporter(&buf)
	r.Filtered(StepLoaded, 10)
	r.Filtered(StepSpecifications, 4)
	assert.Equal(t, "Loaded 10 molecules\nFiltered for specifications to 4 molecules\n", buf.String())
}

func TestCommandSuffix(t *testing.T) {
	criteria := types.QueryCriteria{
		Specifications: []string{"default"},
		Datasets:       []string{"b", "a"},
		RecordTypes:    []types.RecordType{types.RecordOptimization},
		Combinations:   []string{"sage"},
	}
	assert.Equal(t,
		" --combination 'sage' --spec 'default' --dataset 'b' --dataset 'a' --type 'optimization'",
		CommandSuffix(criteria))
	assert.Equal(t, "", CommandSuffix(types.QueryCriteria{}))
	assert.Equal(t, "botsearch --pattern 'CCO' --combination 'sage' --spec 'default' --dataset 'b' --dataset 'a' --type 'optimization'",
		Command("botsearch", "CCO", criteria))
}

func TestDirResolver(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sage.csv"),
		[]byte("type,id\noptimization,12\ntorsiondrive,34\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.csv"),
		[]byte("type,id\nsinglepoint,1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "noheader.csv"),
		[]byte("kind,record\noptimization,1\n"), 0o644))

	r := DirResolver{Dir: dir}
	refs, err := r.Resolve("sage")
	require.NoError(t, err)
	assert.Equal(t, []types.RecordRef{
		{Type: types.RecordOptimization, ID: 12},
		{Type: types.RecordTorsiondrive, ID: 34},
	}, refs)

	_, err = r.Resolve("bad")
	assert.Error(t, err)
	_, err = r.Resolve("noheader")
	assert.Error(t, err)
	_, err = r.Resolve("missing")
	assert.ErrorIs(t, err, ErrCombinationNotFound)
	_, err = r.Resolve("../sage")
	assert.Error(t, err)
}

func TestReadCombination_ExtraColumns(t *testing.T) {
	refs, err := ReadCombination(strings.NewReader("id,type,note\n7,optimization,x\n"))
	require.NoError(t, err)
	assert.Equal(t, []types.RecordRef{{Type: types.RecordOptimization, ID: 7}}, refs)

	_, err = ReadCombination(strings.NewReader(""))
	assert.Error(t, err)
	_, err = ReadCombination(strings.NewReader("type,id\noptimization,x\n"))
	assert.Error(t, err)
}

func TestBuildCombination(t *testing.T) {
	dir := t.TempDir()
	for _, d := range []string{"torsion-18536097", "torsion-42", "opt-set1", "opt-set2"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, d), 0o755))
	}
	for _, f := range []string{"opt-set1/900-conf0.xyz", "opt-set2/77-a.xyz", "opt-set2/readme.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), nil, 0o644))
	}

	refs, err := BuildCombination(dir)
	require.NoError(t, err)
	assert.Equal(t, []types.RecordRef{
		{Type: types.RecordTorsiondrive, ID: 18536097},
		{Type: types.RecordTorsiondrive, ID: 42},
		{Type: types.RecordOptimization, ID: 900},
		{Type: types.RecordOptimization, ID: 77},
	}, refs)

	var buf bytes.Buffer
	require.NoError(t, WriteCombination(&buf, refs))
	back, err := ReadCombination(&buf)
	require.NoError(t, err)
	assert.Equal(t, refs, back)

	_, err = BuildCombination(filepath.Join(dir, "missing"))
	assert.Error(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "torsion-abc"), 0o755))
	_, err = BuildCombination(dir)
	assert.Error(t, err)
}

func defaultPatterns(t *testing.T) *Patterns {
	t.Helper()
	p, err := CompilePatterns(types.DefaultCommentConfig())
	require.NoError(t, err)
	return p
}

func TestParseComment(t *testing.T) {
	p := defaultPatterns(t)
	req, err := ParseComment(`/botsearch -pattern '[#6:1]-[#8:2]' -spec default -dataset "opt-a" -dataset td-b -type torsiondrive -combination sage`, p)
	require.NoError(t, err)
	assert.Equal(t, "[#6:1]-[#8:2]", req.Pattern)
	assert.Equal(t, []string{"default"}, req.Criteria.Specifications)
	assert.Equal(t, []string{"opt-a", "td-b"}, req.Criteria.Datasets)
	assert.Equal(t, []types.RecordType{types.RecordTorsiondrive}, req.Criteria.RecordTypes)
	assert.Equal(t, []string{"sage"}, req.Criteria.Combinations)
	assert.Equal(t, []string{
		"--pattern", "[#6:1]-[#8:2]",
		"--dataset", "opt-a", "--dataset", "td-b",
		"--spec", "default",
		"--type", "torsiondrive",
		"--combination", "sage",
	}, req.Args())
}

func TestParseComment_Errors(t *testing.T) {
	p := defaultPatterns(t)
	_, err := ParseComment("no search here", p)
	assert.ErrorIs(t, err, ErrNoPattern)

	_, err = ParseComment("-pattern CCO -pattern c1ccccc1", p)
	assert.ErrorIs(t, err, ErrMultiplePatterns)

	_, err = ParseComment("-pattern CCO -type widget", p)
	assert.Error(t, err)

	_, err = ParseComment("-pattern CCO -type basic", p)
	assert.Error(t, err, "collection spellings are not filter values")
}

func TestParseIssue(t *testing.T) {
	p := defaultPatterns(t)
	got, err := ParseIssue("### Pattern\n\nSMILES: [#6:1]~[#7:2]\n", p)
	require.NoError(t, err)
	assert.Equal(t, "[#6:1]~[#7:2]", got)

	_, err = ParseIssue("nothing", p)
	assert.True(t, errors.Is(err, ErrNoPattern))
}

func TestCompilePatterns_Errors(t *testing.T) {
	cfg := types.DefaultCommentConfig()
	cfg.Dataset = `-dataset (`
	_, err := CompilePatterns(cfg)
	assert.Error(t, err)

	cfg = types.DefaultCommentConfig()
	cfg.Spec = `-spec \w+`
	_, err = CompilePatterns(cfg)
	assert.Error(t, err)
}

func TestQueryFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "query.yaml")
	criteria := types.QueryCriteria{
		Specifications: []string{"default"},
		RecordTypes:    []types.RecordType{types.RecordOptimization, types.RecordTorsiondrive},
	}
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, WriteQueryFile(path, QueryFile{
		Query:   NewQueryParams("CCO", criteria),
		Summary: QuerySummary{Outcome: "matched", MatchedIdentities: 1, MatchedRows: 3, Timestamp: ts},
	}))

	qf, err := ReadQueryFile(path)
	require.NoError(t, err)
	assert.Equal(t, "CCO", qf.Query.Pattern)
	assert.Equal(t, 3, qf.Summary.MatchedRows)
	assert.True(t, ts.Equal(qf.Summary.Timestamp))

	got, err := qf.Query.Criteria()
	require.NoError(t, err)
	assert.Equal(t, criteria, got)
}

func TestReadQueryFile_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := ReadQueryFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(dir, "nopattern.yaml")
	require.NoError(t, os.WriteFile(path, []byte("query:\n  datasets: [a]\n"), 0o644))
	_, err = ReadQueryFile(path)
	assert.Error(t, err)

	bad := QueryParams{Pattern: "C", Types: []string{"widget"}}
	_, err = bad.Criteria()
	assert.Error(t, err)
}
