// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package corpus

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/qca-catalog/pkg/types"
)

// countingStorage records which partitions were opened.
type countingStorage struct {
	*DirStorage
	opened []Partition
}

func (s *countingStorage) Open(p Partition) (ReadFile, error) {
	s.opened = append(s.opened, p)
	return s.DirStorage.Open(p)
}

func makeRows(spec, dataset string, kind types.RecordType, ids ...int64) []types.Row {
	rows := make([]types.Row, 0, len(ids))
	for _, id := range ids {
		r := types.Row{
			RecordType:        kind,
			RecordID:          id,
			RawIdentifier:     "CCO",
			StructureKey:      "LFQSCWFLJHTTHZ-UHFFFAOYSA-N",
			CanonicalIdentity: "CCO",
			Dataset:           dataset,
			Specification:     spec,
			TorsiondriveID:    types.AbsentID,
			DihedralIndices:   types.AbsentDihedrals(),
			GridID:            types.AbsentGrid(),
		}
		if kind == types.RecordTorsiondrive {
			r.TorsiondriveID = 1000 + id/10
			r.DihedralIndices = []int64{0, 1, 2, 3}
			r.GridID = []int64{id % 10 * 15}
		}
		rows = append(rows, r)
	}
	return rows
}

func newTestCorpus(t *testing.T) (*Corpus, *countingStorage) {
	t.Helper()
	store := &countingStorage{DirStorage: NewDirStorage(filepath.Join(t.TempDir(), "tables"))}
	c := New(store, nil)
	ctx := context.Background()
	seed := []struct {
		spec, dataset string
		kind          types.RecordType
		ids           []int64
	}{
		{"default", "opt-set", types.RecordOptimization, []int64{1, 2, 3}},
		{"default", "td-set", types.RecordTorsiondrive, []int64{10, 11, 20}},
		{"other", "opt-set", types.RecordOptimization, []int64{4}},
		{"other", "sp-set", types.RecordSinglepoint, []int64{5, 6}},
	}
	for _, s := range seed {
		n, err := c.Append(ctx, s.spec, s.dataset, slices.Values(makeRows(s.spec, s.dataset, s.kind, s.ids...)))
		require.NoError(t, err)
		require.Equal(t, len(s.ids), n)
	}
	return c, store
}

func scanAll(t *testing.T, c *Corpus, p Predicate) []types.Row {
	t.Helper()
	var out []types.Row
	for r, err := range c.Scan(context.Background(), p) {
		require.NoError(t, err)
		out = append(out, r)
	}
	return out
}

func ids(rows []types.Row) []int64 {
	out := make([]int64, len(rows))
	for i, r := range rows {
		out[i] = r.RecordID
	}
	return out
}

func TestAppend_RoundTrip(t *testing.T) {
	c, _ := newTestCorpus(t)
	rows := scanAll(t, c, SpecIn("default").And(DatasetIn("td-set")))
	want := makeRows("default", "td-set", types.RecordTorsiondrive, 10, 11, 20)
	require.Len(t, rows, len(want))
	for i := range want {
		assert.True(t, want[i].Equal(rows[i]), "row %d: %+v", i, rows[i])
	}
}

func TestAppend_Idempotent(t *testing.T) {
	root := t.TempDir()
	c := Open(root, nil)
	ctx := context.Background()
	rows := makeRows("default", "opt-set", types.RecordOptimization, 1, 2, 3)

	_, err := c.Append(ctx, "default", "opt-set", slices.Values(rows))
	require.NoError(t, err)
	path := filepath.Join(root, "default", "opt-set.parquet")
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = c.Append(ctx, "default", "opt-set", slices.Values(rows))
	require.NoError(t, err)
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, first, second, "rewrite is byte-identical")

	entries, err := os.ReadDir(filepath.Join(root, "default"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestAppend_RejectsForeignRows(t *testing.T) {
	root := t.TempDir()
	c := Open(root, nil)
	rows := makeRows("default", "other", types.RecordOptimization, 1)
	_, err := c.Append(context.Background(), "default", "opt-set", slices.Values(rows))
	require.Error(t, err)

	_, err = os.Stat(filepath.Join(root, "default", "opt-set.parquet"))
	assert.True(t, os.IsNotExist(err), "aborted write leaves no partition")

	_, err = c.Append(context.Background(), "../x", "opt-set", slices.Values(rows))
	assert.Error(t, err)
}

func TestAppend_KeepsOldPartitionOnFailure(t *testing.T) {
	root := t.TempDir()
	c := Open(root, nil)
	ctx := context.Background()
	good := makeRows("default", "opt-set", types.RecordOptimization, 1, 2)
	_, err := c.Append(ctx, "default", "opt-set", slices.Values(good))
	require.NoError(t, err)

	bad := append(makeRows("default", "opt-set", types.RecordOptimization, 3), makeRows("x", "y", types.RecordOptimization, 4)...)
	_, err = c.Append(ctx, "default", "opt-set", slices.Values(bad))
	require.Error(t, err)

	assert.Equal(t, []int64{1, 2}, ids(scanAll(t, c, All())))
}

func TestPartitions(t *testing.T) {
	c, _ := newTestCorpus(t)
	parts, err := c.Partitions()
	require.NoError(t, err)
	assert.Equal(t, []Partition{
		{"default", "opt-set"}, {"default", "td-set"}, {"other", "opt-set"}, {"other", "sp-set"},
	}, parts)

	empty, err := Open(filepath.Join(t.TempDir(), "missing"), nil).Partitions()
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestScan_PrunesPartitions(t *testing.T) {
	c, store := newTestCorpus(t)

	rows := scanAll(t, c, SpecIn("other"))
	assert.Equal(t, []int64{4, 5, 6}, ids(rows))
	assert.Equal(t, []Partition{{"other", "opt-set"}, {"other", "sp-set"}}, store.opened)

	store.opened = nil
	rows = scanAll(t, c, DatasetIn("opt-set").And(SpecIn("default")))
	assert.Equal(t, []int64{1, 2, 3}, ids(rows))
	assert.Equal(t, []Partition{{"default", "opt-set"}}, store.opened)

	store.opened = nil
	assert.Empty(t, scanAll(t, c, SpecIn()))
	assert.Empty(t, store.opened, "empty key set opens nothing")
}

func TestScan_RowFilters(t *testing.T) {
	c, _ := newTestCorpus(t)
	assert.Equal(t, []int64{10, 11, 20}, ids(scanAll(t, c, TypeIn(types.RecordTorsiondrive))))

	m := NewMembership([]types.RecordRef{
		{Type: types.RecordOptimization, ID: 2},
		{Type: types.RecordTorsiondrive, ID: 1001}, // parent of 10 and 11
		{Type: types.RecordTorsiondrive, ID: 20},
		{Type: types.RecordSinglepoint, ID: 2},
	})
	assert.Equal(t, []int64{2, 20}, ids(scanAll(t, c, MemberOf(m))))
	assert.Equal(t, []int64{2, 10, 11, 20}, ids(scanAll(t, c, MemberOf(m.WithTorsiondriveParents()))))
}

func TestScan_Restartable(t *testing.T) {
	c, _ := newTestCorpus(t)
	seq := c.Scan(context.Background(), All())
	count := func() int {
		n := 0
		for _, err := range seq {
			require.NoError(t, err)
			n++
		}
		return n
	}
	assert.Equal(t, 9, count())
	assert.Equal(t, 9, count())
}

func TestScan_Cancelled(t *testing.T) {
	c, _ := newTestCorpus(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var got error
	for _, err := range c.Scan(ctx, All()) {
		got = err
	}
	assert.ErrorIs(t, got, context.Canceled)
}

func TestScan_CorruptPartition(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "default"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "default", "broken.parquet"), []byte("not parquet"), 0o644))

	c := Open(root, nil)
	var got error
	for _, err := range c.Scan(context.Background(), All()) {
		got = err
	}
	require.Error(t, got)
	assert.True(t, errors.Is(got, types.ErrStorage))

	var se *types.StorageError
	require.True(t, errors.As(got, &se))
	assert.Equal(t, "default/broken.parquet", se.Path)

	_, err := c.Count(context.Background(), All())
	assert.ErrorIs(t, err, types.ErrStorage)
}

func TestCount(t *testing.T) {
	c, store := newTestCorpus(t)
	ctx := context.Background()

	tests := []struct {
		p    Predicate
		want int
	}{
		{All(), 9},
		{SpecIn("default"), 6},
		{SpecIn("default").And(TypeIn(types.RecordOptimization)), 3},
		{TypeIn(types.RecordSinglepoint, types.RecordTorsiondrive), 5},
		{DatasetIn("nope"), 0},
		{TypeIn(), 0},
	}
	for i, tt := range tests {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			n, err := c.Count(ctx, tt.p)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n, tt.p.String())
		})
	}

	store.opened = nil
	_, err := c.Count(ctx, DatasetIn("sp-set"))
	require.NoError(t, err)
	assert.Equal(t, []Partition{{"other", "sp-set"}}, store.opened)
}

func TestPending(t *testing.T) {
	c, _ := newTestCorpus(t)
	input := t.TempDir()
	for _, rel := range []string{
		"optimization/default/opt-set.json",
		"optimization/default/new-opt.json",
		"torsiondrive/other/td-new.json",
		"other/sp-set.json",
		"other/.hidden.json",
	} {
		path := filepath.Join(input, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))
	}

	pending, err := c.Pending(input)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, types.InputFile{
		Path:          filepath.Join(input, "optimization/default/new-opt.json"),
		Kind:          types.RecordOptimization,
		Specification: "default",
		Dataset:       "new-opt",
	}, pending[0])
	assert.Equal(t, "td-new", pending[1].Dataset)
	assert.Equal(t, types.RecordTorsiondrive, pending[1].Kind)

	_, err = c.Pending(filepath.Join(input, "missing"))
	assert.Error(t, err)
}

func TestInputs(t *testing.T) {
	input := t.TempDir()
	for _, rel := range []string{"b/two.json", "optimization/a/one.json", "b/notes.txt"} {
		path := filepath.Join(input, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))
	}
	inputs, err := Inputs(input)
	require.NoError(t, err)
	require.Len(t, inputs, 2)
	assert.Equal(t, "two", inputs[0].Dataset)
	assert.Equal(t, "b", inputs[0].Specification)
	assert.Equal(t, "one", inputs[1].Dataset)
	assert.Equal(t, types.RecordOptimization, inputs[1].Kind)
}
