// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package normalize

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pdiddy/qca-catalog/internal/logging"
	"github.com/pdiddy/qca-catalog/pkg/types"
)

const server = "https://api.qcarchive.molssi.org:443/"

const optimizationJSON = `{
  "type": "OptimizationResultCollection",
  "entries": {
    "https://api.qcarchive.molssi.org:443/": [
      {"type": "optimization", "record_id": 11, "cmiles": "[H:4][C:1]([H:5])([H:6])[C:2]([H:7])([H:8])[O:3][H:9]", "inchi_key": "LFQSCWFLJHTTHZ-UHFFFAOYSA-N"},
      {"type": "optimization", "record_id": 12, "cmiles": "c1ccccc1", "inchi_key": "UHOVQNZJYSORNB-UHFFFAOYSA-N"},
      {"type": "optimization", "record_id": 13, "cmiles": "C1CC(", "inchi_key": "BAD"},
      {"type": "optimization", "record_id": 11, "cmiles": "CCO", "inchi_key": "LFQSCWFLJHTTHZ-UHFFFAOYSA-N"},
      {"type": "optimization", "record_id": 14, "cmiles": "", "inchi_key": ""}
    ]
  }
}`

const torsiondriveJSON = `{
  "type": "TorsionDriveResultCollection",
  "entries": {
    "https://api.qcarchive.molssi.org:443/": [
      {"type": "torsion", "record_id": 500, "cmiles": "CCCC", "inchi_key": "IJDNQMDRQITEOD-UHFFFAOYSA-N"},
      {"type": "torsion", "record_id": 501, "cmiles": "CCO", "inchi_key": "LFQSCWFLJHTTHZ-UHFFFAOYSA-N"},
      {"type": "torsion", "record_id": 502, "cmiles": "CCN", "inchi_key": "QUSNBJAOOMFDIB-UHFFFAOYSA-N"}
    ]
  },
  "records": [
    {
      "id": 500,
      "specification": {"keywords": {"dihedrals": [[0, 1, 2, 3]]}},
      "minimum_optimizations": {"(90,)": {"id": 902}, "(0,)": {"id": 901}}
    },
    {
      "id": 501,
      "specification": {"keywords": {"dihedrals": [[0, 1, 2, 8]]}},
      "minimum_optimizations": {}
    },
    {
      "id": 777,
      "specification": {"keywords": {"dihedrals": [[0, 1, 2, 3]]}},
      "minimum_optimizations": {"[0]": {"id": 1}}
    }
  ]
}`

func decode(t *testing.T, doc string) *Collection {
	t.Helper()
	c, err := Decode(strings.NewReader(doc), "", server)
	require.NoError(t, err)
	return c
}

func collect(n *Normalizer, c *Collection) []types.Row {
	return slices.Collect(n.Rows(c, "D1", "S1"))
}

func TestDecode_KindFromDocument(t *testing.T) {
	c := decode(t, optimizationJSON)
	assert.Equal(t, types.RecordOptimization, c.Kind)
	assert.Len(t, c.Entries, 5)

	c = decode(t, torsiondriveJSON)
	assert.Equal(t, types.RecordTorsiondrive, c.Kind)
	assert.Len(t, c.Records, 3)
	assert.Equal(t, [][]int64{{0, 1, 2, 3}}, c.Records[0].Dihedrals())
}

func TestDecode_KindOverride(t *testing.T) {
	c, err := Decode(strings.NewReader(optimizationJSON), types.RecordSinglepoint, server)
	require.NoError(t, err)
	assert.Equal(t, types.RecordSinglepoint, c.Kind)
}

func TestDecode_UnknownKind(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"entries": {}}`), "", server)
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = Decode(strings.NewReader(`{"type": "WeirdCollection"}`), "", server)
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestDecode_Servers(t *testing.T) {
	doc := `{"type": "BasicResultCollection", "entries": {
		"b": [{"record_id": 2, "cmiles": "C"}],
		"a": [{"record_id": 1, "cmiles": "C"}]}}`

	c, err := Decode(strings.NewReader(doc), "", "")
	require.NoError(t, err)
	require.Len(t, c.Entries, 2)
	assert.Equal(t, int64(1), c.Entries[0].RecordID, "servers read in sorted order")

	_, err = Decode(strings.NewReader(doc), "", "c")
	assert.Error(t, err)

	_, err = Decode(strings.NewReader("{"), "", "")
	assert.Error(t, err)
}

func TestParseGridKey(t *testing.T) {
	tests := []struct {
		key  string
		want []int64
	}{
		{"[0]", []int64{0}},
		{"(90,)", []int64{90}},
		{"(-165, 15)", []int64{-165, 15}},
		{"[0, 90]", []int64{0, 90}},
		{"45", []int64{45}},
		{"[30.0]", []int64{30}},
	}
	for _, tt := range tests {
		got, err := ParseGridKey(tt.key)
		require.NoError(t, err, tt.key)
		assert.Equal(t, tt.want, got, tt.key)
	}
	for _, bad := range []string{"", "()", "[a]", "[1.5]"} {
		_, err := ParseGridKey(bad)
		assert.Error(t, err, bad)
	}
}

func TestRows_Optimization(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	n := New(nil, logging.NewLoggerFromCore(core), server)

	rows := collect(n, decode(t, optimizationJSON))
	require.Len(t, rows, 2)

	assert.Equal(t, types.RecordOptimization, rows[0].RecordType)
	assert.Equal(t, int64(11), rows[0].RecordID)
	assert.Equal(t, "CCO", rows[0].CanonicalIdentity)
	assert.Equal(t, "D1", rows[0].Dataset)
	assert.Equal(t, "S1", rows[0].Specification)
	assert.Equal(t, types.AbsentID, rows[0].TorsiondriveID)
	assert.Equal(t, types.AbsentDihedrals(), rows[0].DihedralIndices)
	assert.Equal(t, types.AbsentGrid(), rows[0].GridID)
	assert.Equal(t, "c1ccccc1", rows[1].CanonicalIdentity)

	assert.Equal(t, Summary{Rows: 2, IdentityFailures: 1, SchemaFailures: 1, Duplicates: 1}, n.Summary())
	assert.Equal(t, 2, logs.FilterMessage("dropping record").Len())
	assert.Equal(t, 1, logs.FilterMessage("skipping duplicate").Len())
}

func TestRows_TorsiondriveFanOut(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	n := New(nil, logging.NewLoggerFromCore(core), server)

	rows := collect(n, decode(t, torsiondriveJSON))
	require.Len(t, rows, 2, "one row per grid point")

	for i, want := range []struct {
		id   int64
		grid []int64
	}{{901, []int64{0}}, {902, []int64{90}}} {
		r := rows[i]
		assert.Equal(t, types.RecordTorsiondrive, r.RecordType)
		assert.Equal(t, want.id, r.RecordID)
		assert.Equal(t, int64(500), r.TorsiondriveID)
		assert.Equal(t, want.grid, r.GridID)
		assert.Equal(t, []int64{0, 1, 2, 3}, r.DihedralIndices)
		assert.Equal(t, "CCCC", r.CanonicalIdentity)
		assert.True(t, r.IsTorsiondrive())
	}

	// 501 has no optimizations, 502 has no record, 777 has no entry.
	assert.Equal(t, Summary{Rows: 2, SchemaFailures: 3}, n.Summary())
	dropped := logs.FilterMessage("dropping record").All()
	require.Len(t, dropped, 3)
	for _, e := range dropped {
		assert.Contains(t, e.ContextMap()["error"], "torsiondrive record")
	}
}

func TestRows_Restartable(t *testing.T) {
	n := New(nil, nil, server)
	c := decode(t, torsiondriveJSON)
	seq := n.Rows(c, "D1", "S1")

	first := slices.Collect(seq)
	second := slices.Collect(seq)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.True(t, first[i].Equal(second[i]))
	}
}

func TestRows_EarlyStopKeepsSummary(t *testing.T) {
	n := New(nil, nil, server)
	c := decode(t, optimizationJSON)
	collect(n, c)
	want := n.Summary()

	for range n.Rows(c, "D1", "S1") {
		break
	}
	assert.Equal(t, want, n.Summary())
}

func TestRows_Deterministic(t *testing.T) {
	a := collect(New(nil, nil, server), decode(t, torsiondriveJSON))
	b := collect(New(nil, nil, server), decode(t, torsiondriveJSON))
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.True(t, a[i].Equal(b[i]), "row %d", i)
	}
}

func TestRows_MultiDimensionalDihedrals(t *testing.T) {
	doc := `{"type": "TorsionDriveResultCollection",
	  "entries": {"s": [{"record_id": 1, "cmiles": "CCCCC"}]},
	  "records": [{"id": 1,
	    "specification": {"keywords": {"dihedrals": [[0, 1, 2, 3], [1, 2, 3, 4]]}},
	    "minimum_optimizations": {"(0, 90)": {"id": 3}, "(0, -90)": {"id": 2}, "(-90, 0)": {"id": 4}}}]}`
	c, err := Decode(strings.NewReader(doc), "", "s")
	require.NoError(t, err)

	rows := collect(New(nil, nil, "s"), c)
	require.Len(t, rows, 3)
	assert.Equal(t, []int64{-90, 0}, rows[0].GridID)
	assert.Equal(t, []int64{0, -90}, rows[1].GridID)
	assert.Equal(t, []int64{0, 90}, rows[2].GridID)
	assert.Equal(t, [][4]int64{{0, 1, 2, 3}, {1, 2, 3, 4}}, rows[0].Dihedrals())
}

func TestNormalizeFile(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "optimization", "default")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	// No type field: kind comes from the grandparent directory.
	doc := strings.Replace(optimizationJSON, `"type": "OptimizationResultCollection",`, "", 1)
	path := filepath.Join(dir, "my-dataset.json")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	n := New(nil, nil, server)
	in, rows, err := n.NormalizeFile(path)
	require.NoError(t, err)
	assert.Equal(t, "my-dataset", in.Dataset)
	assert.Equal(t, "default", in.Specification)
	assert.Equal(t, types.RecordOptimization, in.Kind)

	got := slices.Collect(rows)
	require.Len(t, got, 2)
	assert.Equal(t, "my-dataset", got[0].Dataset)
	assert.Equal(t, "default", got[0].Specification)
}

func TestNormalizeFile_Errors(t *testing.T) {
	n := New(nil, nil, server)
	_, _, err := n.NormalizeFile(filepath.Join(t.TempDir(), "spec", "missing.json"))
	assert.Error(t, err)

	dir := filepath.Join(t.TempDir(), "spec")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "untyped.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"entries": {}}`), 0o644))
	_, _, err = n.NormalizeFile(path)
	assert.ErrorIs(t, err, ErrUnknownKind)
}
