// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/qca-catalog/internal/corpus"
	"github.com/pdiddy/qca-catalog/internal/query"
	"github.com/pdiddy/qca-catalog/pkg/types"
)

func TestShellJoin(t *testing.T) {
	got := shellJoin([]string{"--pattern", "[#6:1]-[#8]", "--spec", "it's"})
	assert.Equal(t, `--pattern '[#6:1]-[#8]' --spec 'it'\''s'`, got)
}

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "search"}
	cmd.Flags().String("pattern", "", "")
	cmd.Flags().StringSlice("spec", nil, "")
	cmd.Flags().StringSlice("dataset", nil, "")
	cmd.Flags().StringSlice("type", nil, "")
	cmd.Flags().StringSlice("combination", nil, "")
	cmd.Flags().String("query-file", "", "")
	return cmd
}

func TestSearchRequest_Flags(t *testing.T) {
	cmd := newSearchCmd()
	require.NoError(t, cmd.Flags().Parse([]string{
		"--pattern", "CCO", "--spec", "a,b", "--type", "torsiondrive", "--combination", "x",
	}))
	req, err := searchRequest(cmd)
	require.NoError(t, err)
	assert.Equal(t, "CCO", req.Pattern)
	assert.Equal(t, []string{"a", "b"}, req.Criteria.Specifications)
	assert.Equal(t, []types.RecordType{types.RecordTorsiondrive}, req.Criteria.RecordTypes)
	assert.Equal(t, []string{"x"}, req.Criteria.Combinations)
}

func TestSearchRequest_QueryFileWithOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q.yaml")
	require.NoError(t, query.WriteQueryFile(path, query.QueryFile{
		Query: query.QueryParams{Pattern: "c1ccccc1", Datasets: []string{"d1"}, Types: []string{"optimization"}},
	}))

	cmd := newSearchCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--query-file", path, "--dataset", "d2"}))
	req, err := searchRequest(cmd)
	require.NoError(t, err)
	assert.Equal(t, "c1ccccc1", req.Pattern)
	assert.Equal(t, []string{"d2"}, req.Criteria.Datasets)
	assert.Equal(t, []types.RecordType{types.RecordOptimization}, req.Criteria.RecordTypes)
}

func TestSearchRequest_Errors(t *testing.T) {
	_, err := searchRequest(newSearchCmd())
	assert.Error(t, err, "pattern required")

	cmd := newSearchCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--pattern", "C", "--type", "basic"}))
	_, err = searchRequest(cmd)
	assert.Error(t, err)
}

func TestSelectInputs(t *testing.T) {
	input := t.TempDir()
	path := filepath.Join(input, "optimization", "default", "set-a.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))
	c := corpus.Open(filepath.Join(t.TempDir(), "tables"), nil)

	files, err := selectInputs(c, input, nil, true)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "set-a", files[0].Dataset)

	files, err = selectInputs(c, "unused", []string{path}, false)
	require.NoError(t, err)
	assert.Equal(t, types.RecordOptimization, files[0].Kind)

	_, err = selectInputs(c, "unused", []string{"notes.txt"}, false)
	assert.Error(t, err)
}
