// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package query

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/qca-catalog/pkg/types"
)

// QueryFile is the on-disk form of a search so it can be rerun later.
type QueryFile struct {
	Query   QueryParams  `yaml:"query"`
	Summary QuerySummary `yaml:"summary,omitempty"`
}

// QueryParams stores the pattern and criteria of a search.
type QueryParams struct {
	Pattern        string   `yaml:"pattern"`
	Specifications []string `yaml:"specifications,omitempty"`
	Datasets       []string `yaml:"datasets,omitempty"`
	Types          []string `yaml:"types,omitempty"`
	Combinations   []string `yaml:"combinations,omitempty"`
}

// QuerySummary stores the outcome of the search that wrote the file.
type QuerySummary struct {
	RunID             string    `yaml:"run_id,omitempty"`
	Outcome           string    `yaml:"outcome,omitempty"`
	MatchedIdentities int       `yaml:"matched_identities"`
	MatchedRows       int       `yaml:"matched_rows"`
	Timestamp         time.Time `yaml:"timestamp"`
}

// NewQueryParams captures pattern and criteria.
func NewQueryParams(pattern string, criteria types.QueryCriteria) QueryParams {
	qp := QueryParams{
		Pattern:        pattern,
		Specifications: criteria.Specifications,
		Datasets:       criteria.Datasets,
		Combinations:   criteria.Combinations,
	}
	for _, t := range criteria.RecordTypes {
		qp.Types = append(qp.Types, string(t))
	}
	return qp
}

// Criteria converts stored parameters back into criteria.
func (p QueryParams) Criteria() (types.QueryCriteria, error) {
	c := types.QueryCriteria{
		Specifications: p.Specifications,
		Datasets:       p.Datasets,
		Combinations:   p.Combinations,
	}
	for _, t := range p.Types {
		kind, err := types.RecordTypeFromName(t)
		if err != nil {
			return c, fmt.Errorf("invalid type %q: %w", t, err)
		}
		c.RecordTypes = append(c.RecordTypes, kind)
	}
	return c, nil
}

// WriteQueryFile saves a search to a YAML file.
func WriteQueryFile(path string, qf QueryFile) error {
	data, err := yaml.Marshal(&qf)
	if err != nil {
		return fmt.Errorf("marshaling query file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadQueryFile loads a saved search.
func ReadQueryFile(path string) (*QueryFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading query file: %w", err)
	}
	var qf QueryFile
	if err := yaml.Unmarshal(data, &qf); err != nil {
		return nil, fmt.Errorf("parsing query file: %w", err)
	}
	if qf.Query.Pattern == "" {
		return nil, fmt.Errorf("query file %s has no pattern", path)
	}
	return &qf, nil
}
