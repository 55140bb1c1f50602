// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "slices"

// QueryCriteria selects a view of the corpus. Each non-empty set constrains
// one row field; empty sets impose no constraint. Combinations are OR-ed
// together and AND-ed with the other sets.
type QueryCriteria struct {
	Specifications []string     `json:"specifications,omitempty" yaml:"specifications,omitempty"`
	Datasets       []string     `json:"datasets,omitempty" yaml:"datasets,omitempty"`
	RecordTypes    []RecordType `json:"types,omitempty" yaml:"types,omitempty"`
	Combinations   []string     `json:"combinations,omitempty" yaml:"combinations,omitempty"`
}

// IsEmpty reports whether the criteria select the whole corpus.
func (c QueryCriteria) IsEmpty() bool {
	return len(c.Specifications) == 0 && len(c.Datasets) == 0 &&
		len(c.RecordTypes) == 0 && len(c.Combinations) == 0
}

// Normalized returns a copy with every set sorted and de-duplicated, so the
// caller's slices are never shared.
func (c QueryCriteria) Normalized() QueryCriteria {
	return QueryCriteria{
		Specifications: sortedUnique(c.Specifications),
		Datasets:       sortedUnique(c.Datasets),
		RecordTypes:    sortedUnique(c.RecordTypes),
		Combinations:   sortedUnique(c.Combinations),
	}
}

func sortedUnique[T ~string](in []T) []T {
	if len(in) == 0 {
		return nil
	}
	out := slices.Clone(in)
	slices.Sort(out)
	return slices.Compact(out)
}
