// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package corpus

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/pdiddy/qca-catalog/pkg/types"
)

// set is a constraint on one field. A nil set is unconstrained; an empty
// non-nil set admits nothing.
type set[T comparable] map[T]struct{}

func newSet[T comparable](values []T) set[T] {
	s := make(set[T], len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

func (s set[T]) admits(v T) bool {
	if s == nil {
		return true
	}
	_, ok := s[v]
	return ok
}

func intersect[T comparable](a, b set[T]) set[T] {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	out := make(set[T])
	for v := range a {
		if _, ok := b[v]; ok {
			out[v] = struct{}{}
		}
	}
	return out
}

// Membership admits rows whose (type, record id) pair is listed.
type Membership struct {
	records set[types.RecordRef]

	// parents is nil unless torsiondrive parent matching is enabled.
	parents set[int64]
}

// NewMembership returns a Membership over refs.
func NewMembership(refs []types.RecordRef) *Membership {
	return &Membership{records: newSet(refs)}
}

// WithTorsiondriveParents returns a copy of m that also admits every
// torsiondrive grid point whose parent torsiondrive id is listed.
func (m *Membership) WithTorsiondriveParents() *Membership {
	out := &Membership{records: m.records, parents: make(set[int64])}
	for r := range m.records {
		if r.Type == types.RecordTorsiondrive {
			out.parents[r.ID] = struct{}{}
		}
	}
	return out
}

// Len returns the number of listed pairs.
func (m *Membership) Len() int { return len(m.records) }

func (m *Membership) admits(r types.Row) bool {
	if _, ok := m.records[r.Ref()]; ok {
		return true
	}
	if m.parents != nil && r.RecordType == types.RecordTorsiondrive {
		_, ok := m.parents[r.TorsiondriveID]
		return ok
	}
	return false
}

// Predicate selects corpus rows. Specification and dataset are partition
// keys and are checked before a partition is opened.
type Predicate struct {
	specs    set[string]
	datasets set[string]
	kinds    set[types.RecordType]
	members  []*Membership
}

// All returns the predicate that admits every row.
func All() Predicate { return Predicate{} }

// SpecIn admits rows whose specification is one of names.
func SpecIn(names ...string) Predicate { return Predicate{specs: newSet(names)} }

// DatasetIn admits rows whose dataset is one of names.
func DatasetIn(names ...string) Predicate { return Predicate{datasets: newSet(names)} }

// TypeIn admits rows of the given record types.
func TypeIn(kinds ...types.RecordType) Predicate { return Predicate{kinds: newSet(kinds)} }

// MemberOf admits rows listed in m.
func MemberOf(m *Membership) Predicate { return Predicate{members: []*Membership{m}} }

// And returns the predicate admitting rows admitted by p and every other.
func (p Predicate) And(others ...Predicate) Predicate {
	out := p
	out.members = slices.Clone(p.members)
	for _, o := range others {
		out.specs = intersect(out.specs, o.specs)
		out.datasets = intersect(out.datasets, o.datasets)
		out.kinds = intersect(out.kinds, o.kinds)
		out.members = append(out.members, o.members...)
	}
	return out
}

// AdmitsPartition reports whether rows of part can satisfy p.
func (p Predicate) AdmitsPartition(part Partition) bool {
	return p.specs.admits(part.Specification) && p.datasets.admits(part.Dataset)
}

// Admits reports whether r satisfies p.
func (p Predicate) Admits(r types.Row) bool {
	if !p.specs.admits(r.Specification) || !p.datasets.admits(r.Dataset) || !p.kinds.admits(r.RecordType) {
		return false
	}
	for _, m := range p.members {
		if !m.admits(r) {
			return false
		}
	}
	return true
}

// KeyOnly reports whether p constrains nothing but partition keys, so a
// partition it admits is admitted whole.
func (p Predicate) KeyOnly() bool {
	return p.kinds == nil && len(p.members) == 0
}

// Empty reports whether p provably admits nothing.
func (p Predicate) Empty() bool {
	if p.specs != nil && len(p.specs) == 0 ||
		p.datasets != nil && len(p.datasets) == 0 ||
		p.kinds != nil && len(p.kinds) == 0 {
		return true
	}
	for _, m := range p.members {
		if m.Len() == 0 {
			return true
		}
	}
	return false
}

func (p Predicate) String() string {
	var parts []string
	add := func(name string, values []string) {
		slices.Sort(values)
		parts = append(parts, fmt.Sprintf("%s in [%s]", name, strings.Join(values, ",")))
	}
	if p.specs != nil {
		add("specification", slices.Collect(maps.Keys(p.specs)))
	}
	if p.datasets != nil {
		add("dataset", slices.Collect(maps.Keys(p.datasets)))
	}
	if p.kinds != nil {
		var kinds []string
		for k := range p.kinds {
			kinds = append(kinds, string(k))
		}
		add("type", kinds)
	}
	for _, m := range p.members {
		parts = append(parts, fmt.Sprintf("member of %d records", m.Len()))
	}
	if len(parts) == 0 {
		return "all"
	}
	return strings.Join(parts, " and ")
}
