// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/pdiddy/qca-catalog/pkg/types"
)

// ErrUnknownKind is returned by Decode when neither the caller nor the
// document names a record type.
var ErrUnknownKind = errors.New("collection record type unknown")

// Entry is one record listed in a result collection.
type Entry struct {
	Type     string `json:"type"`
	RecordID int64  `json:"record_id"`
	CMILES   string `json:"cmiles"`
	InChIKey string `json:"inchi_key"`
}

// OptimizationRef points at the optimization that minimized a grid point.
type OptimizationRef struct {
	ID int64 `json:"id"`
}

// TorsionRecord is the torsiondrive payload needed for fan-out: the scanned
// dihedrals and the minimum-energy optimization of every grid point.
type TorsionRecord struct {
	ID            int64 `json:"id"`
	Specification struct {
		Keywords struct {
			Dihedrals [][]int64 `json:"dihedrals"`
		} `json:"keywords"`
	} `json:"specification"`
	MinimumOptimizations map[string]OptimizationRef `json:"minimum_optimizations"`
}

// Dihedrals returns the scanned dihedral quadruples.
func (r TorsionRecord) Dihedrals() [][]int64 { return r.Specification.Keywords.Dihedrals }

// Collection is a decoded result collection of one record type.
type Collection struct {
	Kind    types.RecordType
	Entries []Entry
	Records []TorsionRecord
}

type rawCollection struct {
	Type    string             `json:"type"`
	Entries map[string][]Entry `json:"entries"`
	Records []TorsionRecord    `json:"records"`
}

// Decode reads a qcsubmit result collection. A non-empty kind overrides the
// document's own type field. Entries are taken from entries[server]; an
// empty server reads every server key in sorted order.
func Decode(r io.Reader, kind types.RecordType, server string) (*Collection, error) {
	var raw rawCollection
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding collection: %w", err)
	}

	if kind == "" {
		if raw.Type == "" {
			return nil, ErrUnknownKind
		}
		k, err := types.ParseRecordType(strings.TrimSuffix(raw.Type, "ResultCollection"))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnknownKind, err)
		}
		kind = k
	}

	c := &Collection{Kind: kind, Records: raw.Records}
	if server != "" {
		entries, ok := raw.Entries[server]
		if !ok {
			return nil, fmt.Errorf("collection has no entries for server %s", server)
		}
		c.Entries = entries
		return c, nil
	}
	for _, key := range slices.Sorted(maps.Keys(raw.Entries)) {
		c.Entries = append(c.Entries, raw.Entries[key]...)
	}
	return c, nil
}

// ParseGridKey reads a grid coordinate key. The archive spells keys as
// "[0, 90]", "(0, 90)", "(0,)" or a bare "0".
func ParseGridKey(key string) ([]int64, error) {
	s := strings.TrimSpace(key)
	if len(s) >= 2 && (s[0] == '[' && s[len(s)-1] == ']' || s[0] == '(' && s[len(s)-1] == ')') {
		s = s[1 : len(s)-1]
	}
	var out []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(part, 64)
			if ferr != nil || f != float64(int64(f)) {
				return nil, fmt.Errorf("grid key %q: invalid coordinate %q", key, part)
			}
			v = int64(f)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("grid key %q: no coordinates", key)
	}
	return out, nil
}
