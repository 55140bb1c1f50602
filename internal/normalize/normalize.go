// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package normalize turns raw qcsubmit result collections into corpus rows.
// Singlepoint and optimization entries map to one row each; torsiondrive
// records fan out to one row per grid point.
package normalize

import (
	"bytes"
	"errors"
	"fmt"
	"iter"
	"os"
	"slices"

	"github.com/pdiddy/qca-catalog/internal/identity"
	"github.com/pdiddy/qca-catalog/internal/logging"
	"github.com/pdiddy/qca-catalog/pkg/types"
)

// Summary holds counts from one full pass over a collection.
type Summary struct {
	Rows             int `json:"rows" yaml:"rows"`
	IdentityFailures int `json:"identity_failures" yaml:"identity_failures"`
	SchemaFailures   int `json:"schema_failures" yaml:"schema_failures"`
	Duplicates       int `json:"duplicates" yaml:"duplicates"`
}

// Dropped returns the number of records that produced no rows.
func (s Summary) Dropped() int {
	return s.IdentityFailures + s.SchemaFailures + s.Duplicates
}

// Normalizer converts collections to rows. It shares one Canonicalizer, and
// so one identity cache, across every collection of a run.
type Normalizer struct {
	canon   *identity.Canonicalizer
	log     logging.Logger
	server  string
	summary Summary
}

// New returns a Normalizer. A nil canonicalizer gets a fresh one; a nil
// logger discards diagnostics.
func New(canon *identity.Canonicalizer, log logging.Logger, server string) *Normalizer {
	if canon == nil {
		canon = identity.NewCanonicalizer()
	}
	return &Normalizer{canon: canon, log: logging.OrNop(log).Named("normalize"), server: server}
}

// Summary returns the counts of the last pass that ran to completion.
func (n *Normalizer) Summary() Summary { return n.summary }

// Rows returns the rows of c stamped with dataset and specification. The
// sequence is lazy and may be ranged over more than once; each complete
// pass replaces Summary.
func (n *Normalizer) Rows(c *Collection, dataset, specification string) iter.Seq[types.Row] {
	return func(yield func(types.Row) bool) {
		p := &pass{
			n:    n,
			log:  n.log.With(logging.String("dataset", dataset), logging.String("specification", specification)),
			seen: make(map[types.RecordRef]bool),
			base: types.Row{Dataset: dataset, Specification: specification},
		}
		p.warm(c)

		var ok bool
		switch c.Kind {
		case types.RecordTorsiondrive:
			ok = p.torsiondrives(c, yield)
		default:
			ok = p.entries(c, yield)
		}
		if ok {
			n.summary = p.summary
		}
	}
}

type pass struct {
	n       *Normalizer
	log     logging.Logger
	seen    map[types.RecordRef]bool
	base    types.Row
	summary Summary
}

// warm canonicalizes the distinct identifiers of c up front so the cache
// fill order does not depend on entry order.
func (p *pass) warm(c *Collection) {
	raws := make([]string, 0, len(c.Entries))
	for _, e := range c.Entries {
		if e.CMILES != "" {
			raws = append(raws, e.CMILES)
		}
	}
	// Failures are counted per entry by resolve.
	_, _ = p.n.canon.CanonicalizeAll(raws)
}

func (p *pass) schemaFailure(kind types.RecordType, id int64, reason string) {
	err := &types.SchemaError{RecordType: kind, RecordID: id, Reason: reason}
	p.log.Warn("dropping record", logging.Err(err))
	p.summary.SchemaFailures++
}

// resolve looks up e's canonical identity, logging and counting a failure.
func (p *pass) resolve(kind types.RecordType, e Entry) (string, bool) {
	if e.CMILES == "" {
		p.schemaFailure(kind, e.RecordID, "missing cmiles")
		return "", false
	}
	smiles, err := p.n.canon.Canonicalize(e.CMILES)
	if err != nil {
		p.log.Warn("dropping record", logging.Int64("record_id", e.RecordID), logging.Err(err))
		p.summary.IdentityFailures++
		return "", false
	}
	return smiles, true
}

func (p *pass) emit(row types.Row, yield func(types.Row) bool) bool {
	ref := row.Ref()
	if p.seen[ref] {
		p.log.Debug("skipping duplicate", logging.String("record", ref.String()))
		p.summary.Duplicates++
		return true
	}
	p.seen[ref] = true
	p.summary.Rows++
	return yield(row)
}

func (p *pass) entries(c *Collection, yield func(types.Row) bool) bool {
	for _, e := range c.Entries {
		smiles, ok := p.resolve(c.Kind, e)
		if !ok {
			continue
		}
		row := p.base
		row.RecordType = c.Kind
		row.RecordID = e.RecordID
		row.RawIdentifier = e.CMILES
		row.StructureKey = e.InChIKey
		row.CanonicalIdentity = smiles
		row.TorsiondriveID = types.AbsentID
		row.DihedralIndices = types.AbsentDihedrals()
		row.GridID = types.AbsentGrid()
		if !p.emit(row, yield) {
			return false
		}
	}
	return true
}

type gridPoint struct {
	grid  []int64
	optID int64
}

func (p *pass) torsiondrives(c *Collection, yield func(types.Row) bool) bool {
	records := make(map[int64]*TorsionRecord, len(c.Records))
	for i := range c.Records {
		records[c.Records[i].ID] = &c.Records[i]
	}
	referenced := make(map[int64]bool, len(c.Entries))

	for _, e := range c.Entries {
		referenced[e.RecordID] = true
		rec, found := records[e.RecordID]
		if !found {
			p.schemaFailure(c.Kind, e.RecordID, "no torsiondrive record for entry")
			continue
		}
		dihedrals, points, err := resolveTorsion(rec)
		if err != nil {
			p.schemaFailure(c.Kind, e.RecordID, err.Error())
			continue
		}
		smiles, ok := p.resolve(c.Kind, e)
		if !ok {
			continue
		}
		for _, gp := range points {
			row := p.base
			row.RecordType = c.Kind
			row.RecordID = gp.optID
			row.RawIdentifier = e.CMILES
			row.StructureKey = e.InChIKey
			row.CanonicalIdentity = smiles
			row.TorsiondriveID = rec.ID
			row.DihedralIndices = slices.Clone(dihedrals)
			row.GridID = gp.grid
			if !p.emit(row, yield) {
				return false
			}
		}
	}

	for _, rec := range c.Records {
		if !referenced[rec.ID] {
			p.schemaFailure(c.Kind, rec.ID, "no entry for torsiondrive record")
		}
	}
	return true
}

// resolveTorsion flattens the record's dihedrals and orders its grid points
// by ascending coordinates.
func resolveTorsion(rec *TorsionRecord) ([]int64, []gridPoint, error) {
	var dihedrals []int64
	for _, d := range rec.Dihedrals() {
		if len(d) != 4 {
			return nil, nil, fmt.Errorf("dihedral %v is not a quadruple", d)
		}
		dihedrals = append(dihedrals, d...)
	}
	if len(dihedrals) == 0 {
		return nil, nil, errors.New("no dihedrals")
	}
	if len(rec.MinimumOptimizations) == 0 {
		return nil, nil, errors.New("no minimum optimizations")
	}

	points := make([]gridPoint, 0, len(rec.MinimumOptimizations))
	for key, opt := range rec.MinimumOptimizations {
		grid, err := ParseGridKey(key)
		if err != nil {
			return nil, nil, err
		}
		points = append(points, gridPoint{grid: grid, optID: opt.ID})
	}
	slices.SortFunc(points, func(a, b gridPoint) int {
		return slices.Compare(a.grid, b.grid)
	})
	return dihedrals, points, nil
}

// NormalizeFile decodes the collection at path and returns its partition
// keys together with its rows. The record type comes from the document, or
// from the grandparent directory when the document carries none.
func (n *Normalizer) NormalizeFile(path string) (types.InputFile, iter.Seq[types.Row], error) {
	in, err := types.ParseInputPath(path)
	if err != nil {
		return types.InputFile{}, nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return in, nil, fmt.Errorf("reading collection: %w", err)
	}

	c, err := Decode(bytes.NewReader(data), "", n.server)
	if errors.Is(err, ErrUnknownKind) && in.Kind != "" {
		c, err = Decode(bytes.NewReader(data), in.Kind, n.server)
	}
	if err != nil {
		return in, nil, fmt.Errorf("collection %s: %w", path, err)
	}
	in.Kind = c.Kind
	return in, n.Rows(c, in.Dataset, in.Specification), nil
}
