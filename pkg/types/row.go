// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the qca-catalog pipeline.
// Implements: normalization (Row, RecordType, sentinels);
//
//	query planning (QueryCriteria, RecordRef);
//	error kinds (IdentityError, SchemaError, PatternError, StorageError);
//	stage configuration (Config).
package types

import (
	"fmt"
	"slices"
	"strings"
)

// RecordType identifies which archive record shape a row came from.
type RecordType string

const (
	RecordSinglepoint  RecordType = "singlepoint"
	RecordOptimization RecordType = "optimization"
	RecordTorsiondrive RecordType = "torsiondrive"
)

// RecordTypes lists every record type in report order.
var RecordTypes = []RecordType{RecordSinglepoint, RecordOptimization, RecordTorsiondrive}

// ParseRecordType accepts the canonical names plus the collection entry
// spellings used by qcsubmit ("basic", "torsion").
func ParseRecordType(s string) (RecordType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "singlepoint", "basic", "basicresultcollection":
		return RecordSinglepoint, nil
	case "optimization", "optimizationresultcollection":
		return RecordOptimization, nil
	case "torsiondrive", "torsion", "torsiondriveresultcollection":
		return RecordTorsiondrive, nil
	}
	return "", fmt.Errorf("unknown record type %q", s)
}

// RecordTypeFromName accepts only the canonical names. Query filters use it
// so that a filter spells the same value stored in the type column.
func RecordTypeFromName(s string) (RecordType, error) {
	kind := RecordType(strings.TrimSpace(s))
	if !slices.Contains(RecordTypes, kind) {
		return "", fmt.Errorf("unknown record type %q: use singlepoint, optimization or torsiondrive", s)
	}
	return kind, nil
}

// AbsentID marks torsiondrive_id on rows that are not torsiondrive grid points.
const AbsentID int64 = -1

// AbsentDihedrals returns the dihedral_indices sentinel for non-torsiondrive rows.
func AbsentDihedrals() []int64 { return []int64{-1, -1, -1, -1} }

// AbsentGrid returns the grid_id sentinel for non-torsiondrive rows.
func AbsentGrid() []int64 { return []int64{-1} }

// Row is one conformer entry of the corpus. The parquet tags are the column
// names of the partition files.
type Row struct {
	// RecordType is singlepoint, optimization, or torsiondrive.
	RecordType RecordType `parquet:"type" json:"type" yaml:"type"`

	// RecordID is the archive id of this row's record. For torsiondrive rows
	// it is the id of the grid point's minimum-energy optimization.
	RecordID int64 `parquet:"qcarchive_id" json:"qcarchive_id" yaml:"qcarchive_id"`

	// RawIdentifier is the mapped SMILES from the archive entry.
	RawIdentifier string `parquet:"cmiles" json:"cmiles" yaml:"cmiles"`

	// StructureKey is the InChIKey from the archive entry.
	StructureKey string `parquet:"inchi_key" json:"inchi_key" yaml:"inchi_key"`

	// CanonicalIdentity is the canonical SMILES derived from RawIdentifier.
	CanonicalIdentity string `parquet:"smiles" json:"smiles" yaml:"smiles"`

	Dataset       string `parquet:"dataset" json:"dataset" yaml:"dataset"`
	Specification string `parquet:"specification" json:"specification" yaml:"specification"`

	// TorsiondriveID is the parent torsiondrive id, or AbsentID.
	TorsiondriveID int64 `parquet:"torsiondrive_id" json:"torsiondrive_id" yaml:"torsiondrive_id"`

	// DihedralIndices holds one atom-index quadruple per scanned dihedral,
	// flattened. Non-torsiondrive rows carry AbsentDihedrals.
	DihedralIndices []int64 `parquet:"dihedral_indices,list" json:"dihedral_indices" yaml:"dihedral_indices"`

	// GridID is the grid coordinate of a torsiondrive row, or AbsentGrid.
	GridID []int64 `parquet:"grid_id,list" json:"grid_id" yaml:"grid_id"`
}

// Ref returns the (record_type, record_id) pair identifying the row.
func (r Row) Ref() RecordRef {
	return RecordRef{Type: r.RecordType, ID: r.RecordID}
}

// IsTorsiondrive reports whether the row is a torsiondrive grid point.
func (r Row) IsTorsiondrive() bool {
	return r.RecordType == RecordTorsiondrive && r.TorsiondriveID != AbsentID
}

// Dihedrals splits DihedralIndices into quadruples. It returns nil for
// rows carrying the absent sentinel.
func (r Row) Dihedrals() [][4]int64 {
	if !r.IsTorsiondrive() || len(r.DihedralIndices)%4 != 0 {
		return nil
	}
	out := make([][4]int64, 0, len(r.DihedralIndices)/4)
	for i := 0; i+4 <= len(r.DihedralIndices); i += 4 {
		out = append(out, [4]int64(r.DihedralIndices[i:i+4]))
	}
	return out
}

// Equal reports whether two rows carry identical values.
func (r Row) Equal(o Row) bool {
	return r.RecordType == o.RecordType &&
		r.RecordID == o.RecordID &&
		r.RawIdentifier == o.RawIdentifier &&
		r.StructureKey == o.StructureKey &&
		r.CanonicalIdentity == o.CanonicalIdentity &&
		r.Dataset == o.Dataset &&
		r.Specification == o.Specification &&
		r.TorsiondriveID == o.TorsiondriveID &&
		slices.Equal(r.DihedralIndices, o.DihedralIndices) &&
		slices.Equal(r.GridID, o.GridID)
}

// RecordRef names one archive record by type and id.
type RecordRef struct {
	Type RecordType `json:"type" yaml:"type"`
	ID   int64      `json:"id" yaml:"id"`
}

func (r RecordRef) String() string {
	return fmt.Sprintf("%s/%d", r.Type, r.ID)
}
