// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package query

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/pdiddy/qca-catalog/pkg/types"
)

// ErrCombinationNotFound is returned when a named combination has no file.
var ErrCombinationNotFound = errors.New("combination not found")

// CombinationResolver maps a combination name to the records it lists.
type CombinationResolver interface {
	Resolve(name string) ([]types.RecordRef, error)
}

// DirResolver reads combinations from <dir>/<name>.csv.
type DirResolver struct {
	Dir string
}

// Resolve loads the named combination file.
func (r DirResolver) Resolve(name string) ([]types.RecordRef, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return nil, fmt.Errorf("invalid combination name %q", name)
	}
	path := filepath.Join(r.Dir, name+".csv")
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrCombinationNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("opening combination: %w", err)
	}
	defer f.Close()

	refs, err := ReadCombination(f)
	if err != nil {
		return nil, fmt.Errorf("combination %s: %w", name, err)
	}
	return refs, nil
}

// ReadCombination parses a combination CSV with type and id columns.
// Other columns are ignored.
func ReadCombination(r io.Reader) ([]types.RecordRef, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("empty combination file")
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	typeCol := slices.Index(header, "type")
	idCol := slices.Index(header, "id")
	if typeCol < 0 || idCol < 0 {
		return nil, fmt.Errorf("header %v lacks type and id columns", header)
	}

	var refs []types.RecordRef
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return refs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if max(typeCol, idCol) >= len(rec) {
			return nil, fmt.Errorf("line %d: too few fields", line)
		}
		kind := types.RecordType(strings.TrimSpace(rec[typeCol]))
		if kind != types.RecordOptimization && kind != types.RecordTorsiondrive {
			return nil, fmt.Errorf("line %d: type %q is not optimization or torsiondrive", line, kind)
		}
		id, err := strconv.ParseInt(strings.TrimSpace(rec[idCol]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid id %q", line, rec[idCol])
		}
		refs = append(refs, types.RecordRef{Type: kind, ID: id})
	}
}

// WriteCombination writes refs as a combination CSV.
func WriteCombination(w io.Writer, refs []types.RecordRef) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"type", "id"}); err != nil {
		return err
	}
	for _, r := range refs {
		if err := cw.Write([]string{string(r.Type), strconv.FormatInt(r.ID, 10)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// BuildCombination collects the records named by a targets directory:
// torsion-<id> entries are torsiondrives and opt-*/<id>-*.xyz files are
// optimizations. Torsiondrives come first, each group in path order.
func BuildCombination(targetsDir string) ([]types.RecordRef, error) {
	if _, err := os.Stat(targetsDir); err != nil {
		return nil, fmt.Errorf("reading targets directory: %w", err)
	}

	torsions, err := filepath.Glob(filepath.Join(targetsDir, "torsion-*"))
	if err != nil {
		return nil, err
	}
	var refs []types.RecordRef
	for _, path := range torsions {
		stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		idx := strings.LastIndex(stem, "-")
		id, err := strconv.ParseInt(stem[idx+1:], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("target %s: invalid torsiondrive id", path)
		}
		refs = append(refs, types.RecordRef{Type: types.RecordTorsiondrive, ID: id})
	}

	opts, err := filepath.Glob(filepath.Join(targetsDir, "opt-*", "*.xyz"))
	if err != nil {
		return nil, err
	}
	for _, path := range opts {
		head, _, _ := strings.Cut(strings.TrimSuffix(filepath.Base(path), ".xyz"), "-")
		id, err := strconv.ParseInt(head, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("target %s: invalid optimization id", path)
		}
		refs = append(refs, types.RecordRef{Type: types.RecordOptimization, ID: id})
	}
	return refs, nil
}
