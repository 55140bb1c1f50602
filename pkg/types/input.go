// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"path/filepath"
	"strings"
)

// InputFile describes one raw collection file laid out as
// [<type>/]<specification>/<dataset>.json.
type InputFile struct {
	Path          string     `json:"path" yaml:"path"`
	Kind          RecordType `json:"kind,omitempty" yaml:"kind,omitempty"`
	Specification string     `json:"specification" yaml:"specification"`
	Dataset       string     `json:"dataset" yaml:"dataset"`
}

// ParseInputPath derives the partition keys of a collection file from its
// path. Kind is set only when the grandparent directory names a record type.
func ParseInputPath(path string) (InputFile, error) {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	if ext != ".json" {
		return InputFile{}, fmt.Errorf("input %s: expected a .json collection", path)
	}
	dataset := strings.TrimSuffix(base, ext)
	dir := filepath.Dir(path)
	spec := filepath.Base(dir)
	if dataset == "" || spec == "." || spec == string(filepath.Separator) {
		return InputFile{}, fmt.Errorf("input %s: expected <specification>/<dataset>.json", path)
	}

	in := InputFile{Path: path, Specification: spec, Dataset: dataset}
	if kind, err := ParseRecordType(filepath.Base(filepath.Dir(dir))); err == nil {
		in.Kind = kind
	}
	return in, nil
}
