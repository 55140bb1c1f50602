// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Row-level kinds (ErrIdentity, ErrSchema) are counted
// and logged; run-level kinds abort the command.
var (
	ErrIdentity       = errors.New("invalid molecular identifier")
	ErrSchema         = errors.New("record missing required fields")
	ErrPattern        = errors.New("invalid substructure pattern")
	ErrStorage        = errors.New("corpus storage failure")
	ErrNoCombinations = errors.New("requested combinations resolve to no records")
)

// IdentityError reports an identifier that could not be parsed as a molecule.
type IdentityError struct {
	Identifier string
	Err        error
}

func (e *IdentityError) Error() string {
	return fmt.Sprintf("canonicalizing %q: %v", e.Identifier, e.Err)
}

func (e *IdentityError) Unwrap() error { return e.Err }

func (e *IdentityError) Is(target error) bool { return target == ErrIdentity }

// SchemaError reports a raw record lacking fields its record type requires.
type SchemaError struct {
	RecordType RecordType
	RecordID   int64
	Reason     string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s record %d: %s", e.RecordType, e.RecordID, e.Reason)
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

// PatternError reports a syntactically invalid substructure query.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("pattern %q: %v", e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error { return e.Err }

func (e *PatternError) Is(target error) bool { return target == ErrPattern }

// StorageError reports an unreadable or corrupt partition file.
type StorageError struct {
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("partition %s: %v", e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }
