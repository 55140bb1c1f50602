// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package corpus

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const partitionExt = ".parquet"

// Partition names one corpus file by its specification and dataset keys.
type Partition struct {
	Specification string `json:"specification" yaml:"specification"`
	Dataset       string `json:"dataset" yaml:"dataset"`
}

func (p Partition) String() string {
	return p.Specification + "/" + p.Dataset + partitionExt
}

func (p Partition) validate() error {
	for _, key := range []string{p.Specification, p.Dataset} {
		if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
			return fmt.Errorf("invalid partition key %q", key)
		}
	}
	return nil
}

// ReadFile is an open partition.
type ReadFile interface {
	io.ReaderAt
	io.Closer
	Size() int64
}

// WriteFile is a partition being written. Nothing is visible to readers
// until Commit; Abort discards the partial file.
type WriteFile interface {
	io.Writer
	Commit() error
	Abort() error
}

// Storage abstracts the location of partition files.
type Storage interface {
	List() ([]Partition, error)
	Open(p Partition) (ReadFile, error)
	Create(p Partition) (WriteFile, error)
}

// DirStorage keeps partitions at <root>/<specification>/<dataset>.parquet.
type DirStorage struct {
	root string
}

// NewDirStorage returns a DirStorage rooted at root. The directory is
// created on the first write.
func NewDirStorage(root string) *DirStorage {
	return &DirStorage{root: root}
}

// Root returns the corpus directory.
func (s *DirStorage) Root() string { return s.root }

// Path returns the file path of p.
func (s *DirStorage) Path(p Partition) string {
	return filepath.Join(s.root, p.Specification, p.Dataset+partitionExt)
}

// List returns every partition in the corpus sorted by specification then
// dataset. A missing root is an empty corpus.
func (s *DirStorage) List() ([]Partition, error) {
	specs, err := os.ReadDir(s.root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading corpus directory %s: %w", s.root, err)
	}

	var parts []Partition
	for _, spec := range specs {
		if !spec.IsDir() || strings.HasPrefix(spec.Name(), ".") {
			continue
		}
		files, err := os.ReadDir(filepath.Join(s.root, spec.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading specification directory %s: %w", spec.Name(), err)
		}
		for _, f := range files {
			name := f.Name()
			if f.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != partitionExt {
				continue
			}
			parts = append(parts, Partition{
				Specification: spec.Name(),
				Dataset:       strings.TrimSuffix(name, partitionExt),
			})
		}
	}
	slices.SortFunc(parts, comparePartitions)
	return parts, nil
}

func comparePartitions(a, b Partition) int {
	if c := strings.Compare(a.Specification, b.Specification); c != 0 {
		return c
	}
	return strings.Compare(a.Dataset, b.Dataset)
}

type osReadFile struct {
	*os.File
	size int64
}

func (f osReadFile) Size() int64 { return f.size }

// Open opens p for reading.
func (s *DirStorage) Open(p Partition) (ReadFile, error) {
	f, err := os.Open(s.Path(p))
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return osReadFile{File: f, size: info.Size()}, nil
}

type tempFile struct {
	f    *os.File
	dest string
}

func (t *tempFile) Write(b []byte) (int, error) { return t.f.Write(b) }

func (t *tempFile) Commit() error {
	if err := t.f.Close(); err != nil {
		os.Remove(t.f.Name())
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(t.f.Name(), t.dest); err != nil {
		os.Remove(t.f.Name())
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func (t *tempFile) Abort() error {
	t.f.Close()
	return os.Remove(t.f.Name())
}

// Create starts writing p through a temporary file in the destination
// directory; Commit renames it into place.
func (s *DirStorage) Create(p Partition) (WriteFile, error) {
	dest := s.Path(p)
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, "."+p.Dataset+"-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	return &tempFile{f: f, dest: dest}, nil
}
