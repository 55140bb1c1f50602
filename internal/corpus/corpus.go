// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package corpus stores normalized rows as one Parquet file per
// (specification, dataset) partition and answers filtered scans over them.
// Partitions are written whole and replaced atomically.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/pdiddy/qca-catalog/internal/logging"
	"github.com/pdiddy/qca-catalog/pkg/types"
)

const batchSize = 1024

// Corpus reads and writes partitions through a Storage.
type Corpus struct {
	store Storage
	log   logging.Logger
}

// New returns a Corpus over store.
func New(store Storage, log logging.Logger) *Corpus {
	return &Corpus{store: store, log: logging.OrNop(log).Named("corpus")}
}

// Open returns a Corpus over the directory root.
func Open(root string, log logging.Logger) *Corpus {
	return New(NewDirStorage(root), log)
}

// Append writes rows as the partition (specification, dataset), replacing
// any previous file. Every row must carry the partition's keys. Readers
// see either the old partition or the complete new one.
func (c *Corpus) Append(ctx context.Context, specification, dataset string, rows iter.Seq[types.Row]) (int, error) {
	part := Partition{Specification: specification, Dataset: dataset}
	if err := part.validate(); err != nil {
		return 0, err
	}

	out, err := c.store.Create(part)
	if err != nil {
		return 0, &types.StorageError{Path: part.String(), Err: err}
	}

	n, err := writeRows(ctx, out, part, rows)
	if err != nil {
		out.Abort()
		return 0, err
	}
	if err := out.Commit(); err != nil {
		return 0, &types.StorageError{Path: part.String(), Err: err}
	}
	c.log.Info("partition written", logging.String("partition", part.String()), logging.Int("rows", n))
	return n, nil
}

func writeRows(ctx context.Context, out io.Writer, part Partition, rows iter.Seq[types.Row]) (int, error) {
	w := parquet.NewGenericWriter[types.Row](out)
	batch := make([]types.Row, 0, batchSize)
	total := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := w.Write(batch); err != nil {
			return &types.StorageError{Path: part.String(), Err: err}
		}
		total += len(batch)
		batch = batch[:0]
		return ctx.Err()
	}

	for r := range rows {
		if r.Specification != part.Specification || r.Dataset != part.Dataset {
			return 0, fmt.Errorf("row %s belongs to %s/%s, not %s", r.Ref(), r.Specification, r.Dataset, part)
		}
		batch = append(batch, r)
		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return 0, err
			}
		}
	}
	if err := flush(); err != nil {
		return 0, err
	}
	if err := w.Close(); err != nil {
		return 0, &types.StorageError{Path: part.String(), Err: err}
	}
	return total, nil
}

// Partitions lists the corpus partitions.
func (c *Corpus) Partitions() ([]Partition, error) {
	parts, err := c.store.List()
	if err != nil {
		return nil, &types.StorageError{Path: ".", Err: err}
	}
	return parts, nil
}

// selected lists the partitions admitted by p, logging the pruned ones.
func (c *Corpus) selected(p Predicate) ([]Partition, error) {
	parts, err := c.Partitions()
	if err != nil {
		return nil, err
	}
	var out []Partition
	for _, part := range parts {
		if !p.AdmitsPartition(part) {
			c.log.Debug("pruned partition", logging.String("partition", part.String()))
			continue
		}
		out = append(out, part)
	}
	return out, nil
}

func (c *Corpus) openFile(part Partition) (*parquet.File, io.Closer, error) {
	f, err := c.store.Open(part)
	if err != nil {
		return nil, nil, &types.StorageError{Path: part.String(), Err: err}
	}
	pf, err := parquet.OpenFile(f, f.Size())
	if err != nil {
		f.Close()
		return nil, nil, &types.StorageError{Path: part.String(), Err: err}
	}
	return pf, f, nil
}

// scanPartition yields the rows of part admitted by p. It returns false
// when the consumer stopped.
func (c *Corpus) scanPartition(part Partition, p Predicate, yield func(types.Row, error) bool) bool {
	pf, closer, err := c.openFile(part)
	if err != nil {
		yield(types.Row{}, err)
		return false
	}
	defer closer.Close()

	r := parquet.NewGenericReader[types.Row](pf)
	defer r.Close()

	buf := make([]types.Row, batchSize)
	for {
		n, err := r.Read(buf)
		for _, row := range buf[:n] {
			if p.Admits(row) && !yield(row, nil) {
				return false
			}
		}
		if errors.Is(err, io.EOF) {
			return true
		}
		if err != nil {
			yield(types.Row{}, &types.StorageError{Path: part.String(), Err: err})
			return false
		}
	}
}

// Scan yields every row admitted by p in partition order, then file order.
// Partitions outside p's key sets are never opened. The first error ends
// the sequence. Scan may be ranged over more than once.
func (c *Corpus) Scan(ctx context.Context, p Predicate) iter.Seq2[types.Row, error] {
	return func(yield func(types.Row, error) bool) {
		if p.Empty() {
			return
		}
		parts, err := c.selected(p)
		if err != nil {
			yield(types.Row{}, err)
			return
		}
		for _, part := range parts {
			if err := ctx.Err(); err != nil {
				yield(types.Row{}, err)
				return
			}
			if !c.scanPartition(part, p, yield) {
				return
			}
		}
	}
}

// Count returns the number of rows admitted by p. Partitions admitted whole
// are counted from file metadata without decoding rows.
func (c *Corpus) Count(ctx context.Context, p Predicate) (int, error) {
	if p.Empty() {
		return 0, nil
	}
	if !p.KeyOnly() {
		n := 0
		for _, err := range c.Scan(ctx, p) {
			if err != nil {
				return 0, err
			}
			n++
		}
		return n, nil
	}

	parts, err := c.selected(p)
	if err != nil {
		return 0, err
	}
	var n int64
	for _, part := range parts {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		pf, closer, err := c.openFile(part)
		if err != nil {
			return 0, err
		}
		n += pf.NumRows()
		closer.Close()
	}
	return int(n), nil
}

// Inputs lists the collection files under inputDir, found at
// <specification>/<dataset>.json and <type>/<specification>/<dataset>.json,
// in path order. Hidden files are ignored.
func Inputs(inputDir string) ([]types.InputFile, error) {
	if _, err := os.Stat(inputDir); err != nil {
		return nil, fmt.Errorf("reading input directory: %w", err)
	}
	var paths []string
	for _, pattern := range []string{"*/*.json", "*/*/*.json"} {
		matches, err := filepath.Glob(filepath.Join(inputDir, pattern))
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", inputDir, err)
		}
		paths = append(paths, matches...)
	}
	slices.Sort(paths)

	var inputs []types.InputFile
	for _, path := range paths {
		if strings.HasPrefix(filepath.Base(path), ".") {
			continue
		}
		in, err := types.ParseInputPath(path)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

// Pending lists the collection files under inputDir whose partition does
// not exist yet.
func (c *Corpus) Pending(inputDir string) ([]types.InputFile, error) {
	inputs, err := Inputs(inputDir)
	if err != nil {
		return nil, err
	}
	parts, err := c.Partitions()
	if err != nil {
		return nil, err
	}
	existing := newSet(parts)

	var pending []types.InputFile
	for _, in := range inputs {
		if existing.admits(Partition{Specification: in.Specification, Dataset: in.Dataset}) {
			continue
		}
		pending = append(pending, in)
	}
	return pending, nil
}
