// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pdiddy/qca-catalog/internal/corpus"
	"github.com/pdiddy/qca-catalog/internal/logging"
	"github.com/pdiddy/qca-catalog/internal/normalize"
	"github.com/pdiddy/qca-catalog/pkg/types"
)

// IngestSummary holds counts from one normalization run.
type IngestSummary struct {
	RunID   string `json:"run_id" yaml:"run_id"`
	Indexed int    `json:"indexed" yaml:"indexed"`
	Updated int    `json:"updated" yaml:"updated"`
	Skipped int    `json:"skipped" yaml:"skipped"`
	Failed  int    `json:"failed" yaml:"failed"`
	Rows    int    `json:"rows" yaml:"rows"`
}

// Total returns the number of input files processed.
func (s IngestSummary) Total() int {
	return s.Indexed + s.Updated + s.Skipped + s.Failed
}

// Catalog ties the normalizer, the corpus and the ledger together.
type Catalog struct {
	ledger *Ledger
	corpus *corpus.Corpus
	norm   *normalize.Normalizer
	log    logging.Logger
}

// New returns a Catalog writing into c and recording into l.
func New(l *Ledger, c *corpus.Corpus, n *normalize.Normalizer, log logging.Logger) *Catalog {
	return &Catalog{ledger: l, corpus: c, norm: n, log: logging.OrNop(log).Named("catalog")}
}

// Ingest normalizes files into the corpus. A file whose modification time
// matches the ledger and whose partition exists is skipped unless force is
// set. A failing file is reported and counted; it does not stop the run.
func (c *Catalog) Ingest(ctx context.Context, w io.Writer, files []types.InputFile, force bool) (IngestSummary, error) {
	var summary IngestSummary

	parts, err := c.corpus.Partitions()
	if err != nil {
		return summary, err
	}
	existing := make(map[corpus.Partition]bool, len(parts))
	for _, p := range parts {
		existing[p] = true
	}

	args := make([]string, 0, len(files))
	for _, f := range files {
		args = append(args, f.Path)
	}
	runID, err := c.ledger.BeginRun(ctx, "", "normalize", args)
	if err != nil {
		return summary, err
	}
	summary.RunID = runID

	for _, f := range files {
		select {
		case <-ctx.Done():
			if err := c.ledger.FinishRun(context.WithoutCancel(ctx), runID, "cancelled"); err != nil {
				c.log.Warn("recording run outcome", logging.String("run_id", runID), logging.Err(err))
			}
			return summary, ctx.Err()
		default:
		}

		info, err := os.Stat(f.Path)
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", f.Path, err)
			summary.Failed++
			continue
		}
		modTime := info.ModTime().UTC().Format(time.RFC3339Nano)

		stored, found, err := c.ledger.ModTime(ctx, f.Path)
		if err != nil {
			return summary, err
		}
		part := corpus.Partition{Specification: f.Specification, Dataset: f.Dataset}
		if found && stored == modTime && existing[part] && !force {
			fmt.Fprintf(w, "skipped %s\n", part)
			summary.Skipped++
			continue
		}

		entry, err := c.ingestFile(ctx, f, modTime, runID)
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", f.Path, err)
			c.log.Error("normalization failed", logging.String("input", f.Path), logging.Err(err))
			summary.Failed++
			continue
		}
		existing[part] = true
		summary.Rows += entry.Rows

		if found {
			fmt.Fprintf(w, "updated %s (%d rows)\n", part, entry.Rows)
			summary.Updated++
		} else {
			fmt.Fprintf(w, "indexing %s (%d rows)\n", part, entry.Rows)
			summary.Indexed++
		}
	}

	fmt.Fprintf(w, "\nindexed: %d, updated: %d, skipped: %d, failed: %d\n",
		summary.Indexed, summary.Updated, summary.Skipped, summary.Failed)

	outcome := "ok"
	if summary.Failed > 0 {
		outcome = "partial"
	}
	if err := c.ledger.FinishRun(ctx, runID, outcome); err != nil {
		return summary, err
	}
	return summary, nil
}

func (c *Catalog) ingestFile(ctx context.Context, f types.InputFile, modTime, runID string) (Entry, error) {
	in, rows, err := c.norm.NormalizeFile(f.Path)
	if err != nil {
		return Entry{}, err
	}
	n, err := c.corpus.Append(ctx, in.Specification, in.Dataset, rows)
	if err != nil {
		return Entry{}, err
	}
	s := c.norm.Summary()
	c.log.Info("normalized collection",
		logging.String("input", f.Path),
		logging.Int("rows", n),
		logging.Int("identity_failures", s.IdentityFailures),
		logging.Int("schema_failures", s.SchemaFailures),
		logging.Int("duplicates", s.Duplicates))

	e := Entry{
		InputPath:        f.Path,
		Specification:    in.Specification,
		Dataset:          in.Dataset,
		Kind:             string(in.Kind),
		FileModTime:      modTime,
		Rows:             n,
		IdentityFailures: s.IdentityFailures,
		SchemaFailures:   s.SchemaFailures,
		Duplicates:       s.Duplicates,
		RunID:            runID,
	}
	if err := c.ledger.Record(ctx, e); err != nil {
		return Entry{}, err
	}
	return e, nil
}
