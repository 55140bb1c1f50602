// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pdiddy/qca-catalog/internal/catalog"
	"github.com/pdiddy/qca-catalog/internal/corpus"
	"github.com/pdiddy/qca-catalog/internal/logging"
	"github.com/pdiddy/qca-catalog/internal/match"
	"github.com/pdiddy/qca-catalog/internal/query"
	"github.com/pdiddy/qca-catalog/internal/report"
	"github.com/pdiddy/qca-catalog/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search the corpus for molecules matching a SMARTS pattern",
	Long: `Search narrows the corpus by combination, specification, dataset and
record type, evaluates the SMARTS pattern once per distinct canonical
identity, and writes the report artifacts (matching_molecules.csv,
summary.yaml, summary.json, summary.md) to the output directory.

Filter counts are printed to stderr after each step. A search that matches
nothing still writes a report and exits successfully.

Use --query-file to rerun a saved search, or --save-query to save this one.`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().String("pattern", "", "SMARTS substructure pattern")
	searchCmd.Flags().StringSlice("spec", nil, "specification filter (repeatable)")
	searchCmd.Flags().StringSlice("dataset", nil, "dataset filter (repeatable)")
	searchCmd.Flags().StringSlice("type", nil, "record type filter: singlepoint, optimization, torsiondrive (repeatable)")
	searchCmd.Flags().StringSlice("combination", nil, "combination name (repeatable, OR-ed)")
	searchCmd.Flags().String("tables", "", "corpus directory (default from config)")
	searchCmd.Flags().String("combinations-dir", "", "directory of <name>.csv combinations (default from config)")
	searchCmd.Flags().String("output-dir", "", "report output directory (default from config)")
	searchCmd.Flags().Bool("match-parents", false, "let combination torsiondrive ids also match their grid points (default from config)")
	searchCmd.Flags().String("ledger", "", "SQLite ledger to record the run in, when it exists (default from config)")
	searchCmd.Flags().String("run-id", "", "run id (default: random)")
	searchCmd.Flags().String("query-file", "", "load the pattern and filters from a saved query file")
	searchCmd.Flags().String("save-query", "", "save the search and its outcome to this YAML file")

	rootCmd.AddCommand(searchCmd)
}

func searchRequest(cmd *cobra.Command) (query.Request, error) {
	var req query.Request
	if path, _ := cmd.Flags().GetString("query-file"); path != "" {
		qf, err := query.ReadQueryFile(path)
		if err != nil {
			return req, err
		}
		criteria, err := qf.Query.Criteria()
		if err != nil {
			return req, err
		}
		req = query.Request{Pattern: qf.Query.Pattern, Criteria: criteria}
	}

	req.Pattern = flagOr(cmd, "pattern", req.Pattern)
	if req.Pattern == "" {
		return req, fmt.Errorf("--pattern or --query-file is required")
	}

	if v, _ := cmd.Flags().GetStringSlice("spec"); len(v) > 0 {
		req.Criteria.Specifications = v
	}
	if v, _ := cmd.Flags().GetStringSlice("dataset"); len(v) > 0 {
		req.Criteria.Datasets = v
	}
	if v, _ := cmd.Flags().GetStringSlice("combination"); len(v) > 0 {
		req.Criteria.Combinations = v
	}
	if v, _ := cmd.Flags().GetStringSlice("type"); len(v) > 0 {
		req.Criteria.RecordTypes = nil
		for _, s := range v {
			kind, err := types.RecordTypeFromName(s)
			if err != nil {
				return req, err
			}
			req.Criteria.RecordTypes = append(req.Criteria.RecordTypes, kind)
		}
	}
	return req, nil
}

// openRunLedger opens the ledger at path when it already exists. Searches
// never create one.
func openRunLedger(path string) *catalog.Ledger {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	l, err := catalog.OpenLedger(path)
	if err != nil {
		logger.Warn("ledger unavailable", logging.String("path", path), logging.Err(err))
		return nil
	}
	return l
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	req, err := searchRequest(cmd)
	if err != nil {
		return err
	}

	tables := flagOr(cmd, "tables", cfg.Corpus.Root)
	combinationsDir := flagOr(cmd, "combinations-dir", cfg.Query.CombinationsDir)
	outputDir := flagOr(cmd, "output-dir", cfg.Query.OutputDir)
	runID := flagOr(cmd, "run-id", uuid.NewString())

	ledger := openRunLedger(flagOr(cmd, "ledger", cfg.Normalize.LedgerPath))
	if ledger != nil {
		defer ledger.Close()
		if runID, err = ledger.BeginRun(ctx, runID, "search", req.Args()); err != nil {
			return err
		}
	}
	finish := func(outcome string) {
		if ledger == nil {
			return
		}
		if err := ledger.FinishRun(context.WithoutCancel(ctx), runID, outcome); err != nil {
			logger.Warn("recording run outcome", logging.String("run_id", runID), logging.Err(err))
		}
	}

	matchParents := cfg.Query.MatchTorsiondriveParents
	if cmd.Flags().Changed("match-parents") {
		matchParents, _ = cmd.Flags().GetBool("match-parents")
	}

	payload, err := search(ctx, tables, combinationsDir, req, runID, matchParents)
	if err != nil {
		finish("failed")
		if errors.Is(err, types.ErrNoCombinations) {
			warnColor.Fprintln(os.Stderr, "Requested combinations contain no records.")
		}
		return err
	}

	if err := payload.Write(outputDir); err != nil {
		finish("failed")
		return err
	}
	if path, _ := cmd.Flags().GetString("save-query"); path != "" {
		qf := query.QueryFile{
			Query: query.NewQueryParams(req.Pattern, req.Criteria),
			Summary: query.QuerySummary{
				RunID:             payload.RunID,
				Outcome:           string(payload.Outcome),
				MatchedIdentities: payload.MatchedIdentities,
				MatchedRows:       payload.MatchedRows,
				Timestamp:         time.Now().UTC(),
			},
		}
		if err := query.WriteQueryFile(path, qf); err != nil {
			finish("failed")
			return err
		}
	}
	finish(string(payload.Outcome))

	if payload.Outcome == match.NoMatches {
		warnColor.Fprintf(os.Stderr, "No matches found for %s\n", req.Pattern)
	} else {
		okColor.Fprintf(os.Stderr, "Found %d unique matches in %d rows across %d datasets\n",
			payload.MatchedIdentities, payload.MatchedRows, payload.Datasets)
	}
	fmt.Println(filepath.Join(outputDir, report.MarkdownFile))
	return nil
}

// search plans, scans and matches, returning the report payload.
func search(ctx context.Context, tables, combinationsDir string, req query.Request, runID string, matchParents bool) (*report.Payload, error) {
	c := corpus.Open(tables, logger)
	planner := query.NewPlanner(c, query.DirResolver{Dir: combinationsDir}, query.WriterReporter(os.Stderr), logger).
		MatchTorsiondriveParents(matchParents)

	pred, err := planner.Plan(ctx, req.Criteria)
	if err != nil {
		return nil, err
	}

	res, err := match.NewMatcher(nil, logger).Match(ctx, c.Scan(ctx, pred), req.Pattern)
	if err != nil {
		return nil, err
	}

	commandLine := query.Command(cfg.Report.Command, req.Pattern, req.Criteria)
	return report.NewPayload(runID, commandLine, res, cfg.Report), nil
}
