// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/qca-catalog/internal/catalog"
	"github.com/pdiddy/qca-catalog/internal/corpus"
)

var partitionsCmd = &cobra.Command{
	Use:   "partitions",
	Short: "List corpus partitions and their row counts",
	RunE:  runPartitions,
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded normalize and search runs",
	Long: `Runs reads the SQLite ledger and lists the most recent command runs
with their outcome.`,
	RunE: runRuns,
}

func init() {
	partitionsCmd.Flags().String("tables", "", "corpus directory (default from config)")
	partitionsCmd.Flags().Bool("json", false, "output as JSON")

	runsCmd.Flags().String("ledger", "", "SQLite ledger path (default from config)")
	runsCmd.Flags().Int("limit", 20, "maximum number of runs")
	runsCmd.Flags().Bool("json", false, "output as JSON")

	rootCmd.AddCommand(partitionsCmd, runsCmd)
}

type partitionInfo struct {
	Specification string `json:"specification"`
	Dataset       string `json:"dataset"`
	Rows          int    `json:"rows"`
}

func runPartitions(cmd *cobra.Command, args []string) error {
	c := corpus.Open(flagOr(cmd, "tables", cfg.Corpus.Root), logger)
	parts, err := c.Partitions()
	if err != nil {
		return err
	}

	infos := make([]partitionInfo, 0, len(parts))
	for _, p := range parts {
		n, err := c.Count(cmd.Context(), corpus.SpecIn(p.Specification).And(corpus.DatasetIn(p.Dataset)))
		if err != nil {
			return err
		}
		infos = append(infos, partitionInfo{Specification: p.Specification, Dataset: p.Dataset, Rows: n})
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}

	if len(infos) == 0 {
		fmt.Println("No partitions found.")
		return nil
	}
	fmt.Fprintf(os.Stdout, "%-40s  %-50s  %s\n", "Specification", "Dataset", "Rows")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 100))
	total := 0
	for _, p := range infos {
		fmt.Fprintf(os.Stdout, "%-40s  %-50s  %d\n", p.Specification, p.Dataset, p.Rows)
		total += p.Rows
	}
	fmt.Fprintf(os.Stdout, "\n%d partitions, %d rows\n", len(infos), total)
	return nil
}

func runRuns(cmd *cobra.Command, args []string) error {
	path := flagOr(cmd, "ledger", cfg.Normalize.LedgerPath)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("no ledger at %s: run normalize first", path)
	}
	ledger, err := catalog.OpenLedger(path)
	if err != nil {
		return err
	}
	defer ledger.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := ledger.Runs(cmd.Context(), limit)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}
	fmt.Fprintf(os.Stdout, "%-36s  %-10s  %-30s  %s\n", "Run", "Command", "Started", "Outcome")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 100))
	for _, r := range runs {
		outcome := r.Outcome
		if outcome == "" {
			outcome = "running"
		}
		fmt.Fprintf(os.Stdout, "%-36s  %-10s  %-30s  %s\n", r.ID, r.Command, r.StartedAt, outcome)
	}
	return nil
}
